package generation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockBackend serves requests through the Bedrock Converse API. It is
// used as a secondary provider when Gemini is unavailable.
type BedrockBackend struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockBackend wraps api. modelID overrides the model named in each
// request, since Gemini model names mean nothing to Bedrock.
func NewBedrockBackend(api bedrockConverseAPI, modelID string) *BedrockBackend {
	if api == nil {
		panic("generation: bedrock converse client cannot be nil")
	}
	return &BedrockBackend{api: api, modelID: strings.TrimSpace(modelID)}
}

func (b *BedrockBackend) Name() string { return "bedrock" }

func (b *BedrockBackend) GenerateOnce(ctx context.Context, req Request) (string, error) {
	modelID := b.modelID
	if modelID == "" {
		modelID = strings.TrimSpace(req.Model)
	}
	if modelID == "" {
		return "", &ConfigError{Field: "BEDROCK_MODEL_ID"}
	}

	messages := bedrockMessages(req.Contents)
	if len(messages) == 0 {
		return "", errors.New("generation: bedrock requires at least one message")
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.Config.MaxOutputTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(req.Config.MaxOutputTokens))
	}
	if req.Config.Temperature >= 0 {
		inference.Temperature = aws.Float32(float32(req.Config.Temperature))
	}
	if req.Config.TopP > 0 {
		inference.TopP = aws.Float32(float32(req.Config.TopP))
	}

	out, err := b.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		Messages:        messages,
		InferenceConfig: inference,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", mapBedrockError(err)
	}
	return bedrockExtractOutputText(out)
}

// bedrockMessages converts the history, merging consecutive turns that share
// a role because Converse requires strict user/assistant alternation.
func bedrockMessages(contents []Content) []brtypes.Message {
	messages := make([]brtypes.Message, 0, len(contents))
	for _, c := range contents {
		text := strings.TrimSpace(c.Text())
		if text == "" {
			continue
		}
		role := brtypes.ConversationRoleUser
		if c.Role == RoleModel {
			role = brtypes.ConversationRoleAssistant
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, &brtypes.ContentBlockMemberText{Value: text})
			continue
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		})
	}
	return messages
}

func bedrockExtractOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", &MalformedResponseError{Reason: "bedrock response is nil"}
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", &MalformedResponseError{Reason: "bedrock response did not include a message output"}
	}
	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return "", &MalformedResponseError{Reason: "bedrock response contained no text content blocks"}
	}
	return text, nil
}

func mapBedrockError(err error) error {
	var (
		throttled   *brtypes.ThrottlingException
		quota       *brtypes.ServiceQuotaExceededException
		unavailable *brtypes.ServiceUnavailableException
		timeout     *brtypes.ModelTimeoutException
		notReady    *brtypes.ModelNotReadyException
		validation  *brtypes.ValidationException
		denied      *brtypes.AccessDeniedException
	)
	switch {
	case errors.As(err, &throttled):
		return &APIError{Status: http.StatusTooManyRequests, Message: throttled.ErrorMessage(), Reason: throttled.ErrorCode()}
	case errors.As(err, &quota):
		return &APIError{Status: http.StatusTooManyRequests, Message: quota.ErrorMessage(), Reason: quota.ErrorCode()}
	case errors.As(err, &unavailable), errors.As(err, &timeout), errors.As(err, &notReady):
		return &NetworkError{Err: err}
	case errors.As(err, &validation):
		return &APIError{Status: http.StatusBadRequest, Message: validation.ErrorMessage(), Reason: validation.ErrorCode()}
	case errors.As(err, &denied):
		return &APIError{Status: http.StatusForbidden, Message: denied.ErrorMessage(), Reason: denied.ErrorCode()}
	default:
		return err
	}
}
