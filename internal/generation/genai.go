package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// genaiSession is the slice of the SDK the backend needs.
type genaiSession interface {
	Send(ctx context.Context, model string, cfg Config, history []*genai.Content, last []genai.Part) (*genai.GenerateContentResponse, error)
}

type sdkSession struct {
	client *genai.Client
}

func (s sdkSession) Send(ctx context.Context, model string, cfg Config, history []*genai.Content, last []genai.Part) (*genai.GenerateContentResponse, error) {
	m := s.client.GenerativeModel(model)
	if cfg.Temperature >= 0 {
		m.SetTemperature(float32(cfg.Temperature))
	}
	if cfg.TopK > 0 {
		m.SetTopK(int32(cfg.TopK))
	}
	if cfg.TopP > 0 {
		m.SetTopP(float32(cfg.TopP))
	}
	if cfg.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(cfg.MaxOutputTokens))
	}
	cs := m.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, last...)
}

// GenAIBackend calls Gemini through the official Go SDK.
type GenAIBackend struct {
	session genaiSession
	closer  func() error
}

// NewGenAIBackend opens an SDK client authenticated with apiKey.
func NewGenAIBackend(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GenAIBackend, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &ConfigError{Field: "GEMINI_API_KEY"}
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("generation: failed to create gemini client: %w", err)
	}
	return &GenAIBackend{session: sdkSession{client: client}, closer: client.Close}, nil
}

func newGenAIBackendWithSession(session genaiSession) *GenAIBackend {
	return &GenAIBackend{session: session}
}

func (b *GenAIBackend) Name() string { return "gemini-sdk" }

// Close releases the SDK connection.
func (b *GenAIBackend) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

func (b *GenAIBackend) GenerateOnce(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", &ConfigError{Field: "GEMINI_MODEL"}
	}
	if len(req.Contents) == 0 {
		return "", errors.New("generation: gemini requires at least one message")
	}

	history := make([]*genai.Content, 0, len(req.Contents)-1)
	for _, c := range req.Contents[:len(req.Contents)-1] {
		history = append(history, toGenAIContent(c))
	}
	last := toGenAIContent(req.Contents[len(req.Contents)-1]).Parts

	resp, err := b.session.Send(ctx, req.Model, req.Config, history, last)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", mapSDKError(err)
	}
	return genaiText(resp)
}

func toGenAIContent(c Content) *genai.Content {
	parts := make([]genai.Part, 0, len(c.Parts))
	for _, p := range c.Parts {
		parts = append(parts, genai.Text(p.Text))
	}
	role := c.Role
	if role == "" {
		role = RoleUser
	}
	return &genai.Content{Role: role, Parts: parts}
}

func genaiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &MalformedResponseError{Reason: "no candidates"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &MalformedResponseError{Reason: "candidate has no content parts"}
	}
	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok || text == "" {
		return "", &MalformedResponseError{Reason: "first part has no text"}
	}
	return string(text), nil
}

// mapSDKError translates SDK failures into the package's error kinds so the
// retry policy treats both transports alike.
func mapSDKError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &MalformedResponseError{Reason: blocked.Error()}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &APIError{Status: gErr.Code, Message: gErr.Message}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return &NetworkError{Err: err}
		default:
			return &APIError{Status: httpStatusFromCode(st.Code()), Message: st.Message(), Reason: st.Code().String()}
		}
	}

	return &NetworkError{Err: err}
}

func httpStatusFromCode(code codes.Code) int {
	switch code {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
