package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRESTBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultUserAgent   = "vision-helper/1.0"
	maxResponseBytes   = 4 << 20
)

// RESTConfig controls the REST backend.
type RESTConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

// RESTBackend calls {BaseURL}/models/{model}:generateContent?key={APIKey}.
type RESTBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

// NewRESTBackend creates the backend. An empty API key is accepted so that
// the service can start; every call then fails with a *ConfigError.
func NewRESTBackend(cfg RESTConfig) *RESTBackend {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultRESTBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &RESTBackend{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (b *RESTBackend) Name() string { return "gemini-rest" }

type generateContentRequest struct {
	Contents         []Content `json:"contents"`
	GenerationConfig Config    `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (b *RESTBackend) GenerateOnce(ctx context.Context, req Request) (string, error) {
	if b.apiKey == "" {
		return "", &ConfigError{Field: "GEMINI_API_KEY"}
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", &ConfigError{Field: "GEMINI_MODEL"}
	}
	body, err := json.Marshal(generateContentRequest{Contents: req.Contents, GenerationConfig: req.Config})
	if err != nil {
		return "", fmt.Errorf("generation: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint(req.Model), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("generation: build request: %w", b.redact(err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", b.userAgent)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &NetworkError{Err: b.redact(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeAPIError(resp.StatusCode, data)
	}
	return extractText(data)
}

func (b *RESTBackend) endpoint(model string) string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		b.baseURL, url.PathEscape(model), url.QueryEscape(b.apiKey))
}

// redact strips the API key from errors that embed the request URL.
func (b *RESTBackend) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{
			Op:  urlErr.Op,
			URL: strings.ReplaceAll(urlErr.URL, url.QueryEscape(b.apiKey), "REDACTED"),
			Err: urlErr.Err,
		}
	}
	return err
}

func extractText(data []byte) (string, error) {
	var parsed generateContentResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &MalformedResponseError{Reason: "invalid json: " + err.Error(), Body: excerpt(data)}
	}
	if len(parsed.Candidates) == 0 {
		return "", &MalformedResponseError{Reason: "no candidates", Body: excerpt(data)}
	}
	first := parsed.Candidates[0]
	if first.Content == nil || len(first.Content.Parts) == 0 {
		return "", &MalformedResponseError{Reason: "candidate has no content parts", Body: excerpt(data)}
	}
	text := first.Content.Parts[0].Text
	if text == nil || *text == "" {
		return "", &MalformedResponseError{Reason: "first part has no text", Body: excerpt(data)}
	}
	return *text, nil
}
