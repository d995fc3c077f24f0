// Package generation calls a text-generation model with bounded retry on
// rate limiting and transient network failures.
package generation

import (
	"context"
	"strings"
)

// Roles used in Content.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one piece of a content entry. Only text parts are produced.
type Part struct {
	Text string `json:"text"`
}

// Content is one turn sent to the model.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// UserText builds a user turn holding text.
func UserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// ModelText builds a model turn holding text.
func ModelText(text string) Content {
	return Content{Role: RoleModel, Parts: []Part{{Text: text}}}
}

// Text joins the content's text parts.
func (c Content) Text() string {
	if len(c.Parts) == 1 {
		return c.Parts[0].Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Config holds the sampling parameters sent with every call.
type Config struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

// DefaultConfig mirrors the parameters the reading assistant has always used.
func DefaultConfig() Config {
	return Config{
		MaxOutputTokens: 1024,
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
	}
}

// Request is a single model invocation.
type Request struct {
	Model    string
	Contents []Content
	Config   Config
}

// Backend performs exactly one call to a model provider. Implementations
// report HTTP-level failures as *APIError, transport failures as
// *NetworkError, missing credentials as *ConfigError and unexpected payloads
// as *MalformedResponseError.
type Backend interface {
	Name() string
	GenerateOnce(ctx context.Context, req Request) (string, error)
}

// Generator produces a reply for a prompt history.
type Generator interface {
	Generate(ctx context.Context, history []Content, cfg Config) (string, error)
}
