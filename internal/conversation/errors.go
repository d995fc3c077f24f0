package conversation

import (
	"errors"

	"github.com/wolfman30/vision-helper/internal/generation"
	"github.com/wolfman30/vision-helper/internal/locale"
	"github.com/wolfman30/vision-helper/internal/ocr"
)

// ErrEmptyInput rejects blank messages and documents.
var ErrEmptyInput = errors.New("conversation: empty input")

// UserMessage maps a failure to the sentence shown to the user.
func UserMessage(err error, lang locale.Language) string {
	m := locale.For(lang)
	var (
		rlErr  *generation.RateLimitError
		netErr *generation.NetworkError
		apiErr *generation.APIError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return m.EmptyInput
	case generation.IsConfigError(err):
		return m.Misconfigured
	case errors.As(err, &rlErr):
		return m.RateLimited
	case errors.As(err, &apiErr) && apiErr.RateLimited():
		return m.RateLimited
	case errors.As(err, &netErr):
		return m.NetworkProblem
	case errors.Is(err, ocr.ErrTimeout):
		return m.OCRTimeout
	case errors.Is(err, ocr.ErrPoorQuality):
		return m.OCRFailed
	default:
		return m.GenericError
	}
}
