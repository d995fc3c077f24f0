// Package ocr extracts printed text from photos through an external
// recognizer, enforcing the timeout and quality floor the assistant relies on.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/vision-helper/pkg/logging"
)

const (
	// DefaultTimeout bounds a single recognition.
	DefaultTimeout = 180 * time.Second
	// MaxImageBytes is the largest accepted upload.
	MaxImageBytes = 10 << 20
	// MinTextRunes is the shortest result treated as a successful read.
	MinTextRunes = 3
)

var (
	// ErrTimeout means no text was produced within the timeout (OCR_TIMEOUT).
	ErrTimeout = errors.New("ocr: timed out")
	// ErrPoorQuality means fewer than MinTextRunes characters were recognized
	// (POOR_QUALITY).
	ErrPoorQuality = errors.New("ocr: poor image quality")
	// ErrUnsupportedFormat rejects anything but JPEG and PNG.
	ErrUnsupportedFormat = errors.New("ocr: only JPEG and PNG images are supported")
	// ErrTooLarge rejects images above MaxImageBytes.
	ErrTooLarge = errors.New("ocr: image exceeds 10MB")
	// ErrEmptyImage rejects empty uploads.
	ErrEmptyImage = errors.New("ocr: image is empty")
)

// Recognizer turns image bytes into text. languages uses tesseract's
// "chi_tra+eng" notation.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, languages string) (string, error)
}

// ValidateImage checks size and sniffed content type.
func ValidateImage(image []byte) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	if len(image) > MaxImageBytes {
		return ErrTooLarge
	}
	switch http.DetectContentType(image) {
	case "image/jpeg", "image/png":
		return nil
	default:
		return ErrUnsupportedFormat
	}
}

// LanguagesFor maps an interface language tag to recognizer languages,
// falling back to def.
func LanguagesFor(lang, def string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ja", "ja-jp":
		return "jpn+eng"
	case "en", "en-us", "en-gb":
		return "eng"
	case "zh-tw", "zh-hant":
		return "chi_tra+eng"
	default:
		if def == "" {
			return "chi_tra+eng"
		}
		return def
	}
}

// Service wraps a Recognizer with validation, the timeout and the quality
// floor.
type Service struct {
	recognizer Recognizer
	timeout    time.Duration
	languages  string
	logger     *logging.Logger
}

// NewService creates a Service. A non-positive timeout selects DefaultTimeout.
func NewService(r Recognizer, timeout time.Duration, languages string, logger *logging.Logger) *Service {
	if r == nil {
		panic("ocr: recognizer cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{recognizer: r, timeout: timeout, languages: languages, logger: logger}
}

// Extract validates image, recognizes it and returns trimmed text.
func (s *Service) Extract(ctx context.Context, image []byte, lang string) (string, error) {
	if err := ValidateImage(image); err != nil {
		return "", err
	}
	languages := LanguagesFor(lang, s.languages)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		text, err := s.recognizer.Recognize(ctx, image, languages)
		done <- outcome{text: text, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("ocr timed out", "timeout_ms", s.timeout.Milliseconds())
			return "", ErrTimeout
		}
		return "", ctx.Err()
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("ocr: recognition failed: %w", res.err)
	}

	text := strings.TrimSpace(res.text)
	s.logger.Info("ocr finished",
		"languages", languages,
		"chars", utf8.RuneCountInString(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if utf8.RuneCountInString(text) < MinTextRunes {
		return "", ErrPoorQuality
	}
	return text, nil
}

// TesseractCLI runs the tesseract binary, feeding the image on stdin.
type TesseractCLI struct {
	Command string
}

func (t TesseractCLI) Recognize(ctx context.Context, image []byte, languages string) (string, error) {
	command := t.Command
	if command == "" {
		command = "tesseract"
	}
	cmd := exec.CommandContext(ctx, command, "stdin", "stdout", "-l", languages)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%s: %w: %s", command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
