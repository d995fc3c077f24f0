package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/vision-helper/internal/ocr"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

const maxJSONBody = 1 << 20

// Handler wires HTTP requests to the assistant service.
type Handler struct {
	service Service
	logger  *logging.Logger
}

// NewHandler creates an assistant handler.
func NewHandler(service Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type documentRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.service.Chat(r.Context(), req.Message)
	if err != nil {
		h.fail(w, "chat", err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

// Explain handles POST /api/explain.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.service.Explain(r.Context(), req.Text, ParseMode(req.Mode))
	if err != nil {
		h.fail(w, "explain", err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

// Narrate handles POST /api/narrate.
func (h *Handler) Narrate(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.service.Narrate(r.Context(), req.Text)
	if err != nil {
		h.fail(w, "narrate", err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

// ReadImage handles POST /api/ocr with a multipart "image" field.
func (h *Handler) ReadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ocr.MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(ocr.MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, ocr.ErrTooLarge.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, ocr.MaxImageBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	reply, err := h.service.ReadImage(r.Context(), image, ParseMode(r.FormValue("mode")), r.FormValue("lang"))
	if err != nil {
		h.fail(w, "read image", err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

// Persona handles GET /api/persona.
func (h *Handler) Persona(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Persona())
}

// PersonaHistory handles GET /api/persona/history.
func (h *Handler) PersonaHistory(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"history": h.service.PersonaHistory()})
}

// ResetPersona handles POST /api/persona/reset.
func (h *Handler) ResetPersona(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.ResetPersona())
}

// Conversation handles GET /api/conversation.
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Conversation())
}

// ResetConversation handles POST /api/conversation/reset.
func (h *Handler) ResetConversation(w http.ResponseWriter, r *http.Request) {
	h.service.ResetConversation()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		h.logger.Error("failed to decode request", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "error", err)
	} else {
		h.logger.Warn("request rejected", "op", op, "error", err)
	}
	h.writeError(w, status, err.Error())
}

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrEmptyInput),
		errors.Is(err, ocr.ErrUnsupportedFormat),
		errors.Is(err, ocr.ErrEmptyImage):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
