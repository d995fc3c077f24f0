package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/vision-helper/internal/ocr"
	"github.com/wolfman30/vision-helper/internal/persona"
)

type stubService struct {
	lastMessage string
	lastText    string
	lastMode    Mode
	lastLang    string
	lastImage   []byte
	reset       bool
	err         error
	reply       Reply
}

func (s *stubService) Chat(_ context.Context, message string) (Reply, error) {
	s.lastMessage = message
	return s.reply, s.err
}

func (s *stubService) Explain(_ context.Context, text string, mode Mode) (Reply, error) {
	s.lastText, s.lastMode = text, mode
	return s.reply, s.err
}

func (s *stubService) Narrate(_ context.Context, text string) (Reply, error) {
	s.lastText = text
	return s.reply, s.err
}

func (s *stubService) ReadImage(_ context.Context, image []byte, mode Mode, lang string) (Reply, error) {
	s.lastImage, s.lastMode, s.lastLang = image, mode, lang
	return s.reply, s.err
}

func (s *stubService) Persona() persona.Persona {
	p, _ := persona.DefaultCatalog().Get(persona.Companion)
	return p
}

func (s *stubService) PersonaHistory() []persona.SwitchEvent {
	return []persona.SwitchEvent{{From: persona.Companion, To: persona.Medical}}
}

func (s *stubService) ResetPersona() persona.Persona { return s.Persona() }

func (s *stubService) Conversation() Snapshot {
	return Snapshot{Turns: []Turn{{ID: "t1", Role: RoleUser, Text: "hi"}}, Capacity: 10}
}

func (s *stubService) ResetConversation() { s.reset = true }

func TestHandler_Chat_ReturnsReply(t *testing.T) {
	svc := &stubService{reply: Reply{Text: "您好", Kind: KindChat}}
	h := NewHandler(svc, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"早安"}`))
	w := httptest.NewRecorder()
	h.Chat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.lastMessage != "早安" {
		t.Fatalf("expected message to reach service, got %q", svc.lastMessage)
	}
	var reply Reply
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Text != "您好" || reply.Kind != KindChat {
		t.Fatalf("unexpected reply %#v", reply)
	}
}

func TestHandler_Chat_InvalidBody(t *testing.T) {
	h := NewHandler(&stubService{}, quietLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	h.Chat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandler_Chat_EmptyMessage(t *testing.T) {
	h := NewHandler(&stubService{err: ErrEmptyInput}, quietLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":""}`))
	w := httptest.NewRecorder()
	h.Chat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["error"] != ErrEmptyInput.Error() {
		t.Fatalf("unexpected error body %#v", body)
	}
}

func TestHandler_Explain_ParsesMode(t *testing.T) {
	svc := &stubService{reply: Reply{Kind: KindFraudSafe}}
	h := NewHandler(svc, quietLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/explain", strings.NewReader(`{"text":"通知","mode":"fraud"}`))
	w := httptest.NewRecorder()
	h.Explain(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.lastText != "通知" || svc.lastMode != ModeFraud {
		t.Fatalf("unexpected service input %q %q", svc.lastText, svc.lastMode)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/narrate", strings.NewReader(`{"text":"故事"}`))
	w = httptest.NewRecorder()
	h.Narrate(w, req)
	if w.Code != http.StatusOK || svc.lastText != "故事" {
		t.Fatalf("narrate: status %d text %q", w.Code, svc.lastText)
	}
}

func multipartImage(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandler_ReadImage(t *testing.T) {
	svc := &stubService{reply: Reply{Kind: KindGeneral, Recognized: "hello"}}
	h := NewHandler(svc, quietLogger())
	image := pngImage(t)

	body, contentType := multipartImage(t, image, map[string]string{"mode": "fraud", "lang": "ja"})
	req := httptest.NewRequest(http.MethodPost, "/api/ocr", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ReadImage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Equal(svc.lastImage, image) {
		t.Fatalf("image bytes not forwarded")
	}
	if svc.lastMode != ModeFraud || svc.lastLang != "ja" {
		t.Fatalf("unexpected mode %q lang %q", svc.lastMode, svc.lastLang)
	}
}

func TestHandler_ReadImage_MissingField(t *testing.T) {
	h := NewHandler(&stubService{}, quietLogger())
	body, contentType := multipartImage(t, nil, map[string]string{"mode": "general"})
	req := httptest.NewRequest(http.MethodPost, "/api/ocr", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ReadImage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandler_ReadImage_UnsupportedFormat(t *testing.T) {
	h := NewHandler(&stubService{err: ocr.ErrUnsupportedFormat}, quietLogger())
	body, contentType := multipartImage(t, []byte("GIF89a"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/ocr", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ReadImage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandler_PersonaEndpoints(t *testing.T) {
	h := NewHandler(&stubService{}, quietLogger())

	w := httptest.NewRecorder()
	h.Persona(w, httptest.NewRequest(http.MethodGet, "/api/persona", nil))
	var p persona.Persona
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode persona: %v", err)
	}
	if p.ID != persona.Companion {
		t.Fatalf("expected companion, got %q", p.ID)
	}

	w = httptest.NewRecorder()
	h.PersonaHistory(w, httptest.NewRequest(http.MethodGet, "/api/persona/history", nil))
	var history struct {
		History []persona.SwitchEvent `json:"history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.History) != 1 || history.History[0].To != persona.Medical {
		t.Fatalf("unexpected history %#v", history)
	}

	w = httptest.NewRecorder()
	h.ResetPersona(w, httptest.NewRequest(http.MethodPost, "/api/persona/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandler_ConversationEndpoints(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc, quietLogger())

	w := httptest.NewRecorder()
	h.Conversation(w, httptest.NewRequest(http.MethodGet, "/api/conversation", nil))
	var snap Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Turns) != 1 || snap.Capacity != 10 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	w = httptest.NewRecorder()
	h.ResetConversation(w, httptest.NewRequest(http.MethodPost, "/api/conversation/reset", nil))
	if w.Code != http.StatusNoContent || !svc.reset {
		t.Fatalf("expected reset with 204, got %d reset=%v", w.Code, svc.reset)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrEmptyInput, http.StatusBadRequest},
		{ocr.ErrEmptyImage, http.StatusBadRequest},
		{ocr.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
