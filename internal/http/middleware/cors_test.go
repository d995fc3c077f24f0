package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandler bool
	}{
		{name: "listed origin", allowed: []string{"https://reader.example"}, origin: "https://reader.example", method: http.MethodPost, wantOrigin: "https://reader.example", wantStatus: http.StatusOK, wantHandler: true},
		{name: "unknown origin", allowed: []string{"https://reader.example"}, origin: "https://evil.example", method: http.MethodPost, wantStatus: http.StatusOK, wantHandler: true},
		{name: "wildcard", allowed: []string{" * "}, origin: "https://any.example", method: http.MethodGet, wantOrigin: "https://any.example", wantStatus: http.StatusOK, wantHandler: true},
		{name: "empty allowlist", allowed: nil, origin: "https://reader.example", method: http.MethodGet, wantStatus: http.StatusOK, wantHandler: true},
		{name: "preflight", allowed: []string{"https://reader.example"}, origin: "https://reader.example", method: http.MethodOptions, preflight: true, wantOrigin: "https://reader.example", wantStatus: http.StatusNoContent},
		{name: "origin case and trailing slash", allowed: []string{"https://Reader.example/"}, origin: "https://reader.example", method: http.MethodGet, wantOrigin: "https://reader.example", wantStatus: http.StatusOK, wantHandler: true},
		{name: "preflight from unknown origin", allowed: []string{"https://reader.example"}, origin: "https://evil.example", method: http.MethodOptions, preflight: true, wantStatus: http.StatusOK, wantHandler: true},
		{name: "options without preflight header", allowed: []string{"https://reader.example"}, origin: "https://reader.example", method: http.MethodOptions, wantOrigin: "https://reader.example", wantStatus: http.StatusOK, wantHandler: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(tt.method, "/api/chat", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if called != tt.wantHandler {
				t.Fatalf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			wantMethods := ""
			if tt.preflight && tt.wantOrigin != "" {
				wantMethods = "GET, POST, OPTIONS"
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != wantMethods {
				t.Fatalf("expected allow methods %q, got %q", wantMethods, got)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Expose-Headers") != "X-Request-ID" {
				t.Fatalf("expected request id to be exposed, got %q", rec.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}
}

func TestCORSPolicyMaxAge(t *testing.T) {
	policy := DefaultCORSPolicy([]string{"*"})
	policy.MaxAge = 0
	req := httptest.NewRequest(http.MethodOptions, "/api/ocr", nil)
	req.Header.Set("Origin", "https://reader.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	policy.Middleware()(http.NotFoundHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "" {
		t.Fatalf("expected no max age, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Accept-Language, X-Request-ID" {
		t.Fatalf("unexpected allow headers %q", got)
	}
}
