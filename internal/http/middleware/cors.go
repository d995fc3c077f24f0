package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSPolicy describes which browser origins may call the reader API.
type CORSPolicy struct {
	Origins []string
	Methods []string
	Headers []string
	Expose  []string
	MaxAge  int
}

// DefaultCORSPolicy returns the policy used by the reading client: plain
// GET/POST with JSON bodies and a language header.
func DefaultCORSPolicy(origins []string) CORSPolicy {
	return CORSPolicy{
		Origins: origins,
		Methods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		Headers: []string{"Content-Type", "Accept-Language", "X-Request-ID"},
		Expose:  []string{"X-Request-ID"},
		MaxAge:  600,
	}
}

// CORS applies DefaultCORSPolicy for allowedOrigins. "*" admits every origin;
// an empty list admits none.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return DefaultCORSPolicy(allowedOrigins).Middleware()
}

// Middleware compiles the policy once and returns the handler wrapper.
func (p CORSPolicy) Middleware() func(http.Handler) http.Handler {
	origins := newOriginSet(p.Origins)
	methods := strings.Join(p.Methods, ", ")
	headers := strings.Join(p.Headers, ", ")
	expose := strings.Join(p.Expose, ", ")
	maxAge := ""
	if p.MaxAge > 0 {
		maxAge = strconv.Itoa(p.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || !origins.admits(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			if expose != "" {
				h.Set("Access-Control-Expose-Headers", expose)
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

type originSet struct {
	any   bool
	exact map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	set := originSet{exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			set.any = true
		default:
			set.exact[strings.ToLower(origin)] = struct{}{}
		}
	}
	return set
}

func (s originSet) admits(origin string) bool {
	if s.any {
		return true
	}
	_, ok := s.exact[strings.ToLower(origin)]
	return ok
}
