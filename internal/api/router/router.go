package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/vision-helper/internal/conversation"
	httpmiddleware "github.com/wolfman30/vision-helper/internal/http/middleware"
	"github.com/wolfman30/vision-helper/internal/webchat"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	AssistantHandler   *conversation.Handler
	WebChat            *webchat.Handler
	MetricsHandler     http.Handler
	RequestObserver    httpmiddleware.RequestObserver
	CORSAllowedOrigins []string

	// RateLimitRPS <= 0 disables ingress rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Health is reported verbatim by GET /health.
	Health HealthInfo
}

// HealthInfo describes the running service.
type HealthInfo struct {
	Model   string `json:"model"`
	Backend string `json:"backend"`
	// GenerationReady is false when no API key is configured; the service
	// still runs and answers with a misconfiguration message.
	GenerationReady bool `json:"generation_ready"`
	OCRReady        bool `json:"ocr_ready"`
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.RequestObserver))
	}

	// Public endpoints (health checks, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Health))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Reader endpoints, rate limited per client
	r.Group(func(reader chi.Router) {
		if cfg.RateLimitRPS > 0 {
			reader.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		if h := cfg.AssistantHandler; h != nil {
			reader.Route("/api", func(api chi.Router) {
				api.Post("/chat", h.Chat)
				api.Post("/explain", h.Explain)
				api.Post("/narrate", h.Narrate)
				api.Post("/ocr", h.ReadImage)
				api.Route("/persona", func(p chi.Router) {
					p.Get("/", h.Persona)
					p.Get("/history", h.PersonaHistory)
					p.Post("/reset", h.ResetPersona)
				})
				api.Route("/conversation", func(c chi.Router) {
					c.Get("/", h.Conversation)
					c.Post("/reset", h.ResetConversation)
				})
			})
		}
		if cfg.WebChat != nil {
			reader.Get("/ws", cfg.WebChat.HandleWebSocket)
			reader.Get("/chat/history", cfg.WebChat.HandleHistory)
		}
	})

	return r
}

func healthHandler(info HealthInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
			HealthInfo
		}{Status: "ok", HealthInfo: info})
	}
}
