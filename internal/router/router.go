package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"askmemo-backend/internal/handlers"
	"askmemo-backend/internal/metrics"
	"askmemo-backend/internal/middleware"
	"askmemo-backend/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	memoHandler *handlers.MemoHandler,
	pageHandler *handlers.PageHandler,
	wsHub *websocket.Hub,
	collector *metrics.Collector,
	askLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(collector))
	r.Use(chimiddleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	// ──── HTML page ────
	r.Group(func(r chi.Router) {
		r.Use(sessionAuth.Middleware)
		r.Get("/", pageHandler.Index)
		r.With(askLimiter.Middleware).Post("/ask", pageHandler.Ask)
		r.Post("/save", pageHandler.Save)
		r.Post("/abandon", pageHandler.Abandon)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{frontendURL},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, handlers.TabIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, middleware.SessionTokenHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(sessionAuth.Middleware)

		r.Get("/session", memoHandler.GetSession)
		r.With(askLimiter.Middleware).Post("/ask", memoHandler.Ask)
		r.Post("/save", memoHandler.Save)
		r.Post("/abandon", memoHandler.Abandon)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
