package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"isa-chat/internal/handlers"
	"isa-chat/internal/middleware"
	"isa-chat/internal/web"
	"isa-chat/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	pageHandler *handlers.PageHandler,
	wsHub *websocket.Hub,
	submitLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── Page ────
	r.Get("/", pageHandler.Index)
	r.With(submitLimiter.Middleware).Post("/submit", pageHandler.SubmitForm)
	r.Handle("/static/*", http.StripPrefix("/static/", web.StaticHandler()))

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Get("/", chatHandler.GetState)
			r.With(submitLimiter.Middleware).Post("/", chatHandler.Submit)
			r.Put("/prompt", chatHandler.UpdatePrompt)
		})

		r.Get("/history", chatHandler.GetHistory)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
