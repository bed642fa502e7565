package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"kidchat-backend/internal/handlers"
	"kidchat-backend/internal/middleware"
	"kidchat-backend/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	diagnosticsHandler *handlers.DiagnosticsHandler,
	wsHub *websocket.Hub,
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

	// Legacy path kept for the existing web front-end, which reads "error"
	// as a display string.
	r.With(middleware.SessionID).Post("/api/chat", chatHandler.SendLegacy)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Chat Routes ────
		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionID)
			r.Post("/chat", chatHandler.Send)
		})

		// ──── Diagnostics Routes ────
		r.Route("/diagnostics", func(r chi.Router) {
			r.Get("/completions", diagnosticsHandler.ListCompletions)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
