package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/Thanuja-2/collaborative-canvas/internal/api"
	"github.com/Thanuja-2/collaborative-canvas/internal/services"
	"github.com/Thanuja-2/collaborative-canvas/internal/session"
	"github.com/Thanuja-2/collaborative-canvas/internal/utils"
)

// New wires the canvas routes. staticDir, when non-empty, is served at the root
// so the drawing client can be hosted by the same process.
func New(log *utils.Logger, hub *session.Hub, events *services.EventPublisher, staticDir string) http.Handler {
	h := api.NewHandlersWithDeps(log, hub, events)
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/api/v1/healthz", h.Health)
	r.Get("/api/v1/rooms/{id}", h.RoomSnapshot)
	r.Get("/ws", h.CanvasWS)

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}
