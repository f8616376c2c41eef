package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/averylane/ar-companion/backend/internal/handler/conversation"
	middlewarePkg "github.com/averylane/ar-companion/backend/internal/middleware"
	"github.com/averylane/ar-companion/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the turn pipeline. tmpDir overrides where
// transient audio resources are materialized; empty means the OS temp dir.
func NewRouter(processor conversation.TurnProcessor, tmpDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Liveness probe.
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
	})

	conversationHandler := conversation.New(processor, tmpDir)
	conversationHandler.RegisterRoutes(r)

	wsHandler := conversation.NewWebSocketHandler(processor, tmpDir)
	wsHandler.RegisterRoutes(r)

	return r
}
