package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prometric-ai/prometric/internal/api"
	"github.com/prometric-ai/prometric/internal/api/handlers"
	"github.com/prometric-ai/prometric/internal/api/middleware"
)

type RouterConfig struct {
	KnowledgeHandler *handlers.KnowledgeHandler
	ChatHandler      *handlers.ChatHandler
	FeedbackHandler  *handlers.FeedbackHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeHandler.Ingest)
			r.Get("/", cfg.KnowledgeHandler.List)
			r.Get("/{id}", cfg.KnowledgeHandler.Get)
			r.Put("/{id}", cfg.KnowledgeHandler.Reingest)
			r.Post("/{id}/archive", cfg.KnowledgeHandler.Archive)
		})

		r.Post("/search", cfg.KnowledgeHandler.Search)
		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Post("/feedback", cfg.FeedbackHandler.Submit)
	})

	return r
}
