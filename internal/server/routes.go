package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("QuestLab Player API", "/openapi.json", "/docs"))
	if deps.Health != nil {
		r.Mount("/healthz", deps.Health)
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", handleCreateSession(deps.Sessions))

		r.Route("/{id}", func(r chi.Router) {
			r.Use(sessionMiddleware(deps.Sessions))
			r.Get("/", handleGetSession())
			r.Delete("/", handleDeleteSession(deps.Sessions))
			r.Post("/answer", handleAnswer())
			r.Post("/option", handleOption())
			r.Post("/choice", handleChoice())
			r.Post("/click", handleClick())
			r.Post("/finish", handleFinish())
			r.Post("/restart", handleRestart())
			r.Get("/events", handleEvents(deps.Sessions.Broker()))
			r.Get("/play", handlePlay(deps.Sessions.Broker(), logger))
		})
	})

	if deps.Results != nil {
		r.Get("/api/results", handleListResults(deps.Results))
	}

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
