package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func router(logger zerolog.Logger, api *API) *chi.Mux {
	c := chi.NewMux()

	c.Use(
		middleware.RequestID,
		requestLogger(logger),
		middleware.Recoverer,
	)

	c.Get("/", api.handleGetIndex())
	c.Handle("/static/*", staticFileServer())

	c.Route("/internal", func(r chi.Router) {
		r.Get("/health", api.handleGetHealth())
		r.Get("/ready", api.handleGetHealth())
	})

	c.Route("/api", func(r chi.Router) {
		r.Get("/stream", api.handleGetStream())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(4 * 1024))

			r.Post("/chat", api.handlePostChat())
			r.Post("/connect", api.handlePostConnect())
			r.Post("/youtube/stream-start", api.handlePostStreamStart())
			r.Put("/settings/font-size", api.handlePutFontSize())
		})
	})

	return c
}
