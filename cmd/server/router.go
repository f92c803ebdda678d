package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/imglabel/internal/api"
	apiMiddleware "github.com/phrazzld/imglabel/internal/api/middleware"
	"github.com/phrazzld/imglabel/internal/api/shared"
	"github.com/phrazzld/imglabel/internal/app"
)

// newRouter creates the router with all routes and middleware.
func newRouter(a *app.App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(a.Logger))
	r.Use(middleware.Recoverer)

	imageHandler := api.NewImageHandler(a.ImageService, a.Config.Server.MaxUploadBytes, a.Logger)

	var uploadLimits []func(http.Handler) http.Handler
	if limit := a.Config.Server.UploadRateLimit; limit > 0 {
		window := a.Config.Server.UploadRateWindow
		if window <= 0 {
			window = time.Minute
		}
		uploadLimits = append(uploadLimits, httprate.Limit(
			limit,
			window,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, "Too many uploads", nil)
			}),
		))
	}

	r.Route("/api", func(r chi.Router) {
		imageHandler.RegisterRoutes(r, uploadLimits...)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			a.Logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))

	return r
}
