package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	middle "healthmon/internals/middleware"
	"healthmon/internals/modules/monitor"
	"healthmon/pkg/utils"
)

func RegisterRoutes(c *Container) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middle.RequestID)
	r.Use(middle.Logger(c.Logger))
	r.Use(middle.Metrics(c.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, middleware.GetReqID(r.Context()), "ok", map[string]int{
			"services": len(c.Registry.List()),
		})
	})
	r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		// long lived, so outside the timeout group
		v1.Get("/stream", c.monitorHandler.Stream)

		v1.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(5 * time.Second))

			api.Mount("/services", monitor.Routes(c.monitorHandler, c.authMW.Protect))
			api.With(c.authMW.Protect).Post("/refresh", c.monitorHandler.RefreshAll)
		})
	})

	return r
}
