package monitor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the service API. Mutating routes are wrapped by protect.
func Routes(h *Handler, protect func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListServices)
	r.Get("/{name}", h.GetService)
	r.Get("/{name}/stats", h.GetStats)
	r.Get("/{name}/history", h.GetHistory)

	r.Group(func(r chi.Router) {
		r.Use(protect)
		r.Post("/", h.CreateService)
		r.Put("/{name}", h.UpdateService)
		r.Delete("/{name}", h.DeleteService)
		r.Post("/{name}/refresh", h.RefreshService)
	})

	return r
}

/*
- GET: /services -> snapshot of every service
- GET: /services/{name} -> snapshot of one service
- GET: /services/{name}/stats?window=24h -> uptime, latency percentiles, outages
- GET: /services/{name}/history?page=1&page_size=50 -> results, newest first

- POST: /services -> add (auth)
	body : ServiceRequest
- PUT: /services/{name} -> edit (auth)
	body : ServiceRequest
- DELETE: /services/{name} -> remove (auth)
- POST: /services/{name}/refresh -> probe now (auth)
*/
