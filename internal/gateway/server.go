package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(g.requestID)
	r.Use(g.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	// Public, outside the prefix.
	r.Get("/healthz", g.handleHealth())
	if g.metrics != nil && g.config.Metrics.IsEnabled() {
		r.Method(http.MethodGet, g.config.Metrics.Path, g.metrics)
	}

	routes := func(r chi.Router) {
		r.Use(g.requireSecret)

		r.Get("/install/{owner}/{token}", g.handleInstall())
		r.Post("/install/{owner}/{token}", g.handleInstall())
		r.Get("/uninstall/{token}", g.handleUninstall())
		r.Post("/uninstall/{token}", g.handleUninstall())
		r.Post("/webhook/{owner}/{token}", g.handleWebhook())
	}

	if prefix := g.config.RoutePrefix(); prefix != "" {
		r.Route("/"+prefix, routes)
	} else {
		r.Group(routes)
	}

	return r
}
