package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/apexanalytical/labcms/pkg/httputil"
	"github.com/apexanalytical/labcms/pkg/pipeline"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth       *AuthHandlers
	Services   *ServiceHandlers
	Categories *CategoryHandlers

	// Metrics serves the Prometheus scrape endpoint when set.
	Metrics http.Handler
}

// NewRouter builds the full route table behind the admission pipeline.
// The returned handler already carries the outer plumbing, so callers
// hand it straight to the HTTP server.
func NewRouter(p *pipeline.Pipeline, h *Handlers) http.Handler {
	r := mux.NewRouter()

	for _, mw := range p.RouterMiddleware() {
		r.Use(mw)
	}

	r.HandleFunc("/health", Health).Methods(http.MethodGet)
	r.HandleFunc("/api/health", Health).Methods(http.MethodGet)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}

	r.Handle("/api/auth/login",
		p.AuthRoute(http.HandlerFunc(h.Auth.Login))).Methods(http.MethodPost)

	// Public content reads
	r.HandleFunc("/api/services", h.Services.List).Methods(http.MethodGet)
	r.HandleFunc("/api/services/{id}", h.Services.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/categories", h.Categories.List).Methods(http.MethodGet)

	// Admin content writes. Reorder is registered before {id} so the
	// literal segment wins the match.
	r.Handle("/api/admin/services",
		p.Admin(http.HandlerFunc(h.Services.Create))).Methods(http.MethodPost)
	r.Handle("/api/admin/services/reorder",
		p.Admin(http.HandlerFunc(h.Services.Reorder))).Methods(http.MethodPut)
	r.Handle("/api/admin/services/{id}",
		p.Admin(http.HandlerFunc(h.Services.Update))).Methods(http.MethodPut)
	r.Handle("/api/admin/services/{id}",
		p.Admin(http.HandlerFunc(h.Services.Delete))).Methods(http.MethodDelete)
	r.Handle("/api/admin/services/{id}/image",
		p.Upload(http.HandlerFunc(h.Services.UploadImage))).Methods(http.MethodPost)

	r.Handle("/api/admin/categories",
		p.Admin(http.HandlerFunc(h.Categories.Create))).Methods(http.MethodPost)
	r.Handle("/api/admin/categories/{id}",
		p.Admin(http.HandlerFunc(h.Categories.Update))).Methods(http.MethodPut)
	r.Handle("/api/admin/categories/{id}",
		p.Admin(http.HandlerFunc(h.Categories.Delete))).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	return p.Outer(r)
}

// Health handles GET /api/health. The general API limiter exempts it
// so load balancer probes never burn quota.
func Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{
		Success:   false,
		Status:    http.StatusNotFound,
		Message:   "route not found",
		Type:      "not_found",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{
		Success:   false,
		Status:    http.StatusMethodNotAllowed,
		Message:   "method not allowed",
		Type:      "validation",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}
