package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/errs"
	"github.com/apexanalytical/labcms/pkg/httputil"
	"github.com/apexanalytical/labcms/pkg/storage/postgres"
)

// CategoryHandlers serves the public listing and the admin CRUD for
// service categories
type CategoryHandlers struct {
	store  *postgres.CategoryStore
	log    audit.Logger
	logger *logrus.Logger
}

// NewCategoryHandlers creates the category handlers
func NewCategoryHandlers(store *postgres.CategoryStore, log audit.Logger, logger *logrus.Logger) *CategoryHandlers {
	return &CategoryHandlers{store: store, log: log, logger: logger}
}

type categoryRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// List handles GET /api/categories
func (h *CategoryHandlers) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("listing categories failed")
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}
	httputil.WriteSuccess(w, categories)
}

// Create handles POST /api/admin/categories
func (h *CategoryHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, r, errs.Validation("name is required", "body.name"))
		return
	}

	cat := &postgres.Category{Name: req.Name, Position: req.Position}
	if err := h.store.Create(r.Context(), cat); err != nil {
		h.logger.WithError(err).Error("creating category failed")
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataCreate, cat.ID)
	httputil.WriteCreated(w, cat)
}

// Update handles PUT /api/admin/categories/{id}
func (h *CategoryHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var req categoryRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	cat, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "category"))
		return
	}

	cat.Name = req.Name
	cat.Position = req.Position
	if err := h.store.Update(r.Context(), cat); err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "category"))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataUpdate, cat.ID)
	httputil.WriteSuccess(w, cat)
}

// Delete handles DELETE /api/admin/categories/{id}
func (h *CategoryHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "category"))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataDelete, id)
	httputil.WriteMessage(w, "category deleted")
}

func (h *CategoryHandlers) mutationEvent(r *http.Request, eventType audit.EventType, id int64) {
	event := audit.BuildEvent(eventType, audit.EventStatusSuccess, r)
	event.Message = "category record mutated"
	event.Metadata = map[string]interface{}{"resource": "category", "resource_id": id}
	h.log.Log(event)
}
