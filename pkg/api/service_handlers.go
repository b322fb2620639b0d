package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/errs"
	"github.com/apexanalytical/labcms/pkg/httputil"
	"github.com/apexanalytical/labcms/pkg/storage/postgres"
	"github.com/apexanalytical/labcms/pkg/upload"
)

// ServiceHandlers serves the public listing and the admin CRUD for
// laboratory services. All admin routes sit behind the full admission
// chain; these handlers only see sanitized, authenticated requests.
type ServiceHandlers struct {
	store   *postgres.ServiceStore
	uploads *upload.Processor
	log     audit.Logger
	logger  *logrus.Logger
}

// NewServiceHandlers creates the service handlers
func NewServiceHandlers(store *postgres.ServiceStore, uploads *upload.Processor, log audit.Logger, logger *logrus.Logger) *ServiceHandlers {
	return &ServiceHandlers{store: store, uploads: uploads, log: log, logger: logger}
}

type serviceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id"`
	Position    int    `json:"position"`
}

// List handles GET /api/services
func (h *ServiceHandlers) List(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("listing services failed")
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}
	httputil.WriteSuccess(w, services)
}

// Get handles GET /api/services/{id}
func (h *ServiceHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	svc, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "service"))
		return
	}
	httputil.WriteSuccess(w, svc)
}

// Create handles POST /api/admin/services
func (h *ServiceHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, r, errs.Validation("name is required", "body.name"))
		return
	}

	svc := &postgres.Service{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Position:    req.Position,
	}
	if err := h.store.Create(r.Context(), svc); err != nil {
		h.logger.WithError(err).Error("creating service failed")
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataCreate, svc.ID)
	httputil.WriteCreated(w, svc)
}

// Update handles PUT /api/admin/services/{id}
func (h *ServiceHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var req serviceRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	svc, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "service"))
		return
	}

	svc.Name = req.Name
	svc.Description = req.Description
	svc.CategoryID = req.CategoryID
	svc.Position = req.Position
	if err := h.store.Update(r.Context(), svc); err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "service"))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataUpdate, svc.ID)
	httputil.WriteSuccess(w, svc)
}

// Delete handles DELETE /api/admin/services/{id}
func (h *ServiceHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "service"))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataDelete, id)
	httputil.WriteMessage(w, "service deleted")
}

type reorderRequest struct {
	OrderedIDs []int64 `json:"ordered_ids"`
}

// Reorder handles PUT /api/admin/services/reorder
func (h *ServiceHandlers) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if len(req.OrderedIDs) == 0 {
		httputil.WriteError(w, r, errs.Validation("ordered_ids is required", "body.ordered_ids"))
		return
	}

	if err := h.store.Reorder(r.Context(), req.OrderedIDs); err != nil {
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataUpdate, 0)
	httputil.WriteMessage(w, "services reordered")
}

// UploadImage handles POST /api/admin/services/{id}/image. If the
// record update fails after the file was stored, the stored file is
// deleted as a compensating action.
func (h *ServiceHandlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	svc, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, mapStoreErr(err, "service"))
		return
	}

	desc, err := h.uploads.Process(r, "image")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	svc.ImagePath = desc.Path
	if err := h.store.Update(r.Context(), svc); err != nil {
		h.uploads.Cleanup(r, desc)
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}

	h.mutationEvent(r, audit.EventTypeDataUpdate, svc.ID)
	httputil.WriteSuccess(w, desc)
}

func (h *ServiceHandlers) mutationEvent(r *http.Request, eventType audit.EventType, id int64) {
	event := audit.BuildEvent(eventType, audit.EventStatusSuccess, r)
	event.Message = "service record mutated"
	event.Metadata = map[string]interface{}{"resource": "service", "resource_id": id}
	h.log.Log(event)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation("invalid id", "params."+name)
	}
	return id, nil
}

func mapStoreErr(err error, resource string) error {
	if errors.Is(err, postgres.ErrNotFound) {
		return errs.NotFound(resource)
	}
	return errs.Internal(err)
}
