package monitor

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"healthmon/pkg/apperror"
	"healthmon/pkg/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Handler struct {
	registry  *Registry
	validator *validator.Validate
	stream    *Streamer
}

func NewHandler(registry *Registry, validator *validator.Validate, stream *Streamer) *Handler {
	return &Handler{
		registry:  registry,
		validator: validator,
		stream:    stream,
	}
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	snaps := h.registry.Snapshot()
	utils.WriteJSON(w, http.StatusOK, reqID, utils.ServicesListed, ListServicesResponse{
		Count:    len(snaps),
		Services: snaps,
	})
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	snap, err := h.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "", snap)
}

// GET /services/{name}/stats?window=1h
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "window must be a positive duration like 1h or 30m")
			return
		}
		window = d
	}

	stats, err := h.registry.Stats(chi.URLParam(r, "name"), window)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "", stats)
}

// GET /services/{name}/history?page=1&page_size=50
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	page, err := intQuery(r, "page", 1)
	if err != nil || page < 1 {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "page must be a positive integer")
		return
	}
	size, err := intQuery(r, "page_size", defaultPageSize)
	if err != nil || size < 1 || size > maxPageSize {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "page_size must be between 1 and 500")
		return
	}

	hist, err := h.registry.History(chi.URLParam(r, "name"), page, size)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "", hist)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	req, ok := h.decode(w, r, reqID)
	if !ok {
		return
	}
	if req.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "name is required")
		return
	}

	svc, err := h.registry.Add(req.toService())
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, reqID, utils.ServiceCreated, svc)
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	req, ok := h.decode(w, r, reqID)
	if !ok {
		return
	}

	svc, err := h.registry.Update(chi.URLParam(r, "name"), req.toService())
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, utils.ServiceUpdated, svc)
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	if err := h.registry.Remove(chi.URLParam(r, "name")); err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON[any](w, http.StatusOK, reqID, utils.ServiceDeleted, nil)
}

func (h *Handler) RefreshService(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	if err := h.registry.Refresh(chi.URLParam(r, "name")); err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, reqID, utils.ServiceRefreshed, RefreshAllResponse{Refreshed: 1})
}

func (h *Handler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	n := h.registry.RefreshAll()
	utils.WriteJSON(w, http.StatusAccepted, reqID, utils.ServiceRefreshed, RefreshAllResponse{Refreshed: n})
}

func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeHTTP(w, r)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, reqID string) (ServiceRequest, bool) {
	// decode request body
	var req ServiceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "malformed request body")
		return req, false
	}

	// validate request body
	if err := h.validator.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, err.Error())
		return req, false
	}
	return req, true
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
