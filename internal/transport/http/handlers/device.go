package http_handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/transport/http/dto"
	"github.com/baechuer/lms-auth-service/internal/transport/http/middleware"
	"github.com/baechuer/lms-auth-service/internal/transport/http/response"
)

// DeviceChangeHandler serves the learner side and the admin review side of
// device change requests.
type DeviceChangeHandler struct {
	auth    *auth.Service
	devices *device.Service
}

func NewDeviceChangeHandler(authSvc *auth.Service, devices *device.Service) *DeviceChangeHandler {
	return &DeviceChangeHandler{auth: authSvc, devices: devices}
}

// POST /device-change-requests (credentials in body)
func (h *DeviceChangeHandler) SubmitWithCredentials(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialDeviceChangeRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	created, err := h.auth.RequestDeviceChange(r.Context(), req.Email, req.Password, req.PreviousDeviceID, req.NewDeviceID, req.Reason)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Created(w, dto.NewDeviceChangeView(created))
}

// POST /me/device-change-requests
func (h *DeviceChangeHandler) SubmitMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.DeviceChangeSubmitRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	created, err := h.auth.SubmitDeviceChange(r.Context(), userID, req.PreviousDeviceID, req.NewDeviceID, req.Reason)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Created(w, dto.NewDeviceChangeView(created))
}

// GET /me/device-change-requests
func (h *DeviceChangeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	f, err := dto.ParseDeviceChangeListQuery(r.URL.Query())
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	items, total, err := h.auth.MyDeviceChanges(r.Context(), userID, f.Limit, f.Offset)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	f.AccountID = userID
	response.OK(w, dto.NewDeviceChangeListData(items, total, f))
}

// GET /admin/device-change-requests
func (h *DeviceChangeHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := dto.ParseDeviceChangeListQuery(r.URL.Query())
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	items, total, err := h.devices.List(r.Context(), f)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewDeviceChangeListData(items, total, f))
}

// GET /admin/device-change-requests/{id}
func (h *DeviceChangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	got, err := h.devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewDeviceChangeView(got))
}

// PUT /admin/device-change-requests/{id}
func (h *DeviceChangeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.ResolveDeviceChangeRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	updated, err := h.devices.Resolve(r.Context(), chi.URLParam(r, "id"), adminID, req.Action)
	middleware.DeviceChangeDecisionsTotal.WithLabelValues(actionLabel(req.Action), resultLabel(err)).Inc()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewDeviceChangeView(updated))
}

// actionLabel keeps arbitrary client input out of metric labels.
func actionLabel(raw string) string {
	act, err := domain.ParseReviewAction(raw)
	if err != nil {
		return "invalid"
	}
	return string(act)
}
