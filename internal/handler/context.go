package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/service"
)

// ContextHandler exposes the active church and ministry selection
type ContextHandler struct {
	sessions *service.SessionService
	tenants  *service.TenantService
	logger   *slog.Logger
}

// NewContextHandler creates a new tenant context handler
func NewContextHandler(sessions *service.SessionService, tenants *service.TenantService, logger *slog.Logger) *ContextHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextHandler{sessions: sessions, tenants: tenants, logger: logger}
}

type selectRequest struct {
	ID domain.ID `json:"id"`
}

// ContextView adds the ministries selectable under the active church
type ContextView struct {
	domain.TenantContext
	ActiveChurchMinistries []domain.Ministry `json:"activeChurchMinistries"`
}

func (h *ContextHandler) view() ContextView {
	return ContextView{
		TenantContext:          h.tenants.Context(),
		ActiveChurchMinistries: h.tenants.MinistriesForActiveChurch(),
	}
}

// Get handles GET /context
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

// SetChurch handles PUT /context/church
func (h *ContextHandler) SetChurch(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.tenants.SetActiveChurch(r.Context(), req.ID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// SetMinistry handles PUT /context/ministry. A null id clears the selection.
func (h *ContextHandler) SetMinistry(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.tenants.SetActiveMinistry(r.Context(), req.ID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *ContextHandler) decode(w http.ResponseWriter, r *http.Request) (selectRequest, bool) {
	var req selectRequest
	if !h.sessions.Snapshot().Authorized() {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return req, false
	}
	return req, true
}

func (h *ContextHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrChurchNotAvailable):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrMinistrySelectionNotAllowed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("context update failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "context update failed")
	}
}
