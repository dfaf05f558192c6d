package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/security/auth"
	"github.com/aryan0dhankhar/churchconsole/internal/service"
)

// SessionHandler exposes login, logout and the read-only session view
type SessionHandler struct {
	sessions *service.SessionService
	clock    *auth.TokenClock
	logger   *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService, clock *auth.TokenClock, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = auth.NewTokenClock()
	}
	return &SessionHandler{sessions: sessions, clock: clock, logger: logger}
}

// SessionView is what the browser sees of the session. The token stays server side.
type SessionView struct {
	Status    domain.SessionStatus `json:"status"`
	User      *domain.User         `json:"user"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
}

func (h *SessionHandler) view() SessionView {
	snap := h.sessions.Snapshot()
	v := SessionView{Status: snap.Status, User: snap.User}
	if exp, ok := h.clock.ExpiresAt(snap.Token); ok {
		v.ExpiresAt = &exp
	}
	return v
}

// Login handles POST /session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	err := h.sessions.Login(r.Context(), creds)
	var rateLimited *domain.RateLimitError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.view())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateLimited.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, rateLimited.Error())
	case errors.Is(err, domain.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "authentication service unavailable")
	default:
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "authentication service error")
	}
}

// Logout handles POST /session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Error("logout failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// Get handles GET /session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}
