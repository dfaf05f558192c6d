package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	pingInterval = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// NotificationSource hands out notification subscriptions
type NotificationSource interface {
	Subscribe() (<-chan domain.Notification, func())
}

// NotificationsHandler streams notifications to the browser over a WebSocket
type NotificationsHandler struct {
	source         NotificationSource
	logger         *slog.Logger
	allowedOrigins []string
}

// NewNotificationsHandler creates a new notifications handler
func NewNotificationsHandler(source NotificationSource, logger *slog.Logger, allowedOrigins []string) *NotificationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationsHandler{
		source:         source,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

func (h *NotificationsHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/notifications
func (h *NotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	notes, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	// the reader only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case note, ok := <-notes:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(note); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.String("error", err.Error()))
				}
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
