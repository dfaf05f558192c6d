package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

const subscriberBuffer = 16

// Hub broadcasts notifications to live subscribers.
// A subscriber that falls behind loses messages rather than blocking the sender.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan domain.Notification]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[chan domain.Notification]struct{}), logger: logger}
}

// Subscribe returns a channel of notifications and a function that ends the subscription
func (h *Hub) Subscribe() (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Notify(_ context.Context, note domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- note:
		default:
			h.logger.Warn("dropping notification for slow subscriber", slog.String("code", note.Code))
		}
	}
}
