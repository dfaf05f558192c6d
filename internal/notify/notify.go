package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/metrics"
)

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) {
	level := slog.LevelInfo
	switch note.Level {
	case domain.LevelWarning:
		level = slog.LevelWarn
	case domain.LevelError:
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, "user notification",
		slog.String("code", note.Code),
		slog.String("message", note.Message),
	)
}

// WriterNotifier prints notifications as plain lines, for terminals
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(_ context.Context, note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "[%s] %s\n", note.Level, note.Message)
}

// Fanout delivers each notification to every notifier in order
type Fanout []domain.Notifier

func (f Fanout) Notify(ctx context.Context, note domain.Notification) {
	metrics.ObserveNotification(note.Level)
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, note)
		}
	}
}
