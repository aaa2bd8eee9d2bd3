package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// LevelCritical extends the standard slog levels for alerts that should
// page somebody.
const LevelCritical = slog.Level(12)

// AlertManager dispatches leveled events with a service tag to zero or
// more registered handlers. Dispatch never panics: a failing handler is
// isolated and reported on stderr, not propagated to trading logic.
type AlertManager struct {
	logger *slog.Logger
}

// NewAlertManager fans events out to every handler. With no handlers,
// alerts are dropped silently (useful in tests).
func NewAlertManager(handlers ...slog.Handler) *AlertManager {
	wrapped := make([]slog.Handler, len(handlers))
	for i, h := range handlers {
		wrapped[i] = &safeHandler{inner: h}
	}
	return &AlertManager{
		logger: slog.New(slogmulti.Fanout(wrapped...)),
	}
}

// Logger exposes the underlying slog.Logger for plain structured
// logging alongside alerts.
func (m *AlertManager) Logger() *slog.Logger { return m.logger }

// Notify dispatches one event tagged with the originating service.
func (m *AlertManager) Notify(level slog.Level, service, msg string, args ...any) {
	if m == nil {
		return
	}
	args = append([]any{slog.String("service", service)}, args...)
	m.logger.Log(context.Background(), level, msg, args...)
}

func (m *AlertManager) Debug(service, msg string, args ...any) {
	m.Notify(slog.LevelDebug, service, msg, args...)
}

func (m *AlertManager) Info(service, msg string, args ...any) {
	m.Notify(slog.LevelInfo, service, msg, args...)
}

func (m *AlertManager) Warn(service, msg string, args ...any) {
	m.Notify(slog.LevelWarn, service, msg, args...)
}

func (m *AlertManager) Error(service, msg string, args ...any) {
	m.Notify(slog.LevelError, service, msg, args...)
}

func (m *AlertManager) Critical(service, msg string, args ...any) {
	m.Notify(LevelCritical, service, msg, args...)
}

// safeHandler isolates a misbehaving handler: a panic or error in
// Handle is swallowed after a note on stderr.
type safeHandler struct {
	inner slog.Handler
}

func (h *safeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *safeHandler) Handle(ctx context.Context, rec slog.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "alert handler panic: %v\n", r)
			err = nil
		}
	}()
	if herr := h.inner.Handle(ctx, rec); herr != nil {
		fmt.Fprintf(os.Stderr, "alert handler error: %v\n", herr)
	}
	return nil
}

func (h *safeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &safeHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *safeHandler) WithGroup(name string) slog.Handler {
	return &safeHandler{inner: h.inner.WithGroup(name)}
}
