package collector

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/edgeops/opsctl/pkg/opsservice"
)

// Reporter is the warning sink shared by the assembler and every collector.
// Each warning is logged and kept per service for the bundle summary.
type Reporter struct {
	log *slog.Logger

	mu       sync.Mutex
	warnings map[opsservice.Type][]string
}

// NewReporter returns a Reporter that logs through log, or slog.Default when nil.
func NewReporter(log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		log:      log,
		warnings: make(map[opsservice.Type][]string),
	}
}

// Logger returns the underlying logger.
func (r *Reporter) Logger() *slog.Logger {
	return r.log
}

// Warn records a warning for svc.
func (r *Reporter) Warn(svc opsservice.Type, msg string, err error, attrs ...slog.Attr) {
	text := msg
	if err != nil {
		text = msg + ": " + err.Error()
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	attrs = append([]slog.Attr{slog.String("service", svc.String())}, attrs...)
	r.log.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)

	r.mu.Lock()
	r.warnings[svc] = append(r.warnings[svc], text)
	r.mu.Unlock()
}

// Warnings returns the warnings recorded for svc.
func (r *Reporter) Warnings(svc opsservice.Type) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings[svc]...)
}

// Services returns every service with at least one warning, sorted.
func (r *Reporter) Services() []opsservice.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]opsservice.Type, 0, len(r.warnings))
	for s := range r.warnings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
