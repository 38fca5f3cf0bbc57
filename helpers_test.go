package enqueue_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	enqueue "github.com/goliatone/go-enqueue"
	"github.com/goliatone/go-enqueue/pkg/hostsim"
)

type logRecord struct {
	level   slog.Level
	message string
	attrs   map[string]string
}

type captureHandler struct {
	mu      *sync.Mutex
	records *[]logRecord
	attrs   []slog.Attr
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{mu: &sync.Mutex{}, records: &[]logRecord{}}
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := logRecord{level: r.Level, message: r.Message, attrs: map[string]string{}}
	for _, attr := range h.attrs {
		rec.attrs[attr.Key] = attr.Value.String()
	}
	r.Attrs(func(attr slog.Attr) bool {
		rec.attrs[attr.Key] = attr.Value.String()
		return true
	})
	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// find returns the first record at level whose message contains fragment.
func (h *captureHandler) find(level slog.Level, fragment string) (logRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rec := range *h.records {
		if rec.level == level && strings.Contains(rec.message, fragment) {
			return rec, true
		}
	}
	return logRecord{}, false
}

func (h *captureHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, rec := range *h.records {
		if rec.level == level {
			n++
		}
	}
	return n
}

type fixture struct {
	host *hostsim.Host
	e    *enqueue.Enqueuer
	logs *captureHandler
}

func newFixture(t *testing.T, opts ...enqueue.Option) fixture {
	t.Helper()
	host := hostsim.New()
	logs := newCaptureHandler()
	opts = append([]enqueue.Option{enqueue.WithLogger(slog.New(logs))}, opts...)
	e, err := enqueue.New(host, opts...)
	if err != nil {
		t.Fatalf("new enqueuer: %v", err)
	}
	return fixture{host: host, e: e, logs: logs}
}

func script(handle string) enqueue.Asset {
	return enqueue.Asset{Handle: handle, Src: enqueue.SourceURL("https://example.test/" + handle + ".js")}
}

func style(handle string) enqueue.Asset {
	return enqueue.Asset{Handle: handle, Src: enqueue.SourceURL("https://example.test/" + handle + ".css")}
}
