package core

import (
	"context"
	"sync"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

type capturedEntry struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedEntry{level: level, message: msg, args: args})
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) glog.Logger { return l }

func (l *captureLogger) find(message string) (capturedEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.message == message {
			return entry, true
		}
	}
	return capturedEntry{}, false
}

func argValue(args []any, key string) (any, bool) {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == key {
			return args[i+1], true
		}
	}
	return nil, false
}

func TestObserveOperation_LogsSuccessAndFailure(t *testing.T) {
	logger := &captureLogger{}
	metrics := &recordingMetrics{}
	f := newTestFixture(t, WithLogger(logger), WithMetricsRecorder(metrics))

	f.mustCreateMatch(t, 1, 20)
	if _, err := f.service.CreateMatch(context.Background(), 1, 10); !IsConflict(err) {
		t.Fatalf("expected conflict for own book, got %v", err)
	}

	success, ok := logger.find("create_match succeeded")
	if !ok {
		t.Fatalf("expected success log entry, got %+v", logger.entries)
	}
	if success.level != "info" {
		t.Fatalf("expected info level, got %q", success.level)
	}
	if status, _ := argValue(success.args, "status"); status != "success" {
		t.Fatalf("expected status=success, got %v", status)
	}

	failure, ok := logger.find("create_match failed")
	if !ok {
		t.Fatalf("expected failure log entry, got %+v", logger.entries)
	}
	if failure.level != "error" {
		t.Fatalf("expected error level, got %q", failure.level)
	}
	if kind, _ := argValue(failure.args, "error_kind"); kind != ErrorConflict {
		t.Fatalf("expected error_kind=%s, got %v", ErrorConflict, kind)
	}

	if metrics.counters["bookswap.create_match.total"] != 2 {
		t.Fatalf("expected 2 create_match measurements, got %d", metrics.counters["bookswap.create_match.total"])
	}
}

func TestFlattenFields_SortsKeys(t *testing.T) {
	args := flattenFields(map[string]any{"b": 2, "a": 1, "c": 3})
	want := []any{"a", 1, "b", 2, "c", 3}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %v", len(want), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: expected %v, got %v", i, want[i], args[i])
		}
	}
	if flattenFields(nil) != nil {
		t.Fatalf("expected nil args for empty fields")
	}
}

func TestNormalizeOperation(t *testing.T) {
	cases := map[string]string{
		" Create-Match ":   "create_match",
		"arrange meetup":   "arrange_meetup",
		"confirm_exchange": "confirm_exchange",
	}
	for in, want := range cases {
		if got := normalizeOperation(in); got != want {
			t.Fatalf("normalize %q: expected %q, got %q", in, want, got)
		}
	}
}
