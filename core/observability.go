package core

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"
)

// NopMetricsRecorder discards every measurement.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// operationOutcome is one finished service call as seen by logs and metrics.
type operationOutcome struct {
	name    string
	err     error
	elapsed time.Duration
	fields  map[string]any
}

func (o operationOutcome) status() string {
	if o.err != nil {
		return "failure"
	}
	return "success"
}

func (o operationOutcome) tags() map[string]string {
	tags := map[string]string{"operation": o.name, "status": o.status()}
	if o.err != nil {
		tags["error_kind"] = KindOf(o.err)
	}
	return tags
}

func (o operationOutcome) logFields() map[string]any {
	fields := maps.Clone(o.fields)
	if fields == nil {
		fields = map[string]any{}
	}
	fields["operation"] = o.name
	fields["status"] = o.status()
	fields["duration_ms"] = o.elapsed.Milliseconds()
	if o.err != nil {
		fields["error"] = o.err.Error()
		fields["error_kind"] = KindOf(o.err)
	}
	return fields
}

// observeOperation emits bookswap.<operation>.total and .duration_ms and
// logs "<operation> succeeded" or "<operation> failed".
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	outcome := operationOutcome{
		name:    normalizeOperation(operation),
		err:     err,
		elapsed: time.Since(startedAt),
		fields:  fields,
	}
	if outcome.name == "" {
		outcome.name = "unknown"
	}

	if s.metricsRecorder != nil {
		tags := outcome.tags()
		s.metricsRecorder.IncCounter(ctx, "bookswap."+outcome.name+".total", 1, tags)
		s.metricsRecorder.ObserveHistogram(ctx, "bookswap."+outcome.name+".duration_ms",
			float64(outcome.elapsed.Milliseconds()), maps.Clone(tags))
	}

	if err != nil {
		s.logError(ctx, outcome.name+" failed", outcome.logFields())
		return
	}
	s.logInfo(ctx, outcome.name+" succeeded", outcome.logFields())
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx, fields); logger != nil {
		logger.Info(message, flattenFields(fields)...)
	}
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx, fields); logger != nil {
		logger.Error(message, flattenFields(fields)...)
	}
}

func (s *Service) contextLogger(ctx context.Context, fields map[string]any) Logger {
	if s == nil || s.logger == nil {
		return nil
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(maps.Clone(fields))
	}
	return logger
}

// flattenFields turns fields into sorted key/value pairs for variadic loggers.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := slices.Sorted(maps.Keys(fields))
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}
