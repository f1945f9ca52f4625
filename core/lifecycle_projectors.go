package core

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// LifecycleProjectorRegistry keeps projectors keyed by name and hands them out
// in name order so delivery order is stable across processes.
type LifecycleProjectorRegistry struct {
	mu       sync.RWMutex
	handlers map[string]LifecycleEventHandler
	order    []string
}

func NewLifecycleProjectorRegistry() *LifecycleProjectorRegistry {
	return &LifecycleProjectorRegistry{
		handlers: make(map[string]LifecycleEventHandler),
	}
}

func (r *LifecycleProjectorRegistry) Register(name string, handler LifecycleEventHandler) {
	if r == nil || handler == nil {
		return
	}
	key := strings.TrimSpace(name)
	if key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string]LifecycleEventHandler)
	}
	if _, exists := r.handlers[key]; !exists {
		r.order = append(r.order, key)
		sort.Strings(r.order)
	}
	r.handlers[key] = handler
}

func (r *LifecycleProjectorRegistry) Handlers() []LifecycleEventHandler {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LifecycleEventHandler, 0, len(r.order))
	for _, key := range r.order {
		if handler := r.handlers[key]; handler != nil {
			out = append(out, handler)
		}
	}
	return out
}

func (r *LifecycleProjectorRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// LogProjector writes every delivered lifecycle event to a logger.
type LogProjector struct {
	logger Logger
}

func NewLogProjector(logger Logger) *LogProjector {
	return &LogProjector{logger: logger}
}

func (p *LogProjector) Handle(ctx context.Context, event LifecycleEvent) error {
	if p == nil || p.logger == nil {
		return nil
	}
	fields := map[string]any{
		"event_id":     event.ID,
		"event_name":   event.Name,
		"subject_type": event.SubjectType,
		"subject_id":   event.SubjectID,
		"actor_id":     event.ActorID,
		"occurred_at":  event.OccurredAt,
	}
	logger := p.logger.WithContext(ctx)
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	logger.Info("lifecycle event", flattenFields(fields)...)
	return nil
}

var (
	_ ProjectorRegistry     = (*LifecycleProjectorRegistry)(nil)
	_ LifecycleEventHandler = (*LogProjector)(nil)
)
