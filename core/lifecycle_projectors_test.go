package core

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestLifecycleProjectorRegistry_OrdersByNameAndReplaces(t *testing.T) {
	registry := NewLifecycleProjectorRegistry()
	calls := make([]string, 0)
	handler := func(name string) LifecycleEventHandler {
		return LifecycleEventHandlerFunc(func(context.Context, LifecycleEvent) error {
			calls = append(calls, name)
			return nil
		})
	}
	registry.Register("kafka", handler("kafka-v1"))
	registry.Register("audit", handler("audit"))
	registry.Register("kafka", handler("kafka-v2"))
	registry.Register(" ", handler("blank"))
	registry.Register("nil", nil)

	if names := registry.Names(); len(names) != 2 || names[0] != "audit" || names[1] != "kafka" {
		t.Fatalf("unexpected registry names: %v", names)
	}
	for _, h := range registry.Handlers() {
		_ = h.Handle(context.Background(), LifecycleEvent{})
	}
	if len(calls) != 2 || calls[0] != "audit" || calls[1] != "kafka-v2" {
		t.Fatalf("unexpected handler order: %v", calls)
	}
}

func TestLogProjector_Handle(t *testing.T) {
	projector := NewLogProjector(glog.Nop())
	err := projector.Handle(context.Background(), LifecycleEvent{
		ID:          "evt_1",
		Name:        EventExchangeCompleted,
		SubjectType: LifecycleSubjectTypeExchange,
		SubjectID:   "ex_1",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	var empty *LogProjector
	if err := empty.Handle(context.Background(), LifecycleEvent{}); err != nil {
		t.Fatalf("nil projector should be a no-op: %v", err)
	}
}
