package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// MetadataKeyOutboxAttempts holds the number of failed deliveries so far.
const MetadataKeyOutboxAttempts = "_outbox_attempts"

type OutboxDispatcherConfig struct {
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultOutboxDispatcherConfig() OutboxDispatcherConfig {
	return OutboxDispatcherConfig{
		BatchSize:      50,
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

// OutboxDispatcher delivers committed lifecycle events to the registered
// projectors. Delivery is at least once; projectors must tolerate repeats.
type OutboxDispatcher struct {
	store    OutboxStore
	registry ProjectorRegistry
	config   OutboxDispatcherConfig
	logger   Logger
	now      func() time.Time
}

func NewOutboxDispatcher(
	store OutboxStore,
	registry ProjectorRegistry,
	config OutboxDispatcherConfig,
) (*OutboxDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("core: outbox store is required")
	}
	defaults := DefaultOutboxDispatcherConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	return &OutboxDispatcher{
		store:    store,
		registry: registry,
		config:   config,
		logger:   glog.Nop(),
		now:      defaultClock,
	}, nil
}

func (d *OutboxDispatcher) WithLogger(logger Logger) *OutboxDispatcher {
	if d != nil && logger != nil {
		d.logger = logger
	}
	return d
}

type deliveryOutcome int

const (
	outcomeDelivered deliveryOutcome = iota
	outcomeRetried
	outcomeFailed
)

func (s *DispatchStats) add(outcome deliveryOutcome) {
	switch outcome {
	case outcomeDelivered:
		s.Delivered++
	case outcomeRetried:
		s.Retried++
	case outcomeFailed:
		s.Failed++
	}
}

// DispatchPending claims up to batchSize events (the configured batch size
// when zero) and settles each one: ack on delivery, retry with backoff on a
// projector error, failed once MaxAttempts is reached. The returned error
// joins every delivery and settlement error of the batch.
func (d *OutboxDispatcher) DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error) {
	if d == nil || d.store == nil {
		return DispatchStats{}, fmt.Errorf("core: outbox dispatcher is not configured")
	}
	if batchSize <= 0 {
		batchSize = d.config.BatchSize
	}
	events, err := d.store.ClaimBatch(ctx, batchSize)
	if err != nil {
		return DispatchStats{}, err
	}

	stats := DispatchStats{Claimed: len(events)}
	var errs []error
	for _, event := range events {
		outcome, err := d.settle(ctx, event)
		if err != nil {
			errs = append(errs, err)
			if outcome == outcomeDelivered {
				continue
			}
		}
		stats.add(outcome)
	}

	if stats.Claimed > 0 {
		d.logger.Info("outbox batch dispatched",
			"claimed", stats.Claimed, "delivered", stats.Delivered,
			"retried", stats.Retried, "failed", stats.Failed)
	}
	return stats, errors.Join(errs...)
}

// settle delivers one event and records the result in the store. An error
// with outcomeDelivered means the projectors succeeded but the ack did not.
func (d *OutboxDispatcher) settle(ctx context.Context, event LifecycleEvent) (deliveryOutcome, error) {
	eventID := strings.TrimSpace(event.ID)
	deliveryErr := d.deliver(ctx, event)
	if deliveryErr == nil {
		return outcomeDelivered, d.store.Ack(ctx, eventID)
	}

	attempt := attemptsSoFar(event) + 1
	outcome, next := outcomeRetried, d.now().Add(d.backoff(attempt))
	if attempt >= d.config.MaxAttempts {
		outcome, next = outcomeFailed, time.Time{}
	}
	d.logger.Error("outbox delivery failed",
		"event_id", event.ID, "event_name", event.Name,
		"attempt", attempt, "exhausted", outcome == outcomeFailed, "error", deliveryErr)
	if err := d.store.Retry(ctx, eventID, deliveryErr, next); err != nil {
		return outcome, errors.Join(deliveryErr, err)
	}
	return outcome, deliveryErr
}

func (d *OutboxDispatcher) deliver(ctx context.Context, event LifecycleEvent) error {
	if d.registry == nil {
		return nil
	}
	for i, handler := range d.registry.Handlers() {
		if handler == nil {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			return fmt.Errorf("core: projector %d rejected %s %q: %w", i, event.Name, event.ID, err)
		}
	}
	return nil
}

// backoff doubles InitialBackoff per attempt after the first, capped at
// MaxBackoff.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	delay := d.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay <= 0 || delay >= d.config.MaxBackoff {
			return d.config.MaxBackoff
		}
	}
	return min(delay, d.config.MaxBackoff)
}

func attemptsSoFar(event LifecycleEvent) int {
	var attempts int
	switch typed := event.Metadata[MetadataKeyOutboxAttempts].(type) {
	case int:
		attempts = typed
	case int64:
		attempts = int(typed)
	case float64:
		attempts = int(typed)
	case string:
		attempts, _ = strconv.Atoi(strings.TrimSpace(typed))
	}
	return max(attempts, 0)
}

var _ LifecycleDispatcher = (*OutboxDispatcher)(nil)
