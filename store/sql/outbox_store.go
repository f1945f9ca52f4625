package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bookswap/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const (
	outboxStatusPending    = "pending"
	outboxStatusProcessing = "processing"
	outboxStatusDelivered  = "delivered"
	outboxStatusFailed     = "failed"
)

var errOutboxNotConfigured = errors.New("sqlstore: outbox store is not configured")

// OutboxStore persists lifecycle events. Bound to a transaction it enqueues
// alongside the mutation; unbound it serves the dispatcher.
type OutboxStore struct {
	db   *bun.DB
	tx   *bun.Tx
	repo repository.Repository[*lifecycleOutboxRecord]
	now  func() time.Time
}

func NewOutboxStore(db *bun.DB) (*OutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*lifecycleOutboxRecord](db, outboxHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid outbox repository wiring: %w", err)
		}
	}
	return &OutboxStore{db: db, repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *OutboxStore) bind(tx bun.Tx) *OutboxStore {
	bound := *s
	bound.tx = &tx
	return &bound
}

func (s *OutboxStore) Enqueue(ctx context.Context, event core.LifecycleEvent) error {
	if s == nil || s.repo == nil {
		return errOutboxNotConfigured
	}
	record, err := newOutboxRecord(event, s.now())
	if err != nil {
		return err
	}
	if s.tx != nil {
		_, err = s.repo.CreateTx(ctx, *s.tx, record)
	} else {
		_, err = s.repo.Create(ctx, record)
	}
	return err
}

func newOutboxRecord(event core.LifecycleEvent, now time.Time) (*lifecycleOutboxRecord, error) {
	required := []struct{ field, value string }{
		{"event id", event.ID},
		{"event name", event.Name},
		{"subject type", event.SubjectType},
		{"subject id", event.SubjectID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("sqlstore: outbox %s is required", r.field)
		}
	}

	occurredAt := event.OccurredAt.UTC()
	if event.OccurredAt.IsZero() {
		occurredAt = now
	}
	return &lifecycleOutboxRecord{
		ID:          uuid.NewString(),
		EventID:     strings.TrimSpace(event.ID),
		EventName:   strings.TrimSpace(event.Name),
		SubjectType: strings.TrimSpace(event.SubjectType),
		SubjectID:   strings.TrimSpace(event.SubjectID),
		ActorID:     event.ActorID,
		Source:      strings.TrimSpace(event.Source),
		Payload:     nonNilMap(copyAnyMap(event.Payload)),
		Metadata:    nonNilMap(copyAnyMap(event.Metadata)),
		Status:      outboxStatusPending,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ClaimBatch moves up to limit due pending events to processing and returns
// them oldest first. On Postgres the candidate rows are locked with SKIP
// LOCKED so concurrent dispatchers claim disjoint batches.
func (s *OutboxStore) ClaimBatch(ctx context.Context, limit int) ([]core.LifecycleEvent, error) {
	if s == nil || s.db == nil {
		return nil, errOutboxNotConfigured
	}
	if limit <= 0 {
		limit = 1
	}
	now := s.now()

	var records []lifecycleOutboxRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var ids []string
		candidates := tx.NewSelect().
			Model((*lifecycleOutboxRecord)(nil)).
			Column("id").
			Where("status = ?", outboxStatusPending).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("next_attempt_at IS NULL").WhereOr("next_attempt_at <= ?", now)
			}).
			OrderExpr("occurred_at ASC, id ASC").
			Limit(limit)
		if tx.Dialect().Name() == dialect.PG {
			candidates = candidates.For("UPDATE SKIP LOCKED")
		}
		if err := candidates.Scan(ctx, &ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.NewUpdate().
			Model((*lifecycleOutboxRecord)(nil)).
			Set("status = ?", outboxStatusProcessing).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(ids)).
			Where("status = ?", outboxStatusPending).
			Exec(ctx); err != nil {
			return err
		}

		return tx.NewSelect().
			Model(&records).
			Where("id IN (?)", bun.In(ids)).
			Where("status = ?", outboxStatusProcessing).
			OrderExpr("occurred_at ASC, id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}

	events := make([]core.LifecycleEvent, 0, len(records))
	for _, record := range records {
		events = append(events, outboxRecordToEvent(record))
	}
	return events, nil
}

func (s *OutboxStore) Ack(ctx context.Context, eventID string) error {
	return s.settle(ctx, eventID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", outboxStatusDelivered).
			Set("last_error = ?", "").
			Set("next_attempt_at = NULL")
	})
}

// Retry records a failed delivery. A zero nextAttemptAt parks the event as
// failed.
func (s *OutboxStore) Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	return s.settle(ctx, eventID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		q = q.Set("attempts = attempts + 1").Set("last_error = ?", lastError)
		if nextAttemptAt.IsZero() {
			return q.Set("status = ?", outboxStatusFailed).Set("next_attempt_at = NULL")
		}
		return q.Set("status = ?", outboxStatusPending).Set("next_attempt_at = ?", nextAttemptAt.UTC())
	})
}

func (s *OutboxStore) settle(ctx context.Context, eventID string, apply func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	if s == nil || s.db == nil {
		return errOutboxNotConfigured
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	query := s.db.NewUpdate().
		Model((*lifecycleOutboxRecord)(nil)).
		Set("updated_at = ?", s.now()).
		Where("event_id = ?", eventID)
	_, err := apply(query).Exec(ctx)
	return err
}

func nonNilMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return in
}
