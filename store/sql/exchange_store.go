package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bookswap/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ExchangeStore struct {
	tx   bun.Tx
	repo repository.Repository[*exchangeRecord]
}

func (s *ExchangeStore) GetExchange(ctx context.Context, id string) (core.Exchange, error) {
	return s.findByID(ctx, id, false)
}

func (s *ExchangeStore) LockExchange(ctx context.Context, id string) (core.Exchange, error) {
	return s.findByID(ctx, id, true)
}

func (s *ExchangeStore) findByID(ctx context.Context, id string, lock bool) (core.Exchange, error) {
	id = strings.TrimSpace(id)
	record := &exchangeRecord{}
	query := s.tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1)
	if lock {
		query = forUpdate(s.tx, query)
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Exchange{}, fmt.Errorf("%w: %s", core.ErrExchangeNotFound, id)
		}
		return core.Exchange{}, err
	}
	return record.toDomain(), nil
}

func (s *ExchangeStore) FindExchangesForUser(ctx context.Context, userID int64) ([]core.Exchange, error) {
	return s.FindExchangesForUserByStatus(ctx, userID)
}

func (s *ExchangeStore) FindExchangesForUserByStatus(ctx context.Context, userID int64, statuses ...core.ExchangeStatus) ([]core.Exchange, error) {
	var records []exchangeRecord
	query := s.tx.NewSelect().
		Model(&records).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.user1_id = ?", userID).
				WhereOr("?TableAlias.user2_id = ?", userID)
		}).
		OrderExpr("?TableAlias.proposed_at ASC, ?TableAlias.id ASC")
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		query = query.Where("?TableAlias.status IN (?)", bun.In(values))
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Exchange, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (s *ExchangeStore) CreateExchange(ctx context.Context, exchange core.Exchange) (core.Exchange, error) {
	record := newExchangeRecord(exchange)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Version <= 0 {
		record.Version = 1
	}
	record.UpdatedAt = time.Now().UTC()
	created, err := s.repo.CreateTx(ctx, s.tx, record)
	if err != nil {
		return core.Exchange{}, err
	}
	return created.toDomain(), nil
}

// UpdateExchange writes the mutable lifecycle columns when the stored version
// still matches the caller's copy.
func (s *ExchangeStore) UpdateExchange(ctx context.Context, exchange core.Exchange) (core.Exchange, error) {
	record := newExchangeRecord(exchange)
	expected := record.Version
	record.Version = expected + 1
	record.UpdatedAt = time.Now().UTC()

	result, err := s.tx.NewUpdate().
		Model(record).
		Column(
			"status",
			"meetup_at",
			"meetup_location",
			"user1_confirmed",
			"user2_confirmed",
			"completed_at",
			"cancelled_at",
			"cancelled_by",
			"version",
			"updated_at",
		).
		Where("id = ?", record.ID).
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		return core.Exchange{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.Exchange{}, err
	}
	if affected == 0 {
		if _, err := s.GetExchange(ctx, record.ID); err != nil {
			return core.Exchange{}, err
		}
		return core.Exchange{}, fmt.Errorf("%w: exchange %s version %d", core.ErrStaleWrite, record.ID, expected)
	}
	return s.GetExchange(ctx, record.ID)
}
