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
	"github.com/uptrace/bun/dialect"
)

type MatchStore struct {
	tx   bun.Tx
	repo repository.Repository[*matchRecord]
}

func (s *MatchStore) GetMatch(ctx context.Context, id string) (core.Match, error) {
	return s.findByID(ctx, id, false)
}

func (s *MatchStore) LockMatch(ctx context.Context, id string) (core.Match, error) {
	return s.findByID(ctx, id, true)
}

func (s *MatchStore) findByID(ctx context.Context, id string, lock bool) (core.Match, error) {
	id = strings.TrimSpace(id)
	record := &matchRecord{}
	query := s.tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1)
	if lock {
		query = forUpdate(s.tx, query)
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Match{}, fmt.Errorf("%w: %s", core.ErrMatchNotFound, id)
		}
		return core.Match{}, err
	}
	return record.toDomain(), nil
}

func (s *MatchStore) FindActiveMatchesForUser(ctx context.Context, userID int64) ([]core.Match, error) {
	var records []matchRecord
	err := s.tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.active = ?", true).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return matchRecordsToDomain(records), nil
}

func (s *MatchStore) FindActiveMatchForUserAndBook(ctx context.Context, userID int64, bookID int64) (core.Match, bool, error) {
	var records []matchRecord
	err := s.tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.book_id = ?", bookID).
		Where("?TableAlias.active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Match{}, false, err
	}
	if len(records) == 0 {
		return core.Match{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *MatchStore) FindReciprocalMatch(ctx context.Context, ownerUserID int64, bookIDs []int64) (core.Match, bool, error) {
	return s.findReciprocal(ctx, ownerUserID, bookIDs, false)
}

func (s *MatchStore) LockReciprocalMatch(ctx context.Context, ownerUserID int64, bookIDs []int64) (core.Match, bool, error) {
	return s.findReciprocal(ctx, ownerUserID, bookIDs, true)
}

func (s *MatchStore) findReciprocal(ctx context.Context, ownerUserID int64, bookIDs []int64, lock bool) (core.Match, bool, error) {
	if len(bookIDs) == 0 {
		return core.Match{}, false, nil
	}
	var records []matchRecord
	query := s.tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", ownerUserID).
		Where("?TableAlias.book_id IN (?)", bun.In(bookIDs)).
		Where("?TableAlias.active = ?", true).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Limit(1)
	if lock {
		query = forUpdate(s.tx, query)
	}
	if err := query.Scan(ctx); err != nil {
		return core.Match{}, false, err
	}
	if len(records) == 0 {
		return core.Match{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *MatchStore) CreateMatch(ctx context.Context, match core.Match) (core.Match, error) {
	record := newMatchRecord(match)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	created, err := s.repo.CreateTx(ctx, s.tx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Match{}, fmt.Errorf("%w: user %d book %d", core.ErrDuplicateMatch, match.UserID, match.BookID)
		}
		return core.Match{}, err
	}
	return created.toDomain(), nil
}

// DeactivateMatch only flips rows that are still active, so two transactions
// racing for the same match cannot both consume it.
func (s *MatchStore) DeactivateMatch(ctx context.Context, id string, reason core.MatchDeactivationReason, at time.Time) error {
	id = strings.TrimSpace(id)
	result, err := s.tx.NewUpdate().
		Model((*matchRecord)(nil)).
		Set("active = ?", false).
		Set("deactivation_reason = ?", string(reason)).
		Set("deactivated_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("active = ?", true).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.GetMatch(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", core.ErrMatchInactive, id)
}

func matchRecordsToDomain(records []matchRecord) []core.Match {
	out := make([]core.Match, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out
}

// forUpdate adds a row lock on dialects that support one. SQLite serializes
// writers at the database level instead.
func forUpdate(db bun.IDB, query *bun.SelectQuery) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.PG {
		return query.For("UPDATE")
	}
	return query
}
