package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-bookswap/core"
	"github.com/uptrace/bun"
)

// UserStore reads and writes user reputation columns inside one transaction.
// Profile fields belong to the user collaborator; SaveUser upserts by id so the
// same table can be seeded by that collaborator. Rank and average rating are
// only written through UpdateRank and SetAverageRating.
type UserStore struct {
	tx bun.Tx
}

func (s *UserStore) GetUser(ctx context.Context, id int64) (core.User, error) {
	record := &userRecord{}
	err := s.tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, fmt.Errorf("%w: %d", core.ErrUserNotFound, id)
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

// SaveUser inserts a user with a rank derived from its exchange count and no
// ratings. An existing row only takes the new username.
func (s *UserStore) SaveUser(ctx context.Context, user core.User) error {
	if user.ID <= 0 {
		return fmt.Errorf("sqlstore: user id is required")
	}
	now := time.Now().UTC()
	record := newUserRecord(user)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	_, err := s.tx.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *UserStore) IncrementExchangeCount(ctx context.Context, id int64) (core.User, error) {
	result, err := s.tx.NewUpdate().
		Model((*userRecord)(nil)).
		Set("exchange_count = exchange_count + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return core.User{}, err
	}
	if err := requireAffected(result, fmt.Errorf("%w: %d", core.ErrUserNotFound, id)); err != nil {
		return core.User{}, err
	}
	return s.GetUser(ctx, id)
}

// UpdateRank recomputes rank from the stored exchange count.
func (s *UserStore) UpdateRank(ctx context.Context, id int64) (core.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return core.User{}, err
	}
	user.Rank = core.RankForExchangeCount(user.ExchangeCount)
	_, err = s.tx.NewUpdate().
		Model((*userRecord)(nil)).
		Set("rank = ?", string(user.Rank)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}

func (s *UserStore) SetAverageRating(ctx context.Context, id int64, average float64) error {
	result, err := s.tx.NewUpdate().
		Model((*userRecord)(nil)).
		Set("average_rating = ?", average).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, fmt.Errorf("%w: %d", core.ErrUserNotFound, id))
}

// BookStore covers the columns the exchange core owns on catalog rows:
// availability and the two counters.
type BookStore struct {
	tx bun.Tx
}

func (s *BookStore) GetBook(ctx context.Context, id int64) (core.Book, error) {
	record := &bookRecord{}
	err := s.tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Book{}, fmt.Errorf("%w: %d", core.ErrBookNotFound, id)
		}
		return core.Book{}, err
	}
	return record.toDomain(), nil
}

func (s *BookStore) ListBooksByOwner(ctx context.Context, ownerID int64) ([]core.Book, error) {
	var records []bookRecord
	err := s.tx.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	books := make([]core.Book, 0, len(records))
	for i := range records {
		books = append(books, records[i].toDomain())
	}
	return books, nil
}

func (s *BookStore) SaveBook(ctx context.Context, book core.Book) error {
	if book.ID <= 0 {
		return fmt.Errorf("sqlstore: book id is required")
	}
	if book.OwnerID <= 0 {
		return fmt.Errorf("sqlstore: book owner id is required")
	}
	now := time.Now().UTC()
	record := newBookRecord(book)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	_, err := s.tx.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("owner_id = EXCLUDED.owner_id").
		Set("title = EXCLUDED.title").
		Set("author = EXCLUDED.author").
		Set("description = EXCLUDED.description").
		Set("available = EXCLUDED.available").
		Set("match_count = EXCLUDED.match_count").
		Set("exchange_count = EXCLUDED.exchange_count").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BookStore) IncrementMatchCount(ctx context.Context, id int64) error {
	result, err := s.tx.NewUpdate().
		Model((*bookRecord)(nil)).
		Set("match_count = match_count + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, fmt.Errorf("%w: %d", core.ErrBookNotFound, id))
}

func (s *BookStore) MarkTraded(ctx context.Context, id int64) error {
	result, err := s.tx.NewUpdate().
		Model((*bookRecord)(nil)).
		Set("exchange_count = exchange_count + 1").
		Set("available = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, fmt.Errorf("%w: %d", core.ErrBookNotFound, id))
}

// RatingStore reads review scores written by the review collaborator.
type RatingStore struct {
	tx bun.Tx
}

func (s *RatingStore) RatingsForUser(ctx context.Context, userID int64) ([]int, error) {
	ratings := make([]int, 0)
	err := s.tx.NewSelect().
		Model((*reviewRecord)(nil)).
		Column("rating").
		Where("?TableAlias.reviewed_user_id = ?", userID).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &ratings)
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

func requireAffected(result sql.Result, missing error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}
	return nil
}
