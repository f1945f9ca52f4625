package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-bookswap/core"
	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            int64     `bun:"id,pk,autoincrement"`
	Username      string    `bun:"username,notnull"`
	ExchangeCount int       `bun:"exchange_count,notnull"`
	Rank          string    `bun:"rank,notnull"`
	AverageRating float64   `bun:"average_rating,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type bookRecord struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID            int64     `bun:"id,pk,autoincrement"`
	OwnerID       int64     `bun:"owner_id,notnull"`
	Title         string    `bun:"title,notnull"`
	Author        string    `bun:"author,notnull"`
	Description   string    `bun:"description,notnull"`
	Available     bool      `bun:"available,notnull"`
	MatchCount    int       `bun:"match_count,notnull"`
	ExchangeCount int       `bun:"exchange_count,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type matchRecord struct {
	bun.BaseModel `bun:"table:book_matches,alias:bm"`

	ID                 string     `bun:"id,pk"`
	UserID             int64      `bun:"user_id,notnull"`
	BookID             int64      `bun:"book_id,notnull"`
	Active             bool       `bun:"active,notnull"`
	DeactivationReason string     `bun:"deactivation_reason,notnull"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	DeactivatedAt      *time.Time `bun:"deactivated_at,nullzero"`
}

type exchangeRecord struct {
	bun.BaseModel `bun:"table:exchanges,alias:ex"`

	ID             string     `bun:"id,pk"`
	User1ID        int64      `bun:"user1_id,notnull"`
	User2ID        int64      `bun:"user2_id,notnull"`
	Book1ID        int64      `bun:"book1_id,notnull"`
	Book2ID        int64      `bun:"book2_id,notnull"`
	Status         string     `bun:"status,notnull"`
	ProposedAt     time.Time  `bun:"proposed_at,notnull"`
	MeetupAt       *time.Time `bun:"meetup_at,nullzero"`
	MeetupLocation string     `bun:"meetup_location,notnull"`
	User1Confirmed bool       `bun:"user1_confirmed,notnull"`
	User2Confirmed bool       `bun:"user2_confirmed,notnull"`
	CompletedAt    *time.Time `bun:"completed_at,nullzero"`
	CancelledAt    *time.Time `bun:"cancelled_at,nullzero"`
	CancelledBy    int64      `bun:"cancelled_by,notnull"`
	Version        int64      `bun:"version,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type reviewRecord struct {
	bun.BaseModel `bun:"table:reviews,alias:rv"`

	ID             int64     `bun:"id,pk,autoincrement"`
	ReviewerID     int64     `bun:"reviewer_id,notnull"`
	ReviewedUserID int64     `bun:"reviewed_user_id,notnull"`
	Rating         int       `bun:"rating,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type lifecycleOutboxRecord struct {
	bun.BaseModel `bun:"table:lifecycle_outbox,alias:lo"`

	ID            string         `bun:"id,pk"`
	EventID       string         `bun:"event_id,notnull"`
	EventName     string         `bun:"event_name,notnull"`
	SubjectType   string         `bun:"subject_type,notnull"`
	SubjectID     string         `bun:"subject_id,notnull"`
	ActorID       int64          `bun:"actor_id,notnull"`
	Source        string         `bun:"source,notnull"`
	Payload       map[string]any `bun:"payload,type:jsonb,notnull"`
	Metadata      map[string]any `bun:"metadata,type:jsonb,notnull"`
	Status        string         `bun:"status,notnull"`
	Attempts      int            `bun:"attempts,notnull"`
	NextAttemptAt *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError     string         `bun:"last_error"`
	OccurredAt    time.Time      `bun:"occurred_at,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:            r.ID,
		Username:      r.Username,
		ExchangeCount: r.ExchangeCount,
		Rank:          core.Rank(strings.TrimSpace(r.Rank)),
		AverageRating: r.AverageRating,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// newUserRecord ignores the caller's rank and rating.
func newUserRecord(user core.User) *userRecord {
	return &userRecord{
		ID:            user.ID,
		Username:      strings.TrimSpace(user.Username),
		ExchangeCount: user.ExchangeCount,
		Rank:          string(core.RankForExchangeCount(user.ExchangeCount)),
		CreatedAt:     user.CreatedAt.UTC(),
		UpdatedAt:     user.UpdatedAt.UTC(),
	}
}

func (r *bookRecord) toDomain() core.Book {
	if r == nil {
		return core.Book{}
	}
	return core.Book{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Title:         r.Title,
		Author:        r.Author,
		Description:   r.Description,
		Available:     r.Available,
		MatchCount:    r.MatchCount,
		ExchangeCount: r.ExchangeCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func newBookRecord(book core.Book) *bookRecord {
	return &bookRecord{
		ID:            book.ID,
		OwnerID:       book.OwnerID,
		Title:         strings.TrimSpace(book.Title),
		Author:        strings.TrimSpace(book.Author),
		Description:   book.Description,
		Available:     book.Available,
		MatchCount:    book.MatchCount,
		ExchangeCount: book.ExchangeCount,
		CreatedAt:     book.CreatedAt.UTC(),
		UpdatedAt:     book.UpdatedAt.UTC(),
	}
}

func (r *matchRecord) toDomain() core.Match {
	if r == nil {
		return core.Match{}
	}
	return core.Match{
		ID:                 r.ID,
		UserID:             r.UserID,
		BookID:             r.BookID,
		Active:             r.Active,
		DeactivationReason: core.MatchDeactivationReason(r.DeactivationReason),
		CreatedAt:          r.CreatedAt,
		DeactivatedAt:      cloneTimePointer(r.DeactivatedAt),
	}
}

func newMatchRecord(match core.Match) *matchRecord {
	return &matchRecord{
		ID:                 strings.TrimSpace(match.ID),
		UserID:             match.UserID,
		BookID:             match.BookID,
		Active:             match.Active,
		DeactivationReason: string(match.DeactivationReason),
		CreatedAt:          match.CreatedAt.UTC(),
		DeactivatedAt:      cloneTimePointer(match.DeactivatedAt),
	}
}

func (r *exchangeRecord) toDomain() core.Exchange {
	if r == nil {
		return core.Exchange{}
	}
	return core.Exchange{
		ID:             r.ID,
		User1ID:        r.User1ID,
		User2ID:        r.User2ID,
		Book1ID:        r.Book1ID,
		Book2ID:        r.Book2ID,
		Status:         core.ExchangeStatus(r.Status),
		ProposedAt:     r.ProposedAt,
		MeetupAt:       cloneTimePointer(r.MeetupAt),
		MeetupLocation: r.MeetupLocation,
		User1Confirmed: r.User1Confirmed,
		User2Confirmed: r.User2Confirmed,
		CompletedAt:    cloneTimePointer(r.CompletedAt),
		CancelledAt:    cloneTimePointer(r.CancelledAt),
		CancelledBy:    r.CancelledBy,
		Version:        r.Version,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newExchangeRecord(exchange core.Exchange) *exchangeRecord {
	return &exchangeRecord{
		ID:             strings.TrimSpace(exchange.ID),
		User1ID:        exchange.User1ID,
		User2ID:        exchange.User2ID,
		Book1ID:        exchange.Book1ID,
		Book2ID:        exchange.Book2ID,
		Status:         string(exchange.Status),
		ProposedAt:     exchange.ProposedAt.UTC(),
		MeetupAt:       cloneTimePointer(exchange.MeetupAt),
		MeetupLocation: exchange.MeetupLocation,
		User1Confirmed: exchange.User1Confirmed,
		User2Confirmed: exchange.User2Confirmed,
		CompletedAt:    cloneTimePointer(exchange.CompletedAt),
		CancelledAt:    cloneTimePointer(exchange.CancelledAt),
		CancelledBy:    exchange.CancelledBy,
		Version:        exchange.Version,
		UpdatedAt:      exchange.UpdatedAt.UTC(),
	}
}

func outboxRecordToEvent(record lifecycleOutboxRecord) core.LifecycleEvent {
	event := core.LifecycleEvent{
		ID:          record.EventID,
		Name:        record.EventName,
		SubjectType: record.SubjectType,
		SubjectID:   record.SubjectID,
		ActorID:     record.ActorID,
		Source:      record.Source,
		OccurredAt:  record.OccurredAt,
		Payload:     copyAnyMap(record.Payload),
		Metadata:    copyAnyMap(record.Metadata),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	event.Metadata[core.MetadataKeyOutboxAttempts] = record.Attempts
	return event
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
