package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type UserStore interface {
	GetUser(ctx context.Context, id int64) (User, error)
	// SaveUser upserts profile fields. A new row gets a rank derived from its
	// exchange count and no rating; the caller's Rank and AverageRating are
	// ignored.
	SaveUser(ctx context.Context, user User) error
	// IncrementExchangeCount adds one completed exchange and returns the
	// post-increment row as seen inside the current transaction.
	IncrementExchangeCount(ctx context.Context, id int64) (User, error)
	// UpdateRank recomputes rank from the stored exchange count.
	UpdateRank(ctx context.Context, id int64) (User, error)
	SetAverageRating(ctx context.Context, id int64, average float64) error
}

type BookStore interface {
	GetBook(ctx context.Context, id int64) (Book, error)
	ListBooksByOwner(ctx context.Context, ownerID int64) ([]Book, error)
	SaveBook(ctx context.Context, book Book) error
	IncrementMatchCount(ctx context.Context, id int64) error
	// MarkTraded increments the completed-exchange counter and withdraws the
	// book from circulation.
	MarkTraded(ctx context.Context, id int64) error
}

type MatchStore interface {
	GetMatch(ctx context.Context, id string) (Match, error)
	// LockMatch reads the match with whatever row lock the backend offers.
	LockMatch(ctx context.Context, id string) (Match, error)
	FindActiveMatchesForUser(ctx context.Context, userID int64) ([]Match, error)
	FindActiveMatchForUserAndBook(ctx context.Context, userID int64, bookID int64) (Match, bool, error)
	// FindReciprocalMatch returns the earliest active match held by ownerUserID
	// on any of bookIDs, ties broken by id.
	FindReciprocalMatch(ctx context.Context, ownerUserID int64, bookIDs []int64) (Match, bool, error)
	// LockReciprocalMatch is FindReciprocalMatch with a row lock on the result.
	LockReciprocalMatch(ctx context.Context, ownerUserID int64, bookIDs []int64) (Match, bool, error)
	// CreateMatch returns ErrDuplicateMatch when an active match already exists
	// for the (user, book) pair.
	CreateMatch(ctx context.Context, match Match) (Match, error)
	// DeactivateMatch flips an active match to inactive. It returns
	// ErrMatchInactive when the match was already inactive.
	DeactivateMatch(ctx context.Context, id string, reason MatchDeactivationReason, at time.Time) error
}

type ExchangeStore interface {
	GetExchange(ctx context.Context, id string) (Exchange, error)
	LockExchange(ctx context.Context, id string) (Exchange, error)
	FindExchangesForUser(ctx context.Context, userID int64) ([]Exchange, error)
	FindExchangesForUserByStatus(ctx context.Context, userID int64, statuses ...ExchangeStatus) ([]Exchange, error)
	CreateExchange(ctx context.Context, exchange Exchange) (Exchange, error)
	// UpdateExchange writes the exchange when its stored version still equals
	// exchange.Version, returning the stored row with the bumped version.
	// A version mismatch returns ErrStaleWrite.
	UpdateExchange(ctx context.Context, exchange Exchange) (Exchange, error)
}

type RatingStore interface {
	RatingsForUser(ctx context.Context, userID int64) ([]int, error)
}

type OutboxStore interface {
	Enqueue(ctx context.Context, event LifecycleEvent) error
	ClaimBatch(ctx context.Context, limit int) ([]LifecycleEvent, error)
	Ack(ctx context.Context, eventID string) error
	Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error
}

// Stores is the set of stores bound to one transaction.
type Stores interface {
	Users() UserStore
	Books() BookStore
	Matches() MatchStore
	Exchanges() ExchangeStore
	Ratings() RatingStore
	Outbox() OutboxStore
}

// Transactor runs fn inside a single serializable unit of work. Backend
// contention is retried by the implementation and never reaches fn's caller
// as one of the business error kinds.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

type ReputationCache interface {
	Get(ctx context.Context, userID int64, fetch func(ctx context.Context) (UserReputation, error)) (UserReputation, error)
	Invalidate(ctx context.Context, userIDs ...int64) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type LifecycleEventHandler interface {
	Handle(ctx context.Context, event LifecycleEvent) error
}

type LifecycleEventHandlerFunc func(ctx context.Context, event LifecycleEvent) error

func (f LifecycleEventHandlerFunc) Handle(ctx context.Context, event LifecycleEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type DispatchStats struct {
	Claimed   int `json:"claimed"`
	Delivered int `json:"delivered"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
}

type LifecycleDispatcher interface {
	DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error)
}

type LifecycleHook interface {
	Name() string
	OnEvent(ctx context.Context, event LifecycleEvent) error
}

type ProjectorRegistry interface {
	Register(name string, handler LifecycleEventHandler)
	Handlers() []LifecycleEventHandler
}

// MatchService is the caller-facing surface of the match registry.
type MatchService interface {
	CreateMatch(ctx context.Context, userID int64, bookID int64) (MatchView, error)
	CancelMatch(ctx context.Context, userID int64, matchID string) error
	ListMatches(ctx context.Context, userID int64) ([]MatchView, error)
}

// ExchangeService is the caller-facing surface of the exchange lifecycle.
type ExchangeService interface {
	ProposeExchange(ctx context.Context, userID int64, matchID string) (ExchangeView, error)
	ArrangeMeetup(ctx context.Context, userID int64, exchangeID string, details MeetupDetails) (ExchangeView, error)
	ConfirmExchange(ctx context.Context, userID int64, exchangeID string) (ExchangeView, error)
	CancelExchange(ctx context.Context, userID int64, exchangeID string) (ExchangeView, error)
	GetExchange(ctx context.Context, userID int64, exchangeID string) (ExchangeView, error)
	ListActiveExchanges(ctx context.Context, userID int64) ([]ExchangeView, error)
	ExchangeHistory(ctx context.Context, userID int64) ([]ExchangeView, error)
}

type ReputationService interface {
	RecalculateRating(ctx context.Context, userID int64) (UserReputation, error)
	GetReputation(ctx context.Context, userID int64) (UserReputation, error)
}

type BookSwapService interface {
	MatchService
	ExchangeService
	ReputationService
}
