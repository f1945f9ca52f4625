package core

import (
	"strings"
	"time"
)

type Rank string

const (
	RankBronze Rank = "BRONZE"
	RankSilver Rank = "SILVER"
	RankGold   Rank = "GOLD"
)

const (
	SilverRankThreshold = 20
	GoldRankThreshold   = 50
)

type ExchangeStatus string

const (
	ExchangeStatusProposed       ExchangeStatus = "PROPOSED"
	ExchangeStatusMeetupArranged ExchangeStatus = "MEETUP_ARRANGED"
	ExchangeStatusCompleted      ExchangeStatus = "COMPLETED"
	ExchangeStatusCancelled      ExchangeStatus = "CANCELLED"
)

func (s ExchangeStatus) Terminal() bool {
	return s == ExchangeStatusCompleted || s == ExchangeStatusCancelled
}

func (s ExchangeStatus) Valid() bool {
	switch s {
	case ExchangeStatusProposed, ExchangeStatusMeetupArranged, ExchangeStatusCompleted, ExchangeStatusCancelled:
		return true
	default:
		return false
	}
}

func ParseExchangeStatus(raw string) (ExchangeStatus, bool) {
	status := ExchangeStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

type MatchDeactivationReason string

const (
	MatchDeactivatedExchanged MatchDeactivationReason = "exchanged"
	MatchDeactivatedCancelled MatchDeactivationReason = "cancelled"
)

// User carries the reputation fields owned by this package. Rank and
// AverageRating are only written by the reputation updater.
type User struct {
	ID            int64
	Username      string
	ExchangeCount int
	Rank          Rank
	AverageRating float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Book struct {
	ID            int64
	OwnerID       int64
	Title         string
	Author        string
	Description   string
	Available     bool
	MatchCount    int
	ExchangeCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Match is a directed interest edge from a user to a book they do not own.
type Match struct {
	ID                 string
	UserID             int64
	BookID             int64
	Active             bool
	DeactivationReason MatchDeactivationReason
	CreatedAt          time.Time
	DeactivatedAt      *time.Time
}

// Exchange pairs two users and two books. Book1 is offered by User1 and taken
// by User2; Book2 is offered by User2 and taken by User1.
type Exchange struct {
	ID             string
	User1ID        int64
	User2ID        int64
	Book1ID        int64
	Book2ID        int64
	Status         ExchangeStatus
	ProposedAt     time.Time
	MeetupAt       *time.Time
	MeetupLocation string
	User1Confirmed bool
	User2Confirmed bool
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CancelledBy    int64
	Version        int64
	UpdatedAt      time.Time
}

func (e Exchange) IsParticipant(userID int64) bool {
	return userID != 0 && (e.User1ID == userID || e.User2ID == userID)
}

func (e Exchange) BothConfirmed() bool {
	return e.User1Confirmed && e.User2Confirmed
}

type MeetupDetails struct {
	At       time.Time
	Location string
}

type BookView struct {
	ID            int64  `json:"id"`
	OwnerID       int64  `json:"owner_id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Available     bool   `json:"available"`
	MatchCount    int    `json:"match_count"`
	ExchangeCount int    `json:"exchange_count"`
}

type MatchView struct {
	ID            string     `json:"id"`
	UserID        int64      `json:"user_id"`
	Book          BookView   `json:"book"`
	Active        bool       `json:"active"`
	HasReciprocal bool       `json:"has_reciprocal"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

type ExchangeView struct {
	ID             string         `json:"id"`
	Status         ExchangeStatus `json:"status"`
	User1ID        int64          `json:"user1_id"`
	User2ID        int64          `json:"user2_id"`
	Book1          BookView       `json:"book1"`
	Book2          BookView       `json:"book2"`
	ProposedAt     time.Time      `json:"proposed_at"`
	MeetupAt       *time.Time     `json:"meetup_at,omitempty"`
	MeetupLocation string         `json:"meetup_location,omitempty"`
	User1Confirmed bool           `json:"user1_confirmed"`
	User2Confirmed bool           `json:"user2_confirmed"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CancelledAt    *time.Time     `json:"cancelled_at,omitempty"`
}

type UserReputation struct {
	UserID        int64   `json:"user_id"`
	ExchangeCount int     `json:"exchange_count"`
	Rank          Rank    `json:"rank"`
	AverageRating float64 `json:"average_rating"`
}

func newBookView(book Book) BookView {
	return BookView{
		ID:            book.ID,
		OwnerID:       book.OwnerID,
		Title:         book.Title,
		Author:        book.Author,
		Available:     book.Available,
		MatchCount:    book.MatchCount,
		ExchangeCount: book.ExchangeCount,
	}
}

func newMatchView(match Match, book Book, hasReciprocal bool) MatchView {
	return MatchView{
		ID:            match.ID,
		UserID:        match.UserID,
		Book:          newBookView(book),
		Active:        match.Active,
		HasReciprocal: hasReciprocal,
		CreatedAt:     match.CreatedAt,
		DeactivatedAt: copyTime(match.DeactivatedAt),
	}
}

func newExchangeView(exchange Exchange, book1 Book, book2 Book) ExchangeView {
	return ExchangeView{
		ID:             exchange.ID,
		Status:         exchange.Status,
		User1ID:        exchange.User1ID,
		User2ID:        exchange.User2ID,
		Book1:          newBookView(book1),
		Book2:          newBookView(book2),
		ProposedAt:     exchange.ProposedAt,
		MeetupAt:       copyTime(exchange.MeetupAt),
		MeetupLocation: exchange.MeetupLocation,
		User1Confirmed: exchange.User1Confirmed,
		User2Confirmed: exchange.User2Confirmed,
		CompletedAt:    copyTime(exchange.CompletedAt),
		CancelledAt:    copyTime(exchange.CancelledAt),
	}
}

func newUserReputation(user User) UserReputation {
	return UserReputation{
		UserID:        user.ID,
		ExchangeCount: user.ExchangeCount,
		Rank:          user.Rank,
		AverageRating: user.AverageRating,
	}
}

const (
	EventMatchCreated           = "match.created"
	EventMatchCancelled         = "match.cancelled"
	EventExchangeProposed       = "exchange.proposed"
	EventExchangeMeetupArranged = "exchange.meetup_arranged"
	EventExchangeConfirmed      = "exchange.confirmed"
	EventExchangeCompleted      = "exchange.completed"
	EventExchangeCancelled      = "exchange.cancelled"
	EventUserRatingRecalculated = "user.rating_recalculated"
)

const (
	LifecycleEventSource         = "bookswap"
	LifecycleSubjectTypeMatch    = "match"
	LifecycleSubjectTypeExchange = "exchange"
	LifecycleSubjectTypeUser     = "user"
)

// LifecycleEvent is written to the outbox in the same transaction as the
// mutation it describes.
type LifecycleEvent struct {
	ID          string
	Name        string
	SubjectType string
	SubjectID   string
	ActorID     int64
	Source      string
	OccurredAt  time.Time
	Payload     map[string]any
	Metadata    map[string]any
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
