package command

import (
	"strings"
	"time"
)

const (
	TypeCreateMatch       = "bookswap.command.match.create"
	TypeCancelMatch       = "bookswap.command.match.cancel"
	TypeProposeExchange   = "bookswap.command.exchange.propose"
	TypeArrangeMeetup     = "bookswap.command.exchange.arrange_meetup"
	TypeConfirmExchange   = "bookswap.command.exchange.confirm"
	TypeCancelExchange    = "bookswap.command.exchange.cancel"
	TypeRecalculateRating = "bookswap.command.reputation.recalculate"
)

type CreateMatchMessage struct {
	UserID int64
	BookID int64
}

func (CreateMatchMessage) Type() string { return TypeCreateMatch }

func (m CreateMatchMessage) Validate() error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}
	if m.BookID <= 0 {
		return commandValidationError("book_id", "book id must be positive")
	}
	return nil
}

type CancelMatchMessage struct {
	UserID  int64
	MatchID string
}

func (CancelMatchMessage) Type() string { return TypeCancelMatch }

func (m CancelMatchMessage) Validate() error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}
	return validateID("match_id", m.MatchID)
}

type ProposeExchangeMessage struct {
	UserID  int64
	MatchID string
}

func (ProposeExchangeMessage) Type() string { return TypeProposeExchange }

func (m ProposeExchangeMessage) Validate() error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}
	return validateID("match_id", m.MatchID)
}

// ArrangeMeetupMessage only checks shape; whether the time lies in the future
// is decided by the service clock.
type ArrangeMeetupMessage struct {
	UserID     int64
	ExchangeID string
	At         time.Time
	Location   string
}

func (ArrangeMeetupMessage) Type() string { return TypeArrangeMeetup }

func (m ArrangeMeetupMessage) Validate() error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}
	if err := validateID("exchange_id", m.ExchangeID); err != nil {
		return err
	}
	if m.At.IsZero() {
		return commandValidationError("meetup_at", "meetup time is required")
	}
	if strings.TrimSpace(m.Location) == "" {
		return commandValidationError("meetup_location", "meetup location is required")
	}
	return nil
}

type ConfirmExchangeMessage struct {
	UserID     int64
	ExchangeID string
}

func (ConfirmExchangeMessage) Type() string { return TypeConfirmExchange }

func (m ConfirmExchangeMessage) Validate() error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}
	return validateID("exchange_id", m.ExchangeID)
}

type CancelExchangeMessage struct {
	UserID     int64
	ExchangeID string
}

func (CancelExchangeMessage) Type() string { return TypeCancelExchange }

func (m CancelExchangeMessage) Validate() error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}
	return validateID("exchange_id", m.ExchangeID)
}

// RecalculateRatingMessage is sent by the review collaborator after a review
// for UserID changes.
type RecalculateRatingMessage struct {
	UserID int64
}

func (RecalculateRatingMessage) Type() string { return TypeRecalculateRating }

func (m RecalculateRatingMessage) Validate() error {
	return validateUserID(m.UserID)
}

func validateUserID(userID int64) error {
	if userID <= 0 {
		return commandValidationError("user_id", "user id must be positive")
	}
	return nil
}

func validateID(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return commandValidationError(field, field+" is required")
	}
	return nil
}
