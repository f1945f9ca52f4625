package core

import (
	"strings"
	"time"
)

type ExchangeAction string

const (
	ExchangeActionArrangeMeetup ExchangeAction = "arrange_meetup"
	ExchangeActionConfirm       ExchangeAction = "confirm"
	ExchangeActionCancel        ExchangeAction = "cancel"
)

// exchangeTransitions lists, per status, the actions that may be applied and
// the status each one leads to. Confirm may also lead to COMPLETED once both
// participants have confirmed.
var exchangeTransitions = map[ExchangeStatus]map[ExchangeAction]ExchangeStatus{
	ExchangeStatusProposed: {
		ExchangeActionArrangeMeetup: ExchangeStatusMeetupArranged,
		ExchangeActionCancel:        ExchangeStatusCancelled,
	},
	ExchangeStatusMeetupArranged: {
		ExchangeActionConfirm: ExchangeStatusMeetupArranged,
		ExchangeActionCancel:  ExchangeStatusCancelled,
	},
	ExchangeStatusCompleted: {},
	ExchangeStatusCancelled: {},
}

func exchangeTransitionAllowed(status ExchangeStatus, action ExchangeAction) bool {
	actions, ok := exchangeTransitions[status]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

func guardExchangeAction(exchange Exchange, userID int64, action ExchangeAction) error {
	if !exchange.IsParticipant(userID) {
		return UnauthorizedError("user is not a participant in this exchange")
	}
	if !exchangeTransitionAllowed(exchange.Status, action) {
		return InvalidTransitionError(exchange.Status, action)
	}
	return nil
}

func decideArrangeMeetup(exchange Exchange, userID int64, details MeetupDetails, now time.Time) (Exchange, error) {
	if err := guardExchangeAction(exchange, userID, ExchangeActionArrangeMeetup); err != nil {
		return Exchange{}, err
	}
	if details.At.IsZero() {
		return Exchange{}, ValidationError("meetup_at", "meetup time is required")
	}
	if !details.At.After(now) {
		return Exchange{}, ValidationError("meetup_at", "meetup time must be in the future")
	}
	location := strings.TrimSpace(details.Location)
	if location == "" {
		return Exchange{}, ValidationError("meetup_location", "meetup location is required")
	}

	at := details.At.UTC()
	next := exchange
	next.MeetupAt = &at
	next.MeetupLocation = location
	next.Status = exchangeTransitions[exchange.Status][ExchangeActionArrangeMeetup]
	next.UpdatedAt = now
	return next, nil
}

// decideConfirm sets the caller's confirmation flag. The returned bool reports
// whether this write completed the exchange.
func decideConfirm(exchange Exchange, userID int64, now time.Time) (Exchange, bool, error) {
	if err := guardExchangeAction(exchange, userID, ExchangeActionConfirm); err != nil {
		return Exchange{}, false, err
	}

	next := exchange
	if exchange.User1ID == userID {
		next.User1Confirmed = true
	}
	if exchange.User2ID == userID {
		next.User2Confirmed = true
	}
	next.UpdatedAt = now
	if !next.BothConfirmed() {
		return next, false, nil
	}

	completedAt := now
	next.Status = ExchangeStatusCompleted
	next.CompletedAt = &completedAt
	return next, true, nil
}

func decideCancel(exchange Exchange, userID int64, now time.Time) (Exchange, error) {
	if err := guardExchangeAction(exchange, userID, ExchangeActionCancel); err != nil {
		return Exchange{}, err
	}

	cancelledAt := now
	next := exchange
	next.Status = exchangeTransitions[exchange.Status][ExchangeActionCancel]
	next.User1Confirmed = false
	next.User2Confirmed = false
	next.CancelledAt = &cancelledAt
	next.CancelledBy = userID
	next.UpdatedAt = now
	return next, nil
}

func newProposedExchange(id string, initiator int64, offered Book, wanted Book, now time.Time) (Exchange, error) {
	if initiator == wanted.OwnerID || offered.OwnerID == wanted.OwnerID {
		return Exchange{}, ConflictError("an exchange requires two distinct participants")
	}
	if offered.ID == wanted.ID {
		return Exchange{}, ConflictError("an exchange requires two distinct books")
	}
	return Exchange{
		ID:         id,
		User1ID:    initiator,
		User2ID:    wanted.OwnerID,
		Book1ID:    offered.ID,
		Book2ID:    wanted.ID,
		Status:     ExchangeStatusProposed,
		ProposedAt: now,
		UpdatedAt:  now,
		Version:    1,
	}, nil
}
