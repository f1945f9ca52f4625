package core

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ProposeExchange turns a mutual interest into an exchange. The caller's match
// and the counter-party's reciprocal match are both consumed.
func (s *Service) ProposeExchange(ctx context.Context, userID int64, matchID string) (view ExchangeView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":  userID,
		"match_id": matchID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "propose_exchange", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return ExchangeView{}, err
	}
	if err = requireEntityID("match_id", matchID); err != nil {
		return ExchangeView{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		initiating, err := tx.lockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if initiating.UserID != userID {
			return UnauthorizedError("only the user who created the match can propose an exchange from it")
		}
		if !initiating.Active {
			return ConflictError("match is no longer active")
		}

		reciprocal, found, err := s.matcher.LockReciprocal(ctx, tx.stores, initiating)
		if err != nil {
			return err
		}
		if !found {
			return ConflictError("no reciprocal match found")
		}

		wanted, err := tx.book(ctx, initiating.BookID)
		if err != nil {
			return err
		}
		offered, err := tx.book(ctx, reciprocal.BookID)
		if err != nil {
			return err
		}
		if !wanted.Available || !offered.Available {
			return ConflictError("both books must be available to propose an exchange")
		}

		now := s.now()
		exchange, err := newProposedExchange(s.idGenerator(), userID, offered, wanted, now)
		if err != nil {
			return err
		}
		for _, id := range []string{initiating.ID, reciprocal.ID} {
			if err := tx.stores.Matches().DeactivateMatch(ctx, id, MatchDeactivatedExchanged, now); err != nil {
				if errors.Is(err, ErrMatchInactive) {
					return ConflictError("match was consumed by another exchange")
				}
				return err
			}
		}

		created, err := tx.stores.Exchanges().CreateExchange(ctx, exchange)
		if err != nil {
			return err
		}
		event := exchangeEvent(EventExchangeProposed, userID, created)
		event.Payload[payloadMatchIDs] = []string{initiating.ID, reciprocal.ID}
		if err := tx.emit(ctx, event); err != nil {
			return err
		}
		view = newExchangeView(created, offered, wanted)
		fields["exchange_id"] = created.ID
		return nil
	})
	if err != nil {
		return ExchangeView{}, err
	}
	return view, nil
}

func (s *Service) ArrangeMeetup(ctx context.Context, userID int64, exchangeID string, details MeetupDetails) (view ExchangeView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"exchange_id": exchangeID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "arrange_meetup", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return ExchangeView{}, err
	}
	if err = requireEntityID("exchange_id", exchangeID); err != nil {
		return ExchangeView{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		exchange, err := tx.lockExchange(ctx, exchangeID)
		if err != nil {
			return err
		}
		next, err := decideArrangeMeetup(exchange, userID, details, s.now())
		if err != nil {
			return err
		}
		saved, err := tx.stores.Exchanges().UpdateExchange(ctx, next)
		if err != nil {
			return err
		}
		if err := tx.emit(ctx, exchangeEvent(EventExchangeMeetupArranged, userID, saved)); err != nil {
			return err
		}
		view, err = tx.exchangeView(ctx, saved)
		return err
	})
	if err != nil {
		return ExchangeView{}, err
	}
	fields["status"] = string(view.Status)
	return view, nil
}

// ConfirmExchange records the caller's confirmation. The write that leaves both
// flags set completes the exchange and applies reputation updates in the same
// transaction.
func (s *Service) ConfirmExchange(ctx context.Context, userID int64, exchangeID string) (view ExchangeView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"exchange_id": exchangeID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "confirm_exchange", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return ExchangeView{}, err
	}
	if err = requireEntityID("exchange_id", exchangeID); err != nil {
		return ExchangeView{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		exchange, err := tx.lockExchange(ctx, exchangeID)
		if err != nil {
			return err
		}
		next, completed, err := decideConfirm(exchange, userID, s.now())
		if err != nil {
			return err
		}
		saved, err := tx.stores.Exchanges().UpdateExchange(ctx, next)
		if err != nil {
			return err
		}
		if err := tx.emit(ctx, exchangeEvent(EventExchangeConfirmed, userID, saved)); err != nil {
			return err
		}
		if completed {
			if _, err := s.reputation.ApplyCompletion(ctx, tx.stores, saved); err != nil {
				return err
			}
			if err := tx.emit(ctx, exchangeEvent(EventExchangeCompleted, userID, saved)); err != nil {
				return err
			}
		}
		view, err = tx.exchangeView(ctx, saved)
		return err
	})
	if err != nil {
		return ExchangeView{}, err
	}
	fields["status"] = string(view.Status)
	return view, nil
}

func (s *Service) CancelExchange(ctx context.Context, userID int64, exchangeID string) (view ExchangeView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"exchange_id": exchangeID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "cancel_exchange", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return ExchangeView{}, err
	}
	if err = requireEntityID("exchange_id", exchangeID); err != nil {
		return ExchangeView{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		exchange, err := tx.lockExchange(ctx, exchangeID)
		if err != nil {
			return err
		}
		next, err := decideCancel(exchange, userID, s.now())
		if err != nil {
			return err
		}
		saved, err := tx.stores.Exchanges().UpdateExchange(ctx, next)
		if err != nil {
			return err
		}
		if err := tx.emit(ctx, exchangeEvent(EventExchangeCancelled, userID, saved)); err != nil {
			return err
		}
		view, err = tx.exchangeView(ctx, saved)
		return err
	})
	if err != nil {
		return ExchangeView{}, err
	}
	return view, nil
}

func (s *Service) GetExchange(ctx context.Context, userID int64, exchangeID string) (view ExchangeView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"exchange_id": exchangeID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_exchange", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return ExchangeView{}, err
	}
	if err = requireEntityID("exchange_id", exchangeID); err != nil {
		return ExchangeView{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		exchange, err := tx.stores.Exchanges().GetExchange(ctx, exchangeID)
		if errors.Is(err, ErrExchangeNotFound) {
			return NotFoundError("exchange", exchangeID)
		}
		if err != nil {
			return err
		}
		if !exchange.IsParticipant(userID) {
			return UnauthorizedError("user is not a participant in this exchange")
		}
		view, err = tx.exchangeView(ctx, exchange)
		return err
	})
	if err != nil {
		return ExchangeView{}, err
	}
	return view, nil
}

// ListActiveExchanges returns the caller's exchanges that have not reached a
// terminal status.
func (s *Service) ListActiveExchanges(ctx context.Context, userID int64) ([]ExchangeView, error) {
	return s.listExchanges(ctx, "list_active_exchanges", userID,
		ExchangeStatusProposed, ExchangeStatusMeetupArranged)
}

// ExchangeHistory returns the caller's completed exchanges.
func (s *Service) ExchangeHistory(ctx context.Context, userID int64) ([]ExchangeView, error) {
	return s.listExchanges(ctx, "exchange_history", userID, ExchangeStatusCompleted)
}

func (s *Service) listExchanges(ctx context.Context, operation string, userID int64, statuses ...ExchangeStatus) (views []ExchangeView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": userID}
	defer func() {
		s.observeOperation(ctx, startedAt, operation, err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return nil, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		if _, err := tx.user(ctx, userID); err != nil {
			return err
		}
		exchanges, err := tx.stores.Exchanges().FindExchangesForUserByStatus(ctx, userID, statuses...)
		if err != nil {
			return err
		}
		sortExchanges(exchanges)
		out := make([]ExchangeView, 0, len(exchanges))
		for _, exchange := range exchanges {
			view, err := tx.exchangeView(ctx, exchange)
			if err != nil {
				return err
			}
			out = append(out, view)
		}
		views = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["count"] = len(views)
	return views, nil
}

func sortExchanges(exchanges []Exchange) {
	sort.SliceStable(exchanges, func(i, j int) bool {
		if !exchanges[i].ProposedAt.Equal(exchanges[j].ProposedAt) {
			return exchanges[i].ProposedAt.Before(exchanges[j].ProposedAt)
		}
		return exchanges[i].ID < exchanges[j].ID
	})
}
