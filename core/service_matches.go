package core

import (
	"context"
	"errors"
	"time"
)

func (s *Service) CreateMatch(ctx context.Context, userID int64, bookID int64) (view MatchView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id": userID,
		"book_id": bookID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_match", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return MatchView{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		if _, err := tx.user(ctx, userID); err != nil {
			return err
		}
		book, err := tx.book(ctx, bookID)
		if err != nil {
			return err
		}
		if book.OwnerID == userID {
			return ConflictError("cannot create a match on a book you own")
		}
		if !book.Available {
			return ConflictError("book is not available")
		}
		if _, exists, err := tx.stores.Matches().FindActiveMatchForUserAndBook(ctx, userID, bookID); err != nil {
			return err
		} else if exists {
			return ConflictError("an active match already exists for this user and book")
		}

		match, err := tx.stores.Matches().CreateMatch(ctx, Match{
			ID:        s.idGenerator(),
			UserID:    userID,
			BookID:    bookID,
			Active:    true,
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}
		if err := tx.stores.Books().IncrementMatchCount(ctx, bookID); err != nil {
			return err
		}
		book.MatchCount++

		_, hasReciprocal, err := s.matcher.FindReciprocal(ctx, tx.stores, match)
		if err != nil {
			return err
		}
		if err := tx.emit(ctx, matchEvent(EventMatchCreated, userID, match)); err != nil {
			return err
		}
		view = newMatchView(match, book, hasReciprocal)
		fields["match_id"] = match.ID
		return nil
	})
	if err != nil {
		return MatchView{}, err
	}
	return view, nil
}

// CancelMatch deactivates a match the caller holds. Cancelling a match that is
// already inactive is rejected with a conflict.
func (s *Service) CancelMatch(ctx context.Context, userID int64, matchID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":  userID,
		"match_id": matchID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "cancel_match", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return err
	}
	if err = requireEntityID("match_id", matchID); err != nil {
		return err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		match, err := tx.lockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if match.UserID != userID {
			return UnauthorizedError("only the user who created the match can cancel it")
		}
		if !match.Active {
			return ConflictError("match is no longer active")
		}
		now := s.now()
		if err := tx.stores.Matches().DeactivateMatch(ctx, match.ID, MatchDeactivatedCancelled, now); err != nil {
			if errors.Is(err, ErrMatchInactive) {
				return ConflictError("match is no longer active")
			}
			return err
		}
		match.Active = false
		match.DeactivationReason = MatchDeactivatedCancelled
		match.DeactivatedAt = &now
		return tx.emit(ctx, matchEvent(EventMatchCancelled, userID, match))
	})
	return err
}

// ListMatches returns the caller's active matches ordered by creation time.
func (s *Service) ListMatches(ctx context.Context, userID int64) (views []MatchView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": userID}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_matches", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return nil, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		if _, err := tx.user(ctx, userID); err != nil {
			return err
		}
		matches, err := tx.stores.Matches().FindActiveMatchesForUser(ctx, userID)
		if err != nil {
			return err
		}
		SortMatches(matches)

		out := make([]MatchView, 0, len(matches))
		for _, match := range matches {
			if !match.Active {
				continue
			}
			book, err := tx.book(ctx, match.BookID)
			if err != nil {
				return err
			}
			_, hasReciprocal, err := s.matcher.FindReciprocal(ctx, tx.stores, match)
			if err != nil {
				return err
			}
			out = append(out, newMatchView(match, book, hasReciprocal))
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
