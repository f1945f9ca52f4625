package core

import (
	"context"
	"time"
)

// RecalculateRating is the entry point for the review collaborator: call it
// after a review for userID is added or removed.
func (s *Service) RecalculateRating(ctx context.Context, userID int64) (reputation UserReputation, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": userID}
	defer func() {
		s.observeOperation(ctx, startedAt, "recalculate_rating", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return UserReputation{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
		if _, err := tx.user(ctx, userID); err != nil {
			return err
		}
		user, err := s.reputation.RecalculateRating(ctx, tx.stores, userID)
		if err != nil {
			return err
		}
		if err := tx.emit(ctx, userReputationEvent(EventUserRatingRecalculated, user)); err != nil {
			return err
		}
		reputation = newUserReputation(user)
		return nil
	})
	if err != nil {
		return UserReputation{}, err
	}
	fields["average_rating"] = reputation.AverageRating
	return reputation, nil
}

func (s *Service) GetReputation(ctx context.Context, userID int64) (reputation UserReputation, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": userID}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_reputation", err, fields)
	}()

	if err = requireUserID(userID); err != nil {
		return UserReputation{}, err
	}

	fetch := func(ctx context.Context) (UserReputation, error) {
		var out UserReputation
		err := s.withinTx(ctx, func(ctx context.Context, tx *txScope) error {
			user, err := tx.user(ctx, userID)
			if err != nil {
				return err
			}
			out = newUserReputation(user)
			return nil
		})
		return out, err
	}

	if s.reputationCache == nil {
		reputation, err = fetch(ctx)
		return reputation, err
	}
	reputation, err = s.reputationCache.Get(ctx, userID, fetch)
	if err != nil {
		return UserReputation{}, s.mapError(err)
	}
	return reputation, nil
}
