package core

import (
	"context"
	"fmt"
)

// RankForExchangeCount maps a completed-exchange count onto its tier.
func RankForExchangeCount(count int) Rank {
	switch {
	case count >= GoldRankThreshold:
		return RankGold
	case count >= SilverRankThreshold:
		return RankSilver
	default:
		return RankBronze
	}
}

// AverageRating is the arithmetic mean of ratings, or 0 when there are none.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	total := 0
	for _, rating := range ratings {
		total += rating
	}
	return float64(total) / float64(len(ratings))
}

// ReputationUpdater owns every write to the derived reputation fields. It
// always runs against the stores of the caller's transaction.
type ReputationUpdater struct{}

// ApplyCompletion records a completed exchange for both participants and
// withdraws both books from circulation.
func (ReputationUpdater) ApplyCompletion(ctx context.Context, stores Stores, exchange Exchange) ([]User, error) {
	if exchange.Status != ExchangeStatusCompleted {
		return nil, fmt.Errorf("core: reputation update requires a completed exchange, got %s", exchange.Status)
	}

	updated := make([]User, 0, 2)
	for _, userID := range []int64{exchange.User1ID, exchange.User2ID} {
		if _, err := stores.Users().IncrementExchangeCount(ctx, userID); err != nil {
			return nil, err
		}
		user, err := stores.Users().UpdateRank(ctx, userID)
		if err != nil {
			return nil, err
		}
		updated = append(updated, user)
	}

	for _, bookID := range []int64{exchange.Book1ID, exchange.Book2ID} {
		if err := stores.Books().MarkTraded(ctx, bookID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// RecalculateRating recomputes the user's average rating from the ratings on
// file. Rank is recomputed alongside it so both derived fields stay in step.
func (ReputationUpdater) RecalculateRating(ctx context.Context, stores Stores, userID int64) (User, error) {
	ratings, err := stores.Ratings().RatingsForUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if err := stores.Users().SetAverageRating(ctx, userID, AverageRating(ratings)); err != nil {
		return User{}, err
	}
	return stores.Users().UpdateRank(ctx, userID)
}

// reputationCacheHook drops cached reputations once a change has committed.
type reputationCacheHook struct {
	cache ReputationCache
}

func (reputationCacheHook) Name() string { return "reputation_cache_invalidation" }

func (h reputationCacheHook) OnEvent(ctx context.Context, event LifecycleEvent) error {
	if h.cache == nil {
		return nil
	}
	switch event.Name {
	case EventExchangeCompleted, EventUserRatingRecalculated:
		userIDs := int64Values(event.Payload[payloadUserIDs])
		if len(userIDs) == 0 {
			return nil
		}
		return h.cache.Invalidate(ctx, userIDs...)
	default:
		return nil
	}
}
