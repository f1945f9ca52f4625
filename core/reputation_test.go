package core

import (
	"context"
	"sync"
	"testing"
)

func TestRankForExchangeCount(t *testing.T) {
	tests := []struct {
		count int
		want  Rank
	}{
		{0, RankBronze},
		{19, RankBronze},
		{20, RankSilver},
		{49, RankSilver},
		{50, RankGold},
		{120, RankGold},
	}
	for _, tc := range tests {
		if got := RankForExchangeCount(tc.count); got != tc.want {
			t.Fatalf("count %d: expected %s, got %s", tc.count, tc.want, got)
		}
	}
}

func TestAverageRating(t *testing.T) {
	if got := AverageRating(nil); got != 0 {
		t.Fatalf("expected 0 without ratings, got %v", got)
	}
	if got := AverageRating([]int{5, 4, 3}); got != 4 {
		t.Fatalf("expected 4, got %v", got)
	}
	if got := AverageRating([]int{5, 4}); got != 4.5 {
		t.Fatalf("expected 4.5, got %v", got)
	}
}

func TestCompletionPromotesRankFromPostIncrementCount(t *testing.T) {
	tests := []struct {
		name   string
		before int
		want   Rank
	}{
		{name: "bronze stays bronze", before: 18, want: RankBronze},
		{name: "bronze to silver", before: 19, want: RankSilver},
		{name: "silver stays silver", before: 48, want: RankSilver},
		{name: "silver to gold", before: 49, want: RankGold},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newTestFixture(t)
			f.backend.addUser(1, "ana", tc.before)
			exchange := f.mustArrangedExchange(t)
			for _, user := range []int64{1, 2} {
				if _, err := f.service.ConfirmExchange(context.Background(), user, exchange.ID); err != nil {
					t.Fatalf("confirm %d: %v", user, err)
				}
			}
			user := f.backend.user(1)
			if user.ExchangeCount != tc.before+1 {
				t.Fatalf("expected count %d, got %d", tc.before+1, user.ExchangeCount)
			}
			if user.Rank != tc.want {
				t.Fatalf("expected rank %s, got %s", tc.want, user.Rank)
			}
		})
	}
}

func TestRecalculateRating(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	reputation, err := f.service.RecalculateRating(ctx, 2)
	if err != nil {
		t.Fatalf("recalculate without ratings: %v", err)
	}
	if reputation.AverageRating != 0 || reputation.Rank != RankBronze {
		t.Fatalf("unexpected reputation: %+v", reputation)
	}

	f.backend.addRatings(2, 5, 3, 4)
	reputation, err = f.service.RecalculateRating(ctx, 2)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if reputation.AverageRating != 4 {
		t.Fatalf("expected average 4, got %v", reputation.AverageRating)
	}
	if f.backend.user(2).AverageRating != 4 {
		t.Fatalf("expected stored average 4")
	}
	if _, err := f.service.RecalculateRating(ctx, 99); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type mapReputationCache struct {
	mu          sync.Mutex
	values      map[int64]UserReputation
	fetches     int
	invalidated []int64
}

func (c *mapReputationCache) Get(ctx context.Context, userID int64, fetch func(context.Context) (UserReputation, error)) (UserReputation, error) {
	c.mu.Lock()
	if value, ok := c.values[userID]; ok {
		c.mu.Unlock()
		return value, nil
	}
	c.fetches++
	c.mu.Unlock()

	value, err := fetch(ctx)
	if err != nil {
		return UserReputation{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = map[int64]UserReputation{}
	}
	c.values[userID] = value
	return value, nil
}

func (c *mapReputationCache) Invalidate(_ context.Context, userIDs ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.values, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

func TestGetReputation_CachedAndInvalidatedOnCompletion(t *testing.T) {
	cache := &mapReputationCache{}
	f := newTestFixture(t, WithReputationCache(cache))
	ctx := context.Background()

	first, err := f.service.GetReputation(ctx, 1)
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if _, err := f.service.GetReputation(ctx, 1); err != nil {
		t.Fatalf("get cached reputation: %v", err)
	}
	if cache.fetches != 1 {
		t.Fatalf("expected a single fetch, got %d", cache.fetches)
	}
	if first.ExchangeCount != 0 {
		t.Fatalf("unexpected reputation: %+v", first)
	}

	exchange := f.mustArrangedExchange(t)
	for _, user := range []int64{1, 2} {
		if _, err := f.service.ConfirmExchange(ctx, user, exchange.ID); err != nil {
			t.Fatalf("confirm %d: %v", user, err)
		}
	}
	after, err := f.service.GetReputation(ctx, 1)
	if err != nil {
		t.Fatalf("get reputation after completion: %v", err)
	}
	if after.ExchangeCount != 1 {
		t.Fatalf("expected fresh reputation after invalidation, got %+v", after)
	}
	if cache.fetches != 2 {
		t.Fatalf("expected refetch after invalidation, got %d fetches", cache.fetches)
	}

	if _, err := f.service.GetReputation(ctx, 99); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveUser_CannotWriteDerivedReputation(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	err := f.backend.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		if err := stores.Users().SaveUser(ctx, User{ID: 9, Username: "dee", ExchangeCount: 3, Rank: RankGold, AverageRating: 4.9}); err != nil {
			return err
		}
		return stores.Users().SaveUser(ctx, User{ID: 2, Username: "benedict", Rank: RankGold, AverageRating: 5})
	})
	if err != nil {
		t.Fatalf("save users: %v", err)
	}

	reputation, err := f.service.GetReputation(ctx, 9)
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if reputation.ExchangeCount != 3 || reputation.Rank != RankBronze || reputation.AverageRating != 0 {
		t.Fatalf("expected derived bronze reputation with no rating, got %+v", reputation)
	}

	existing := f.backend.user(2)
	if existing.Username != "benedict" {
		t.Fatalf("expected username update, got %q", existing.Username)
	}
	if existing.Rank != RankBronze || existing.AverageRating != 0 {
		t.Fatalf("expected reputation untouched on update, got %+v", existing)
	}
}
