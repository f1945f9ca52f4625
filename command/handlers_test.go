package command

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-bookswap/core"
	gocmd "github.com/goliatone/go-command"
)

func TestCreateMatchCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.MatchView{ID: "m_1", UserID: 1, Active: true, HasReciprocal: true}
	called := false

	svc := stubMutatingService{
		createMatchFn: func(_ context.Context, userID int64, bookID int64) (core.MatchView, error) {
			called = true
			if userID != 1 || bookID != 20 {
				t.Fatalf("unexpected create match payload: %d %d", userID, bookID)
			}
			return expected, nil
		},
	}

	cmd := NewCreateMatchCommand(svc)
	collector := gocmd.NewResult[core.MatchView]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, CreateMatchMessage{UserID: 1, BookID: 20}); err != nil {
		t.Fatalf("execute create match: %v", err)
	}
	if !called {
		t.Fatalf("expected create match invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != expected.ID || !result.HasReciprocal {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("cancel match", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			cancelMatchFn: func(_ context.Context, userID int64, matchID string) error {
				called = true
				if userID != 1 || matchID != "m_1" {
					t.Fatalf("unexpected cancel payload: %d %q", userID, matchID)
				}
				return nil
			},
		}
		if err := NewCancelMatchCommand(svc).Execute(context.Background(), CancelMatchMessage{UserID: 1, MatchID: "m_1"}); err != nil {
			t.Fatalf("execute cancel match: %v", err)
		}
		if !called {
			t.Fatalf("expected cancel match invocation")
		}
	})

	t.Run("propose exchange", func(t *testing.T) {
		svc := stubMutatingService{
			proposeFn: func(_ context.Context, userID int64, matchID string) (core.ExchangeView, error) {
				if userID != 1 || matchID != "m_1" {
					t.Fatalf("unexpected propose payload: %d %q", userID, matchID)
				}
				return core.ExchangeView{ID: "ex_1", Status: core.ExchangeStatusProposed}, nil
			},
		}
		collector := gocmd.NewResult[core.ExchangeView]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewProposeExchangeCommand(svc).Execute(ctx, ProposeExchangeMessage{UserID: 1, MatchID: "m_1"}); err != nil {
			t.Fatalf("execute propose: %v", err)
		}
		result, ok := collector.Load()
		if !ok || result.ID != "ex_1" {
			t.Fatalf("expected stored exchange, got %#v", result)
		}
	})

	t.Run("arrange meetup", func(t *testing.T) {
		at := time.Date(2026, 11, 1, 15, 0, 0, 0, time.UTC)
		svc := stubMutatingService{
			arrangeFn: func(_ context.Context, userID int64, exchangeID string, details core.MeetupDetails) (core.ExchangeView, error) {
				if userID != 2 || exchangeID != "ex_1" {
					t.Fatalf("unexpected arrange payload: %d %q", userID, exchangeID)
				}
				if !details.At.Equal(at) || details.Location != "Central Library" {
					t.Fatalf("unexpected meetup details: %#v", details)
				}
				return core.ExchangeView{ID: exchangeID, Status: core.ExchangeStatusMeetupArranged}, nil
			},
		}
		msg := ArrangeMeetupMessage{UserID: 2, ExchangeID: "ex_1", At: at, Location: "Central Library"}
		if err := NewArrangeMeetupCommand(svc).Execute(context.Background(), msg); err != nil {
			t.Fatalf("execute arrange meetup: %v", err)
		}
	})

	t.Run("confirm exchange", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			confirmFn: func(_ context.Context, userID int64, exchangeID string) (core.ExchangeView, error) {
				called = true
				return core.ExchangeView{ID: exchangeID, Status: core.ExchangeStatusCompleted}, nil
			},
		}
		if err := NewConfirmExchangeCommand(svc).Execute(context.Background(), ConfirmExchangeMessage{UserID: 1, ExchangeID: "ex_1"}); err != nil {
			t.Fatalf("execute confirm: %v", err)
		}
		if !called {
			t.Fatalf("expected confirm invocation")
		}
	})

	t.Run("cancel exchange", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			cancelFn: func(_ context.Context, userID int64, exchangeID string) (core.ExchangeView, error) {
				called = true
				return core.ExchangeView{ID: exchangeID, Status: core.ExchangeStatusCancelled}, nil
			},
		}
		if err := NewCancelExchangeCommand(svc).Execute(context.Background(), CancelExchangeMessage{UserID: 1, ExchangeID: "ex_1"}); err != nil {
			t.Fatalf("execute cancel exchange: %v", err)
		}
		if !called {
			t.Fatalf("expected cancel exchange invocation")
		}
	})

	t.Run("recalculate rating", func(t *testing.T) {
		svc := stubMutatingService{
			recalculateFn: func(_ context.Context, userID int64) (core.UserReputation, error) {
				return core.UserReputation{UserID: userID, AverageRating: 4.5, Rank: core.RankBronze}, nil
			},
		}
		collector := gocmd.NewResult[core.UserReputation]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewRecalculateRatingCommand(svc).Execute(ctx, RecalculateRatingMessage{UserID: 3}); err != nil {
			t.Fatalf("execute recalculate: %v", err)
		}
		result, ok := collector.Load()
		if !ok || result.UserID != 3 || result.AverageRating != 4.5 {
			t.Fatalf("unexpected reputation result: %#v", result)
		}
	})
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	svc := stubMutatingService{
		proposeFn: func(context.Context, int64, string) (core.ExchangeView, error) {
			return core.ExchangeView{}, core.ConflictError("no reciprocal match")
		},
	}
	collector := gocmd.NewResult[core.ExchangeView]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewProposeExchangeCommand(svc).Execute(ctx, ProposeExchangeMessage{UserID: 1, MatchID: "m_1"})
	if core.KindOf(err) != core.ErrorConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no result on failure")
	}
}

func TestMessages_ValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
	}{
		{"create match missing book", CreateMatchMessage{UserID: 1}},
		{"create match missing user", CreateMatchMessage{BookID: 1}},
		{"cancel match missing id", CancelMatchMessage{UserID: 1, MatchID: "  "}},
		{"propose missing match", ProposeExchangeMessage{UserID: 1}},
		{"meetup missing location", ArrangeMeetupMessage{UserID: 1, ExchangeID: "ex", At: time.Now()}},
		{"confirm missing exchange", ConfirmExchangeMessage{UserID: 1}},
		{"cancel missing user", CancelExchangeMessage{ExchangeID: "ex"}},
		{"recalculate missing user", RecalculateRatingMessage{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.msg.Validate(); core.KindOf(err) != core.ErrorValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	valid := ArrangeMeetupMessage{UserID: 1, ExchangeID: "ex", At: time.Now(), Location: "Cafe"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid meetup message, got %v", err)
	}
}

type stubMutatingService struct {
	createMatchFn func(ctx context.Context, userID int64, bookID int64) (core.MatchView, error)
	cancelMatchFn func(ctx context.Context, userID int64, matchID string) error
	proposeFn     func(ctx context.Context, userID int64, matchID string) (core.ExchangeView, error)
	arrangeFn     func(ctx context.Context, userID int64, exchangeID string, details core.MeetupDetails) (core.ExchangeView, error)
	confirmFn     func(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error)
	cancelFn      func(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error)
	recalculateFn func(ctx context.Context, userID int64) (core.UserReputation, error)
}

func (s stubMutatingService) CreateMatch(ctx context.Context, userID int64, bookID int64) (core.MatchView, error) {
	if s.createMatchFn == nil {
		return core.MatchView{}, nil
	}
	return s.createMatchFn(ctx, userID, bookID)
}

func (s stubMutatingService) CancelMatch(ctx context.Context, userID int64, matchID string) error {
	if s.cancelMatchFn == nil {
		return nil
	}
	return s.cancelMatchFn(ctx, userID, matchID)
}

func (s stubMutatingService) ProposeExchange(ctx context.Context, userID int64, matchID string) (core.ExchangeView, error) {
	if s.proposeFn == nil {
		return core.ExchangeView{}, nil
	}
	return s.proposeFn(ctx, userID, matchID)
}

func (s stubMutatingService) ArrangeMeetup(ctx context.Context, userID int64, exchangeID string, details core.MeetupDetails) (core.ExchangeView, error) {
	if s.arrangeFn == nil {
		return core.ExchangeView{}, nil
	}
	return s.arrangeFn(ctx, userID, exchangeID, details)
}

func (s stubMutatingService) ConfirmExchange(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error) {
	if s.confirmFn == nil {
		return core.ExchangeView{}, nil
	}
	return s.confirmFn(ctx, userID, exchangeID)
}

func (s stubMutatingService) CancelExchange(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error) {
	if s.cancelFn == nil {
		return core.ExchangeView{}, nil
	}
	return s.cancelFn(ctx, userID, exchangeID)
}

func (s stubMutatingService) RecalculateRating(ctx context.Context, userID int64) (core.UserReputation, error) {
	if s.recalculateFn == nil {
		return core.UserReputation{}, nil
	}
	return s.recalculateFn(ctx, userID)
}
