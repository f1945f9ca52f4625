package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-bookswap/core"
)

func TestGetExchangeQuery_DelegatesToReader(t *testing.T) {
	reader := stubExchangeReader{
		getFn: func(_ context.Context, userID int64, exchangeID string) (core.ExchangeView, error) {
			if userID != 1 || exchangeID != "ex_1" {
				t.Fatalf("unexpected get payload: %d %q", userID, exchangeID)
			}
			return core.ExchangeView{ID: exchangeID, Status: core.ExchangeStatusProposed}, nil
		},
	}
	view, err := NewGetExchangeQuery(reader).Query(context.Background(), GetExchangeMessage{UserID: 1, ExchangeID: "ex_1"})
	if err != nil {
		t.Fatalf("query exchange: %v", err)
	}
	if view.ID != "ex_1" {
		t.Fatalf("unexpected exchange view: %#v", view)
	}
}

func TestExchangeListQueries_DelegateToReader(t *testing.T) {
	reader := stubExchangeReader{
		activeFn: func(_ context.Context, userID int64) ([]core.ExchangeView, error) {
			return []core.ExchangeView{{ID: "ex_active", Status: core.ExchangeStatusMeetupArranged}}, nil
		},
		historyFn: func(_ context.Context, userID int64) ([]core.ExchangeView, error) {
			return []core.ExchangeView{{ID: "ex_done", Status: core.ExchangeStatusCompleted}}, nil
		},
	}

	active, err := NewListActiveExchangesQuery(reader).Query(context.Background(), ListActiveExchangesMessage{UserID: 1})
	if err != nil || len(active) != 1 || active[0].ID != "ex_active" {
		t.Fatalf("unexpected active exchanges: %#v %v", active, err)
	}
	history, err := NewExchangeHistoryQuery(reader).Query(context.Background(), ExchangeHistoryMessage{UserID: 1})
	if err != nil || len(history) != 1 || history[0].ID != "ex_done" {
		t.Fatalf("unexpected exchange history: %#v %v", history, err)
	}
}

func TestListMatchesQuery_PropagatesNotFound(t *testing.T) {
	reader := matchReaderFunc(func(_ context.Context, userID int64) ([]core.MatchView, error) {
		return nil, core.NotFoundError("user", userID)
	})
	_, err := NewListMatchesQuery(reader).Query(context.Background(), ListMatchesMessage{UserID: 9})
	if core.KindOf(err) != core.ErrorNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetReputationQuery_DelegatesToReader(t *testing.T) {
	reader := reputationReaderFunc(func(_ context.Context, userID int64) (core.UserReputation, error) {
		return core.UserReputation{UserID: userID, ExchangeCount: 20, Rank: core.RankSilver}, nil
	})
	rep, err := NewGetReputationQuery(reader).Query(context.Background(), GetReputationMessage{UserID: 4})
	if err != nil {
		t.Fatalf("query reputation: %v", err)
	}
	if rep.UserID != 4 || rep.Rank != core.RankSilver {
		t.Fatalf("unexpected reputation: %#v", rep)
	}
}

func TestQueryMessages_ValidateUserID(t *testing.T) {
	msgs := []interface{ Validate() error }{
		ListMatchesMessage{},
		ListActiveExchangesMessage{UserID: -1},
		ExchangeHistoryMessage{},
		GetReputationMessage{},
		GetExchangeMessage{ExchangeID: "ex_1"},
	}
	for _, msg := range msgs {
		if err := msg.Validate(); core.KindOf(err) != core.ErrorValidation {
			t.Fatalf("expected validation error for %T, got %v", msg, err)
		}
	}
}

type stubExchangeReader struct {
	getFn     func(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error)
	activeFn  func(ctx context.Context, userID int64) ([]core.ExchangeView, error)
	historyFn func(ctx context.Context, userID int64) ([]core.ExchangeView, error)
}

func (s stubExchangeReader) GetExchange(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error) {
	if s.getFn == nil {
		return core.ExchangeView{}, nil
	}
	return s.getFn(ctx, userID, exchangeID)
}

func (s stubExchangeReader) ListActiveExchanges(ctx context.Context, userID int64) ([]core.ExchangeView, error) {
	if s.activeFn == nil {
		return nil, nil
	}
	return s.activeFn(ctx, userID)
}

func (s stubExchangeReader) ExchangeHistory(ctx context.Context, userID int64) ([]core.ExchangeView, error) {
	if s.historyFn == nil {
		return nil, nil
	}
	return s.historyFn(ctx, userID)
}

type matchReaderFunc func(ctx context.Context, userID int64) ([]core.MatchView, error)

func (f matchReaderFunc) ListMatches(ctx context.Context, userID int64) ([]core.MatchView, error) {
	return f(ctx, userID)
}

type reputationReaderFunc func(ctx context.Context, userID int64) (core.UserReputation, error)

func (f reputationReaderFunc) GetReputation(ctx context.Context, userID int64) (core.UserReputation, error) {
	return f(ctx, userID)
}
