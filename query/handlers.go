package query

import (
	"context"

	"github.com/goliatone/go-bookswap/core"
)

type MatchReader interface {
	ListMatches(ctx context.Context, userID int64) ([]core.MatchView, error)
}

type ExchangeReader interface {
	GetExchange(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error)
	ListActiveExchanges(ctx context.Context, userID int64) ([]core.ExchangeView, error)
	ExchangeHistory(ctx context.Context, userID int64) ([]core.ExchangeView, error)
}

type ReputationReader interface {
	GetReputation(ctx context.Context, userID int64) (core.UserReputation, error)
}

type GetExchangeQuery struct {
	reader ExchangeReader
}

func NewGetExchangeQuery(reader ExchangeReader) *GetExchangeQuery {
	return &GetExchangeQuery{reader: reader}
}

func (q *GetExchangeQuery) Query(ctx context.Context, msg GetExchangeMessage) (core.ExchangeView, error) {
	if q == nil || q.reader == nil {
		return core.ExchangeView{}, queryDependencyError("query: exchange reader is required")
	}
	return q.reader.GetExchange(ctx, msg.UserID, msg.ExchangeID)
}

type ListMatchesQuery struct {
	reader MatchReader
}

func NewListMatchesQuery(reader MatchReader) *ListMatchesQuery {
	return &ListMatchesQuery{reader: reader}
}

func (q *ListMatchesQuery) Query(ctx context.Context, msg ListMatchesMessage) ([]core.MatchView, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: match reader is required")
	}
	return q.reader.ListMatches(ctx, msg.UserID)
}

type ListActiveExchangesQuery struct {
	reader ExchangeReader
}

func NewListActiveExchangesQuery(reader ExchangeReader) *ListActiveExchangesQuery {
	return &ListActiveExchangesQuery{reader: reader}
}

func (q *ListActiveExchangesQuery) Query(ctx context.Context, msg ListActiveExchangesMessage) ([]core.ExchangeView, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: exchange reader is required")
	}
	return q.reader.ListActiveExchanges(ctx, msg.UserID)
}

type ExchangeHistoryQuery struct {
	reader ExchangeReader
}

func NewExchangeHistoryQuery(reader ExchangeReader) *ExchangeHistoryQuery {
	return &ExchangeHistoryQuery{reader: reader}
}

func (q *ExchangeHistoryQuery) Query(ctx context.Context, msg ExchangeHistoryMessage) ([]core.ExchangeView, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: exchange reader is required")
	}
	return q.reader.ExchangeHistory(ctx, msg.UserID)
}

type GetReputationQuery struct {
	reader ReputationReader
}

func NewGetReputationQuery(reader ReputationReader) *GetReputationQuery {
	return &GetReputationQuery{reader: reader}
}

func (q *GetReputationQuery) Query(ctx context.Context, msg GetReputationMessage) (core.UserReputation, error) {
	if q == nil || q.reader == nil {
		return core.UserReputation{}, queryDependencyError("query: reputation reader is required")
	}
	return q.reader.GetReputation(ctx, msg.UserID)
}
