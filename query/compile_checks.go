package query

import (
	"github.com/goliatone/go-bookswap/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetExchangeMessage, core.ExchangeView]           = (*GetExchangeQuery)(nil)
	_ gocmd.Querier[ListMatchesMessage, []core.MatchView]            = (*ListMatchesQuery)(nil)
	_ gocmd.Querier[ListActiveExchangesMessage, []core.ExchangeView] = (*ListActiveExchangesQuery)(nil)
	_ gocmd.Querier[ExchangeHistoryMessage, []core.ExchangeView]     = (*ExchangeHistoryQuery)(nil)
	_ gocmd.Querier[GetReputationMessage, core.UserReputation]       = (*GetReputationQuery)(nil)

	_ MatchReader      = (core.BookSwapService)(nil)
	_ ExchangeReader   = (core.BookSwapService)(nil)
	_ ReputationReader = (core.BookSwapService)(nil)
)
