package sqlstore

import "github.com/goliatone/go-bookswap/core"

var (
	_ core.Transactor      = (*Transactor)(nil)
	_ core.Stores          = (*txStores)(nil)
	_ core.UserStore       = (*UserStore)(nil)
	_ core.BookStore       = (*BookStore)(nil)
	_ core.MatchStore      = (*MatchStore)(nil)
	_ core.ExchangeStore   = (*ExchangeStore)(nil)
	_ core.RatingStore     = (*RatingStore)(nil)
	_ core.OutboxStore     = (*OutboxStore)(nil)
	_ core.ReputationCache = (*ReputationCache)(nil)
)
