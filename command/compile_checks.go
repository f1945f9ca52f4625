package command

import (
	"github.com/goliatone/go-bookswap/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[CreateMatchMessage]       = (*CreateMatchCommand)(nil)
	_ gocmd.Commander[CancelMatchMessage]       = (*CancelMatchCommand)(nil)
	_ gocmd.Commander[ProposeExchangeMessage]   = (*ProposeExchangeCommand)(nil)
	_ gocmd.Commander[ArrangeMeetupMessage]     = (*ArrangeMeetupCommand)(nil)
	_ gocmd.Commander[ConfirmExchangeMessage]   = (*ConfirmExchangeCommand)(nil)
	_ gocmd.Commander[CancelExchangeMessage]    = (*CancelExchangeCommand)(nil)
	_ gocmd.Commander[RecalculateRatingMessage] = (*RecalculateRatingCommand)(nil)

	_ MutatingService = (core.BookSwapService)(nil)
)
