package command

import (
	"context"

	"github.com/goliatone/go-bookswap/core"
	gocmd "github.com/goliatone/go-command"
)

// MutatingService is the write side of the bookswap core.
type MutatingService interface {
	CreateMatch(ctx context.Context, userID int64, bookID int64) (core.MatchView, error)
	CancelMatch(ctx context.Context, userID int64, matchID string) error
	ProposeExchange(ctx context.Context, userID int64, matchID string) (core.ExchangeView, error)
	ArrangeMeetup(ctx context.Context, userID int64, exchangeID string, details core.MeetupDetails) (core.ExchangeView, error)
	ConfirmExchange(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error)
	CancelExchange(ctx context.Context, userID int64, exchangeID string) (core.ExchangeView, error)
	RecalculateRating(ctx context.Context, userID int64) (core.UserReputation, error)
}

type CreateMatchCommand struct {
	service MutatingService
}

func NewCreateMatchCommand(service MutatingService) *CreateMatchCommand {
	return &CreateMatchCommand{service: service}
}

func (c *CreateMatchCommand) Execute(ctx context.Context, msg CreateMatchMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: match service is required")
	}
	out, err := c.service.CreateMatch(ctx, msg.UserID, msg.BookID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelMatchCommand struct {
	service MutatingService
}

func NewCancelMatchCommand(service MutatingService) *CancelMatchCommand {
	return &CancelMatchCommand{service: service}
}

func (c *CancelMatchCommand) Execute(ctx context.Context, msg CancelMatchMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: match service is required")
	}
	return c.service.CancelMatch(ctx, msg.UserID, msg.MatchID)
}

type ProposeExchangeCommand struct {
	service MutatingService
}

func NewProposeExchangeCommand(service MutatingService) *ProposeExchangeCommand {
	return &ProposeExchangeCommand{service: service}
}

func (c *ProposeExchangeCommand) Execute(ctx context.Context, msg ProposeExchangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ProposeExchange(ctx, msg.UserID, msg.MatchID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ArrangeMeetupCommand struct {
	service MutatingService
}

func NewArrangeMeetupCommand(service MutatingService) *ArrangeMeetupCommand {
	return &ArrangeMeetupCommand{service: service}
}

func (c *ArrangeMeetupCommand) Execute(ctx context.Context, msg ArrangeMeetupMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ArrangeMeetup(ctx, msg.UserID, msg.ExchangeID, core.MeetupDetails{
		At:       msg.At,
		Location: msg.Location,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConfirmExchangeCommand struct {
	service MutatingService
}

func NewConfirmExchangeCommand(service MutatingService) *ConfirmExchangeCommand {
	return &ConfirmExchangeCommand{service: service}
}

func (c *ConfirmExchangeCommand) Execute(ctx context.Context, msg ConfirmExchangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ConfirmExchange(ctx, msg.UserID, msg.ExchangeID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelExchangeCommand struct {
	service MutatingService
}

func NewCancelExchangeCommand(service MutatingService) *CancelExchangeCommand {
	return &CancelExchangeCommand{service: service}
}

func (c *CancelExchangeCommand) Execute(ctx context.Context, msg CancelExchangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.CancelExchange(ctx, msg.UserID, msg.ExchangeID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RecalculateRatingCommand struct {
	service MutatingService
}

func NewRecalculateRatingCommand(service MutatingService) *RecalculateRatingCommand {
	return &RecalculateRatingCommand{service: service}
}

func (c *RecalculateRatingCommand) Execute(ctx context.Context, msg RecalculateRatingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reputation service is required")
	}
	out, err := c.service.RecalculateRating(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
