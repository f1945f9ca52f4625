package bookswap

import (
	"fmt"

	bookswapcommand "github.com/goliatone/go-bookswap/command"
	bookswapquery "github.com/goliatone/go-bookswap/query"
)

type CommandQueryService interface {
	bookswapcommand.MutatingService
	bookswapquery.MatchReader
	bookswapquery.ExchangeReader
	bookswapquery.ReputationReader
}

type Commands struct {
	CreateMatch       *bookswapcommand.CreateMatchCommand
	CancelMatch       *bookswapcommand.CancelMatchCommand
	ProposeExchange   *bookswapcommand.ProposeExchangeCommand
	ArrangeMeetup     *bookswapcommand.ArrangeMeetupCommand
	ConfirmExchange   *bookswapcommand.ConfirmExchangeCommand
	CancelExchange    *bookswapcommand.CancelExchangeCommand
	RecalculateRating *bookswapcommand.RecalculateRatingCommand
}

type Queries struct {
	GetExchange         *bookswapquery.GetExchangeQuery
	ListMatches         *bookswapquery.ListMatchesQuery
	ListActiveExchanges *bookswapquery.ListActiveExchangesQuery
	ExchangeHistory     *bookswapquery.ExchangeHistoryQuery
	GetReputation       *bookswapquery.GetReputationQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	reputationReader bookswapquery.ReputationReader
}

// WithReputationReader routes reputation queries to reader instead of the
// service, e.g. a read replica.
func WithReputationReader(reader bookswapquery.ReputationReader) FacadeOption {
	return func(options *facadeOptions) {
		options.reputationReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("bookswap: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reputation := cfg.reputationReader
	if reputation == nil {
		reputation = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateMatch:       bookswapcommand.NewCreateMatchCommand(service),
		CancelMatch:       bookswapcommand.NewCancelMatchCommand(service),
		ProposeExchange:   bookswapcommand.NewProposeExchangeCommand(service),
		ArrangeMeetup:     bookswapcommand.NewArrangeMeetupCommand(service),
		ConfirmExchange:   bookswapcommand.NewConfirmExchangeCommand(service),
		CancelExchange:    bookswapcommand.NewCancelExchangeCommand(service),
		RecalculateRating: bookswapcommand.NewRecalculateRatingCommand(service),
	}
	facade.queries = Queries{
		GetExchange:         bookswapquery.NewGetExchangeQuery(service),
		ListMatches:         bookswapquery.NewListMatchesQuery(service),
		ListActiveExchanges: bookswapquery.NewListActiveExchangesQuery(service),
		ExchangeHistory:     bookswapquery.NewExchangeHistoryQuery(service),
		GetReputation:       bookswapquery.NewGetReputationQuery(reputation),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
