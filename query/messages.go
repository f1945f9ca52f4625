package query

import "strings"

const (
	TypeGetExchange         = "bookswap.query.exchange.get"
	TypeListMatches         = "bookswap.query.match.list"
	TypeListActiveExchanges = "bookswap.query.exchange.active"
	TypeExchangeHistory     = "bookswap.query.exchange.history"
	TypeGetReputation       = "bookswap.query.reputation.get"
)

type GetExchangeMessage struct {
	UserID     int64
	ExchangeID string
}

func (GetExchangeMessage) Type() string { return TypeGetExchange }

func (m GetExchangeMessage) Validate() error {
	if err := validateUserID(m.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(m.ExchangeID) == "" {
		return queryValidationError("exchange_id", "exchange id is required")
	}
	return nil
}

type ListMatchesMessage struct {
	UserID int64
}

func (ListMatchesMessage) Type() string { return TypeListMatches }

func (m ListMatchesMessage) Validate() error { return validateUserID(m.UserID) }

type ListActiveExchangesMessage struct {
	UserID int64
}

func (ListActiveExchangesMessage) Type() string { return TypeListActiveExchanges }

func (m ListActiveExchangesMessage) Validate() error { return validateUserID(m.UserID) }

type ExchangeHistoryMessage struct {
	UserID int64
}

func (ExchangeHistoryMessage) Type() string { return TypeExchangeHistory }

func (m ExchangeHistoryMessage) Validate() error { return validateUserID(m.UserID) }

type GetReputationMessage struct {
	UserID int64
}

func (GetReputationMessage) Type() string { return TypeGetReputation }

func (m GetReputationMessage) Validate() error { return validateUserID(m.UserID) }

func validateUserID(userID int64) error {
	if userID <= 0 {
		return queryValidationError("user_id", "user id must be positive")
	}
	return nil
}
