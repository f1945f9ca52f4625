package query

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-bookswap/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetExchangeMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetExchangeMessage{UserID: 1}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorValidation {
		t.Fatalf("expected %q text code, got %q", core.ErrorValidation, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
}

func TestGetReputationQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *GetReputationQuery
	_, err := q.Query(context.Background(), GetReputationMessage{UserID: 1})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorInternal, rich.TextCode)
	}
}
