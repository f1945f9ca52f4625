package core

import (
	"context"
	"testing"
	"time"
)

// TestTradeWalkthrough follows one trade from mutual interest to completion:
// user 1 owns book 10 and wants book 20 from user 2, who wants book 10 back.
func TestTradeWalkthrough(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.backend.addUser(1, "ana", 49)

	wantY := f.mustCreateMatch(t, 1, 20)
	wantX := f.mustCreateMatch(t, 2, 10)

	exchange, err := f.service.ProposeExchange(ctx, 1, wantY.ID)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if exchange.Status != ExchangeStatusProposed || exchange.Book1.ID != 10 || exchange.Book2.ID != 20 {
		t.Fatalf("unexpected proposed exchange: %+v", exchange)
	}
	if f.backend.match(wantY.ID).Active || f.backend.match(wantX.ID).Active {
		t.Fatalf("expected both matches inactive")
	}

	if _, err := f.service.ProposeExchange(ctx, 1, wantY.ID); !IsConflict(err) && !IsNotFound(err) {
		t.Fatalf("second propose: expected conflict or not found, got %v", err)
	}

	_, err = f.service.ArrangeMeetup(ctx, 1, exchange.ID, MeetupDetails{
		At:       f.clock.Peek().Add(-time.Minute),
		Location: "Station",
	})
	if !IsValidation(err) {
		t.Fatalf("past meetup: expected validation error, got %v", err)
	}
	arranged, err := f.service.ArrangeMeetup(ctx, 1, exchange.ID, MeetupDetails{
		At:       f.clock.Peek().Add(72 * time.Hour),
		Location: "Station",
	})
	if err != nil {
		t.Fatalf("arrange: %v", err)
	}
	if arranged.Status != ExchangeStatusMeetupArranged {
		t.Fatalf("expected MEETUP_ARRANGED, got %s", arranged.Status)
	}

	half, err := f.service.ConfirmExchange(ctx, 1, exchange.ID)
	if err != nil {
		t.Fatalf("confirm user 1: %v", err)
	}
	if half.Status != ExchangeStatusMeetupArranged || !half.User1Confirmed || half.User2Confirmed {
		t.Fatalf("unexpected half-confirmed exchange: %+v", half)
	}

	done, err := f.service.ConfirmExchange(ctx, 2, exchange.ID)
	if err != nil {
		t.Fatalf("confirm user 2: %v", err)
	}
	if done.Status != ExchangeStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.Status)
	}
	if user := f.backend.user(1); user.ExchangeCount != 50 || user.Rank != RankGold {
		t.Fatalf("expected user 1 promoted to GOLD at 50, got %+v", user)
	}
	if user := f.backend.user(2); user.ExchangeCount != 1 || user.Rank != RankBronze {
		t.Fatalf("unexpected user 2 reputation: %+v", user)
	}
	if f.backend.book(10).Available || f.backend.book(20).Available {
		t.Fatalf("expected both books withdrawn")
	}

	if _, err := f.service.ConfirmExchange(ctx, 2, exchange.ID); !IsInvalidTransition(err) {
		t.Fatalf("confirm after completion: expected invalid transition, got %v", err)
	}
	if f.backend.user(2).ExchangeCount != 1 {
		t.Fatalf("reputation applied twice")
	}

	if _, err := f.service.CreateMatch(ctx, 3, 20); !IsConflict(err) {
		t.Fatalf("match on traded book: expected conflict, got %v", err)
	}
}
