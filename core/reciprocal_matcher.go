package core

import (
	"context"
	"sort"
)

// ReciprocalMatcher answers the mutual-interest question for a match: does the
// owner of the wanted book hold an active match on a book the initiator owns.
type ReciprocalMatcher struct{}

// FindReciprocal returns the reciprocal match for initiating. Only books the
// initiator currently owns and still has available are candidates. When the
// counter-party wants several of them, the earliest match wins, ties broken by
// the smaller id. A missing reciprocal is reported with ok=false, not an error.
func (m ReciprocalMatcher) FindReciprocal(ctx context.Context, stores Stores, initiating Match) (Match, bool, error) {
	return m.reciprocal(ctx, stores, initiating, stores.Matches().FindReciprocalMatch)
}

// LockReciprocal is FindReciprocal for callers about to consume the match.
func (m ReciprocalMatcher) LockReciprocal(ctx context.Context, stores Stores, initiating Match) (Match, bool, error) {
	return m.reciprocal(ctx, stores, initiating, stores.Matches().LockReciprocalMatch)
}

type reciprocalLookup func(ctx context.Context, ownerUserID int64, bookIDs []int64) (Match, bool, error)

func (ReciprocalMatcher) reciprocal(ctx context.Context, stores Stores, initiating Match, lookup reciprocalLookup) (Match, bool, error) {
	wanted, err := stores.Books().GetBook(ctx, initiating.BookID)
	if err != nil {
		return Match{}, false, err
	}
	counterparty := wanted.OwnerID
	if counterparty == initiating.UserID {
		return Match{}, false, nil
	}

	owned, err := stores.Books().ListBooksByOwner(ctx, initiating.UserID)
	if err != nil {
		return Match{}, false, err
	}
	candidates := make([]int64, 0, len(owned))
	for _, book := range owned {
		if book.Available {
			candidates = append(candidates, book.ID)
		}
	}
	if len(candidates) == 0 {
		return Match{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	match, ok, err := lookup(ctx, counterparty, candidates)
	if err != nil || !ok {
		return Match{}, false, err
	}
	if !match.Active || match.UserID != counterparty {
		return Match{}, false, nil
	}
	return match, true, nil
}

func matchPrecedes(a Match, b Match) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortMatches orders matches by creation time, then id.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matchPrecedes(matches[i], matches[j])
	})
}
