package core

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	payloadUserIDs    = "user_ids"
	payloadBookIDs    = "book_ids"
	payloadStatus     = "status"
	payloadMatchIDs   = "match_ids"
	payloadMeetupAt   = "meetup_at"
	payloadLocation   = "meetup_location"
	payloadRank       = "rank"
	payloadRating     = "average_rating"
	payloadExchangeNo = "exchange_count"
)

func matchEvent(name string, actor int64, match Match) LifecycleEvent {
	return LifecycleEvent{
		Name:        name,
		SubjectType: LifecycleSubjectTypeMatch,
		SubjectID:   match.ID,
		ActorID:     actor,
		Payload: map[string]any{
			payloadUserIDs:  []int64{match.UserID},
			payloadBookIDs:  []int64{match.BookID},
			payloadMatchIDs: []string{match.ID},
		},
	}
}

func exchangeEvent(name string, actor int64, exchange Exchange) LifecycleEvent {
	payload := map[string]any{
		payloadUserIDs: []int64{exchange.User1ID, exchange.User2ID},
		payloadBookIDs: []int64{exchange.Book1ID, exchange.Book2ID},
		payloadStatus:  string(exchange.Status),
	}
	if exchange.MeetupAt != nil {
		payload[payloadMeetupAt] = exchange.MeetupAt.UTC()
		payload[payloadLocation] = exchange.MeetupLocation
	}
	return LifecycleEvent{
		Name:        name,
		SubjectType: LifecycleSubjectTypeExchange,
		SubjectID:   exchange.ID,
		ActorID:     actor,
		Payload:     payload,
	}
}

func userReputationEvent(name string, user User) LifecycleEvent {
	return LifecycleEvent{
		Name:        name,
		SubjectType: LifecycleSubjectTypeUser,
		SubjectID:   strconv.FormatInt(user.ID, 10),
		Payload: map[string]any{
			payloadUserIDs:    []int64{user.ID},
			payloadRank:       string(user.Rank),
			payloadRating:     user.AverageRating,
			payloadExchangeNo: user.ExchangeCount,
		},
	}
}

// int64Values reads an id list from an event payload. Payloads that went
// through a JSON round trip carry []any of float64 or strings.
func int64Values(raw any) []int64 {
	switch typed := raw.(type) {
	case []int64:
		return append([]int64(nil), typed...)
	case []any:
		out := make([]int64, 0, len(typed))
		for _, item := range typed {
			if value, ok := int64Value(item); ok {
				out = append(out, value)
			}
		}
		return out
	default:
		if value, ok := int64Value(raw); ok {
			return []int64{value}
		}
		return nil
	}
}

func int64Value(raw any) (int64, bool) {
	switch typed := raw.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed, err == nil
	case fmt.Stringer:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed.String()), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
