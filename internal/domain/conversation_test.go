package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func exchange(msg string, at time.Time) Exchange {
	return Exchange{Timestamp: at, UserMessage: msg, BotResponse: "re: " + msg}
}

func TestRecent_ReturnsTailInOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Session{ID: "s1"}
	e1, e2, e3 := exchange("one", base), exchange("two", base.Add(time.Second)), exchange("three", base.Add(2*time.Second))

	s = s.WithExchange(e1).WithExchange(e2)
	require.Equal(t, []Exchange{e1, e2}, s.Recent(2))

	s = s.WithExchange(e3)
	require.Equal(t, []Exchange{e2, e3}, s.Recent(2))
}

func TestRecent_LongerWindowReturnsWholeLog(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Session{}.WithExchange(exchange("a", base)).WithExchange(exchange("b", base.Add(time.Minute)))

	got := s.Recent(5)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].UserMessage)
	require.Equal(t, "b", got[1].UserMessage)
}

func TestRecent_EmptyAndNonPositive(t *testing.T) {
	require.Empty(t, Session{}.Recent(3))
	s := Session{}.WithExchange(exchange("a", time.Now()))
	require.Empty(t, s.Recent(0))
}

func TestRecent_DoesNotAlias(t *testing.T) {
	s := Session{}.WithExchange(exchange("a", time.Now()))
	got := s.Recent(1)
	got[0].UserMessage = "changed"
	require.Equal(t, "a", s.Exchanges[0].UserMessage)
}

func TestWithExchange_LeavesOriginalUntouched(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	orig := Session{ID: "s1", UpdatedAt: at.Add(-time.Hour)}
	next := orig.WithExchange(exchange("hello", at))

	require.Empty(t, orig.Exchanges)
	require.Equal(t, at.Add(-time.Hour), orig.UpdatedAt)
	require.Len(t, next.Exchanges, 1)
	require.Equal(t, at, next.UpdatedAt)
}

func TestSummary(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s := Session{ID: "s1", Language: LanguageMalayalam, CreatedAt: at}.
		WithExchange(exchange("first", at)).
		WithExchange(exchange("second", at.Add(time.Minute)))

	sum := s.Summary()
	require.Equal(t, "s1", sum.ID)
	require.Equal(t, LanguageMalayalam, sum.Language)
	require.Equal(t, 2, sum.MessageCount)
	require.Equal(t, "second", sum.LastMessage)
	require.Equal(t, at.Add(time.Minute), sum.UpdatedAt)
}
