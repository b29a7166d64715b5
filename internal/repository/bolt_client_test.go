package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agri-advisor/internal/domain"
)

func newBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "nested", "sessions.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenBoltStore_EmptyPath(t *testing.T) {
	_, err := OpenBoltStore("")
	require.Error(t, err)
}

func TestBoltGetOrCreate_Idempotent(t *testing.T) {
	s := newBoltStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "42", "s1", domain.LanguageTelugu)
	require.NoError(t, err)
	require.Empty(t, first.Exchanges)

	second, err := s.GetOrCreate(ctx, "42", "s1", domain.LanguageEnglish)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, domain.LanguageTelugu, second.Language)
	require.True(t, first.CreatedAt.Equal(second.CreatedAt))

	sums, err := s.ListSessions(ctx, "42", 0)
	require.NoError(t, err)
	require.Len(t, sums, 1)
}

func TestBoltAppend_PreservesOrder(t *testing.T) {
	s := newBoltStore(t)
	ctx := context.Background()
	tick := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	sess, err := s.GetOrCreate(ctx, "42", "s1", domain.LanguageEnglish)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		sess, err = s.Append(ctx, sess, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		require.NoError(t, err)
	}

	reloaded, err := s.GetOrCreate(ctx, "42", "s1", domain.LanguageEnglish)
	require.NoError(t, err)
	require.Len(t, reloaded.Exchanges, 3)
	for i, ex := range reloaded.Exchanges {
		require.Equal(t, fmt.Sprintf("q%d", i+1), ex.UserMessage)
		require.Equal(t, fmt.Sprintf("a%d", i+1), ex.BotResponse)
	}
	require.Equal(t, reloaded.Exchanges[2].Timestamp, reloaded.UpdatedAt)

	recent := reloaded.Recent(5)
	require.Len(t, recent, 3)
	require.Equal(t, "q1", recent[0].UserMessage)
}

func TestBoltAppend_ConcurrentAppendsAreKept(t *testing.T) {
	s := newBoltStore(t)
	ctx := context.Background()
	sess, err := s.GetOrCreate(ctx, "42", "s1", domain.LanguageEnglish)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, sess, fmt.Sprintf("q%d", i), "a")
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reloaded, err := s.GetOrCreate(ctx, "42", "s1", domain.LanguageEnglish)
	require.NoError(t, err)
	require.Len(t, reloaded.Exchanges, n)
}

func TestBoltAppend_UnknownSession(t *testing.T) {
	s := newBoltStore(t)
	_, err := s.Append(context.Background(), domain.Session{ID: "nope", UserID: "42"}, "q", "a")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBoltSessions_ScopedToUser(t *testing.T) {
	s := newBoltStore(t)
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "42", "shared", domain.LanguageEnglish)
	require.NoError(t, err)
	other, err := s.GetOrCreate(ctx, "420", "shared", domain.LanguageHindi)
	require.NoError(t, err)
	require.Equal(t, domain.LanguageHindi, other.Language)

	sums, err := s.ListSessions(ctx, "42", 0)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Equal(t, domain.LanguageEnglish, sums[0].Language)
}

func TestBoltListSessions_NewestFirst(t *testing.T) {
	s := newBoltStore(t)
	ctx := context.Background()
	tick := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	a, err := s.GetOrCreate(ctx, "42", "a", domain.LanguageEnglish)
	require.NoError(t, err)
	_, err = s.GetOrCreate(ctx, "42", "b", domain.LanguageEnglish)
	require.NoError(t, err)
	_, err = s.Append(ctx, a, "latest question", "answer")
	require.NoError(t, err)

	sums, err := s.ListSessions(ctx, "42", 20)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	require.Equal(t, "a", sums[0].ID)
	require.Equal(t, 1, sums[0].MessageCount)
	require.Equal(t, "latest question", sums[0].LastMessage)
	require.Equal(t, "b", sums[1].ID)
}
