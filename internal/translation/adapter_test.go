package translation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agri-advisor/internal/domain"
)

type fakeBackend struct {
	out       string
	err       error
	detect    string
	detectErr error
	calls     int
	lastArgs  [3]string
	deadline  bool
}

func (f *fakeBackend) Translate(ctx context.Context, text, target, source string) (string, error) {
	f.calls++
	f.lastArgs = [3]string{text, target, source}
	_, f.deadline = ctx.Deadline()
	return f.out, f.err
}

func (f *fakeBackend) Detect(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.detect, f.detectErr
}

type memCache struct {
	data   map[string]string
	getErr error
	sets   int
}

func (m *memCache) Get(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.sets++
	m.data[key] = value
	return nil
}

func TestNew_NilBackend(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestTranslate_SameLanguageIsIdentity(t *testing.T) {
	for _, lang := range domain.SupportedLanguages() {
		b := &fakeBackend{err: errors.New("must not be called")}
		a, err := New(b)
		require.NoError(t, err)

		res := a.Translate(context.Background(), "ചോദ്യം", lang, lang)
		require.Equal(t, "ചോദ്യം", res.Text)
		require.False(t, res.Degraded)
		require.Zero(t, b.calls)
	}
}

func TestTranslate_BlankTextSkipsBackend(t *testing.T) {
	b := &fakeBackend{out: "x"}
	a, err := New(b)
	require.NoError(t, err)

	res := a.Translate(context.Background(), "   ", domain.LanguageEnglish, domain.LanguageHindi)
	require.Equal(t, "   ", res.Text)
	require.Zero(t, b.calls)
}

func TestTranslate_Success(t *testing.T) {
	b := &fakeBackend{out: "When should I sow?"}
	a, err := New(b, WithTimeout(time.Second))
	require.NoError(t, err)

	res := a.Translate(context.Background(), "എപ്പോൾ വിതയ്ക്കണം?", domain.LanguageEnglish, domain.LanguageMalayalam)
	require.Equal(t, "When should I sow?", res.Text)
	require.False(t, res.Degraded)
	require.Equal(t, [3]string{"എപ്പോൾ വിതയ്ക്കണം?", "en", "ml"}, b.lastArgs)
	require.True(t, b.deadline, "backend call carries a timeout")
}

func TestTranslate_FailurePassesThrough(t *testing.T) {
	b := &fakeBackend{err: errors.New("quota exceeded")}
	a, err := New(b)
	require.NoError(t, err)

	res := a.Translate(context.Background(), "नमस्ते", domain.LanguageEnglish, domain.LanguageHindi)
	require.Equal(t, "नमस्ते", res.Text)
	require.True(t, res.Degraded)
}

func TestTranslate_EmptyBackendOutputIsDegraded(t *testing.T) {
	b := &fakeBackend{out: "  "}
	a, err := New(b)
	require.NoError(t, err)

	res := a.Translate(context.Background(), "hello", domain.LanguageTamil, domain.LanguageEnglish)
	require.Equal(t, "hello", res.Text)
	require.True(t, res.Degraded)
}

func TestTranslate_CacheHitSkipsBackend(t *testing.T) {
	b := &fakeBackend{out: "from backend"}
	cache := &memCache{data: map[string]string{}}
	a, err := New(b, WithCache(cache, time.Hour))
	require.NoError(t, err)

	first := a.Translate(context.Background(), "hello", domain.LanguageTelugu, domain.LanguageEnglish)
	require.Equal(t, "from backend", first.Text)
	require.Equal(t, 1, cache.sets)

	second := a.Translate(context.Background(), "hello", domain.LanguageTelugu, domain.LanguageEnglish)
	require.Equal(t, "from backend", second.Text)
	require.Equal(t, 1, b.calls)
}

func TestTranslate_FailureIsNotCached(t *testing.T) {
	b := &fakeBackend{err: errors.New("down")}
	cache := &memCache{data: map[string]string{}}
	a, err := New(b, WithCache(cache, time.Hour))
	require.NoError(t, err)

	_ = a.Translate(context.Background(), "hello", domain.LanguageTelugu, domain.LanguageEnglish)
	require.Zero(t, cache.sets)
}

func TestTranslate_CacheErrorFallsBackToBackend(t *testing.T) {
	b := &fakeBackend{out: "ok"}
	cache := &memCache{data: map[string]string{}, getErr: errors.New("redis down")}
	a, err := New(b, WithCache(cache, time.Hour))
	require.NoError(t, err)

	res := a.Translate(context.Background(), "hello", domain.LanguageTamil, domain.LanguageEnglish)
	require.Equal(t, "ok", res.Text)
	require.False(t, res.Degraded)
	require.Equal(t, 1, b.calls)
}

func TestCacheKey_DependsOnDirection(t *testing.T) {
	k1 := cacheKey("x", domain.LanguageEnglish, domain.LanguageHindi)
	k2 := cacheKey("x", domain.LanguageHindi, domain.LanguageEnglish)
	require.NotEqual(t, k1, k2)
	require.Equal(t, k1, cacheKey("x", domain.LanguageEnglish, domain.LanguageHindi))
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		name   string
		b      *fakeBackend
		text   string
		want   domain.Language
		wantOK bool
	}{
		{"supported", &fakeBackend{detect: "ml"}, "നമസ്കാരം", domain.LanguageMalayalam, true},
		{"regional tag", &fakeBackend{detect: "hi-Latn"}, "namaste", domain.LanguageHindi, true},
		{"unsupported", &fakeBackend{detect: "fr"}, "bonjour", "", false},
		{"backend error", &fakeBackend{detectErr: errors.New("boom")}, "hi", "", false},
		{"blank", &fakeBackend{detect: "en"}, " ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := New(tc.b)
			require.NoError(t, err)
			got, ok := a.DetectLanguage(context.Background(), tc.text)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}
