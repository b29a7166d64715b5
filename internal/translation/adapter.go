// Package translation wraps a machine-translation backend so that failures
// never surface to callers: on any backend problem the input is returned
// unchanged and the result is marked degraded.
package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"agri-advisor/internal/domain"
	"agri-advisor/internal/integrations/rediscache"
	"agri-advisor/internal/logger"
)

const defaultTimeout = 10 * time.Second

type Backend interface {
	Translate(ctx context.Context, text, target, source string) (string, error)
	Detect(ctx context.Context, text string) (string, error)
}

// Cache stores successful translations. A miss is found=false with nil error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Result is the outcome of a translation. Degraded is true when the backend
// failed and Text is the untranslated input.
type Result struct {
	Text     string
	Degraded bool
}

type Adapter struct {
	backend  Backend
	cache    Cache
	cacheTTL time.Duration
	timeout  time.Duration
}

type Option func(*Adapter)

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(a *Adapter) {
		a.cache = cache
		a.cacheTTL = ttl
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(backend Backend, opts ...Option) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("translation: backend must not be nil")
	}
	a := &Adapter{backend: backend, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Translate returns text in target. source == target and blank text are
// returned unchanged without calling the backend.
func (a *Adapter) Translate(ctx context.Context, text string, target, source domain.Language) Result {
	if source == target || strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}
	log := logger.FromContext(ctx).With(
		zap.String("source", string(source)),
		zap.String("target", string(target)),
	)

	key := cacheKey(text, target, source)
	if a.cache != nil {
		cached, found, err := a.cache.Get(ctx, key)
		if err != nil {
			log.Warn("translation cache read failed", zap.Error(err))
		} else if found {
			return Result{Text: cached}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	out, err := a.backend.Translate(callCtx, text, string(target), string(source))
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty translation")
	}
	if err != nil {
		log.Warn("translation failed, passing text through", zap.Error(err))
		return Result{Text: text, Degraded: true}
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, out, a.cacheTTL); err != nil {
			log.Warn("translation cache write failed", zap.Error(err))
		}
	}
	return Result{Text: out}
}

// DetectLanguage reports the supported language of text. ok is false when
// detection fails or the detected language is not supported.
func (a *Adapter) DetectLanguage(ctx context.Context, text string) (domain.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	code, err := a.backend.Detect(callCtx, text)
	if err != nil {
		logger.FromContext(ctx).Warn("language detection failed", zap.Error(err))
		return "", false
	}
	return domain.ParseLanguage(code)
}

func cacheKey(text string, target, source domain.Language) string {
	sum := sha256.Sum256([]byte(text))
	return rediscache.GenerateKey(rediscache.TranslationKey, string(source), string(target), hex.EncodeToString(sum[:]))
}
