package audio

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"agri-advisor/internal/domain"
	"agri-advisor/internal/logger"
)

const defaultTimeout = 10 * time.Second

type Backend interface {
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
	Speech(ctx context.Context, text string) ([]byte, error)
}

// Adapter converts between speech and text. It never returns errors; a
// failed conversion is reported as ok=false.
type Adapter struct {
	backend Backend
	timeout time.Duration
}

func New(backend Backend, timeout time.Duration) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("audio: backend must not be nil")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{backend: backend, timeout: timeout}, nil
}

func (a *Adapter) SpeechToText(ctx context.Context, audio []byte, filename string, language domain.Language) (string, bool) {
	if len(audio) == 0 {
		return "", false
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.backend.Transcribe(callCtx, audio, filename, string(language))
	if err != nil {
		logger.FromContext(ctx).Warn("speech to text failed", zap.Error(err), zap.Int("audio_bytes", len(audio)))
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

func (a *Adapter) TextToSpeech(ctx context.Context, text string, language domain.Language) ([]byte, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.backend.Speech(callCtx, text)
	if err != nil {
		logger.FromContext(ctx).Warn("text to speech failed", zap.Error(err), zap.String("language", string(language)))
		return nil, false
	}
	return out, len(out) > 0
}
