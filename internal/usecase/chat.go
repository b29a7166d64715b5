package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agri-advisor/internal/advisory"
	"agri-advisor/internal/domain"
	"agri-advisor/internal/logger"
	"agri-advisor/internal/translation"
)

const (
	defaultMaxMessage  = 2000
	maxSessionIDLength = 128
	// historyWindow is how many recent exchanges are handed to the generator.
	historyWindow = 5
	// maxListedSessions caps the session listing.
	maxListedSessions = 20
)

type UserLookup interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
}

type SessionStore interface {
	GetOrCreate(ctx context.Context, userID, sessionID string, language domain.Language) (domain.Session, error)
	Append(ctx context.Context, sess domain.Session, userMessage, botResponse string) (domain.Session, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error)
}

type Translator interface {
	Translate(ctx context.Context, text string, target, source domain.Language) translation.Result
}

type Generator interface {
	Generate(ctx context.Context, message string, gctx advisory.Context) advisory.Reply
}

type Speech interface {
	SpeechToText(ctx context.Context, audio []byte, filename string, language domain.Language) (string, bool)
	TextToSpeech(ctx context.Context, text string, language domain.Language) ([]byte, bool)
}

type ChatService struct {
	users         UserLookup
	store         SessionStore
	translator    Translator
	generator     Generator
	speech        Speech
	maxMessageLen int
}

type ChatInput struct {
	UserID    string
	Message   string
	Language  string
	SessionID string
}

type ChatOutput struct {
	Response  string
	SessionID string
	Language  domain.Language
	Timestamp time.Time
}

type AudioInput struct {
	UserID    string
	Audio     []byte
	Filename  string
	Language  string
	SessionID string
}

type AudioOutput struct {
	TextMessage  string
	TextResponse string
	// AudioResponse is base64-encoded mp3, empty when synthesis is unavailable.
	AudioResponse string
	SessionID     string
	Language      domain.Language
}

func NewChatService(users UserLookup, store SessionStore, translator Translator, generator Generator, speech Speech, maxMessageLen int) (*ChatService, error) {
	if users == nil {
		return nil, errors.New("usecase: user lookup must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if translator == nil {
		return nil, errors.New("usecase: translator must not be nil")
	}
	if generator == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if speech == nil {
		return nil, errors.New("usecase: speech adapter must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{
		users:         users,
		store:         store,
		translator:    translator,
		generator:     generator,
		speech:        speech,
		maxMessageLen: maxMessageLen,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message, err := s.validateMessage(in.Message)
	if err != nil {
		return ChatOutput{}, err
	}
	user, lang, err := s.resolveUser(ctx, in.UserID, in.Language)
	if err != nil {
		return ChatOutput{}, err
	}
	sessionID, err := resolveSessionID(in.SessionID, user.ID)
	if err != nil {
		return ChatOutput{}, err
	}

	res, err := s.respond(ctx, user, lang, sessionID, message)
	if err != nil {
		return ChatOutput{}, err
	}
	return ChatOutput{
		Response:  res.response,
		SessionID: sessionID,
		Language:  lang,
		Timestamp: res.timestamp,
	}, nil
}

func (s *ChatService) AudioChat(ctx context.Context, in AudioInput) (AudioOutput, error) {
	if len(in.Audio) == 0 {
		return AudioOutput{}, newError(ErrorInvalidInput, "audio_required", nil)
	}
	user, lang, err := s.resolveUser(ctx, in.UserID, in.Language)
	if err != nil {
		return AudioOutput{}, err
	}
	sessionID, err := resolveSessionID(in.SessionID, user.ID)
	if err != nil {
		return AudioOutput{}, err
	}

	transcript, ok := s.speech.SpeechToText(ctx, in.Audio, in.Filename, lang)
	if !ok {
		return AudioOutput{}, newError(ErrorInvalidInput, "audio_unintelligible", nil)
	}
	message, err := s.validateMessage(transcript)
	if err != nil {
		return AudioOutput{}, err
	}

	res, err := s.respond(ctx, user, lang, sessionID, message)
	if err != nil {
		return AudioOutput{}, err
	}

	var encoded string
	if audio, ok := s.speech.TextToSpeech(ctx, res.response, lang); ok {
		encoded = base64.StdEncoding.EncodeToString(audio)
	} else {
		logger.FromContext(ctx).Info("audio reply unavailable, returning text only", zap.String("session_id", sessionID))
	}

	return AudioOutput{
		TextMessage:   message,
		TextResponse:  res.response,
		AudioResponse: encoded,
		SessionID:     sessionID,
		Language:      lang,
	}, nil
}

// ListSessions returns the user's most recently updated sessions first.
func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(ErrorInvalidInput, "user_required", nil)
	}
	sums, err := s.store.ListSessions(ctx, userID, maxListedSessions)
	if err != nil {
		return nil, newError(ErrorPersistence, "session_list_error", err)
	}
	return sums, nil
}

type turnResult struct {
	response  string
	timestamp time.Time
}

// respond runs the fixed pipeline: resolve session, translate in, generate,
// translate out, append.
func (s *ChatService) respond(ctx context.Context, user domain.User, lang domain.Language, sessionID, message string) (turnResult, error) {
	log := logger.FromContext(ctx).With(
		zap.String("session_id", sessionID),
		zap.String("language", string(lang)),
	)

	sess, err := s.store.GetOrCreate(ctx, user.ID, sessionID, lang)
	if err != nil {
		return turnResult{}, newError(ErrorPersistence, "session_load_error", err)
	}

	pivotMessage := message
	if !lang.IsPivot() {
		in := s.translator.Translate(ctx, message, domain.PivotLanguage, lang)
		if in.Degraded {
			log.Warn("inbound translation degraded, generating from original text")
		}
		pivotMessage = in.Text
	}

	reply := s.generator.Generate(ctx, pivotMessage, advisory.Context{
		Location:        user.Location,
		Language:        lang,
		RecentExchanges: sess.Recent(historyWindow),
	})
	if reply.Source == advisory.SourceFallback {
		log.Warn("advisory reply served from fallback")
	}

	response := reply.Text
	if !lang.IsPivot() {
		out := s.translator.Translate(ctx, reply.Text, lang, domain.PivotLanguage)
		if out.Degraded {
			log.Warn("outbound translation degraded, replying in pivot language")
		}
		response = out.Text
	}

	updated, err := s.store.Append(ctx, sess, message, response)
	if err != nil {
		return turnResult{}, newError(ErrorPersistence, "session_write_error", err)
	}

	ts := updated.UpdatedAt
	if n := len(updated.Exchanges); n > 0 {
		ts = updated.Exchanges[n-1].Timestamp
	}
	log.Info("chat turn completed",
		zap.String("reply_source", string(reply.Source)),
		zap.Int("exchanges", len(updated.Exchanges)),
	)
	return turnResult{response: response, timestamp: ts}, nil
}

func (s *ChatService) validateMessage(raw string) (string, error) {
	message := strings.TrimSpace(raw)
	if message == "" {
		return "", newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessageLen {
		return "", newError(ErrorInvalidInput, "message_too_long", nil)
	}
	return message, nil
}

// resolveUser loads the user and settles the request language, defaulting to
// the user's preference.
func (s *ChatService) resolveUser(ctx context.Context, userID, rawLang string) (domain.User, domain.Language, error) {
	user, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return domain.User{}, "", err
	}
	lang, err := requestLanguage(user, rawLang)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, lang, nil
}

func lookupUser(ctx context.Context, users UserLookup, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, newError(ErrorNotFound, "user_not_found", nil)
	}
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, newError(ErrorNotFound, "user_not_found", err)
		}
		return domain.User{}, newError(ErrorInternal, "user_lookup_error", err)
	}
	return user, nil
}

func requestLanguage(user domain.User, rawLang string) (domain.Language, error) {
	if strings.TrimSpace(rawLang) == "" {
		rawLang = string(user.PreferredLanguage)
	}
	lang, ok := domain.ParseLanguage(rawLang)
	if !ok {
		return "", newError(ErrorInvalidInput, "unsupported_language", nil)
	}
	return lang, nil
}

// resolveSessionID returns the caller's session id or a fresh one. Ids may
// not contain '#', which the stores use as a key separator.
func resolveSessionID(raw, userID string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return newSessionID(userID), nil
	}
	if strings.Contains(id, "#") || utf8.RuneCountInString(id) > maxSessionIDLength {
		return "", newError(ErrorInvalidInput, "invalid_session_id", nil)
	}
	return id, nil
}

var newSessionID = func(userID string) string {
	return "session_" + userID + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
