// Package advisory produces the assistant's reply in the pivot language,
// falling back to canned keyword advice whenever the model is unavailable.
package advisory

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

type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// Context is what the generator knows about the farmer and the conversation.
type Context struct {
	Location        string
	Language        domain.Language
	RecentExchanges []domain.Exchange
}

type Reply struct {
	Text   string
	Source Source
}

type Generator struct {
	llm     LLMClient
	model   string
	timeout time.Duration
}

func New(llm LLMClient, model string, timeout time.Duration) (*Generator, error) {
	if llm == nil {
		return nil, errors.New("advisory: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("advisory: model must not be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{llm: llm, model: model, timeout: timeout}, nil
}

// Generate always returns a non-empty reply.
func (g *Generator) Generate(ctx context.Context, message string, gctx Context) Reply {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.llm.Chat(callCtx, g.model, buildPromptMessages(gctx, message))
	out = strings.TrimSpace(out)
	if err == nil && out != "" {
		return Reply{Text: out, Source: SourceModel}
	}

	log := logger.FromContext(ctx)
	if err != nil {
		log.Warn("advisory model call failed, using fallback", zap.Error(err), zap.String("model", g.model))
	} else {
		log.Warn("advisory model returned empty reply, using fallback", zap.String("model", g.model))
	}
	return Reply{Text: FallbackResponse(message), Source: SourceFallback}
}

type keywordAdvice struct {
	keyword string
	advice  string
}

// fallbackAdvice is scanned in order; the first keyword found wins.
var fallbackAdvice = []keywordAdvice{
	{"weather", "I recommend checking current weather conditions before making farming decisions. Consider rainfall patterns and temperature for optimal planting and harvesting times."},
	{"fertilizer", "For fertilizer recommendations, consider soil testing first. NPK ratios depend on your crop type and soil conditions. Organic fertilizers like compost and vermicompost are also beneficial."},
	{"pesticide", "For pest management, identify the specific pest first. Integrated Pest Management (IPM) combining biological, cultural, and chemical methods is most effective."},
	{"seeds", "Choose seeds based on your local climate, soil type, and market demand. High-yield varieties adapted to Kerala's conditions are recommended."},
	{"irrigation", "Water management is crucial. Drip irrigation systems are water-efficient. Consider rainwater harvesting during monsoon seasons."},
	{"soil", "Maintain soil health through regular testing, organic matter addition, and proper crop rotation. Good soil is the foundation of successful farming."},
}

const genericFallback = "I'm here to help with your agricultural questions. Please ask about crops, fertilizers, pesticides, weather, irrigation, or any farming-related topics."

// FallbackResponse returns the canned advice for the first keyword in message.
func FallbackResponse(message string) string {
	lower := strings.ToLower(message)
	for _, ka := range fallbackAdvice {
		if strings.Contains(lower, ka.keyword) {
			return ka.advice
		}
	}
	return genericFallback
}
