package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"agri-advisor/internal/domain"
)

const (
	defaultMaxTokens   = 500
	defaultTemperature = 0.7
	maxInFlight        = 3
)

// Client wraps the Gemini SDK behind the same Chat signature as the OpenAI
// client. Calls are paced by a token-bucket limiter and capped in flight.
type Client struct {
	client  *genai.Client
	limiter *rate.Limiter
	sem     chan struct{}
}

// New creates a Gemini client. rps <= 0 disables pacing.
func New(ctx context.Context, apiKey string, rps float64) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		sem:     make(chan struct{}, maxInFlight),
	}, nil
}

// Chat sends the conversation to model and returns the concatenated text of
// the first candidate. System messages become the system instruction; the
// final message must come from the user.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	system, history, prompt, err := toContents(messages)
	if err != nil {
		return "", err
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	gm := c.client.GenerativeModel(model)
	gm.SetTemperature(defaultTemperature)
	gm.SetMaxOutputTokens(defaultMaxTokens)
	gm.SystemInstruction = system

	cs := gm.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := extractText(resp)
	if text == "" {
		return "", errors.New("gemini: no response candidates")
	}
	return text, nil
}

func (c *Client) acquire(ctx context.Context) (func(), error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("gemini: wait for slot: %w", ctx.Err())
	}
	if err := c.limiter.Wait(ctx); err != nil {
		<-c.sem
		return nil, fmt.Errorf("gemini: rate limit wait: %w", err)
	}
	return func() { <-c.sem }, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// toContents splits chat messages into the Gemini system instruction, prior
// history and the prompt to send.
func toContents(messages []domain.ChatMessage) (*genai.Content, []*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, nil, "", errors.New("gemini: messages must not be empty")
	}
	last := messages[len(messages)-1]
	if last.Role != domain.RoleUser {
		return nil, nil, "", fmt.Errorf("gemini: last message must have role %q, got %q", domain.RoleUser, last.Role)
	}

	var system *genai.Content
	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case domain.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.Text(m.Content))
		case domain.RoleUser:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case domain.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			return nil, nil, "", fmt.Errorf("gemini: unsupported role %q", m.Role)
		}
	}
	return system, history, last.Content, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
