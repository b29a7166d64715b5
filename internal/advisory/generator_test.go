package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agri-advisor/internal/domain"
)

type fakeLLM struct {
	out      string
	err      error
	block    bool
	model    string
	messages []domain.ChatMessage
}

func (f *fakeLLM) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	f.model = model
	f.messages = messages
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

func exchanges(n int) []domain.Exchange {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	out := make([]domain.Exchange, n)
	for i := range out {
		out[i] = domain.Exchange{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			UserMessage: fmt.Sprintf("q%d", i+1),
			BotResponse: fmt.Sprintf("a%d", i+1),
		}
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "gpt", time.Second)
	require.Error(t, err)

	_, err = New(&fakeLLM{}, " ", time.Second)
	require.Error(t, err)

	g, err := New(&fakeLLM{}, "gpt", 0)
	require.NoError(t, err)
	require.Equal(t, defaultTimeout, g.timeout)
}

func TestGenerate_ModelReply(t *testing.T) {
	llm := &fakeLLM{out: "  Plant after the first monsoon rain.\n"}
	g, err := New(llm, "gpt-4o-mini", time.Second)
	require.NoError(t, err)

	reply := g.Generate(context.Background(), "When should I plant paddy?", Context{Location: "Thrissur", Language: domain.LanguageEnglish})
	require.Equal(t, Reply{Text: "Plant after the first monsoon rain.", Source: SourceModel}, reply)
	require.Equal(t, "gpt-4o-mini", llm.model)
}

func TestGenerate_FertilizerFallbackOnError(t *testing.T) {
	g, err := New(&fakeLLM{err: errors.New("503")}, "gpt", time.Second)
	require.NoError(t, err)

	reply := g.Generate(context.Background(), "Which FERTILIZER for my banana plants?", Context{})
	require.Equal(t, SourceFallback, reply.Source)
	require.True(t, strings.HasPrefix(reply.Text, "For fertilizer recommendations"))
}

func TestGenerate_FallbackOnEmptyReply(t *testing.T) {
	g, err := New(&fakeLLM{out: "   "}, "gpt", time.Second)
	require.NoError(t, err)

	reply := g.Generate(context.Background(), "hello", Context{})
	require.Equal(t, Reply{Text: genericFallback, Source: SourceFallback}, reply)
}

func TestGenerate_FallbackOnTimeout(t *testing.T) {
	g, err := New(&fakeLLM{block: true}, "gpt", 20*time.Millisecond)
	require.NoError(t, err)

	reply := g.Generate(context.Background(), "is irrigation needed today?", Context{})
	require.Equal(t, SourceFallback, reply.Source)
	require.Contains(t, reply.Text, "Drip irrigation")
}

func TestFallbackResponse_KeywordOrder(t *testing.T) {
	cases := []struct {
		message string
		prefix  string
	}{
		{"my soil needs fertilizer", "For fertilizer"},
		{"weather and soil", "I recommend checking current weather"},
		{"Best pesticide for aphids?", "For pest management"},
		{"where to buy seeds", "Choose seeds"},
		{"SOIL test", "Maintain soil health"},
		{"what is the price of rubber", "I'm here to help"},
	}
	for _, tc := range cases {
		require.True(t, strings.HasPrefix(FallbackResponse(tc.message), tc.prefix), "message=%q", tc.message)
	}
}

func TestBuildPromptMessages_LastThreeExchanges(t *testing.T) {
	msgs := buildPromptMessages(Context{RecentExchanges: exchanges(5)}, "q6")

	require.Len(t, msgs, 1+3*2+1)
	require.Equal(t, domain.RoleSystem, msgs[0].Role)
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "q3"}, msgs[1])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleAssistant, Content: "a3"}, msgs[2])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleAssistant, Content: "a5"}, msgs[6])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "q6"}, msgs[7])
}

func TestBuildPromptMessages_NoHistory(t *testing.T) {
	msgs := buildPromptMessages(Context{}, "hi")
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[1].Content)
}

func TestBuildSystemPrompt(t *testing.T) {
	plain := buildSystemPrompt(Context{Language: domain.LanguageEnglish})
	require.NotContains(t, plain, "User location")
	require.NotContains(t, plain, "translated")

	full := buildSystemPrompt(Context{Location: "  Palakkad,   Kerala ", Language: domain.LanguageMalayalam})
	require.Contains(t, full, "User location: Palakkad, Kerala")
	require.Contains(t, full, "translated to Malayalam")

	require.True(t, strings.HasPrefix(plain, "Role:"))
	require.True(t, strings.HasPrefix(full, plain), "persona is the same on every call")
}
