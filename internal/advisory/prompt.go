package advisory

import (
	"fmt"
	"strings"

	"agri-advisor/internal/domain"
)

// maxPromptExchanges is how many prior exchanges are replayed to the model.
const maxPromptExchanges = 3

func buildPromptMessages(ctx Context, message string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSystemPrompt(ctx)},
	}

	history := ctx.RecentExchanges
	if len(history) > maxPromptExchanges {
		history = history[len(history)-maxPromptExchanges:]
	}
	for _, ex := range history {
		messages = append(messages, exchangeToPromptMessages(ex)...)
	}

	return append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: message,
	})
}

func buildSystemPrompt(ctx Context) string {
	lines := []string{
		"Role:",
		"You are an agricultural advisor helping small and medium-scale farmers in Kerala, India.",
		"",
		"You advise on:",
		"- Crop management and farming techniques",
		"- Weather-based farming decisions",
		"- Pest and disease control",
		"- Soil health and fertilizer recommendations",
		"- Government schemes and subsidies",
		"- Market prices and trends",
		"- Sustainable and organic farming practices",
		"",
		"Behavior Rules:",
		"1) Give practical, actionable advice a farmer can apply directly.",
		"2) Keep responses concise but informative.",
	}
	if loc := normalizePromptInput(ctx.Location); loc != "" {
		lines = append(lines, "", "User location: "+loc)
	}
	if ctx.Language != "" && !ctx.Language.IsPivot() {
		lines = append(lines, "", fmt.Sprintf(
			"Note: This response will be translated to %s, so use simple, clear language.",
			ctx.Language.Name(),
		))
	}
	return strings.Join(lines, "\n")
}

func exchangeToPromptMessages(ex domain.Exchange) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleUser, Content: ex.UserMessage},
		{Role: domain.RoleAssistant, Content: ex.BotResponse},
	}
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
