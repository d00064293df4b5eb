package repo

import (
	"context"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

// Oracle is the reasoning-service interface (Gemini or an OpenAI-compatible
// backend). Its output is untrusted free text: callers must parse and
// validate everything before acting on it.
type Oracle interface {
	// Generate runs a single structured request. payload is the serialized
	// request context; the returned raw text is expected to contain one
	// JSON object but may be anything.
	Generate(ctx context.Context, systemInstruction, payload string) (string, error)

	// Reply answers a conversational question given the rolling history.
	// styleInstruction adjusts tone and is appended to the system prompt.
	Reply(ctx context.Context, history []domain.ChatTurn, userText, styleInstruction string) (string, error)
}
