package repo

import (
	"context"
	"time"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

// ChatPlatform is the chat-platform interface (Discord). Lookup methods
// return (nil, nil) when the target does not exist; an error means the
// lookup itself failed.
type ChatPlatform interface {
	// SendMessage sends text to a channel, chunking long content.
	// allowUserMentions controls whether <@id> tokens actually ping.
	SendMessage(ctx context.Context, channelID, text string, allowUserMentions bool) error

	// FetchMessage fetches a single message by id.
	FetchMessage(ctx context.Context, channelID, messageID string) (*domain.ChatMessage, error)

	// AddReaction attaches an emoji reaction to a message.
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	// FetchMember resolves a guild member with its permission bits.
	FetchMember(ctx context.Context, guildID, userID string) (*domain.Member, error)

	// TimeoutMember times a member out until the given instant, or clears
	// the timeout when until is nil.
	TimeoutMember(ctx context.Context, guildID, userID string, until *time.Time, reason string) error

	// FetchChannelName resolves a channel's display name.
	FetchChannelName(ctx context.Context, channelID string) (string, error)

	// TriggerTyping shows the typing indicator, best effort.
	TriggerTyping(ctx context.Context, channelID string) error

	// BotUserID returns the bot's own user id, empty until known.
	BotUserID() string
}
