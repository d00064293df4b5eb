package repo

import "context"

// SettingsRepo persists per-channel preferences (SQLite).
type SettingsRepo interface {
	// GetStyle returns the stored response style for a channel, or ""
	// when none is set.
	GetStyle(ctx context.Context, channelID string) (string, error)

	// SetStyle stores the response style for a channel.
	SetStyle(ctx context.Context, channelID, style string) error

	// Clear removes all stored preferences for a channel.
	Clear(ctx context.Context, channelID string) error
}
