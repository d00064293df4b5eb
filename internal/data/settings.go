package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anthropics/discord-gemini-bot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// settingsRepo implements the Settings repository backed by SQLite
type settingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo creates a new Settings repository
func NewSettingsRepo(dbPath string) (repo.SettingsRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_settings (
			channel_id TEXT PRIMARY KEY,
			response_style TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &settingsRepo{db: db}, nil
}

// GetStyle gets the stored response style for a channel
func (r *settingsRepo) GetStyle(ctx context.Context, channelID string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT response_style FROM channel_settings WHERE channel_id = ?
	`, channelID)

	var style string
	err := row.Scan(&style)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query settings: %w", err)
	}
	return style, nil
}

// SetStyle stores the response style for a channel
func (r *settingsRepo) SetStyle(ctx context.Context, channelID, style string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_settings (channel_id, response_style, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			response_style = excluded.response_style,
			updated_at = excluded.updated_at
	`, channelID, style, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Clear removes all stored preferences for a channel
func (r *settingsRepo) Clear(ctx context.Context, channelID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM channel_settings WHERE channel_id = ?
	`, channelID)
	if err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}

// memorySettingsRepo is the in-memory fallback used when the database
// cannot be opened; styles last until restart
type memorySettingsRepo struct {
	mu     sync.Mutex
	styles map[string]string
}

// NewMemorySettingsRepo creates an in-memory Settings repository
func NewMemorySettingsRepo() repo.SettingsRepo {
	return &memorySettingsRepo{styles: make(map[string]string)}
}

func (r *memorySettingsRepo) GetStyle(_ context.Context, channelID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.styles[channelID], nil
}

func (r *memorySettingsRepo) SetStyle(_ context.Context, channelID, style string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.styles[channelID] = style
	return nil
}

func (r *memorySettingsRepo) Clear(_ context.Context, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.styles, channelID)
	return nil
}
