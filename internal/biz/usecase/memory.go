package usecase

import (
	"sync"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

// MemoryStats describes a channel's rolling memory usage.
type MemoryStats struct {
	Count int
	Max   int
	Chars int
}

// ChannelMemory keeps a rolling, bounded conversation history per channel
// for mention Q&A. Process-local, never persisted.
type ChannelMemory struct {
	mu          sync.Mutex
	maxMessages int
	byChannel   map[string][]domain.ChatTurn
}

// NewChannelMemory creates a memory keeping at most maxMessages turns
// per channel.
func NewChannelMemory(maxMessages int) *ChannelMemory {
	if maxMessages < 1 {
		maxMessages = 1
	}
	return &ChannelMemory{
		maxMessages: maxMessages,
		byChannel:   make(map[string][]domain.ChatTurn),
	}
}

// History returns a copy of the channel's turns, oldest first.
func (m *ChannelMemory) History(channelID string) []domain.ChatTurn {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.byChannel[channelID]
	out := make([]domain.ChatTurn, len(history))
	copy(out, history)
	return out
}

// Push appends a turn, evicting the oldest turns over capacity.
func (m *ChannelMemory) Push(channelID string, turn domain.ChatTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.byChannel[channelID], turn)
	if len(history) > m.maxMessages {
		history = history[len(history)-m.maxMessages:]
	}
	m.byChannel[channelID] = history
}

// Stats returns usage counters for a channel.
func (m *ChannelMemory) Stats(channelID string) MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.byChannel[channelID]
	chars := 0
	for _, turn := range history {
		chars += len(turn.Text)
	}
	return MemoryStats{Count: len(history), Max: m.maxMessages, Chars: chars}
}

// Clear drops the channel's history.
func (m *ChannelMemory) Clear(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byChannel, channelID)
}
