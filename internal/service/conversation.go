package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
	"github.com/anthropics/discord-gemini-bot/internal/biz/repo"
	"github.com/anthropics/discord-gemini-bot/internal/biz/usecase"
	"github.com/anthropics/discord-gemini-bot/internal/conf"
)

// MessageRequest represents one inbound message, normalized by the caller
// from the gateway event.
type MessageRequest struct {
	MessageID   string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	MentionsBot bool
	Content     string
	Attachments []AttachmentRef
}

// AttachmentRef is an attachment folded into the prompt as a labeled link.
type AttachmentRef struct {
	Name string
	URL  string
}

// ConversationService handles mention Q&A: commands, cooldown, rolling
// memory, and oracle replies. It also feeds every message into the
// auto-action pipeline.
type ConversationService struct {
	oracle   repo.Oracle
	platform repo.ChatPlatform
	memory   *usecase.ChannelMemory
	settings repo.SettingsRepo
	autoSvc  *AutoActionService

	defaultStyle usecase.ResponseStyle
	cooldown     time.Duration
	autoEvery    int

	// Per-user cooldown bookkeeping
	cooldownMu  sync.Mutex
	lastRequest map[string]time.Time
}

// NewConversationService creates a new conversation service
func NewConversationService(
	oracle repo.Oracle,
	platform repo.ChatPlatform,
	memory *usecase.ChannelMemory,
	settings repo.SettingsRepo,
	autoSvc *AutoActionService,
	cfg conf.ChatConfig,
	autoCfg conf.AutoActionConfig,
) *ConversationService {
	defaultStyle := usecase.ParseResponseStyle(cfg.DefaultStyle)
	if defaultStyle == "" {
		defaultStyle = usecase.StyleNormal
	}

	return &ConversationService{
		oracle:       oracle,
		platform:     platform,
		memory:       memory,
		settings:     settings,
		autoSvc:      autoSvc,
		defaultStyle: defaultStyle,
		cooldown:     time.Duration(cfg.UserCooldownSeconds) * time.Second,
		autoEvery:    autoCfg.EveryNMessages,
		lastRequest:  make(map[string]time.Time),
	}
}

// HandleMessage processes one inbound message end to end.
func (s *ConversationService) HandleMessage(ctx context.Context, req *MessageRequest) {
	if req.AuthorIsBot {
		return
	}

	cleaned := strings.TrimSpace(req.Content)
	if req.MentionsBot {
		cleaned = stripMention(cleaned, s.platform.BotUserID())
	}
	userText := buildUserText(cleaned, req.Attachments)

	if userText == "" {
		if req.MentionsBot {
			s.send(ctx, req.ChannelID, s.helpMessage())
		}
		return
	}

	// Every message with content feeds the auto-action window, commands
	// and bot mentions included.
	s.autoSvc.HandleMessage(req.ChannelID, req.GuildID, domain.ChatMessage{
		ID:         req.MessageID,
		AuthorID:   req.AuthorID,
		AuthorName: req.AuthorName,
		Content:    userText,
	})

	userTurn := req.AuthorName + ": " + userText

	if !req.MentionsBot {
		s.memory.Push(req.ChannelID, domain.ChatTurn{Role: domain.RoleUser, Text: userTurn})
		return
	}

	if s.handleCommand(ctx, req, cleaned) {
		return
	}

	if wait := s.cooldownRemaining(req.AuthorID); wait > 0 {
		s.send(ctx, req.ChannelID, fmt.Sprintf("Wait %ds before asking again.", int(wait.Seconds())))
		return
	}

	history := s.memory.History(req.ChannelID)
	s.memory.Push(req.ChannelID, domain.ChatTurn{Role: domain.RoleUser, Text: userTurn})

	// Typing indicator is best effort.
	_ = s.platform.TriggerTyping(ctx, req.ChannelID)

	answer, err := s.oracle.Reply(ctx, history, userTurn, usecase.StyleInstruction(s.style(ctx, req.ChannelID)))
	if err != nil {
		log.Printf("[Conversation] reply failed in channel %s: %v", req.ChannelID, err)
		answer = "Sorry, I could not generate an answer. Try again in a few seconds."
	}
	if strings.TrimSpace(answer) == "" {
		answer = "I could not come up with an answer. Can you rephrase the question?"
	}

	s.memory.Push(req.ChannelID, domain.ChatTurn{Role: domain.RoleModel, Text: answer})
	s.send(ctx, req.ChannelID, answer)
}

type command struct {
	kind  string
	style usecase.ResponseStyle
}

var (
	helpCommandRegex  = regexp.MustCompile(`(?i)^(help|aide|commandes?)$`)
	resetCommandRegex = regexp.MustCompile(`(?i)^(reset|clear|forget|oublie|oublier|efface)$`)
	statsCommandRegex = regexp.MustCompile(`(?i)^(stats?|status|etat|état)$`)
	styleCommandRegex = regexp.MustCompile(`(?i)^(?:mode|style|ton|format)\s*[:\-]?\s*(.*)$`)
)

func parseCommand(input string) *command {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	switch {
	case helpCommandRegex.MatchString(trimmed):
		return &command{kind: "help"}
	case resetCommandRegex.MatchString(trimmed):
		return &command{kind: "reset"}
	case statsCommandRegex.MatchString(trimmed):
		return &command{kind: "stats"}
	}

	if match := styleCommandRegex.FindStringSubmatch(trimmed); match != nil {
		return &command{kind: "style", style: usecase.ParseResponseStyle(match[1])}
	}
	return nil
}

// handleCommand runs a bot command when the cleaned text is one. Returns
// true when the message was consumed.
func (s *ConversationService) handleCommand(ctx context.Context, req *MessageRequest, cleaned string) bool {
	cmd := parseCommand(cleaned)
	if cmd == nil {
		return false
	}

	switch cmd.kind {
	case "help":
		s.send(ctx, req.ChannelID, s.helpMessage())

	case "reset":
		s.memory.Clear(req.ChannelID)
		if err := s.settings.Clear(ctx, req.ChannelID); err != nil {
			log.Printf("[Conversation] settings clear failed: %v", err)
		}
		s.autoSvc.Reset(req.ChannelID)
		s.send(ctx, req.ChannelID, "Channel memory reset.")

	case "stats":
		stats := s.memory.Stats(req.ChannelID)
		style := s.style(ctx, req.ChannelID)
		s.send(ctx, req.ChannelID, fmt.Sprintf(
			"Memory: %d/%d messages (~%d characters). Style: %s.",
			stats.Count, stats.Max, stats.Chars, usecase.StyleLabel(style)))

	case "style":
		if cmd.style == "" {
			s.send(ctx, req.ChannelID, fmt.Sprintf(
				"Pick a style: %s. Example: \"style concise\".", usecase.ListStyleOptions()))
			return true
		}
		if err := s.settings.SetStyle(ctx, req.ChannelID, string(cmd.style)); err != nil {
			log.Printf("[Conversation] settings save failed: %v", err)
		}
		s.send(ctx, req.ChannelID, "Style updated: "+usecase.StyleLabel(cmd.style)+".")
	}

	return true
}

func (s *ConversationService) helpMessage() string {
	autoInfo := "- Auto actions: disabled (AUTO_ACTION_EVERY_N_MESSAGES=0)."
	if s.autoEvery > 0 {
		autoInfo = fmt.Sprintf(
			"- Auto actions: internal summary + actions every %d messages (per channel).", s.autoEvery)
	}

	return strings.Join([]string{
		"Usage:",
		"- Mention me with your question to get an answer.",
		"- Commands: help, reset, stats, style <value>.",
		"- Available styles: " + usecase.ListStyleOptions() + ".",
		autoInfo,
	}, "\n")
}

func (s *ConversationService) style(ctx context.Context, channelID string) usecase.ResponseStyle {
	stored, err := s.settings.GetStyle(ctx, channelID)
	if err != nil {
		log.Printf("[Conversation] settings read failed: %v", err)
		return s.defaultStyle
	}
	if style := usecase.ParseResponseStyle(stored); style != "" {
		return style
	}
	return s.defaultStyle
}

// cooldownRemaining returns how long the user still has to wait, recording
// the request time when the user is clear.
func (s *ConversationService) cooldownRemaining(userID string) time.Duration {
	if s.cooldown <= 0 {
		return 0
	}

	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()

	now := time.Now()
	if last, ok := s.lastRequest[userID]; ok {
		if elapsed := now.Sub(last); elapsed < s.cooldown {
			return s.cooldown - elapsed
		}
	}
	s.lastRequest[userID] = now
	return 0
}

func (s *ConversationService) send(ctx context.Context, channelID, text string) {
	if err := s.platform.SendMessage(ctx, channelID, text, true); err != nil {
		log.Printf("[Conversation] send failed in channel %s: %v", channelID, err)
	}
}

func stripMention(text, botUserID string) string {
	if botUserID == "" {
		return text
	}
	text = strings.ReplaceAll(text, "<@"+botUserID+">", "")
	text = strings.ReplaceAll(text, "<@!"+botUserID+">", "")
	return strings.TrimSpace(text)
}

func buildUserText(cleaned string, attachments []AttachmentRef) string {
	var lines []string
	if cleaned != "" {
		lines = append(lines, cleaned)
	}

	if len(attachments) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "Attachments:")
		for _, attachment := range attachments {
			label := attachment.Name
			if label == "" {
				label = "file"
			}
			lines = append(lines, "- "+label+": "+attachment.URL)
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
