package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
	"github.com/anthropics/discord-gemini-bot/internal/biz/usecase"
	"github.com/anthropics/discord-gemini-bot/internal/conf"
	"github.com/anthropics/discord-gemini-bot/internal/data"
)

func newConvService(oracle *scriptedOracle, platform *fakePlatform, cooldownSeconds int) (*ConversationService, *usecase.ChannelMemory) {
	memory := usecase.NewChannelMemory(10)
	settings := data.NewMemorySettingsRepo()
	autoSvc := newTestService(oracle, platform, 0, 5) // pipeline off, exercised separately
	svc := NewConversationService(oracle, platform, memory, settings, autoSvc,
		conf.ChatConfig{MaxContextMessages: 10, UserCooldownSeconds: cooldownSeconds},
		conf.AutoActionConfig{})
	return svc, memory
}

func mentionReq(content string) *MessageRequest {
	return &MessageRequest{
		MessageID:   "m1",
		ChannelID:   "chan",
		GuildID:     "guild-1",
		AuthorID:    "42",
		AuthorName:  "Ada",
		MentionsBot: true,
		Content:     content,
	}
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	oracle := &scriptedOracle{replyResponse: "should never appear"}
	platform := newFakePlatform()
	svc, memory := newConvService(oracle, platform, 0)

	req := mentionReq("<@bot-1> hello")
	req.AuthorIsBot = true
	svc.HandleMessage(context.Background(), req)

	if platform.sentCount() != 0 || oracle.replyCalls != 0 {
		t.Error("bot-authored message was processed")
	}
	if len(memory.History("chan")) != 0 {
		t.Error("bot-authored message reached memory")
	}
}

func TestHandleMessage_MentionAnswersWithStyleAndMemory(t *testing.T) {
	oracle := &scriptedOracle{replyResponse: "the answer"}
	platform := newFakePlatform()
	svc, memory := newConvService(oracle, platform, 0)

	// Seed history with a prior non-mention message.
	svc.HandleMessage(context.Background(), &MessageRequest{
		MessageID: "m0", ChannelID: "chan", AuthorID: "7", AuthorName: "Bob",
		Content: "context from earlier",
	})

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> what is up?"))

	if oracle.replyCalls != 1 {
		t.Fatalf("replyCalls = %d, want 1", oracle.replyCalls)
	}
	if oracle.lastUserText != "Ada: what is up?" {
		t.Errorf("userText = %q, mention token not stripped", oracle.lastUserText)
	}
	// History passed to the oracle excludes the turn being answered.
	if len(oracle.lastHistory) != 1 || oracle.lastHistory[0].Text != "Bob: context from earlier" {
		t.Errorf("history = %+v", oracle.lastHistory)
	}
	if oracle.lastStyle == "" {
		t.Error("style instruction missing")
	}

	platform.mu.Lock()
	sent := append([]string(nil), platform.sent...)
	platform.mu.Unlock()
	if len(sent) != 1 || sent[0] != "the answer" {
		t.Errorf("sent = %v", sent)
	}

	history := memory.History("chan")
	if len(history) != 3 {
		t.Fatalf("memory holds %d turns, want 3: %+v", len(history), history)
	}
	if history[2].Role != domain.RoleModel || history[2].Text != "the answer" {
		t.Errorf("model turn = %+v", history[2])
	}
}

func TestHandleMessage_NonMentionOnlyFeedsMemory(t *testing.T) {
	oracle := &scriptedOracle{replyResponse: "nope"}
	platform := newFakePlatform()
	svc, memory := newConvService(oracle, platform, 0)

	svc.HandleMessage(context.Background(), &MessageRequest{
		MessageID: "m0", ChannelID: "chan", AuthorID: "7", AuthorName: "Bob",
		Content: "just chatting",
	})

	if oracle.replyCalls != 0 || platform.sentCount() != 0 {
		t.Error("non-mention message triggered a reply")
	}
	if len(memory.History("chan")) != 1 {
		t.Error("non-mention message not recorded")
	}
}

func TestHandleMessage_EmptyMentionSendsHelp(t *testing.T) {
	oracle := &scriptedOracle{}
	platform := newFakePlatform()
	svc, _ := newConvService(oracle, platform, 0)

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1>"))

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.sent) != 1 || !strings.Contains(platform.sent[0], "Usage:") {
		t.Errorf("sent = %v, want help text", platform.sent)
	}
}

func TestHandleMessage_OracleFailureSendsApology(t *testing.T) {
	oracle := &scriptedOracle{replyErr: errors.New("backend down")}
	platform := newFakePlatform()
	svc, memory := newConvService(oracle, platform, 0)

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> hello?"))

	platform.mu.Lock()
	sent := append([]string(nil), platform.sent...)
	platform.mu.Unlock()
	if len(sent) != 1 || !strings.Contains(sent[0], "Sorry") {
		t.Errorf("sent = %v, want apology", sent)
	}
	// The apology still lands in memory as the model turn.
	history := memory.History("chan")
	if len(history) != 2 || history[1].Role != domain.RoleModel {
		t.Errorf("memory = %+v", history)
	}
}

func TestHandleMessage_Cooldown(t *testing.T) {
	oracle := &scriptedOracle{replyResponse: "answer"}
	platform := newFakePlatform()
	svc, _ := newConvService(oracle, platform, 60)

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> first"))
	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> second"))

	if oracle.replyCalls != 1 {
		t.Errorf("replyCalls = %d, want 1 (second blocked by cooldown)", oracle.replyCalls)
	}
	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.sent) != 2 || !strings.Contains(platform.sent[1], "Wait") {
		t.Errorf("sent = %v, want cooldown notice second", platform.sent)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		kind  string
		style usecase.ResponseStyle
	}{
		{"help", "help", ""},
		{"AIDE", "help", ""},
		{"reset", "reset", ""},
		{"oublie", "reset", ""},
		{"stats", "stats", ""},
		{"état", "stats", ""},
		{"style concise", "style", usecase.StyleConcise},
		{"ton détaillé", "style", usecase.StyleDetailed},
		{"mode: bullet", "style", usecase.StyleBullet},
		{"style", "style", ""},
	}
	for _, tt := range tests {
		cmd := parseCommand(tt.input)
		if cmd == nil {
			t.Errorf("parseCommand(%q) = nil", tt.input)
			continue
		}
		if cmd.kind != tt.kind || cmd.style != tt.style {
			t.Errorf("parseCommand(%q) = %+v, want kind=%s style=%s", tt.input, cmd, tt.kind, tt.style)
		}
	}

	for _, input := range []string{"", "what is go?", "helpful tips"} {
		if cmd := parseCommand(input); cmd != nil {
			t.Errorf("parseCommand(%q) = %+v, want nil", input, cmd)
		}
	}
}

func TestCommand_StylePersistsAcrossReplies(t *testing.T) {
	oracle := &scriptedOracle{replyResponse: "ok"}
	platform := newFakePlatform()
	svc, _ := newConvService(oracle, platform, 0)

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> style concise"))
	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> tell me more"))

	if oracle.lastStyle != usecase.StyleInstruction(usecase.StyleConcise) {
		t.Errorf("style instruction = %q, want concise", oracle.lastStyle)
	}
}

func TestCommand_ResetClearsMemoryAndStyle(t *testing.T) {
	oracle := &scriptedOracle{replyResponse: "ok"}
	platform := newFakePlatform()
	svc, memory := newConvService(oracle, platform, 0)

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> style bullet"))
	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> a question"))
	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> reset"))

	if len(memory.History("chan")) != 0 {
		t.Error("memory survived reset")
	}

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> another question"))
	if oracle.lastStyle != usecase.StyleInstruction(usecase.StyleNormal) {
		t.Errorf("style after reset = %q, want default", oracle.lastStyle)
	}
}

func TestCommand_Stats(t *testing.T) {
	oracle := &scriptedOracle{replyResponse: "ok"}
	platform := newFakePlatform()
	svc, _ := newConvService(oracle, platform, 0)

	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> a question"))
	svc.HandleMessage(context.Background(), mentionReq("<@bot-1> stats"))

	platform.mu.Lock()
	defer platform.mu.Unlock()
	last := platform.sent[len(platform.sent)-1]
	if !strings.Contains(last, "Memory: 2/10") {
		t.Errorf("stats message = %q", last)
	}
}

func TestBuildUserText_Attachments(t *testing.T) {
	got := buildUserText("look at this", []AttachmentRef{
		{Name: "photo.png", URL: "https://cdn.example/photo.png"},
		{Name: "", URL: "https://cdn.example/blob"},
	})
	want := "look at this\n\nAttachments:\n- photo.png: https://cdn.example/photo.png\n- file: https://cdn.example/blob"
	if got != want {
		t.Errorf("buildUserText = %q, want %q", got, want)
	}

	if got := buildUserText("", nil); got != "" {
		t.Errorf("buildUserText empty = %q", got)
	}
}

func TestStripMention(t *testing.T) {
	if got := stripMention("<@bot-1> hello", "bot-1"); got != "hello" {
		t.Errorf("stripMention = %q", got)
	}
	if got := stripMention("<@!bot-1> hello", "bot-1"); got != "hello" {
		t.Errorf("stripMention nick form = %q", got)
	}
	if got := stripMention("hello", ""); got != "hello" {
		t.Errorf("stripMention without bot id = %q", got)
	}
}
