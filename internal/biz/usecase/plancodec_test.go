package usecase

import (
	"strings"
	"testing"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`},
		{`no braces at all`, ""},
		{`only open {`, ""},
		{`} reversed {`, ""},
		{`prefix {"nested":{"b":2}} suffix`, `{"nested":{"b":2}}`},
	}

	for _, tt := range tests {
		if got := ExtractJSONObject(tt.input); got != tt.expected {
			t.Errorf("ExtractJSONObject(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParsePlan_MalformedNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"not json",
		"{broken json",
		`{"summary": 42}`,
		`{"actions": "not an array"}`,
		`[1,2,3]`,
		`{"summary":"ok","actions":[{"type":"launch_missiles"}]}`,
	}

	for _, input := range inputs {
		plan := ParsePlan(input, "fallback", 5)
		if plan.Summary != "fallback" && input != `{"summary":"ok","actions":[{"type":"launch_missiles"}]}` {
			t.Errorf("ParsePlan(%q).Summary = %q, want fallback", input, plan.Summary)
		}
		if len(plan.Actions) != 0 {
			t.Errorf("ParsePlan(%q) yielded %d actions, want 0", input, len(plan.Actions))
		}
	}
}

func TestParsePlan_ValidPlan(t *testing.T) {
	raw := `The plan: {"summary":"  two users argued  ","actions":[
		{"type":"add_reaction","messageId":"m1","emoji":"👍"},
		{"type":"send_message","content":"take it easy"},
		{"type":"timeout_user","userId":"u1","minutes":5,"reason":"insults"},
		{"type":"untimeout_user","userId":"u2"}
	]}`

	plan := ParsePlan(raw, "old", 10)
	if plan.Summary != "two users argued" {
		t.Errorf("Summary = %q, want trimmed oracle summary", plan.Summary)
	}
	if len(plan.Actions) != 4 {
		t.Fatalf("got %d actions, want 4", len(plan.Actions))
	}
	if plan.Actions[0].Type != domain.ActionAddReaction || plan.Actions[0].MessageID != "m1" {
		t.Errorf("action[0] = %+v", plan.Actions[0])
	}
	if plan.Actions[2].Minutes != 5 || plan.Actions[2].Reason != "insults" {
		t.Errorf("action[2] = %+v", plan.Actions[2])
	}
	if plan.Actions[3].Type != domain.ActionUntimeoutUser || plan.Actions[3].Reason != "" {
		t.Errorf("action[3] = %+v", plan.Actions[3])
	}
}

func TestParsePlan_EmptySummaryKeepsFallback(t *testing.T) {
	plan := ParsePlan(`{"summary":"   ","actions":[]}`, "previous", 5)
	if plan.Summary != "previous" {
		t.Errorf("Summary = %q, want %q", plan.Summary, "previous")
	}
}

func TestParsePlan_SchemaLimits(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"emoji too long", `{"actions":[{"type":"add_reaction","messageId":"m","emoji":"` + strings.Repeat("x", 33) + `"}]}`},
		{"empty emoji", `{"actions":[{"type":"add_reaction","messageId":"m","emoji":""}]}`},
		{"empty message id", `{"actions":[{"type":"add_reaction","messageId":"","emoji":"👍"}]}`},
		{"content too long", `{"actions":[{"type":"send_message","content":"` + strings.Repeat("a", 801) + `"}]}`},
		{"minutes zero", `{"actions":[{"type":"timeout_user","userId":"u","minutes":0,"reason":"r"}]}`},
		{"minutes over max", `{"actions":[{"type":"timeout_user","userId":"u","minutes":61,"reason":"r"}]}`},
		{"timeout missing reason", `{"actions":[{"type":"timeout_user","userId":"u","minutes":5}]}`},
		{"reason too long", `{"actions":[{"type":"timeout_user","userId":"u","minutes":5,"reason":"` + strings.Repeat("r", 201) + `"}]}`},
		{"untimeout missing user", `{"actions":[{"type":"untimeout_user"}]}`},
	}

	for _, tt := range tests {
		plan := ParsePlan(tt.raw, "fb", 5)
		if len(plan.Actions) != 0 {
			t.Errorf("%s: action survived schema check: %+v", tt.name, plan.Actions)
		}
	}
}

func TestParsePlan_InvalidActionDroppedOthersSurvive(t *testing.T) {
	raw := `{"actions":[
		{"type":"timeout_user","userId":"u","minutes":999,"reason":"r"},
		{"type":"send_message","content":"still fine"}
	]}`

	plan := ParsePlan(raw, "fb", 5)
	if len(plan.Actions) != 1 || plan.Actions[0].Content != "still fine" {
		t.Errorf("got %+v, want only the valid send_message", plan.Actions)
	}
}

func TestParsePlan_MaxActionsTruncation(t *testing.T) {
	raw := `{"actions":[
		{"type":"send_message","content":"a"},
		{"type":"send_message","content":"b"},
		{"type":"send_message","content":"c"}
	]}`

	plan := ParsePlan(raw, "fb", 2)
	if len(plan.Actions) != 2 {
		t.Errorf("got %d actions, want 2", len(plan.Actions))
	}

	plan = ParsePlan(raw, "fb", 0)
	if len(plan.Actions) != 0 {
		t.Errorf("maxActions=0: got %d actions, want 0", len(plan.Actions))
	}
}

func TestParseEmojiChoice(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{"emoji":"🔥"}`, "🔥"},
		{`Sure! {"emoji":" 🔥 "}`, "🔥"},
		{`{"emoji":""}`, ""},
		{`{"emoji":"` + strings.Repeat("x", 33) + `"}`, ""},
		{`nope`, ""},
		{`{"wrong":"field"}`, ""},
	}

	for _, tt := range tests {
		if got := ParseEmojiChoice(tt.input); got != tt.expected {
			t.Errorf("ParseEmojiChoice(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseMessageDecision(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{"send":true,"content":"hello"}`, "hello"},
		{`{"send":true,"content":"  hello  "}`, "hello"},
		{`{"send":false,"content":"hello"}`, ""},
		{`{"send":true}`, ""},
		{`{"send":true,"content":""}`, ""},
		{`garbage`, ""},
	}

	for _, tt := range tests {
		if got := ParseMessageDecision(tt.input); got != tt.expected {
			t.Errorf("ParseMessageDecision(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
