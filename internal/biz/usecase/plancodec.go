package usecase

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

// Schema limits for oracle-proposed values. Anything outside these bounds is
// discarded, never clamped, at parse time (the executor clamps separately).
const (
	maxEmojiLen   = 32
	maxContentLen = 800
	maxReasonLen  = 200
	maxSummaryLen = 1200
	minTimeoutMin = 1
	maxTimeoutMin = 60
)

// ExtractJSONObject returns the substring between the first '{' and the last
// '}' of raw, or "" when no such span exists. Oracle responses routinely wrap
// the JSON object in prose or markdown fences.
func ExtractJSONObject(raw string) string {
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first < 0 || last <= first {
		return ""
	}
	return raw[first : last+1]
}

type rawAction struct {
	Type      string  `json:"type"`
	MessageID string  `json:"messageId"`
	Emoji     string  `json:"emoji"`
	Content   string  `json:"content"`
	UserID    string  `json:"userId"`
	Minutes   float64 `json:"minutes"`
	Reason    string  `json:"reason"`
}

type rawPlan struct {
	Summary string      `json:"summary"`
	Actions []rawAction `json:"actions"`
}

// ParsePlan turns a raw oracle response into a validated plan. Malformed
// input, at any level, degrades instead of failing: an unparseable envelope
// yields {fallbackSummary, no actions}; an individual action that fails its
// schema checks is dropped while the rest survive. Never returns an error.
func ParsePlan(raw, fallbackSummary string, maxActions int) domain.AutoActionPlan {
	empty := domain.AutoActionPlan{Summary: fallbackSummary, Actions: nil}

	text := ExtractJSONObject(raw)
	if text == "" {
		return empty
	}

	var payload rawPlan
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return empty
	}

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" || len(summary) > maxSummaryLen {
		summary = fallbackSummary
	}

	if maxActions < 0 {
		maxActions = 0
	}

	var actions []domain.AutoAction
	for _, ra := range payload.Actions {
		if len(actions) >= maxActions {
			break
		}
		if action, ok := validateAction(ra); ok {
			actions = append(actions, action)
		}
	}

	return domain.AutoActionPlan{Summary: summary, Actions: actions}
}

func validateAction(ra rawAction) (domain.AutoAction, bool) {
	switch domain.ActionType(ra.Type) {
	case domain.ActionAddReaction:
		if ra.MessageID == "" || ra.Emoji == "" || len(ra.Emoji) > maxEmojiLen {
			return domain.AutoAction{}, false
		}
		return domain.AutoAction{
			Type:      domain.ActionAddReaction,
			MessageID: ra.MessageID,
			Emoji:     ra.Emoji,
		}, true

	case domain.ActionSendMessage:
		if ra.Content == "" || len(ra.Content) > maxContentLen {
			return domain.AutoAction{}, false
		}
		return domain.AutoAction{
			Type:    domain.ActionSendMessage,
			Content: ra.Content,
		}, true

	case domain.ActionTimeoutUser:
		minutes := int(ra.Minutes)
		if ra.UserID == "" || minutes < minTimeoutMin || minutes > maxTimeoutMin {
			return domain.AutoAction{}, false
		}
		if ra.Reason == "" || len(ra.Reason) > maxReasonLen {
			return domain.AutoAction{}, false
		}
		return domain.AutoAction{
			Type:    domain.ActionTimeoutUser,
			UserID:  ra.UserID,
			Minutes: minutes,
			Reason:  ra.Reason,
		}, true

	case domain.ActionUntimeoutUser:
		if ra.UserID == "" || len(ra.Reason) > maxReasonLen {
			return domain.AutoAction{}, false
		}
		return domain.AutoAction{
			Type:   domain.ActionUntimeoutUser,
			UserID: ra.UserID,
			Reason: ra.Reason,
		}, true
	}

	return domain.AutoAction{}, false
}

type rawEmojiChoice struct {
	Emoji string `json:"emoji"`
}

// ParseEmojiChoice extracts the emoji from a reaction-pick response, or ""
// when the response does not conform.
func ParseEmojiChoice(raw string) string {
	text := ExtractJSONObject(raw)
	if text == "" {
		return ""
	}

	var payload rawEmojiChoice
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return ""
	}

	emoji := strings.TrimSpace(payload.Emoji)
	if emoji == "" || len(emoji) > maxEmojiLen {
		return ""
	}
	return emoji
}

type rawMessageDecision struct {
	Send    bool   `json:"send"`
	Content string `json:"content"`
}

// ParseMessageDecision extracts the content of an affirmative auxiliary
// message decision. Returns "" for a negative decision, missing content, or
// a non-conforming response.
func ParseMessageDecision(raw string) string {
	text := ExtractJSONObject(raw)
	if text == "" {
		return ""
	}

	var payload rawMessageDecision
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return ""
	}

	if !payload.Send {
		return ""
	}
	content := strings.TrimSpace(payload.Content)
	if content == "" || len(content) > maxContentLen {
		return ""
	}
	return content
}
