package usecase

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
	"github.com/anthropics/discord-gemini-bot/internal/biz/repo"
)

// PlannerConfig contains plan-acquisition configuration and prompts.
type PlannerConfig struct {
	PlannerPrompt     string // system prompt for the main plan request
	DeciderPrompt     string // system prompt for the auxiliary message decision
	EmojiPrompt       string // system prompt for the fallback reaction pick
	MaxActions        int
	MaxTimeoutMinutes int
}

// AutoActionUsecase acquires and validates an action plan for one cycle.
// All oracle output passes through the plan codec and the safety filter
// before anything reaches the executor.
type AutoActionUsecase struct {
	oracle repo.Oracle
	cfg    PlannerConfig
}

// NewAutoActionUsecase creates a new auto-action usecase
func NewAutoActionUsecase(oracle repo.Oracle, cfg PlannerConfig) *AutoActionUsecase {
	return &AutoActionUsecase{oracle: oracle, cfg: cfg}
}

type payloadMessage struct {
	ID         string `json:"messageId"`
	AuthorID   string `json:"userId"`
	AuthorName string `json:"userName"`
	Content    string `json:"content"`
}

type planPayload struct {
	Channel           string           `json:"channelName"`
	Summary           string           `json:"summary"`
	Messages          []payloadMessage `json:"messages"`
	MaxActions        int              `json:"maxActions"`
	MaxTimeoutMinutes int              `json:"maxTimeoutMinutes"`
	SummaryRequested  bool             `json:"summaryRequested"`
}

type deciderPayload struct {
	Channel  string           `json:"channelName"`
	Summary  string           `json:"summary"`
	Messages []payloadMessage `json:"messages"`
}

type emojiPayload struct {
	Channel string         `json:"channelName"`
	Summary string         `json:"summary"`
	Message payloadMessage `json:"message"`
}

func toPayloadMessages(messages []domain.ChatMessage) []payloadMessage {
	out := make([]payloadMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, payloadMessage{
			ID:         msg.ID,
			AuthorID:   msg.AuthorID,
			AuthorName: msg.AuthorName,
			Content:    msg.Content,
		})
	}
	return out
}

// BuildPlan runs the plan-acquisition sequence for one cycle: main plan
// request, safety filtering, then the two optional augmentations (auxiliary
// message, fallback reaction). Each oracle sub-call fails independently; a
// failure degrades to fewer actions, never to an aborted cycle. The returned
// plan's Summary is the new running summary (the snapshot's when the oracle
// produced none).
func (uc *AutoActionUsecase) BuildPlan(ctx context.Context, channelName string, snap domain.Snapshot) domain.AutoActionPlan {
	summaryRequested := HasSummaryRequest(snap.Messages)
	allowedMessageIDs := snap.MessageIDs()
	allowedUserIDs := snap.AuthorIDs()

	plan := domain.AutoActionPlan{Summary: snap.Summary}
	payload, err := json.Marshal(planPayload{
		Channel:           channelName,
		Summary:           snap.Summary,
		Messages:          toPayloadMessages(snap.Messages),
		MaxActions:        uc.cfg.MaxActions,
		MaxTimeoutMinutes: uc.cfg.MaxTimeoutMinutes,
		SummaryRequested:  summaryRequested,
	})
	if err == nil {
		raw, genErr := uc.oracle.Generate(ctx, uc.cfg.PlannerPrompt, string(payload))
		if genErr != nil {
			log.Printf("[AutoAction] plan request failed: %v", genErr)
		} else {
			plan = ParsePlan(raw, snap.Summary, uc.cfg.MaxActions)
		}
	}

	summary := strings.TrimSpace(plan.Summary)
	if summary == "" {
		summary = snap.Summary
	}

	actions := FilterActions(plan.Actions, allowedMessageIDs, allowedUserIDs, summaryRequested)

	if !hasActionType(actions, domain.ActionSendMessage) && len(actions) < uc.cfg.MaxActions {
		if content := uc.decideMessage(ctx, channelName, summary, snap.Messages); content != "" {
			candidate := domain.AutoAction{Type: domain.ActionSendMessage, Content: content}
			// The candidate goes through the same filter as batch actions;
			// filtering a singleton must agree with filtering it in a batch.
			if len(FilterActions([]domain.AutoAction{candidate}, allowedMessageIDs, allowedUserIDs, summaryRequested)) > 0 {
				actions = append(actions, candidate)
			}
		}
	}

	if !hasActionType(actions, domain.ActionAddReaction) && len(snap.Messages) > 0 {
		last := snap.Messages[len(snap.Messages)-1]
		if emoji := uc.pickReactionEmoji(ctx, channelName, summary, last); emoji != "" {
			// No re-filter here: the target id comes from the snapshot,
			// not from the oracle.
			actions = append(actions, domain.AutoAction{
				Type:      domain.ActionAddReaction,
				MessageID: last.ID,
				Emoji:     emoji,
			})
		}
	}

	if len(actions) > uc.cfg.MaxActions {
		actions = actions[:uc.cfg.MaxActions]
	}

	return domain.AutoActionPlan{Summary: summary, Actions: actions}
}

// decideMessage asks the oracle whether one auxiliary message would help.
// Returns "" on a negative decision or any failure.
func (uc *AutoActionUsecase) decideMessage(ctx context.Context, channelName, summary string, messages []domain.ChatMessage) string {
	payload, err := json.Marshal(deciderPayload{
		Channel:  channelName,
		Summary:  summary,
		Messages: toPayloadMessages(messages),
	})
	if err != nil {
		return ""
	}

	raw, err := uc.oracle.Generate(ctx, uc.cfg.DeciderPrompt, string(payload))
	if err != nil {
		log.Printf("[AutoAction] message decision failed: %v", err)
		return ""
	}
	return ParseMessageDecision(raw)
}

// pickReactionEmoji asks the oracle for one emoji for the target message.
// Returns "" on any failure.
func (uc *AutoActionUsecase) pickReactionEmoji(ctx context.Context, channelName, summary string, target domain.ChatMessage) string {
	payload, err := json.Marshal(emojiPayload{
		Channel: channelName,
		Summary: summary,
		Message: payloadMessage{
			ID:         target.ID,
			AuthorID:   target.AuthorID,
			AuthorName: target.AuthorName,
			Content:    target.Content,
		},
	})
	if err != nil {
		return ""
	}

	raw, err := uc.oracle.Generate(ctx, uc.cfg.EmojiPrompt, string(payload))
	if err != nil {
		log.Printf("[AutoAction] reaction pick failed: %v", err)
		return ""
	}
	return ParseEmojiChoice(raw)
}

func hasActionType(actions []domain.AutoAction, t domain.ActionType) bool {
	for _, action := range actions {
		if action.Type == t {
			return true
		}
	}
	return false
}
