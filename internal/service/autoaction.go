package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
	"github.com/anthropics/discord-gemini-bot/internal/biz/repo"
	"github.com/anthropics/discord-gemini-bot/internal/biz/usecase"
	"github.com/anthropics/discord-gemini-bot/internal/conf"
)

// Audit-log reasons get truncated before hitting the platform.
const auditReasonLimit = 180

const defaultUntimeoutReason = "auto untimeout"

// AutoActionService runs the per-channel auto-action pipeline: it feeds the
// message windows, coalesces cycle triggers, and executes validated plans.
// Channels are fully independent; within one channel at most one cycle runs
// at a time.
type AutoActionService struct {
	planUC   *usecase.AutoActionUsecase
	platform repo.ChatPlatform
	cfg      conf.AutoActionConfig

	// Channel states
	statesMu sync.RWMutex
	states   map[string]*channelState
}

// channelState is the per-channel pipeline state. Its mutex serializes all
// access to the window, both from the inbound handler and from the cycle
// goroutine it spawned.
type channelState struct {
	mu      sync.Mutex
	window  *domain.ChannelWindow
	guildID string
}

// NewAutoActionService creates a new auto-action service
func NewAutoActionService(planUC *usecase.AutoActionUsecase, platform repo.ChatPlatform, cfg conf.AutoActionConfig) *AutoActionService {
	return &AutoActionService{
		planUC:   planUC,
		platform: platform,
		cfg:      cfg,
		states:   make(map[string]*channelState),
	}
}

// Enabled reports whether the pipeline is active.
func (s *AutoActionService) Enabled() bool {
	return s.cfg.EveryNMessages > 0
}

// getState returns the channel's state, creating it lazily on first use
func (s *AutoActionService) getState(channelID string) *channelState {
	s.statesMu.RLock()
	state, ok := s.states[channelID]
	s.statesMu.RUnlock()
	if ok {
		return state
	}

	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	if state, ok := s.states[channelID]; ok {
		return state
	}
	state = &channelState{window: domain.NewChannelWindow(s.cfg.WindowSize)}
	s.states[channelID] = state
	return state
}

// HandleMessage ingests one inbound message and starts a cycle when the
// trigger threshold is reached. Never blocks on oracle or platform calls:
// cycles run on their own goroutine.
func (s *AutoActionService) HandleMessage(channelID, guildID string, msg domain.ChatMessage) {
	if !s.Enabled() {
		return
	}

	state := s.getState(channelID)

	state.mu.Lock()
	state.guildID = guildID
	state.window.Ingest(msg)
	if !state.window.ShouldTrigger(s.cfg.EveryNMessages) {
		state.mu.Unlock()
		return
	}
	admitted := state.window.BeginCycle()
	state.mu.Unlock()

	if admitted {
		go s.runCycles(channelID, state)
	}
}

// Reset clears the channel's window, summary, and coalescing state together.
func (s *AutoActionService) Reset(channelID string) {
	s.statesMu.RLock()
	state, ok := s.states[channelID]
	s.statesMu.RUnlock()
	if !ok {
		return
	}

	state.mu.Lock()
	state.window.Reset()
	state.mu.Unlock()
}

// runCycles executes the admitted cycle and then any deferred re-run, each
// on a snapshot taken at its own start time.
func (s *AutoActionService) runCycles(channelID string, state *channelState) {
	ctx := context.Background()

	for {
		state.mu.Lock()
		snap := state.window.TakeSnapshot()
		guildID := state.guildID
		state.mu.Unlock()

		plan := s.planUC.BuildPlan(ctx, s.channelName(ctx, channelID), snap)

		if summary := strings.TrimSpace(plan.Summary); summary != "" {
			state.mu.Lock()
			state.window.SetSummary(summary)
			state.mu.Unlock()
		}

		for _, action := range plan.Actions {
			if err := s.applyAction(ctx, guildID, channelID, action); err != nil {
				log.Printf("[AutoAction] %s failed in channel %s: %v", action.Type, channelID, err)
			}
		}

		state.mu.Lock()
		again := state.window.FinishCycle()
		state.mu.Unlock()
		if !again {
			return
		}
	}
}

func (s *AutoActionService) channelName(ctx context.Context, channelID string) string {
	name, err := s.platform.FetchChannelName(ctx, channelID)
	if err != nil || name == "" {
		return channelID
	}
	return name
}

// applyAction executes one validated action. Target-resolution failures are
// silent skips; only platform errors propagate to the caller's log line.
func (s *AutoActionService) applyAction(ctx context.Context, guildID, channelID string, action domain.AutoAction) error {
	switch action.Type {
	case domain.ActionSendMessage:
		return s.platform.SendMessage(ctx, channelID, action.Content, true)

	case domain.ActionAddReaction:
		target, err := s.platform.FetchMessage(ctx, channelID, action.MessageID)
		if err != nil {
			return err
		}
		if target == nil {
			// Deleted since the snapshot; nothing to react to.
			return nil
		}
		return s.platform.AddReaction(ctx, channelID, target.ID, action.Emoji)

	case domain.ActionTimeoutUser:
		member, ok, err := s.resolveModerationTarget(ctx, guildID, action.UserID)
		if err != nil || !ok {
			return err
		}
		minutes := clampMinutes(action.Minutes, s.cfg.MaxTimeoutMinutes)
		until := time.Now().Add(time.Duration(minutes) * time.Minute)
		return s.platform.TimeoutMember(ctx, guildID, member.ID, &until, truncateReason(action.Reason))

	case domain.ActionUntimeoutUser:
		member, ok, err := s.resolveModerationTarget(ctx, guildID, action.UserID)
		if err != nil || !ok {
			return err
		}
		reason := truncateReason(action.Reason)
		if reason == "" {
			reason = defaultUntimeoutReason
		}
		return s.platform.TimeoutMember(ctx, guildID, member.ID, nil, reason)
	}

	return nil
}

// resolveModerationTarget resolves a user for timeout/untimeout and applies
// the eligibility checks: never the bot itself, never another bot, never an
// administrator or moderator.
func (s *AutoActionService) resolveModerationTarget(ctx context.Context, guildID, userID string) (*domain.Member, bool, error) {
	if userID == s.platform.BotUserID() {
		return nil, false, nil
	}

	member, err := s.platform.FetchMember(ctx, guildID, userID)
	if err != nil {
		return nil, false, err
	}
	if member == nil || member.IsProtected() {
		return nil, false, nil
	}
	return member, true, nil
}

func clampMinutes(minutes, max int) int {
	if minutes < 1 {
		return 1
	}
	if minutes > max {
		return max
	}
	return minutes
}

func truncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if len(reason) > auditReasonLimit {
		return reason[:auditReasonLimit]
	}
	return reason
}
