package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	AutoAction AutoActionPrompts `yaml:"auto_action"`
	Chat       ChatPrompts       `yaml:"chat"`
}

// AutoActionPrompts contains auto-action pipeline prompts
type AutoActionPrompts struct {
	// PlannerTemplate is the planner system prompt. It receives the max
	// action count and the max timeout minutes, in that order.
	PlannerTemplate string `yaml:"planner_template"`

	// DeciderPrompt drives the auxiliary send-message decision.
	DeciderPrompt string `yaml:"decider_prompt"`

	// EmojiPrompt drives the fallback reaction pick.
	EmojiPrompt string `yaml:"emoji_prompt"`
}

// ChatPrompts contains mention Q&A prompts
type ChatPrompts struct {
	SystemInstruction string `yaml:"system_instruction"`
}

const defaultPlannerTemplate = `You are a Discord action engine.
You must output strict JSON, no markdown.

Expected schema:
{ "summary": "...", "actions": [ ... ] }

Allowed actions:
- add_reaction: { "type": "add_reaction", "messageId": "...", "emoji": "..." }
- send_message: { "type": "send_message", "content": "..." }
- timeout_user: { "type": "timeout_user", "userId": "...", "minutes": 5, "reason": "..." }
- untimeout_user: { "type": "untimeout_user", "userId": "...", "reason": "..." }

Rules:
- Only use the messageId/userId values provided in the payload.
- Mentions only via a provided <@userId> token (never @here/@everyone).
- The "summary" field is internal, short and factual (max 600 characters).
- Include at least one add_reaction action each cycle.
- The emoji must fit the targeted message.
- Never put a recap in a message unless summaryRequested=true.
- At most %d actions.
- Timeout only for blatant harassment/insults/spam, max duration %d minutes.
- If there is nothing to do: "actions": [].
- Messages short and useful, 1-2 sentences.`

const defaultDeciderPrompt = `You are a Discord engagement engine.
Given the channel summary and recent messages, decide whether one short,
useful message from the bot would help the conversation right now.
Output strict JSON, no markdown: { "send": true|false, "content": "..." }
Rules:
- "content" is required when "send" is true, 1-2 sentences.
- Do not write a recap of the conversation.
- When in doubt: { "send": false }.`

const defaultEmojiPrompt = `You pick one emoji reaction for a Discord message.
Output strict JSON, no markdown: { "emoji": "..." }
The emoji must fit the tone and content of the target message.`

const defaultChatSystemInstruction = `You are an AI assistant in a Discord server.

Behavior rules:
- If the question is unclear, ask for 1-2 clarifications.
- Never reveal secrets (tokens, API keys, environment variables).
- Refuse dangerous, hateful, or illegal content.
- For video game topics (builds, quests, guides, drop rates, meta, patch
  notes), the information may be stale: search the web first when search is
  available, state the game and patch/version you are answering for, and say
  so plainly when you could not find something reliable.`

// DefaultPrompts returns the built-in prompt set
func DefaultPrompts() *PromptsConfig {
	return &PromptsConfig{
		AutoAction: AutoActionPrompts{
			PlannerTemplate: defaultPlannerTemplate,
			DeciderPrompt:   defaultDeciderPrompt,
			EmojiPrompt:     defaultEmojiPrompt,
		},
		Chat: ChatPrompts{
			SystemInstruction: defaultChatSystemInstruction,
		},
	}
}

// PlannerPrompt renders the planner system prompt for the configured limits.
func (p *PromptsConfig) PlannerPrompt(maxActions, maxTimeoutMinutes int) string {
	return fmt.Sprintf(p.AutoAction.PlannerTemplate, maxActions, maxTimeoutMinutes)
}

// LoadPromptsConfig loads prompts configuration from a YAML file, falling
// back to the defaults for any field the file leaves empty. A missing file
// is not an error: the defaults are returned.
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	prompts := DefaultPrompts()

	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/discord-gemini-bot/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var loaded PromptsConfig
		if err := yaml.Unmarshal(raw, &loaded); err != nil {
			return prompts, fmt.Errorf("parse prompts config %s: %w", path, err)
		}

		mergePrompts(prompts, &loaded)
		return prompts, nil
	}

	return prompts, nil
}

func mergePrompts(dst, src *PromptsConfig) {
	if src.AutoAction.PlannerTemplate != "" {
		dst.AutoAction.PlannerTemplate = src.AutoAction.PlannerTemplate
	}
	if src.AutoAction.DeciderPrompt != "" {
		dst.AutoAction.DeciderPrompt = src.AutoAction.DeciderPrompt
	}
	if src.AutoAction.EmojiPrompt != "" {
		dst.AutoAction.EmojiPrompt = src.AutoAction.EmojiPrompt
	}
	if src.Chat.SystemInstruction != "" {
		dst.Chat.SystemInstruction = src.Chat.SystemInstruction
	}
}
