package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

const requestTimeout = 30 * time.Second

// Client is the Gemini oracle client
type Client struct {
	client            *genai.Client
	model             string
	systemInstruction string
	enableSearch      bool
}

// NewClient creates a new Gemini client. systemInstruction is the base
// instruction for conversational replies; structured requests pass their own.
func NewClient(ctx context.Context, apiKey, model, systemInstruction string, enableSearch bool) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client:            client,
		model:             model,
		systemInstruction: systemInstruction,
		enableSearch:      enableSearch,
	}, nil
}

// Generate runs a single structured request and returns the raw model text.
func (c *Client) Generate(ctx context.Context, systemInstruction, payload string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(payload, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return strings.TrimSpace(resp.Text()), nil
}

// Reply answers a conversational question from the rolling history.
func (c *Client) Reply(ctx context.Context, history []domain.ChatTurn, userText, styleInstruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(userText, genai.RoleUser))

	system := c.systemInstruction
	if styleInstruction != "" {
		system = system + "\n\n" + styleInstruction
	}

	wantsSources := wantsSourcesRegex.MatchString(userText)
	isGameQuery := looksLikeGameQuery(userText)
	useSearch := c.enableSearch && (isGameQuery || wantsSources)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if useSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", nil
	}

	// Cite sources only when search ran and the user cares about them.
	if !useSearch || (!wantsSources && !isGameQuery) {
		return answer, nil
	}
	if sources := groundingSources(resp, 5); len(sources) > 0 {
		answer += "\n\nSources:\n- " + strings.Join(sources, "\n- ")
	}
	return answer, nil
}

var wantsSourcesRegex = regexp.MustCompile(`(?i)\b(sources?|liens?|r[eé]f[eé]rences?|citations?)\b`)

// Topics where the answer goes stale quickly and a web search pays off.
var gameQueryKeywords = []string{
	"build", "gear", "item", "patch", "hotfix", "update", "season", "saison",
	"meta", "tier list", "quest", "quête", "walkthrough", "guide", "raid",
	"donjon", "dungeon", "mmo", "pvp", "pve", "drop rate", "loot", "boss",
	"fortnite", "valorant", "league of legends", "dofus", "diablo",
	"path of exile", "wow", "genshin", "elden ring", "minecraft", "cs2",
}

func looksLikeGameQuery(userText string) bool {
	text := strings.ToLower(userText)
	for _, keyword := range gameQueryKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func groundingSources(resp *genai.GenerateContentResponse, limit int) []string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		if _, ok := seen[chunk.Web.URI]; ok {
			continue
		}
		seen[chunk.Web.URI] = struct{}{}
		urls = append(urls, chunk.Web.URI)
		if len(urls) >= limit {
			break
		}
	}
	return urls
}
