package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

const requestTimeout = 30 * time.Second

// Client is an OpenAI-compatible oracle client. Any endpoint speaking the
// chat-completions API works through the configurable base URL.
type Client struct {
	client            *openai.Client
	model             string
	systemInstruction string
}

// NewClient creates a new OpenAI-compatible client
func NewClient(apiKey, baseURL, model, systemInstruction string) *Client {
	if model == "" {
		model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client:            openai.NewClientWithConfig(config),
		model:             model,
		systemInstruction: systemInstruction,
	}
}

// Generate runs a single structured request and returns the raw model text.
func (c *Client) Generate(ctx context.Context, systemInstruction, payload string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: payload},
		},
		Temperature: 0.1, // structured output wants determinism
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Reply answers a conversational question from the rolling history.
func (c *Client) Reply(ctx context.Context, history []domain.ChatTurn, userText, styleInstruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	system := c.systemInstruction
	if styleInstruction != "" {
		system = system + "\n\n" + styleInstruction
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: system,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == domain.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: userText,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
