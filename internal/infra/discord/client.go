package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

const (
	apiBaseURL = "https://discord.com/api/v10"

	roleCacheTTL = 5 * time.Minute
)

// Client is the Discord REST API client
type Client struct {
	token      string
	baseURL    string
	httpClient *retryablehttp.Client

	mu        sync.RWMutex
	botUserID string

	rolesMu   sync.Mutex
	roleCache map[string]*roleCacheEntry

	namesMu      sync.Mutex
	channelNames map[string]string
}

type roleCacheEntry struct {
	permissions map[string]int64 // role id -> permission bits
	fetchedAt   time.Time
}

// NewClient creates a new Discord REST client
func NewClient(token string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.HTTPClient.Timeout = 15 * time.Second
	httpClient.Logger = nil

	return &Client{
		token:        token,
		baseURL:      apiBaseURL,
		httpClient:   httpClient,
		roleCache:    make(map[string]*roleCacheEntry),
		channelNames: make(map[string]string),
	}
}

// SetBotUserID records the bot's own user id (learned from the gateway READY event)
func (c *Client) SetBotUserID(id string) {
	c.mu.Lock()
	c.botUserID = id
	c.mu.Unlock()
}

// BotUserID returns the bot's own user id, empty until the gateway is ready
func (c *Client) BotUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUserID
}

// notFoundError marks a 404 from the API so lookups can map it to (nil, nil)
type notFoundError struct{ path string }

func (e *notFoundError) Error() string {
	return "not found: " + e.path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &notFoundError{path: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

type apiUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

func (u apiUser) displayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

type apiMessage struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Author  apiUser `json:"author"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type createMessageRequest struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// SendMessage sends text to a channel, chunking long content
func (c *Client) SendMessage(ctx context.Context, channelID, text string, allowUserMentions bool) error {
	chunks := SplitMessage(text, MessageLimit)
	if len(chunks) == 0 {
		return nil
	}

	mentions := allowedMentions{Parse: []string{}}
	if allowUserMentions {
		mentions.Parse = []string{"users"}
	}

	for _, chunk := range chunks {
		body := createMessageRequest{Content: chunk, AllowedMentions: mentions}
		if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// FetchMessage fetches a single message, (nil, nil) when it no longer exists
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*domain.ChatMessage, error) {
	var msg apiMessage
	err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/messages/"+messageID, nil, &msg, nil)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.ChatMessage{
		ID:         msg.ID,
		AuthorID:   msg.Author.ID,
		AuthorName: msg.Author.displayName(),
		Content:    msg.Content,
	}, nil
}

// AddReaction attaches an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := "/channels/" + channelID + "/messages/" + messageID +
		"/reactions/" + url.PathEscape(emoji) + "/@me"
	return c.do(ctx, http.MethodPut, path, nil, nil, nil)
}

type apiMember struct {
	User  apiUser  `json:"user"`
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}

// FetchMember resolves a guild member with permission bits aggregated from
// its roles, (nil, nil) when the user is not a member
func (c *Client) FetchMember(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	var member apiMember
	err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, &member, nil)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rolePerms, err := c.guildRolePermissions(ctx, guildID)
	if err != nil {
		return nil, err
	}

	// @everyone role shares the guild id and applies to every member.
	permissions := rolePerms[guildID]
	for _, roleID := range member.Roles {
		permissions |= rolePerms[roleID]
	}

	displayName := member.Nick
	if displayName == "" {
		displayName = member.User.displayName()
	}

	return &domain.Member{
		ID:          member.User.ID,
		Username:    member.User.Username,
		DisplayName: displayName,
		IsBot:       member.User.Bot,
		Permissions: permissions,
	}, nil
}

type apiRole struct {
	ID          string `json:"id"`
	Permissions string `json:"permissions"`
}

func (c *Client) guildRolePermissions(ctx context.Context, guildID string) (map[string]int64, error) {
	c.rolesMu.Lock()
	entry, ok := c.roleCache[guildID]
	if ok && time.Since(entry.fetchedAt) < roleCacheTTL {
		c.rolesMu.Unlock()
		return entry.permissions, nil
	}
	c.rolesMu.Unlock()

	var roles []apiRole
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", nil, &roles, nil); err != nil {
		return nil, err
	}

	permissions := make(map[string]int64, len(roles))
	for _, role := range roles {
		bits, err := strconv.ParseInt(role.Permissions, 10, 64)
		if err != nil {
			continue
		}
		permissions[role.ID] = bits
	}

	c.rolesMu.Lock()
	c.roleCache[guildID] = &roleCacheEntry{permissions: permissions, fetchedAt: time.Now()}
	c.rolesMu.Unlock()

	return permissions, nil
}

type timeoutRequest struct {
	CommunicationDisabledUntil *string `json:"communication_disabled_until"`
}

// TimeoutMember times a member out until the given instant, or clears the
// timeout when until is nil
func (c *Client) TimeoutMember(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	var body timeoutRequest
	if until != nil {
		formatted := until.UTC().Format(time.RFC3339)
		body.CommunicationDisabledUntil = &formatted
	}

	headers := map[string]string{}
	if reason != "" {
		headers["X-Audit-Log-Reason"] = url.QueryEscape(reason)
	}

	return c.do(ctx, http.MethodPatch, "/guilds/"+guildID+"/members/"+userID, body, nil, headers)
}

type apiChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FetchChannelName resolves a channel's display name, falling back to the
// id when the channel has no name (DMs)
func (c *Client) FetchChannelName(ctx context.Context, channelID string) (string, error) {
	c.namesMu.Lock()
	if name, ok := c.channelNames[channelID]; ok {
		c.namesMu.Unlock()
		return name, nil
	}
	c.namesMu.Unlock()

	var channel apiChannel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &channel, nil); err != nil {
		return "", err
	}

	name := strings.TrimSpace(channel.Name)
	if name == "" {
		name = channelID
	}

	c.namesMu.Lock()
	c.channelNames[channelID] = name
	c.namesMu.Unlock()

	return name, nil
}

// TriggerTyping shows the typing indicator
func (c *Client) TriggerTyping(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/typing", nil, nil, nil)
}
