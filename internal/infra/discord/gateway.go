package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway intents: GUILDS, GUILD_MESSAGES, MESSAGE_CONTENT.
const gatewayIntents = (1 << 0) | (1 << 9) | (1 << 15)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// InboundMessage is a message received from the gateway, normalized for the
// services: mentions of the bot are detected here and attachments are kept
// for the handler to fold into text.
type InboundMessage struct {
	ID          string
	ChannelID   string
	GuildID     string
	Content     string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	MentionsBot bool
	Attachments []Attachment
}

// Attachment is a file attached to an inbound message.
type Attachment struct {
	Name string
	URL  string
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *InboundMessage)

// Gateway maintains the Discord gateway websocket connection and dispatches
// MESSAGE_CREATE events.
type Gateway struct {
	token     string
	rest      *Client
	onMessage MessageHandler

	// writeMu serializes all writes to conn: the websocket connection
	// supports only one concurrent writer, and both the read loop and the
	// heartbeat goroutine send frames.
	writeMu sync.Mutex
	conn    *websocket.Conn

	seq     atomic.Int64
	botUser string
}

// NewGateway creates a new gateway client. Received messages are passed to
// onMessage, each on its own goroutine.
func NewGateway(token string, rest *Client, onMessage MessageHandler) *Gateway {
	return &Gateway{
		token:     token,
		rest:      rest,
		onMessage: onMessage,
	}
}

// Run connects and processes gateway events until ctx is cancelled,
// reconnecting with backoff on connection loss.
func (g *Gateway) Run(ctx context.Context) error {
	var backoff time.Duration

	for {
		started := time.Now()
		err := g.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff = nextBackoff(backoff, time.Since(started))
		log.Printf("[Gateway] connection lost: %v, reconnecting in %s", err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second

	// A connection that lived this long counts as healthy; the next
	// reconnect starts from the base delay again.
	stableConnection = time.Minute
)

// nextBackoff returns the wait before the next reconnect attempt given the
// previous wait and how long the last connection lived.
func nextBackoff(previous, connectedFor time.Duration) time.Duration {
	if previous < reconnectBase || connectedFor >= stableConnection {
		return reconnectBase
	}
	next := previous * 2
	if next > reconnectMax {
		return reconnectMax
	}
	return next
}

type gatewayPayload struct {
	Op   int             `json:"op"`
	Type string          `json:"t,omitempty"`
	Seq  int64           `json:"s,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

func (g *Gateway) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	g.writeMu.Lock()
	g.conn = conn
	g.writeMu.Unlock()
	defer conn.Close()

	// First frame must be HELLO with the heartbeat interval.
	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go g.heartbeatLoop(heartbeatCtx, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)

	if err := g.identify(); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var payload gatewayPayload
		if err := conn.ReadJSON(&payload); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if payload.Seq != 0 {
			g.seq.Store(payload.Seq)
		}

		switch payload.Op {
		case opDispatch:
			g.handleDispatch(payload.Type, payload.Data)
		case opHeartbeat:
			g.sendHeartbeat()
		case opReconnect:
			return fmt.Errorf("server requested reconnect")
		case opInvalidSession:
			// Session cannot be resumed; wait a beat and re-identify.
			time.Sleep(time.Duration(1+rand.Intn(4)) * time.Second)
			if err := g.identify(); err != nil {
				return fmt.Errorf("re-identify: %w", err)
			}
		case opHeartbeatACK:
			// nothing to do
		}
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	// First heartbeat after interval*jitter, per the gateway docs.
	jitter := time.Duration(rand.Int63n(int64(interval)))
	select {
	case <-ctx.Done():
		return
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		g.sendHeartbeat()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// writeJSON is the single write path to the connection.
func (g *Gateway) writeJSON(v any) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.conn == nil {
		return errors.New("gateway not connected")
	}
	return g.conn.WriteJSON(v)
}

func (g *Gateway) sendHeartbeat() {
	payload := map[string]any{"op": opHeartbeat, "d": g.seq.Load()}
	if err := g.writeJSON(payload); err != nil {
		log.Printf("[Gateway] heartbeat failed: %v", err)
	}
}

func (g *Gateway) identify() error {
	return g.writeJSON(map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "discord-gemini-bot",
				"device":  "discord-gemini-bot",
			},
		},
	})
}

type eventReady struct {
	User apiUser `json:"user"`
}

type eventMessageCreate struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	GuildID   string  `json:"guild_id"`
	Content   string  `json:"content"`
	Author    apiUser `json:"author"`
	Member    struct {
		Nick string `json:"nick"`
	} `json:"member"`
	Mentions []struct {
		ID string `json:"id"`
	} `json:"mentions"`
	Attachments []struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	} `json:"attachments"`
}

func (g *Gateway) handleDispatch(eventType string, data json.RawMessage) {
	switch eventType {
	case "READY":
		var ready eventReady
		if err := json.Unmarshal(data, &ready); err != nil {
			log.Printf("[Gateway] bad READY payload: %v", err)
			return
		}
		g.botUser = ready.User.ID
		if g.rest != nil {
			g.rest.SetBotUserID(ready.User.ID)
		}
		log.Printf("[Gateway] logged in as %s", ready.User.Username)

	case "MESSAGE_CREATE":
		var event eventMessageCreate
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[Gateway] bad MESSAGE_CREATE payload: %v", err)
			return
		}
		// Guild messages only; DMs have no guild id.
		if event.GuildID == "" {
			return
		}

		msg := g.normalizeMessage(&event)
		if g.onMessage != nil {
			go g.onMessage(msg)
		}
	}
}

func (g *Gateway) normalizeMessage(event *eventMessageCreate) *InboundMessage {
	mentionsBot := false
	for _, mention := range event.Mentions {
		if g.botUser != "" && mention.ID == g.botUser {
			mentionsBot = true
			break
		}
	}
	// The mentions array misses replies in some cases; the raw token is
	// authoritative enough for a bot addressed by mention.
	if !mentionsBot && g.botUser != "" {
		mentionsBot = strings.Contains(event.Content, "<@"+g.botUser+">") ||
			strings.Contains(event.Content, "<@!"+g.botUser+">")
	}

	authorName := event.Member.Nick
	if authorName == "" {
		authorName = event.Author.displayName()
	}

	msg := &InboundMessage{
		ID:          event.ID,
		ChannelID:   event.ChannelID,
		GuildID:     event.GuildID,
		Content:     event.Content,
		AuthorID:    event.Author.ID,
		AuthorName:  authorName,
		AuthorIsBot: event.Author.Bot,
		MentionsBot: mentionsBot,
	}
	for _, attachment := range event.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{
			Name: attachment.Filename,
			URL:  attachment.URL,
		})
	}
	return msg
}
