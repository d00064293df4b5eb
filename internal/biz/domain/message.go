package domain

// ChatMessage represents a normalized inbound chat message.
// Mentions and attachments are already folded into Content as plain text.
type ChatMessage struct {
	ID         string
	AuthorID   string
	AuthorName string
	Content    string
}

// ChatRole identifies the speaker of a conversation turn.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatTurn is one turn of the rolling conversation memory.
type ChatTurn struct {
	Role ChatRole
	Text string
}
