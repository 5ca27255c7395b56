package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TitleMaxLen bounds titles derived from the first user message.
const TitleMaxLen = 50

// DefaultTitle is used when a chat is created from an empty first message.
const DefaultTitle = "New Chat"

// Chat is a titled, ordered conversation.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Message is a single stored turn within a chat. Seq reflects insertion
// order and is assigned by the database.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the wire form of a single conversation turn.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// CompletionRequest is the payload sent to the chat endpoint. A nil ChatID
// creates a new chat. Stream requests delta-by-delta forwarding of the reply.
type CompletionRequest struct {
	ChatID   *string       `json:"chatId"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// CompletionResponse is the consolidated reply for non-streaming requests.
type CompletionResponse struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// DeriveTitle builds a chat title from the first user message: trimmed,
// truncated to TitleMaxLen runes, DefaultTitle when empty.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return DefaultTitle
	}
	runes := []rune(content)
	if len(runes) > TitleMaxLen {
		return string(runes[:TitleMaxLen])
	}
	return content
}
