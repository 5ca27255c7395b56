package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"oedx-chat/internal/models"
)

// Chat is the client-side cached form of a conversation. ID is generated
// locally; ServerID is the store-side identifier learned from the first
// reply and sent back on later turns.
type Chat struct {
	ID              string               `json:"id"`
	ServerID        string               `json:"server_id,omitempty"`
	Title           string               `json:"title"`
	TitleCustomized bool                 `json:"title_customized,omitempty"`
	Messages        []models.ChatMessage `json:"messages"`
}

// Mirror persists the full chat list between sessions. It is a cache, not
// the authoritative record; the two may diverge.
type Mirror interface {
	Load(ctx context.Context) ([]Chat, error)
	Save(ctx context.Context, chats []Chat) error
}

// UI holds the chat list and the active conversation, drives the completion
// endpoint, and renders streaming output through its callbacks. It is not
// safe for concurrent use; at most one SendMessage is expected in flight.
type UI struct {
	httpClient *http.Client
	serverURL  string
	mirror     Mirror

	chats        []Chat
	activeChatID string
	draftInput   string
	waiting      bool
	lastErr      error

	// OnChange fires after every state mutation, including each streamed
	// chunk applied to the in-progress assistant message.
	OnChange func()
	// OnDelta fires with each decoded reply chunk while a reply streams.
	OnDelta func(chunk string)
}

// New rehydrates the chat list from the mirror.
func New(ctx context.Context, serverURL string, m Mirror) (*UI, error) {
	chats, err := m.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat mirror: %w", err)
	}

	return &UI{
		httpClient: &http.Client{},
		serverURL:  strings.TrimRight(serverURL, "/"),
		mirror:     m,
		chats:      chats,
	}, nil
}

// Chats returns the chat list, newest-created first.
func (u *UI) Chats() []Chat {
	out := make([]Chat, len(u.chats))
	copy(out, u.chats)
	return out
}

func (u *UI) ActiveChatID() string {
	return u.activeChatID
}

// ActiveChat returns a copy of the active chat, if any.
func (u *UI) ActiveChat() (Chat, bool) {
	idx := u.chatIndex(u.activeChatID)
	if idx < 0 {
		return Chat{}, false
	}
	return u.chats[idx], true
}

func (u *UI) Draft() string        { return u.draftInput }
func (u *UI) SetDraft(text string) { u.draftInput = text }
func (u *UI) Waiting() bool        { return u.waiting }
func (u *UI) Err() error           { return u.lastErr }

// CreateChat prepends a fresh empty chat and makes it active. Purely local;
// the store learns about the chat on the first message.
func (u *UI) CreateChat(ctx context.Context) string {
	id := uuid.New().String()
	chat := Chat{ID: id, Messages: []models.ChatMessage{}}
	u.chats = append([]Chat{chat}, u.chats...)
	u.activeChatID = id
	u.save(ctx)
	u.notify()
	return id
}

// SelectChat makes the given chat active; unknown ids are ignored.
func (u *UI) SelectChat(id string) {
	if u.chatIndex(id) < 0 {
		return
	}
	u.activeChatID = id
	u.notify()
}

// DeleteChat removes a chat locally. The durable copy in the store is left
// alone; only the cached list changes.
func (u *UI) DeleteChat(ctx context.Context, id string) {
	idx := u.chatIndex(id)
	if idx < 0 {
		return
	}
	u.chats = append(u.chats[:idx], u.chats[idx+1:]...)
	if u.activeChatID == id {
		u.activeChatID = ""
	}
	u.save(ctx)
	u.notify()
}

// RenameChat overrides the auto-derived title; later sends leave it alone.
func (u *UI) RenameChat(ctx context.Context, id, title string) {
	idx := u.chatIndex(id)
	if idx < 0 {
		return
	}
	u.chats[idx].Title = title
	u.chats[idx].TitleCustomized = true
	u.save(ctx)
	u.notify()
}

// SendMessage appends a user turn to the active chat, streams the reply into
// an assistant placeholder, and retitles the chat from its first user
// message when done. A blank text or missing active chat is a no-op. On
// failure the partial placeholder stays with whatever content accumulated;
// there is no retry.
func (u *UI) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" || u.activeChatID == "" {
		return nil
	}
	idx := u.chatIndex(u.activeChatID)
	if idx < 0 {
		return nil
	}
	chat := &u.chats[idx]

	chat.Messages = append(chat.Messages, models.ChatMessage{Role: models.RoleUser, Content: text})
	u.draftInput = ""
	u.waiting = true
	u.save(ctx)
	u.notify()

	// Snapshot the history before inserting the placeholder; the request
	// carries only completed turns.
	history := make([]models.ChatMessage, len(chat.Messages))
	copy(history, chat.Messages)

	chat.Messages = append(chat.Messages, models.ChatMessage{Role: models.RoleAssistant, Content: ""})
	u.notify()

	err := u.streamReply(ctx, chat, history)
	u.waiting = false
	if err != nil {
		u.lastErr = err
		log.Printf("send message: %v", err)
	} else if !chat.TitleCustomized && len(chat.Messages) > 0 {
		chat.Title = models.DeriveTitle(chat.Messages[0].Content)
	}
	u.save(ctx)
	u.notify()
	return err
}

// streamReply reads the response body chunk by chunk, growing the assistant
// placeholder by positional replacement of the last message so the rendered
// text only ever appends.
func (u *UI) streamReply(ctx context.Context, chat *Chat, history []models.ChatMessage) error {
	reqBody := models.CompletionRequest{Messages: history, Stream: true}
	if chat.ServerID != "" {
		serverID := chat.ServerID
		reqBody.ChatID = &serverID
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.serverURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat request failed: %s", resp.Status)
	}

	if id := resp.Header.Get("X-Chat-Id"); id != "" {
		chat.ServerID = id
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			last := len(chat.Messages) - 1
			grown := chat.Messages[last]
			grown.Content += chunk
			chat.Messages[last] = grown
			if u.OnDelta != nil {
				u.OnDelta(chunk)
			}
			u.notify()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reply stream interrupted: %w", err)
		}
	}
}

func (u *UI) chatIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range u.chats {
		if u.chats[i].ID == id {
			return i
		}
	}
	return -1
}

func (u *UI) save(ctx context.Context) {
	if err := u.mirror.Save(ctx, u.chats); err != nil {
		log.Printf("failed to save chat mirror: %v", err)
	}
}

func (u *UI) notify() {
	if u.OnChange != nil {
		u.OnChange()
	}
}
