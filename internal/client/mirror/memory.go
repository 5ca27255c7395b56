package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"oedx-chat/internal/client"
)

// Memory keeps the serialized chat list in process memory. Used when no
// Redis URL is configured; chats then survive only the current session.
// It round-trips through JSON so its behavior matches the Redis mirror.
type Memory struct {
	blob []byte
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) ([]client.Chat, error) {
	if m.blob == nil {
		return nil, nil
	}
	var chats []client.Chat
	if err := json.Unmarshal(m.blob, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chat mirror: %w", err)
	}
	return chats, nil
}

func (m *Memory) Save(ctx context.Context, chats []client.Chat) error {
	payload, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("failed to encode chat mirror: %w", err)
	}
	m.blob = payload
	return nil
}
