package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"oedx-chat/internal/client"
)

// Namespace is the fixed key the serialized chat list lives under.
const Namespace = "oedx-chats"

// Redis stores the whole chat list as one JSON blob, read once at startup
// and rewritten on every change.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, key: Namespace}
}

func (m *Redis) Load(ctx context.Context) ([]client.Chat, error) {
	raw, err := m.rdb.Get(ctx, m.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load chat mirror: %w", err)
	}

	var chats []client.Chat
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chat mirror: %w", err)
	}
	return chats, nil
}

func (m *Redis) Save(ctx context.Context, chats []client.Chat) error {
	payload, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("failed to encode chat mirror: %w", err)
	}
	if err := m.rdb.Set(ctx, m.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save chat mirror: %w", err)
	}
	return nil
}
