package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// HandoffStore is a handoff.Store backed by plain keys with TTL.
// Take uses GETDEL so two instances can never deliver the same message.
type HandoffStore struct {
	client *redis.Client
}

func NewHandoffStore(client *redis.Client) *HandoffStore {
	return &HandoffStore{client: client}
}

func (s *HandoffStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("put handoff: %w", err)
	}
	return nil
}

func (s *HandoffStore) Take(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrHandoffEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("take handoff: %w", err)
	}
	return payload, nil
}
