package shared

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyHeader names the request header carrying a client key.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore remembers processed request keys in Redis.
type IdempotencyStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(client *redis.Client, retention time.Duration) *IdempotencyStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, retention: retention}
}

// Claim records key under namespace. It returns ErrIdempotencyConflict when the
// key was already claimed. An empty key is always accepted.
func (s *IdempotencyStore) Claim(ctx context.Context, namespace, key string) error {
	if key == "" {
		return nil
	}
	if s == nil || s.client == nil {
		return errors.New("idempotency store not initialised")
	}
	ok, err := s.client.SetNX(ctx, "crm:idem:"+namespace+":"+key, time.Now().Unix(), s.retention).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release forgets key so the request may be retried after a failure.
func (s *IdempotencyStore) Release(ctx context.Context, namespace, key string) {
	if key == "" || s == nil || s.client == nil {
		return
	}
	_ = s.client.Del(ctx, "crm:idem:"+namespace+":"+key).Err()
}
