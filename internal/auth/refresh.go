package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshStore remembers issued refresh token ids so each can be redeemed once.
type RefreshStore interface {
	Save(ctx context.Context, id, subject string, ttl time.Duration) error
	// Consume deletes id and returns its subject; ok is false when id is unknown
	// or was already used.
	Consume(ctx context.Context, id string) (subject string, ok bool, err error)
}

// RedisRefreshStore keeps refresh token ids as expiring keys.
type RedisRefreshStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRefreshStore builds a store using keys under prefix.
func NewRedisRefreshStore(client *redis.Client, prefix string) *RedisRefreshStore {
	if prefix == "" {
		prefix = "attendance:refresh:"
	}
	return &RedisRefreshStore{client: client, prefix: prefix}
}

func (s *RedisRefreshStore) Save(ctx context.Context, id, subject string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+id, subject, ttl).Err()
}

func (s *RedisRefreshStore) Consume(ctx context.Context, id string) (string, bool, error) {
	subject, err := s.client.GetDel(ctx, s.prefix+id).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return subject, true, nil
}

// MemoryRefreshStore is a map-backed RefreshStore for dev/testing.
type MemoryRefreshStore struct {
	mu      sync.Mutex
	entries map[string]memoryRefresh
	now     func() time.Time
}

type memoryRefresh struct {
	subject string
	expires time.Time
}

// NewMemoryRefreshStore creates an empty store.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{entries: make(map[string]memoryRefresh), now: time.Now}
}

func (s *MemoryRefreshStore) Save(_ context.Context, id, subject string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryRefresh{subject: subject, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryRefreshStore) Consume(_ context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, id)
	if s.now().After(e.expires) {
		return "", false, nil
	}
	return e.subject, true, nil
}
