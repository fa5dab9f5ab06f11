package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a pending action waits for its follow-up message.
const DefaultTTL = 10 * time.Minute

// Store keeps one State per chat. Missing or expired entries read as StateIdle.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, s State) error
}

type memoryEntry struct {
	state   State
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]memoryEntry
}

// NewMemoryStore creates a MemoryStore whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]memoryEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[chatID]
	if !ok {
		return StateIdle, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, chatID)
		return StateIdle, nil
	}
	return e.state, nil
}

func (m *MemoryStore) Set(_ context.Context, chatID int64, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s == StateIdle {
		delete(m.entries, chatID)
		return nil
	}
	m.entries[chatID] = memoryEntry{state: s, expires: m.now().Add(m.ttl)}
	return nil
}

// RedisStore keeps chat states in Redis so several bot replicas share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore on top of an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(chatID int64) string {
	return "dialog:" + strconv.FormatInt(chatID, 10)
}

func (r *RedisStore) Get(ctx context.Context, chatID int64) (State, error) {
	val, err := r.client.Get(ctx, redisKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return StateIdle, nil
	}
	if err != nil {
		return StateIdle, fmt.Errorf("reading dialog state: %w", err)
	}

	s := State(val)
	if !s.Valid() {
		return StateIdle, nil
	}
	return s, nil
}

func (r *RedisStore) Set(ctx context.Context, chatID int64, s State) error {
	if s == StateIdle {
		if err := r.client.Del(ctx, redisKey(chatID)).Err(); err != nil {
			return fmt.Errorf("clearing dialog state: %w", err)
		}
		return nil
	}
	if err := r.client.Set(ctx, redisKey(chatID), string(s), r.ttl).Err(); err != nil {
		return fmt.Errorf("writing dialog state: %w", err)
	}
	return nil
}
