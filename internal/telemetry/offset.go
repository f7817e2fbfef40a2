package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// OffsetStore persists how far into a telemetry file the monitor has read.
type OffsetStore interface {
	Load(ctx context.Context, path string) (int64, error)
	Save(ctx context.Context, path string, offset int64) error
}

// MemoryOffsetStore keeps offsets for the lifetime of the process
type MemoryOffsetStore struct {
	mu      sync.Mutex
	offsets map[string]int64
}

// NewMemoryOffsetStore creates an empty in-process offset store
func NewMemoryOffsetStore() *MemoryOffsetStore {
	return &MemoryOffsetStore{offsets: make(map[string]int64)}
}

func (m *MemoryOffsetStore) Load(_ context.Context, path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offsets[path], nil
}

func (m *MemoryOffsetStore) Save(_ context.Context, path string, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets[path] = offset
	return nil
}

// RedisOffsetStore keeps offsets in Redis so a restarted monitor resumes
// where it stopped instead of alerting on history again.
type RedisOffsetStore struct {
	redis *redis.Client
}

// NewRedisOffsetStore creates a new Redis-backed offset store
func NewRedisOffsetStore(redisClient *redis.Client) *RedisOffsetStore {
	return &RedisOffsetStore{redis: redisClient}
}

func offsetKey(path string) string {
	return fmt.Sprintf("tail_offset:%s", path)
}

// Load returns the saved offset, or 0 when none exists
func (s *RedisOffsetStore) Load(ctx context.Context, path string) (int64, error) {
	data, err := s.redis.Get(ctx, offsetKey(path)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get offset from Redis: %w", err)
	}

	offset, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse offset %q: %w", data, err)
	}
	return offset, nil
}

// Save stores the offset without expiry
func (s *RedisOffsetStore) Save(ctx context.Context, path string, offset int64) error {
	if err := s.redis.Set(ctx, offsetKey(path), strconv.FormatInt(offset, 10), 0).Err(); err != nil {
		return fmt.Errorf("failed to set offset in Redis: %w", err)
	}
	return nil
}
