package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"leaguelingo/internal/domain"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache - LRU в памяти процесса, используется без Redis.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

var _ domain.Cache = (*MemoryCache)(nil)

// NewMemory создаёт кэш на size ключей.
func NewMemory(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 128
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries, now: time.Now}, nil
}

// Set задаёт значение. ttl <= 0 означает хранение без срока.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, entry)
	return nil
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, domain.ErrCacheMiss
	}
	return entry.value, nil
}
