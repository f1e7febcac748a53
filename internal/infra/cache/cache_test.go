package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"leaguelingo/internal/domain"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, "sleeper:")
	ctx := context.Background()

	if _, err := c.Get(ctx, "players"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("ожидали промах кэша, получили %v", err)
	}
	if err := c.Set(ctx, "players", []byte(`{"1":{}}`), time.Minute); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !mr.Exists("sleeper:players") {
		t.Fatalf("ожидали ключ с префиксом")
	}
	got, err := c.Get(ctx, "players")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if string(got) != `{"1":{}}` {
		t.Fatalf("unexpected value: %s", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := c.Get(ctx, "players"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("ожидали истечение ключа, получили %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c, err := NewMemory(4)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	now := time.Date(2024, 9, 5, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got, err := c.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("ожидали значение, получили %q, %v", got, err)
	}

	now = now.Add(time.Hour)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("ожидали истечение ключа, получили %v", err)
	}
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	c, err := NewMemory(2)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "c", []byte("3"), 0)
	if _, err := c.Get(ctx, "a"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("ожидали вытеснение старейшего ключа")
	}
	if got, _ := c.Get(ctx, "c"); string(got) != "3" {
		t.Fatalf("ожидали свежий ключ")
	}
}
