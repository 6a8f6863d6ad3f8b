package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

type fakeClient struct {
	mu     sync.Mutex
	items  map[string]*memcache.Item
	getErr error
}

func (c *fakeClient) Get(key string) (*memcache.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}

	item, ok := c.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}

	return item, nil
}

func (c *fakeClient) Set(item *memcache.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[item.Key] = item

	return nil
}

func TestMemcacheRoundTrip(t *testing.T) {
	fake := &fakeClient{items: map[string]*memcache.Item{}}
	m := &Memcache{client: fake, log: slog.Default()}
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "key"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := m.Set(ctx, "key", []byte(`{"did":"x"}`), 600*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.items["key"].Expiration != 600 {
		t.Fatalf("expected expiration in seconds, got %d", fake.items["key"].Expiration)
	}

	value, ok, err := m.Get(ctx, "key")
	if err != nil || !ok || string(value) != `{"did":"x"}` {
		t.Fatalf("unexpected get: %q ok=%v err=%v", value, ok, err)
	}
}

func TestMemcacheErrors(t *testing.T) {
	fake := &fakeClient{items: map[string]*memcache.Item{}, getErr: errors.New("connection refused")}
	m := &Memcache{client: fake, log: slog.Default()}

	if _, ok, err := m.Get(context.Background(), "key"); ok || err == nil {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Set(ctx, "key", nil, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
