// Package cache keeps short-lived values in memcached.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

type client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

type Memcache struct {
	client client
	log    *slog.Logger
}

func NewMemcache(addr string, timeout time.Duration, log *slog.Logger) *Memcache {
	mc := memcache.New(addr)
	mc.Timeout = timeout

	return &Memcache{client: mc, log: log}
}

// Get reports a miss as ok == false with a nil error.
func (m *Memcache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		m.log.DebugContext(ctx, "Cache miss",
			"key", key)

		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("get item: %w", err)
	}

	return item.Value, true, nil
}

func (m *Memcache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl / time.Second),
	}); err != nil {
		return fmt.Errorf("set item: %w", err)
	}

	return nil
}
