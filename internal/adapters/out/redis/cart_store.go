// internal/adapters/out/redis/cart_store.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	cartdom "koifarm/internal/domain/cart"
)

// CartStore implements cart.Store on Redis.
//   - key: <prefix><cart.StorageKey(cartID)>
//   - value: cart.EncodeLines record
//   - TTL: refreshed on every save (0 disables expiry)
type CartStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// CartStoreOptions configures CartStore.
type CartStoreOptions struct {
	Prefix string
	TTL    time.Duration
}

func NewCartStore(client *goredis.Client, opts CartStoreOptions) *CartStore {
	return &CartStore{
		client: client,
		prefix: strings.TrimSpace(opts.Prefix),
		ttl:    opts.TTL,
	}
}

// NewClient parses redisURL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("cart_store_redis: redis URL is empty")
	}
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cart_store_redis: invalid redis URL: %w", err)
	}
	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cart_store_redis: ping failed: %w", err)
	}
	return client, nil
}

func (s *CartStore) Load(ctx context.Context, key string) ([]cartdom.Line, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("cart_store_redis: client is nil")
	}
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cart_store_redis: get %s: %w", key, err)
	}
	return cartdom.DecodeLines(b)
}

func (s *CartStore) Save(ctx context.Context, key string, lines []cartdom.Line) error {
	if s == nil || s.client == nil {
		return errors.New("cart_store_redis: client is nil")
	}
	b, err := cartdom.EncodeLines(lines)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("cart_store_redis: set %s: %w", key, err)
	}
	return nil
}
