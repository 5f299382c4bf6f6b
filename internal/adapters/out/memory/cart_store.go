// internal/adapters/out/memory/cart_store.go
package memory

import (
	"context"
	"sync"

	cartdom "koifarm/internal/domain/cart"
)

// CartStore implements cart.Store in process memory.
// Records are kept encoded so reads go through the same codec as durable stores.
type CartStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewCartStore() *CartStore {
	return &CartStore{records: map[string][]byte{}}
}

func (s *CartStore) Load(ctx context.Context, key string) ([]cartdom.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	b, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return cartdom.DecodeLines(b)
}

func (s *CartStore) Save(ctx context.Context, key string, lines []cartdom.Line) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := cartdom.EncodeLines(lines)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[key] = b
	s.mu.Unlock()
	return nil
}

// Raw returns the stored record for key (tests and diagnostics).
func (s *CartStore) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.records[key]
	return b, ok
}
