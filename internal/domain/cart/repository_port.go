// internal/domain/cart/repository_port.go
package cart

import (
	"context"
	"strings"
)

// StorageNamespace is the fixed namespace every persisted cart record lives under.
const StorageNamespace = "koi-cart-storage"

// Store is a persistence port for cart lines.
//
// Only lines are stored; IsOpen never reaches the store.
// Each Save writes the full snapshot (last write wins).
type Store interface {
	// Load returns (nil, nil) when nothing is stored under key.
	Load(ctx context.Context, key string) ([]Line, error)

	// Save overwrites the record under key.
	Save(ctx context.Context, key string, lines []Line) error
}

// StorageKey returns the namespaced record key for a cart session id.
func StorageKey(cartID string) string {
	return StorageNamespace + ":" + strings.TrimSpace(cartID)
}
