// internal/application/usecase/cart_usecase.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	cartdom "koifarm/internal/domain/cart"
)

var (
	ErrCartInvalidArgument = errors.New("cart_usecase: invalid argument")
)

// CartView is the read model every cart surface (page, drawer, checkout summary) renders.
type CartView struct {
	CartID     string          `json:"cartId"`
	Lines      []cartdom.Line  `json:"lines"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	IsOpen     bool            `json:"isOpen"`
}

// CartContainer is the single source of truth for one cart session.
// Mutations are applied in memory and handed to the persister without waiting.
type CartContainer struct {
	id        string
	mu        sync.Mutex
	cart      *cartdom.Cart
	persister *cartPersister
}

// ID returns the cart session id.
func (c *CartContainer) ID() string { return c.id }

// AddItem adds one unit of item.
func (c *CartContainer) AddItem(item cartdom.Item) CartView {
	return c.mutate(func(ct *cartdom.Cart) { ct.AddItem(item) }, true)
}

// RemoveItem deletes the line for id (no-op when absent).
func (c *CartContainer) RemoveItem(id string) CartView {
	return c.mutate(func(ct *cartdom.Cart) { ct.RemoveItem(id) }, true)
}

// UpdateQuantity sets the quantity for id; qty <= 0 removes the line.
func (c *CartContainer) UpdateQuantity(id string, qty int) CartView {
	return c.mutate(func(ct *cartdom.Cart) { ct.UpdateQuantity(id, qty) }, true)
}

// ClearCart empties the cart.
func (c *CartContainer) ClearCart() CartView {
	return c.mutate(func(ct *cartdom.Cart) { ct.Clear() }, true)
}

// SetIsOpen sets the drawer flag. Not persisted.
func (c *CartContainer) SetIsOpen(open bool) CartView {
	return c.mutate(func(ct *cartdom.Cart) { ct.SetOpen(open) }, false)
}

// ToggleCart flips the drawer flag. Not persisted.
func (c *CartContainer) ToggleCart() CartView {
	return c.mutate(func(ct *cartdom.Cart) { ct.Toggle() }, false)
}

// TotalItems returns the sum of quantities.
func (c *CartContainer) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.TotalItems()
}

// TotalPrice returns the sum of unit price times quantity.
func (c *CartContainer) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.TotalPrice()
}

// ItemCount returns the quantity for id, or 0.
func (c *CartContainer) ItemCount(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.ItemCount(id)
}

// View returns the current state.
func (c *CartContainer) View() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *CartContainer) mutate(fn func(*cartdom.Cart), persist bool) CartView {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.cart)
	if persist && c.persister != nil {
		c.persister.Enqueue(cartdom.StorageKey(c.id), c.cart.Snapshot())
	}
	return c.viewLocked()
}

func (c *CartContainer) viewLocked() CartView {
	return CartView{
		CartID:     c.id,
		Lines:      c.cart.Snapshot(),
		TotalItems: c.cart.TotalItems(),
		TotalPrice: c.cart.TotalPrice(),
		IsOpen:     c.cart.IsOpen,
	}
}

// DefaultMaxCarts bounds the number of containers a registry keeps in memory.
const DefaultMaxCarts = 10000

// CartRegistry hands out one CartContainer per cart session id.
// Containers are loaded from the store on first use; a fresh load always starts closed.
// The least recently used container is dropped once MaxCarts is reached; its lines
// come back from the persister queue or the store on the next Open.
type CartRegistry struct {
	store     cartdom.Store
	logger    *zap.Logger
	persister *cartPersister
	maxCarts  int

	mu         sync.Mutex
	containers *lru.Cache[string, *CartContainer]
}

// RegistryOption configures a CartRegistry.
type RegistryOption func(*CartRegistry)

// WithMaxCarts sets the container bound (n <= 0 keeps DefaultMaxCarts).
func WithMaxCarts(n int) RegistryOption {
	return func(r *CartRegistry) {
		if n > 0 {
			r.maxCarts = n
		}
	}
}

func NewCartRegistry(store cartdom.Store, logger *zap.Logger, opts ...RegistryOption) *CartRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &CartRegistry{
		store:     store,
		logger:    logger,
		persister: newCartPersister(store, logger),
		maxCarts:  DefaultMaxCarts,
	}
	for _, opt := range opts {
		opt(r)
	}

	cache, err := lru.NewWithEvict[string, *CartContainer](r.maxCarts, func(id string, _ *CartContainer) {
		r.logger.Debug("[cart_usecase] container evicted", zap.String("cartId", id))
	})
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	r.containers = cache
	return r
}

// Open returns the container for cartID, loading persisted lines when needed.
// A store read failure is logged and the cart starts empty: the storefront keeps working.
func (r *CartRegistry) Open(ctx context.Context, cartID string) (*CartContainer, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return nil, ErrCartInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.containers.Get(id); ok {
		return c, nil
	}

	c := &CartContainer{
		id:        id,
		cart:      cartdom.New(r.loadLines(ctx, id)),
		persister: r.persister,
	}
	r.containers.Add(id, c)

	r.logger.Debug("[cart_usecase] container opened",
		zap.String("cartId", id),
		zap.Int("lines", len(c.cart.Lines)),
	)
	return c, nil
}

// Lookup returns the view for cartID without keeping a container for it.
// Unknown ids read as an empty, closed cart.
func (r *CartRegistry) Lookup(ctx context.Context, cartID string) (CartView, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return CartView{}, ErrCartInvalidArgument
	}

	r.mu.Lock()
	c, ok := r.containers.Peek(id)
	r.mu.Unlock()
	if ok {
		return c.View(), nil
	}

	ct := cartdom.New(r.loadLines(ctx, id))
	return CartView{
		CartID:     id,
		Lines:      ct.Snapshot(),
		TotalItems: ct.TotalItems(),
		TotalPrice: ct.TotalPrice(),
	}, nil
}

// Len reports how many containers are held in memory.
func (r *CartRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.containers.Len()
}

// loadLines prefers a snapshot still queued for writing over the store record.
func (r *CartRegistry) loadLines(ctx context.Context, id string) []cartdom.Line {
	key := cartdom.StorageKey(id)
	if lines, ok := r.persister.Peek(key); ok {
		return lines
	}

	lines, err := r.store.Load(ctx, key)
	if err != nil {
		r.logger.Warn("[cart_usecase] load failed; starting with empty cart",
			zap.String("cartId", id),
			zap.Error(err),
		)
		return nil
	}
	return lines
}

// Evict drops the in-memory container; the next Open reloads from the store.
func (r *CartRegistry) Evict(cartID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers.Remove(strings.TrimSpace(cartID))
}

// Flush waits for pending writes.
func (r *CartRegistry) Flush(ctx context.Context) error {
	return r.persister.Flush(ctx)
}

// Close flushes pending writes and stops the persister.
func (r *CartRegistry) Close(ctx context.Context) error {
	return r.persister.Close(ctx)
}
