// internal/application/usecase/cart_persister.go
package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	cartdom "koifarm/internal/domain/cart"
)

var ErrPersisterClosed = errors.New("cart_persister: closed")

// defaultSaveTimeout bounds a single store write.
const defaultSaveTimeout = 5 * time.Second

// cartPersister is a write-behind queue in front of cart.Store.
//   - Enqueue never blocks on the store (fire-and-forget for callers)
//   - pending snapshots are coalesced per key: only the latest is written
//   - each write is a full snapshot, so a lost write never leaves a partial record
//   - Peek serves snapshots not yet written, so readers never see a stale store record
type cartPersister struct {
	store  cartdom.Store
	logger *zap.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	pending     map[string][]cartdom.Line
	inflight    map[string][]cartdom.Line
	outstanding int // keys enqueued but not yet written
	closed      bool
	stopped     bool // worker has exited

	wake chan struct{}
	done chan struct{}
}

func newCartPersister(store cartdom.Store, logger *zap.Logger) *cartPersister {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &cartPersister{
		store:    store,
		logger:   logger,
		pending:  map[string][]cartdom.Line{},
		inflight: map[string][]cartdom.Line{},
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// Enqueue schedules lines to be saved under key.
func (p *cartPersister) Enqueue(key string, lines []cartdom.Line) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("[cart_persister] enqueue after close; dropping snapshot", zap.String("key", key))
		return
	}
	if _, exists := p.pending[key]; !exists {
		p.outstanding++
	}
	p.pending[key] = lines
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Peek returns the newest snapshot for key that has not been written yet.
func (p *cartPersister) Peek(key string) ([]cartdom.Line, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lines, ok := p.pending[key]; ok {
		return lines, true
	}
	lines, ok := p.inflight[key]
	return lines, ok
}

// Flush blocks until every snapshot enqueued so far has been written (or failed).
// It returns ErrPersisterClosed when the worker stopped with writes outstanding.
func (p *cartPersister) Flush(ctx context.Context) error {
	result := make(chan error, 1)
	go func() {
		p.mu.Lock()
		for p.outstanding > 0 && !p.stopped {
			p.cond.Wait()
		}
		var err error
		if p.outstanding > 0 {
			err = ErrPersisterClosed
		}
		p.mu.Unlock()
		result <- err
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending writes and stops the worker.
// When ctx ends first, the carts that were not written are logged by key.
func (p *cartPersister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPersisterClosed
	}
	p.closed = true
	p.mu.Unlock()

	err := p.Flush(ctx)
	if err != nil {
		if keys := p.unsaved(); len(keys) > 0 {
			p.logger.Error("[cart_persister] close deadline reached; carts not saved",
				zap.Int("count", len(keys)),
				zap.Strings("keys", keys),
				zap.Error(err),
			)
		}
	}
	close(p.done)
	return err
}

func (p *cartPersister) unsaved() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.pending)+len(p.inflight))
	for k := range p.pending {
		keys = append(keys, k)
	}
	for k := range p.inflight {
		if _, dup := p.pending[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (p *cartPersister) run() {
	defer func() {
		p.mu.Lock()
		p.stopped = true
		p.cond.Broadcast()
		p.mu.Unlock()
	}()

	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}

		p.mu.Lock()
		batch := p.pending
		p.pending = map[string][]cartdom.Line{}
		p.inflight = batch
		p.mu.Unlock()

		for key, lines := range batch {
			select {
			case <-p.done:
				return
			default:
			}
			p.save(key, lines)

			p.mu.Lock()
			delete(p.inflight, key)
			p.outstanding--
			p.cond.Broadcast()
			p.mu.Unlock()
		}
	}
}

func (p *cartPersister) save(key string, lines []cartdom.Line) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSaveTimeout)
	defer cancel()

	start := time.Now()
	if err := p.store.Save(ctx, key, lines); err != nil {
		p.logger.Error("[cart_persister] save failed",
			zap.String("key", key),
			zap.Int("lines", len(lines)),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("[cart_persister] saved",
		zap.String("key", key),
		zap.Int("lines", len(lines)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
