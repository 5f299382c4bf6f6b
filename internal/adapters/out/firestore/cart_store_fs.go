// internal/adapters/out/firestore/cart_store_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartdom "koifarm/internal/domain/cart"
)

// CartStoreFS implements cart.Store using Firestore.
//
// Collection design:
// - collection: carts
// - docId: cart.StorageKey(cartID)  (docId is the source of truth)
// - fields: lines(array), version, updatedAt, expiresAt
//
// TTL:
// - Configure Firestore TTL on "expiresAt".
type CartStoreFS struct {
	Client *firestore.Client
	TTL    time.Duration
}

// DefaultCartTTL is the inactivity window after which a stored cart may be deleted by Firestore TTL.
const DefaultCartTTL = 30 * 24 * time.Hour

func NewCartStoreFS(client *firestore.Client) *CartStoreFS {
	return &CartStoreFS{Client: client, TTL: DefaultCartTTL}
}

func (r *CartStoreFS) col() *firestore.CollectionRef {
	return r.Client.Collection("carts")
}

// Load returns (nil, nil) if not found.
func (r *CartStoreFS) Load(ctx context.Context, key string) ([]cartdom.Line, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("cart_store_fs: firestore client is nil")
	}
	id := strings.TrimSpace(key)
	if id == "" {
		return nil, errors.New("cart_store_fs: key is empty")
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc cartDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toLines(), nil
}

// Save overwrites the full doc (simple & predictable).
func (r *CartStoreFS) Save(ctx context.Context, key string, lines []cartdom.Line) error {
	if r == nil || r.Client == nil {
		return errors.New("cart_store_fs: firestore client is nil")
	}
	id := strings.TrimSpace(key)
	if id == "" {
		return errors.New("cart_store_fs: key is empty")
	}

	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	doc := cartDocFromLines(lines, time.Now().UTC(), ttl)

	_, err := r.col().Doc(id).Set(ctx, doc)
	return err
}

// -----------------------------------------
// Firestore DTO
// -----------------------------------------

type cartDoc struct {
	Version   int           `firestore:"version"`
	Lines     []cartLineDoc `firestore:"lines"`
	UpdatedAt time.Time     `firestore:"updatedAt"`
	ExpiresAt time.Time     `firestore:"expiresAt"`
}

// cartLineDoc keeps the price as a decimal string; Firestore numbers are float64.
type cartLineDoc struct {
	ID        string `firestore:"id"`
	Name      string `firestore:"name"`
	Variety   string `firestore:"variety"`
	UnitPrice string `firestore:"price"`
	Size      string `firestore:"size"`
	Age       string `firestore:"age"`
	Image     string `firestore:"image"`
	Quantity  int    `firestore:"quantity"`
}

func cartDocFromLines(lines []cartdom.Line, now time.Time, ttl time.Duration) cartDoc {
	out := make([]cartLineDoc, 0, len(lines))
	for _, l := range lines {
		out = append(out, cartLineDoc{
			ID:        l.ID,
			Name:      l.Name,
			Variety:   l.Variety,
			UnitPrice: l.UnitPrice.String(),
			Size:      l.Size,
			Age:       l.Age,
			Image:     l.Image,
			Quantity:  l.Quantity,
		})
	}
	return cartDoc{
		Version:   1,
		Lines:     out,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// toLines maps back to domain lines; an unparsable price reads as zero.
func (d cartDoc) toLines() []cartdom.Line {
	lines := make([]cartdom.Line, 0, len(d.Lines))
	for _, l := range d.Lines {
		price, err := decimal.NewFromString(strings.TrimSpace(l.UnitPrice))
		if err != nil {
			price = decimal.Zero
		}
		lines = append(lines, cartdom.Line{
			ID:        l.ID,
			Name:      l.Name,
			Variety:   l.Variety,
			UnitPrice: price,
			Size:      l.Size,
			Age:       l.Age,
			Image:     l.Image,
			Quantity:  l.Quantity,
		})
	}
	return cartdom.New(lines).Lines
}
