// internal/adapters/out/db/cart_store_pg.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	cartdom "koifarm/internal/domain/cart"
)

// CartStorePG implements cart.Store on PostgreSQL (one JSONB record per key).
type CartStorePG struct {
	DB *sql.DB
}

func NewCartStorePG(db *sql.DB) *CartStorePG {
	return &CartStorePG{DB: db}
}

const cartRecordsDDL = `
CREATE TABLE IF NOT EXISTS cart_records (
    key        TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the cart_records table when missing.
func (r *CartStorePG) EnsureSchema(ctx context.Context) error {
	if r == nil || r.DB == nil {
		return errors.New("cart_store_pg: db is nil")
	}
	if _, err := r.DB.ExecContext(ctx, cartRecordsDDL); err != nil {
		return fmt.Errorf("cart_store_pg: ensure schema: %w", err)
	}
	return nil
}

func (r *CartStorePG) Load(ctx context.Context, key string) ([]cartdom.Line, error) {
	if r == nil || r.DB == nil {
		return nil, errors.New("cart_store_pg: db is nil")
	}
	const q = `
SELECT payload
FROM cart_records
WHERE key = $1`

	var payload []byte
	err := r.DB.QueryRowContext(ctx, q, strings.TrimSpace(key)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cart_store_pg: load %s: %w", key, err)
	}
	return cartdom.DecodeLines(payload)
}

func (r *CartStorePG) Save(ctx context.Context, key string, lines []cartdom.Line) error {
	if r == nil || r.DB == nil {
		return errors.New("cart_store_pg: db is nil")
	}
	payload, err := cartdom.EncodeLines(lines)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO cart_records (key, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	if _, err := r.DB.ExecContext(ctx, q, strings.TrimSpace(key), payload); err != nil {
		return fmt.Errorf("cart_store_pg: save %s: %w", key, err)
	}
	return nil
}

// isUndefinedTable reports SQLSTATE 42P01 (schema not created yet).
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	return false
}
