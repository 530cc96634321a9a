package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
)

type StockRepository struct {
	db *sql.DB
}

var _ interfaces.StockStore = (*StockRepository)(nil)

func NewStockRepository(db *sql.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) InitDB(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS stock_items (
		item_id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		quantity NUMERIC(18,4) NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	return err
}

// Decrement lowers the item's quantity by qty, never below zero.
func (r *StockRepository) Decrement(ctx context.Context, itemID string, qty decimal.Decimal) (models.StockDecrement, error) {
	res := models.StockDecrement{ItemID: itemID}
	err := r.db.QueryRowContext(ctx, `
		WITH prev AS (
			SELECT item_id, quantity FROM stock_items WHERE item_id = $1 FOR UPDATE
		)
		UPDATE stock_items s
		SET quantity = GREATEST(prev.quantity - $2, 0), updated_at = NOW()
		FROM prev
		WHERE s.item_id = prev.item_id
		RETURNING prev.quantity, s.quantity
	`, itemID, qty).Scan(&res.Before, &res.After)
	if errors.Is(err, sql.ErrNoRows) {
		return res, fmt.Errorf("%w: %s", models.ErrStockItemNotFound, itemID)
	}
	if err != nil {
		return res, err
	}
	res.Shortfall = shortfall(res.Before, qty)
	return res, nil
}

func shortfall(before, qty decimal.Decimal) decimal.Decimal {
	if qty.GreaterThan(before) {
		return qty.Sub(before)
	}
	return decimal.Zero
}
