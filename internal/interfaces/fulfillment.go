package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
)

// StockStore decrements stock records, clamping at zero.
type StockStore interface {
	Decrement(ctx context.Context, itemID string, qty decimal.Decimal) (models.StockDecrement, error)
}

// TriggerDeduper claims per-line fulfillment keys so a redelivered trigger
// does not decrement stock twice.
type TriggerDeduper interface {
	// Claim returns true if the key was not claimed before.
	Claim(ctx context.Context, key string) (bool, error)
	// Release drops a claim whose side effect failed, so a retry can run it.
	Release(ctx context.Context, key string) error
}

// TriggerDispatcher hands a committed fulfillment trigger to the coordinator,
// directly or through a broker.
type TriggerDispatcher interface {
	Dispatch(ctx context.Context, trigger models.FulfillmentTrigger) error
}

// Notifier publishes obligation changes to interested UI subscribers.
type Notifier interface {
	Notify(ctx context.Context, change models.ObligationChange) error
}
