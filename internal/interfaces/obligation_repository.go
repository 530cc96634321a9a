package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
)

// ObligationRepository defines the contract for obligation data access.
type ObligationRepository interface {
	Create(ctx context.Context, obl models.Obligation) error
	GetByID(ctx context.Context, id string) (models.Obligation, error)
	// GetEvent returns the recorded event, and false if the event id was
	// never applied to the obligation.
	GetEvent(ctx context.Context, obligationID, eventID string) (models.EventRecord, bool, error)
	// Commit writes obl and records the event in one transaction, but only if
	// the stored version still equals expectedVersion. It returns
	// models.ErrConcurrentModification otherwise.
	Commit(ctx context.Context, obl models.Obligation, expectedVersion int64, rec models.EventRecord) error
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Obligation, error)
}
