package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

// MemoryObligationRepository keeps obligations in process. It honours the
// same versioned-commit contract as the Postgres repository.
type MemoryObligationRepository struct {
	mu          sync.RWMutex
	obligations map[string]models.Obligation
	events      map[string]models.EventRecord
}

var _ interfaces.ObligationRepository = (*MemoryObligationRepository)(nil)

func NewMemoryObligationRepository() *MemoryObligationRepository {
	return &MemoryObligationRepository{
		obligations: make(map[string]models.Obligation),
		events:      make(map[string]models.EventRecord),
	}
}

func (r *MemoryObligationRepository) Create(_ context.Context, obl models.Obligation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.obligations[obl.ID]; ok {
		return fmt.Errorf("%w: %s", models.ErrObligationExists, obl.ID)
	}
	r.obligations[obl.ID] = clone(obl)
	return nil
}

func (r *MemoryObligationRepository) GetByID(_ context.Context, id string) (models.Obligation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obl, ok := r.obligations[id]
	if !ok {
		return models.Obligation{}, fmt.Errorf("%w: %s", models.ErrObligationNotFound, id)
	}
	return clone(obl), nil
}

func (r *MemoryObligationRepository) GetEvent(_ context.Context, obligationID, eventID string) (models.EventRecord, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.events[eventKey(obligationID, eventID)]
	return rec, ok, nil
}

func (r *MemoryObligationRepository) Commit(_ context.Context, obl models.Obligation, expectedVersion int64, rec models.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.obligations[obl.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrObligationNotFound, obl.ID)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: %s at version %d", models.ErrConcurrentModification, obl.ID, expectedVersion)
	}
	key := eventKey(rec.ObligationID, rec.EventID)
	if _, dup := r.events[key]; dup {
		return fmt.Errorf("%w: event %s already recorded", models.ErrConcurrentModification, rec.EventID)
	}

	r.obligations[obl.ID] = clone(obl)
	r.events[key] = rec
	return nil
}

func (r *MemoryObligationRepository) ListCreatedBetween(_ context.Context, from, to time.Time) ([]models.Obligation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Obligation, 0)
	for _, obl := range r.obligations {
		if !obl.CreatedAt.Before(from) && obl.CreatedAt.Before(to) {
			result = append(result, clone(obl))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Events returns the recorded events of one obligation, oldest first.
func (r *MemoryObligationRepository) Events(obligationID string) []models.EventRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.EventRecord
	for _, rec := range r.events {
		if rec.ObligationID == obligationID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out
}

func eventKey(obligationID, eventID string) string {
	return obligationID + "\x00" + eventID
}

func clone(obl models.Obligation) models.Obligation {
	obl.Tenders = append(tender.Breakdown{}, obl.Tenders...)
	if obl.Lines != nil {
		obl.Lines = append([]models.LineItem(nil), obl.Lines...)
	}
	return obl
}

// MemoryStockStore is an in-process StockStore.
type MemoryStockStore struct {
	mu    sync.Mutex
	items map[string]decimal.Decimal
	// injected failures remaining, per item
	failNext map[string]int
}

var _ interfaces.StockStore = (*MemoryStockStore)(nil)

func NewMemoryStockStore() *MemoryStockStore {
	return &MemoryStockStore{
		items:    make(map[string]decimal.Decimal),
		failNext: make(map[string]int),
	}
}

func (s *MemoryStockStore) Set(itemID string, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemID] = qty
}

func (s *MemoryStockStore) Quantity(itemID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[itemID]
}

// FailNext makes the next n decrements of itemID return an error.
func (s *MemoryStockStore) FailNext(itemID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[itemID] = n
}

func (s *MemoryStockStore) Decrement(_ context.Context, itemID string, qty decimal.Decimal) (models.StockDecrement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := models.StockDecrement{ItemID: itemID}
	if s.failNext[itemID] > 0 {
		s.failNext[itemID]--
		return res, fmt.Errorf("stock store unavailable for %s", itemID)
	}
	before, ok := s.items[itemID]
	if !ok {
		return res, fmt.Errorf("%w: %s", models.ErrStockItemNotFound, itemID)
	}
	after := before.Sub(qty)
	if after.IsNegative() {
		after = decimal.Zero
	}
	s.items[itemID] = after
	res.Before, res.After, res.Shortfall = before, after, shortfall(before, qty)
	return res, nil
}

// MemoryDeduper is an in-process TriggerDeduper.
type MemoryDeduper struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

var _ interfaces.TriggerDeduper = (*MemoryDeduper)(nil)

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{claimed: make(map[string]struct{})}
}

func (d *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.claimed[key]; ok {
		return false, nil
	}
	d.claimed[key] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, key)
	return nil
}
