package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

type ObligationState string

const (
	StateOpen             ObligationState = "OPEN"
	StatePartiallySettled ObligationState = "PARTIALLY_SETTLED"
	StateDebted           ObligationState = "DEBTED"
	StateSettled          ObligationState = "SETTLED"
)

// ObligationKind is the department-level source of the obligation.
type ObligationKind string

const (
	KindOrder    ObligationKind = "order"
	KindBooking  ObligationKind = "booking"
	KindDelivery ObligationKind = "delivery"
)

func (k ObligationKind) Valid() bool {
	switch k {
	case KindOrder, KindBooking, KindDelivery:
		return true
	}
	return false
}

// LineItem is a consumed-quantity reference carried into the fulfillment
// trigger. UnitPrice and UnitCost are optional and only feed reporting.
type LineItem struct {
	ItemID    string           `json:"item_id"`
	Name      string           `json:"name,omitempty"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

// Obligation is a payable unit: an order, a room booking or a supply delivery.
type Obligation struct {
	ID               string           `json:"id"`
	Kind             ObligationKind   `json:"kind"`
	Department       string           `json:"department,omitempty"`
	TotalDue         decimal.Decimal  `json:"total_due"`
	AmountSettled    decimal.Decimal  `json:"amount_settled"`
	Tenders          tender.Breakdown `json:"tenders"`
	DebtOutstanding  decimal.Decimal  `json:"debt_outstanding"`
	DebtorName       string           `json:"debtor_name,omitempty"`
	State            ObligationState  `json:"state"`
	Fulfilled        bool             `json:"fulfilled"`
	FulfilledByEvent string           `json:"fulfilled_by_event,omitempty"`
	Lines            []LineItem       `json:"lines,omitempty"`
	Version          int64            `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Remaining is the part of TotalDue not yet covered by tendered money,
// whether or not it is classified as debt.
func (o Obligation) Remaining() decimal.Decimal {
	return o.TotalDue.Sub(o.AmountSettled)
}

// SettlementEvent is one atomic payment application. Corrections are new
// events; an applied event is never edited.
type SettlementEvent struct {
	ID           string           `json:"event_id"`
	ObligationID string           `json:"obligation_id"`
	Entries      tender.Breakdown `json:"entries"`
	DebtorName   string           `json:"debtor_name,omitempty"`
	Actor        string           `json:"actor"`
	At           time.Time        `json:"at"`
}

// Totals splits the event into money tendered and debt extended.
func (e SettlementEvent) Totals() (paid, debt decimal.Decimal) {
	return e.Entries.NonDebtTotal(), e.Entries.DebtTotal()
}

// FulfillmentTrigger is raised once per obligation when it first reaches SETTLED.
type FulfillmentTrigger struct {
	ID           string     `json:"trigger_id"`
	ObligationID string     `json:"obligation_id"`
	EventID      string     `json:"event_id"`
	Lines        []LineItem `json:"lines"`
	RaisedAt     time.Time  `json:"raised_at"`
}

func TriggerID(obligationID string) string {
	return "fulfil:" + obligationID
}

// NewTrigger builds the trigger for a fulfilled obligation.
func NewTrigger(o Obligation, at time.Time) FulfillmentTrigger {
	lines := make([]LineItem, len(o.Lines))
	copy(lines, o.Lines)
	return FulfillmentTrigger{
		ID:           TriggerID(o.ID),
		ObligationID: o.ID,
		EventID:      o.FulfilledByEvent,
		Lines:        lines,
		RaisedAt:     at,
	}
}

type ObligationResult struct {
	Obligation Obligation          `json:"obligation"`
	Trigger    *FulfillmentTrigger `json:"trigger,omitempty"`
	// Duplicate is set when the event id had already been applied; the
	// obligation is returned as stored and no trigger is raised again.
	Duplicate bool `json:"duplicate"`
}

// EventRecord is the persisted trace of an applied settlement event.
type EventRecord struct {
	ObligationID string
	EventID      string
	Tenders      string
	DebtorName   string
	Actor        string
	FromState    ObligationState
	ToState      ObligationState
	AppliedAt    time.Time
}

// ObligationChange is published to UI subscribers after each committed write.
type ObligationChange struct {
	ObligationID  string          `json:"obligation_id"`
	EventID       string          `json:"event_id,omitempty"`
	State         ObligationState `json:"state"`
	PreviousState ObligationState `json:"previous_state,omitempty"`
	AmountSettled decimal.Decimal `json:"amount_settled"`
	Version       int64           `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
}

// StockDecrement is the outcome of one clamped stock update.
type StockDecrement struct {
	ItemID    string
	Before    decimal.Decimal
	After     decimal.Decimal
	Shortfall decimal.Decimal
}
