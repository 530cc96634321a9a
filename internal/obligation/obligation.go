// Package obligation implements the lifecycle of a payable obligation and the
// transitions driven by settlement events. Everything here is pure: callers
// load the obligation, call Apply, and persist the result themselves.
package obligation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

var transitions = map[models.ObligationState][]models.ObligationState{
	models.StateOpen:             {models.StatePartiallySettled, models.StateDebted, models.StateSettled},
	models.StatePartiallySettled: {models.StatePartiallySettled, models.StateDebted, models.StateSettled},
	models.StateDebted:           {models.StateDebted, models.StatePartiallySettled, models.StateSettled},
	models.StateSettled:          {},
}

// CanTransition reports whether a settlement event may move an obligation
// from one state to the other.
func CanTransition(from, to models.ObligationState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type NewParams struct {
	ID         string
	Kind       models.ObligationKind
	Department string
	TotalDue   decimal.Decimal
	Lines      []models.LineItem
	CreatedAt  time.Time
}

// New creates an OPEN obligation with nothing settled.
func New(p NewParams) (models.Obligation, error) {
	if strings.TrimSpace(p.ID) == "" {
		return models.Obligation{}, fmt.Errorf("%w: id is required", models.ErrInvalidObligation)
	}
	if !p.Kind.Valid() {
		return models.Obligation{}, fmt.Errorf("%w: unknown kind %q", models.ErrInvalidObligation, p.Kind)
	}
	if err := tender.CheckAmount(p.TotalDue); err != nil {
		return models.Obligation{}, fmt.Errorf("%w: total due: %v", models.ErrInvalidObligation, err)
	}
	if !p.TotalDue.IsPositive() {
		return models.Obligation{}, fmt.Errorf("%w: total due must be positive", models.ErrInvalidObligation)
	}
	for i, l := range p.Lines {
		if strings.TrimSpace(l.ItemID) == "" {
			return models.Obligation{}, fmt.Errorf("%w: line %d has no item id", models.ErrInvalidObligation, i)
		}
		if err := checkLineAmounts(l); err != nil {
			return models.Obligation{}, fmt.Errorf("%w: line %d: %v", models.ErrInvalidObligation, i, err)
		}
		if !l.Quantity.IsPositive() {
			return models.Obligation{}, fmt.Errorf("%w: line %d quantity must be positive", models.ErrInvalidObligation, i)
		}
	}

	return models.Obligation{
		ID:              p.ID,
		Kind:            p.Kind,
		Department:      p.Department,
		TotalDue:        p.TotalDue,
		AmountSettled:   decimal.Zero,
		Tenders:         tender.Breakdown{},
		DebtOutstanding: decimal.Zero,
		State:           models.StateOpen,
		Lines:           p.Lines,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.CreatedAt,
	}, nil
}

func checkLineAmounts(l models.LineItem) error {
	if err := tender.CheckAmount(l.Quantity); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	if l.UnitPrice != nil {
		if err := tender.CheckAmount(*l.UnitPrice); err != nil {
			return fmt.Errorf("unit price: %w", err)
		}
	}
	if l.UnitCost != nil {
		if err := tender.CheckAmount(*l.UnitCost); err != nil {
			return fmt.Errorf("unit cost: %w", err)
		}
	}
	return nil
}

// Transition describes what one applied event did to an obligation.
type Transition struct {
	From        models.ObligationState
	To          models.ObligationState
	Paid        decimal.Decimal
	DebtAdded   decimal.Decimal
	DebtCleared decimal.Decimal
	// Completed is set when this event moved the obligation into SETTLED.
	Completed bool
}

// Validate checks an event in isolation, before it is compared with any
// obligation state.
func Validate(ev models.SettlementEvent) error {
	if len(ev.Entries) == 0 {
		return fmt.Errorf("%w: no tender entries", models.ErrInvalidTenderAmount)
	}
	if err := ev.Entries.Validate(); err != nil {
		switch {
		case errors.Is(err, tender.ErrDuplicateKind):
			return fmt.Errorf("%w: %v", models.ErrDuplicateTenderKind, err)
		default:
			return fmt.Errorf("%w: %v", models.ErrInvalidTenderAmount, err)
		}
	}
	if _, debt := ev.Totals(); debt.IsPositive() && strings.TrimSpace(ev.DebtorName) == "" {
		return models.ErrDebtorNameRequired
	}
	return nil
}

// Apply computes the obligation that results from applying ev. The input is
// never modified; on error the caller keeps the original.
func Apply(o models.Obligation, ev models.SettlementEvent, now time.Time) (models.Obligation, Transition, error) {
	if err := Validate(ev); err != nil {
		return o, Transition{}, err
	}
	if o.State == models.StateSettled {
		return o, Transition{}, models.ErrAlreadySettled
	}

	paid, debt := ev.Totals()
	remaining := o.Remaining()

	if paid.GreaterThan(remaining) {
		return o, Transition{}, fmt.Errorf("%w: paying %s against remaining %s",
			models.ErrInsufficientRemainingBalance, paid, remaining)
	}
	unpaidAfter := remaining.Sub(paid)
	if debt.GreaterThan(unpaidAfter) {
		return o, Transition{}, fmt.Errorf("%w: debt %s exceeds unpaid remainder %s",
			models.ErrInsufficientRemainingBalance, debt, unpaidAfter)
	}

	cleared := decimal.Min(paid, o.DebtOutstanding)
	priorDebtLeft := o.DebtOutstanding.Sub(cleared)
	debtAfter := priorDebtLeft.Add(debt)
	if debtAfter.GreaterThan(unpaidAfter) {
		return o, Transition{}, fmt.Errorf("%w: outstanding debt %s would exceed unpaid remainder %s",
			models.ErrInsufficientRemainingBalance, debtAfter, unpaidAfter)
	}

	debtor := o.DebtorName
	if debt.IsPositive() {
		name := strings.TrimSpace(ev.DebtorName)
		if priorDebtLeft.IsPositive() && !strings.EqualFold(name, o.DebtorName) {
			return o, Transition{}, fmt.Errorf("%w: %q owes %s", models.ErrDebtorMismatch, o.DebtorName, priorDebtLeft)
		}
		debtor = name
	}
	if debtAfter.IsZero() {
		debtor = ""
	}

	next := o
	next.AmountSettled = o.AmountSettled.Add(paid)
	next.Tenders = tender.Merge(o.Tenders, ev.Entries)
	next.DebtOutstanding = debtAfter
	next.DebtorName = debtor
	next.UpdatedAt = now

	switch {
	case next.AmountSettled.Equal(next.TotalDue) && debtAfter.IsZero():
		next.State = models.StateSettled
	case debtAfter.IsPositive():
		next.State = models.StateDebted
	default:
		next.State = models.StatePartiallySettled
	}

	if !CanTransition(o.State, next.State) {
		return o, Transition{}, fmt.Errorf("illegal transition %s -> %s for obligation %s", o.State, next.State, o.ID)
	}

	return next, Transition{
		From:        o.State,
		To:          next.State,
		Paid:        paid,
		DebtAdded:   debt,
		DebtCleared: cleared,
		Completed:   next.State == models.StateSettled,
	}, nil
}

// CheckInvariants verifies the ledger relations an obligation must always
// satisfy. Repositories call it on rows they load.
func CheckInvariants(o models.Obligation) error {
	switch {
	case o.AmountSettled.IsNegative():
		return fmt.Errorf("obligation %s: negative amount settled %s", o.ID, o.AmountSettled)
	case o.AmountSettled.GreaterThan(o.TotalDue):
		return fmt.Errorf("obligation %s: settled %s exceeds total %s", o.ID, o.AmountSettled, o.TotalDue)
	case !o.AmountSettled.Equal(o.Tenders.NonDebtTotal()):
		return fmt.Errorf("obligation %s: settled %s does not match tendered %s", o.ID, o.AmountSettled, o.Tenders.NonDebtTotal())
	case o.DebtOutstanding.IsPositive() != (o.DebtorName != ""):
		return fmt.Errorf("obligation %s: debtor name and outstanding debt disagree", o.ID)
	case o.DebtOutstanding.GreaterThan(o.Remaining()):
		return fmt.Errorf("obligation %s: debt %s exceeds remaining %s", o.ID, o.DebtOutstanding, o.Remaining())
	}
	return nil
}
