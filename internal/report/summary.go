// Package report folds committed obligations into period summaries. It is a
// pure read-side computation; callers supply the snapshot.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

var ErrInvalidWindow = errors.New("invalid report window")

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start) {
		return fmt.Errorf("%w: [%s, %s)", ErrInvalidWindow, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type TenderTotal struct {
	Kind   tender.Kind     `json:"kind"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type GroupTotal struct {
	Key     string          `json:"key"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ItemPerformance struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// PeriodSummary is the value handed to report renderers.
type PeriodSummary struct {
	Window          Window                         `json:"window"`
	Obligations     int                            `json:"obligations"`
	States          map[models.ObligationState]int `json:"states"`
	Revenue         decimal.Decimal                `json:"revenue"`
	OutstandingDebt decimal.Decimal                `json:"outstanding_debt"`
	// DebtExtended is the sum of debt tender entries recorded in the window.
	DebtExtended decimal.Decimal `json:"debt_extended"`
	Tenders      []TenderTotal   `json:"tenders"`
	// Cost and GrossProfit are nil when no settled line carries a unit cost.
	Cost        *decimal.Decimal  `json:"cost,omitempty"`
	GrossProfit *decimal.Decimal  `json:"gross_profit,omitempty"`
	Kinds       []GroupTotal      `json:"kinds"`
	Departments []GroupTotal      `json:"departments"`
	Items       []ItemPerformance `json:"items"`
	BestItem    *ItemPerformance  `json:"best_item,omitempty"`
	WorstItem   *ItemPerformance  `json:"worst_item,omitempty"`
}

// Summarize folds the obligations created inside w. Revenue, cost and item
// rankings count SETTLED obligations only; tender totals cover every
// obligation in the window.
func Summarize(obligations []models.Obligation, w Window) (PeriodSummary, error) {
	if err := w.Validate(); err != nil {
		return PeriodSummary{}, err
	}

	s := PeriodSummary{
		Window:          w,
		States:          make(map[models.ObligationState]int),
		Revenue:         decimal.Zero,
		OutstandingDebt: decimal.Zero,
		DebtExtended:    decimal.Zero,
		Tenders:         []TenderTotal{},
		Kinds:           []GroupTotal{},
		Departments:     []GroupTotal{},
		Items:           []ItemPerformance{},
	}
	var (
		tenders     tender.Breakdown
		cost        = decimal.Zero
		hasCost     bool
		kinds       = newGroups()
		departments = newGroups()
		items       = newItemIndex()
	)

	for _, o := range obligations {
		if !w.Contains(o.CreatedAt) {
			continue
		}
		s.Obligations++
		s.States[o.State]++

		for _, e := range o.Tenders {
			if e.IsDebt() {
				s.DebtExtended = s.DebtExtended.Add(e.Amount)
				continue
			}
			tenders = tender.Merge(tenders, tender.Breakdown{e})
		}

		switch o.State {
		case models.StateDebted:
			s.OutstandingDebt = s.OutstandingDebt.Add(o.Remaining())
		case models.StateSettled:
			s.Revenue = s.Revenue.Add(o.AmountSettled)
			kinds.add(string(o.Kind), o.AmountSettled)
			departments.add(o.Department, o.AmountSettled)
			for _, l := range o.Lines {
				if l.UnitCost != nil {
					hasCost = true
					cost = cost.Add(l.UnitCost.Mul(l.Quantity))
				}
				if l.UnitPrice != nil {
					items.add(l)
				}
			}
		}
	}

	for _, e := range tenders {
		s.Tenders = append(s.Tenders, TenderTotal{Kind: e.Kind, Label: e.Name(), Amount: e.Amount})
	}
	if hasCost {
		profit := s.Revenue.Sub(cost)
		s.Cost, s.GrossProfit = &cost, &profit
	}
	s.Kinds = kinds.totals
	s.Departments = departments.totals
	s.Items = items.list
	s.BestItem, s.WorstItem = items.extremes()

	return s, nil
}

// TenderAmount returns the total for one tender label, or zero.
func (s PeriodSummary) TenderAmount(label string) decimal.Decimal {
	for _, t := range s.Tenders {
		if t.Label == label {
			return t.Amount
		}
	}
	return decimal.Zero
}

type groups struct {
	index  map[string]int
	totals []GroupTotal
}

func newGroups() *groups {
	return &groups{index: make(map[string]int), totals: []GroupTotal{}}
}

func (g *groups) add(key string, revenue decimal.Decimal) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.totals)
		g.index[key] = i
		g.totals = append(g.totals, GroupTotal{Key: key, Revenue: decimal.Zero})
	}
	g.totals[i].Count++
	g.totals[i].Revenue = g.totals[i].Revenue.Add(revenue)
}

type itemIndex struct {
	index map[string]int
	list  []ItemPerformance
}

func newItemIndex() *itemIndex {
	return &itemIndex{index: make(map[string]int), list: []ItemPerformance{}}
}

func (x *itemIndex) add(l models.LineItem) {
	i, ok := x.index[l.ItemID]
	if !ok {
		i = len(x.list)
		x.index[l.ItemID] = i
		x.list = append(x.list, ItemPerformance{ItemID: l.ItemID, Name: l.Name, Quantity: decimal.Zero, Revenue: decimal.Zero})
	}
	x.list[i].Quantity = x.list[i].Quantity.Add(l.Quantity)
	x.list[i].Revenue = x.list[i].Revenue.Add(l.UnitPrice.Mul(l.Quantity))
}

// extremes picks the best and worst items by revenue. Only a strictly better
// or worse item replaces the current pick, so ties go to the first seen.
func (x *itemIndex) extremes() (best, worst *ItemPerformance) {
	for i := range x.list {
		item := x.list[i]
		if best == nil || item.Revenue.GreaterThan(best.Revenue) {
			b := item
			best = &b
		}
		if worst == nil || item.Revenue.LessThan(worst.Revenue) {
			w := item
			worst = &w
		}
	}
	return best, worst
}
