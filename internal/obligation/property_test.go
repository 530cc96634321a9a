package obligation

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

type step struct {
	Cash int64
	Debt int64
}

func genStep() gopter.Gen {
	return gopter.CombineGens(gen.Int64Range(0, 400), gen.Int64Range(0, 200)).
		Map(func(v []interface{}) step { return step{Cash: v[0].(int64), Debt: v[1].(int64)} })
}

func stepEvent(i int, s step) models.SettlementEvent {
	var entries tender.Breakdown
	if s.Cash > 0 {
		entries = append(entries, tender.Entry{Kind: tender.KindCash, Amount: decimal.New(s.Cash, -1)})
	}
	if s.Debt > 0 {
		entries = append(entries, tender.Entry{Kind: tender.KindDebt, Amount: decimal.New(s.Debt, -1)})
	}
	return models.SettlementEvent{ID: fmt.Sprintf("e%d", i), Entries: entries, DebtorName: "guest"}
}

func TestSettlementSequenceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("settled amount is non-decreasing and bounded by total", prop.ForAll(
		func(totalCents int64, steps []step) bool {
			o, err := New(NewParams{ID: "p", Kind: models.KindOrder, TotalDue: decimal.New(totalCents, -1), CreatedAt: now})
			if err != nil {
				return false
			}
			for i, s := range steps {
				prev := o
				next, _, err := Apply(o, stepEvent(i, s), now)
				if err != nil {
					if !next.AmountSettled.Equal(prev.AmountSettled) || next.Version != prev.Version {
						return false
					}
					continue
				}
				if next.AmountSettled.LessThan(prev.AmountSettled) || next.AmountSettled.GreaterThan(next.TotalDue) {
					return false
				}
				if CheckInvariants(next) != nil {
					return false
				}
				o = next
			}
			return true
		},
		gen.Int64Range(1, 2000),
		gen.SliceOf(genStep()),
	))

	properties.TestingRun(t)
}
