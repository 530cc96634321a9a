package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

var (
	monday = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	week   = Window{Start: monday, End: monday.AddDate(0, 0, 7)}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func obl(t *testing.T, id string, state models.ObligationState, total, settled, tenders, debtor string, at time.Time) models.Obligation {
	t.Helper()
	b, err := tender.Decode(tenders)
	require.NoError(t, err)
	o := models.Obligation{
		ID:            id,
		Kind:          models.KindOrder,
		Department:    "restaurant",
		TotalDue:      dec(total),
		AmountSettled: dec(settled),
		Tenders:       b,
		DebtorName:    debtor,
		State:         state,
		CreatedAt:     at,
	}
	if debtor != "" {
		o.DebtOutstanding = o.Remaining()
	}
	return o
}

func TestSummarizeReferencePeriod(t *testing.T) {
	obligations := []models.Obligation{
		obl(t, "A", models.StateSettled, "1000", "1000", "cash:1000", "", monday.Add(time.Hour)),
		obl(t, "B", models.StateSettled, "2000", "2000", "mobile:1500,cash:500", "", monday.Add(2*time.Hour)),
		obl(t, "C", models.StateDebted, "500", "300", "debt:200,cash:300", "X", monday.Add(3*time.Hour)),
	}

	s, err := Summarize(obligations, week)
	require.NoError(t, err)

	assert.True(t, s.Revenue.Equal(dec("3000")), "revenue %s", s.Revenue)
	assert.True(t, s.OutstandingDebt.Equal(dec("200")), "debt %s", s.OutstandingDebt)
	assert.True(t, s.TenderAmount("cash").Equal(dec("1800")), "cash %s", s.TenderAmount("cash"))
	assert.True(t, s.TenderAmount("mobile").Equal(dec("1500")))
	assert.True(t, s.TenderAmount("debt").IsZero(), "debt is not a tender total")
	assert.True(t, s.DebtExtended.Equal(dec("200")))
	assert.Equal(t, 3, s.Obligations)
	assert.Equal(t, 2, s.States[models.StateSettled])
	assert.Equal(t, 1, s.States[models.StateDebted])
	assert.Nil(t, s.Cost)
	assert.Nil(t, s.GrossProfit)

	require.Len(t, s.Tenders, 2)
	assert.Equal(t, "cash", s.Tenders[0].Label, "first-seen order")
	assert.Equal(t, "mobile", s.Tenders[1].Label)
}

func TestSummarizeHalfOpenWindow(t *testing.T) {
	obligations := []models.Obligation{
		obl(t, "before", models.StateSettled, "10", "10", "cash:10", "", monday.Add(-time.Nanosecond)),
		obl(t, "start", models.StateSettled, "20", "20", "cash:20", "", monday),
		obl(t, "end", models.StateSettled, "40", "40", "cash:40", "", week.End),
	}

	s, err := Summarize(obligations, week)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Obligations)
	assert.True(t, s.Revenue.Equal(dec("20")))
}

func TestSummarizeCostAndRankings(t *testing.T) {
	a := obl(t, "A", models.StateSettled, "50", "50", "cash:50", "", monday)
	a.Lines = []models.LineItem{
		{ItemID: "beer", Name: "Beer", Quantity: dec("2"), UnitPrice: decPtr("10"), UnitCost: decPtr("4")},
		{ItemID: "wine", Name: "Wine", Quantity: dec("1"), UnitPrice: decPtr("30"), UnitCost: decPtr("12")},
	}
	b := obl(t, "B", models.StateSettled, "50", "50", "card:50", "", monday.Add(time.Hour))
	b.Kind = models.KindBooking
	b.Department = "rooms"
	b.Lines = []models.LineItem{
		{ItemID: "soda", Name: "Soda", Quantity: dec("4"), UnitPrice: decPtr("5")},
		{ItemID: "chips", Name: "Chips", Quantity: dec("1"), UnitPrice: decPtr("20")},
	}
	open := obl(t, "C", models.StatePartiallySettled, "100", "10", "cash:10", "", monday.Add(2*time.Hour))
	open.Lines = []models.LineItem{{ItemID: "steak", Quantity: dec("1"), UnitPrice: decPtr("100"), UnitCost: decPtr("60")}}

	s, err := Summarize([]models.Obligation{a, b, open}, week)
	require.NoError(t, err)

	require.NotNil(t, s.Cost)
	assert.True(t, s.Cost.Equal(dec("20")), "cost %s", s.Cost)
	require.NotNil(t, s.GrossProfit)
	assert.True(t, s.GrossProfit.Equal(dec("80")), "profit %s", s.GrossProfit)

	require.Len(t, s.Items, 4)
	// beer, wine, soda and chips all earned 20 or 30; wine is best, the
	// three-way tie at 20 goes to beer as the first seen.
	require.NotNil(t, s.BestItem)
	assert.Equal(t, "wine", s.BestItem.ItemID)
	require.NotNil(t, s.WorstItem)
	assert.Equal(t, "beer", s.WorstItem.ItemID)

	require.Len(t, s.Kinds, 2)
	assert.Equal(t, "order", s.Kinds[0].Key)
	assert.Equal(t, 1, s.Kinds[0].Count)
	assert.Equal(t, "rooms", s.Departments[1].Key)
	assert.True(t, s.Departments[1].Revenue.Equal(dec("50")))
}

func TestSummarizeBestItemTieGoesToFirstSeen(t *testing.T) {
	a := obl(t, "A", models.StateSettled, "20", "20", "cash:20", "", monday)
	a.Lines = []models.LineItem{
		{ItemID: "tea", Quantity: dec("1"), UnitPrice: decPtr("10")},
		{ItemID: "coffee", Quantity: dec("1"), UnitPrice: decPtr("10")},
	}

	s, err := Summarize([]models.Obligation{a}, week)
	require.NoError(t, err)
	assert.Equal(t, "tea", s.BestItem.ItemID)
	assert.Equal(t, "tea", s.WorstItem.ItemID)
}

func TestSummarizeLegacyTenderLabels(t *testing.T) {
	obligations := []models.Obligation{
		obl(t, "A", models.StateSettled, "100", "100", "mpesa:60,cash:40", "", monday),
		obl(t, "B", models.StateSettled, "100", "100", "mobile:100", "", monday),
	}

	s, err := Summarize(obligations, week)
	require.NoError(t, err)
	assert.True(t, s.TenderAmount("mpesa").Equal(dec("60")), "legacy labels are not folded into mobile")
	assert.True(t, s.TenderAmount("mobile").Equal(dec("100")))
}

func TestSummarizeInvalidWindow(t *testing.T) {
	_, err := Summarize(nil, Window{Start: monday, End: monday})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Summarize(nil, Window{Start: monday})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	s, err := Summarize(nil, week)
	require.NoError(t, err)
	assert.True(t, s.Revenue.IsZero())
	assert.Nil(t, s.BestItem)
}
