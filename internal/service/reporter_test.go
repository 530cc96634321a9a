package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/obligation"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/report"
)

func TestReporter_Summary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	for _, p := range []obligation.NewParams{
		{ID: "A", Kind: models.KindOrder, TotalDue: dec("1000"), CreatedAt: day.Add(time.Hour)},
		{ID: "B", Kind: models.KindOrder, TotalDue: dec("2000"), CreatedAt: day.Add(2 * time.Hour)},
		{ID: "C", Kind: models.KindBooking, TotalDue: dec("500"), CreatedAt: day.Add(3 * time.Hour)},
		{ID: "late", Kind: models.KindOrder, TotalDue: dec("99"), CreatedAt: day.Add(48 * time.Hour)},
	} {
		_, err := f.processor.Create(ctx, p)
		require.NoError(t, err)
	}
	for _, step := range []struct{ id, ev, tenders, debtor string }{
		{"A", "a1", "cash:1000", ""},
		{"B", "b1", "mobile:1500,cash:500", ""},
		{"C", "c1", "debt:200,cash:300", "X"},
		{"late", "l1", "cash:99", ""},
	} {
		_, err := f.processor.Apply(ctx, step.id, settlement(step.ev, step.tenders, step.debtor))
		require.NoError(t, err)
	}

	s, err := NewReporter(f.repo).Summary(ctx, report.Window{Start: day, End: day.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Obligations)
	assert.True(t, s.Revenue.Equal(dec("3000")))
	assert.True(t, s.OutstandingDebt.Equal(dec("200")))
	assert.True(t, s.TenderAmount("cash").Equal(dec("1800")))
	assert.True(t, s.TenderAmount("mobile").Equal(dec("1500")))
}

func TestReporter_RejectsEmptyWindow(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	_, err := NewReporter(f.repo).Summary(context.Background(), report.Window{Start: now, End: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, report.ErrInvalidWindow)
}
