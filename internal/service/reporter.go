package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/report"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
)

// Reporter builds period summaries from a snapshot of committed obligations.
// It takes no locks; settlements committed while it reads may be missed.
type Reporter struct {
	repo interfaces.ObligationRepository
}

func NewReporter(repo interfaces.ObligationRepository) *Reporter {
	return &Reporter{repo: repo}
}

func (r *Reporter) Summary(ctx context.Context, w report.Window) (report.PeriodSummary, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "report.summary", trace.WithAttributes(
		attribute.String("report.start", w.Start.Format(time.RFC3339)),
		attribute.String("report.end", w.End.Format(time.RFC3339)),
	))
	defer span.End()

	if err := w.Validate(); err != nil {
		return report.PeriodSummary{}, err
	}

	obligations, err := r.repo.ListCreatedBetween(ctx, w.Start, w.End)
	if err != nil {
		telemetry.Logger.Error("Failed to load obligations for report", zap.Error(err))
		return report.PeriodSummary{}, err
	}

	summary, err := report.Summarize(obligations, w)
	if err != nil {
		return report.PeriodSummary{}, err
	}
	span.SetAttributes(attribute.Int("report.obligations", summary.Obligations))
	return summary, nil
}
