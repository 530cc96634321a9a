package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/metrics"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/obligation"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

const defaultSideEffectTimeout = 10 * time.Second

// Processor is the single mutation entry point for obligations.
type Processor struct {
	repo       interfaces.ObligationRepository
	dispatcher interfaces.TriggerDispatcher
	notifier   interfaces.Notifier

	now               func() time.Time
	sideEffectTimeout time.Duration
	retryInterval     time.Duration
}

// NewProcessor wires a processor. dispatcher and notifier may be nil.
func NewProcessor(
	repo interfaces.ObligationRepository,
	dispatcher interfaces.TriggerDispatcher,
	notifier interfaces.Notifier,
) *Processor {
	return &Processor{
		repo:              repo,
		dispatcher:        dispatcher,
		notifier:          notifier,
		now:               func() time.Time { return time.Now().UTC() },
		sideEffectTimeout: defaultSideEffectTimeout,
		retryInterval:     25 * time.Millisecond,
	}
}

// Create registers a new OPEN obligation. An empty ID is replaced by a UUID.
func (p *Processor) Create(ctx context.Context, params obligation.NewParams) (models.Obligation, error) {
	if strings.TrimSpace(params.ID) == "" {
		params.ID = uuid.NewString()
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = p.now()
	}

	obl, err := obligation.New(params)
	if err != nil {
		return models.Obligation{}, err
	}
	obl.Version = 1

	if err := p.repo.Create(ctx, obl); err != nil {
		return models.Obligation{}, err
	}

	telemetry.Logger.Info("Obligation created",
		zap.String("obligation_id", obl.ID),
		zap.String("kind", string(obl.Kind)),
		zap.String("total_due", obl.TotalDue.String()),
	)
	p.notify(ctx, models.ObligationChange{
		ObligationID:  obl.ID,
		State:         obl.State,
		AmountSettled: obl.AmountSettled,
		Version:       obl.Version,
		Timestamp:     obl.CreatedAt,
	})
	return obl, nil
}

// Get loads an obligation and checks its ledger is consistent.
func (p *Processor) Get(ctx context.Context, id string) (models.Obligation, error) {
	obl, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return models.Obligation{}, err
	}
	if err := obligation.CheckInvariants(obl); err != nil {
		telemetry.Logger.Error("Stored obligation is inconsistent",
			zap.String("obligation_id", id),
			zap.Error(err),
		)
		return models.Obligation{}, fmt.Errorf("%w: %v", tender.ErrMalformedLedger, err)
	}
	return obl, nil
}

// Apply applies one settlement event. It either commits the whole event or
// nothing. Replaying an event id that was already applied returns the stored
// obligation with Duplicate set and no trigger.
func (p *Processor) Apply(ctx context.Context, obligationID string, ev models.SettlementEvent) (models.ObligationResult, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "settlement.apply", trace.WithAttributes(
		attribute.String("obligation.id", obligationID),
		attribute.String("settlement.event_id", ev.ID),
	))
	defer span.End()

	start := time.Now()
	defer func() { metrics.SettlementDuration.Observe(time.Since(start).Seconds()) }()

	res, err := p.apply(ctx, obligationID, ev)
	if err != nil {
		class := models.Classify(err)
		metrics.SettlementsRejected.WithLabelValues(string(class)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(class))

		log := telemetry.Logger.Warn
		if class == models.ClassData || class == models.ClassInternal {
			log = telemetry.Logger.Error
		}
		log("Settlement rejected",
			zap.String("obligation_id", obligationID),
			zap.String("event_id", ev.ID),
			zap.String("class", string(class)),
			zap.Error(err),
		)
		return models.ObligationResult{}, err
	}

	span.SetAttributes(
		attribute.String("obligation.state", string(res.Obligation.State)),
		attribute.Bool("settlement.duplicate", res.Duplicate),
	)
	return res, nil
}

func (p *Processor) apply(ctx context.Context, obligationID string, ev models.SettlementEvent) (models.ObligationResult, error) {
	if strings.TrimSpace(ev.ID) == "" {
		return models.ObligationResult{}, fmt.Errorf("%w: event id is required", models.ErrInvalidEvent)
	}
	if ev.ObligationID == "" {
		ev.ObligationID = obligationID
	}
	if ev.ObligationID != obligationID {
		return models.ObligationResult{}, fmt.Errorf("%w: event targets %s, not %s", models.ErrInvalidEvent, ev.ObligationID, obligationID)
	}

	if err := obligation.Validate(ev); err != nil {
		return models.ObligationResult{}, err
	}

	current, err := p.Get(ctx, obligationID)
	if err != nil {
		return models.ObligationResult{}, err
	}

	stored, seen, err := p.repo.GetEvent(ctx, obligationID, ev.ID)
	if err != nil {
		return models.ObligationResult{}, err
	}
	if seen {
		if err := sameSettlement(stored, ev); err != nil {
			telemetry.Logger.Warn("Settlement event id reused with a different payload",
				zap.String("obligation_id", obligationID),
				zap.String("event_id", ev.ID),
				zap.String("stored_tenders", stored.Tenders),
				zap.String("tenders", tender.Encode(ev.Entries)),
			)
			return models.ObligationResult{}, err
		}
		metrics.SettlementsDuplicate.Inc()
		telemetry.Logger.Info("Settlement event already applied",
			zap.String("obligation_id", obligationID),
			zap.String("event_id", ev.ID),
		)
		return models.ObligationResult{Obligation: current, Duplicate: true}, nil
	}

	now := p.now()
	if ev.At.IsZero() {
		ev.At = now
	}

	next, tr, err := obligation.Apply(current, ev, now)
	if err != nil {
		return models.ObligationResult{}, err
	}

	var trigger *models.FulfillmentTrigger
	if tr.Completed && !current.Fulfilled {
		next.Fulfilled = true
		next.FulfilledByEvent = ev.ID
		t := models.NewTrigger(next, now)
		trigger = &t
	}
	next.Version = current.Version + 1

	rec := models.EventRecord{
		ObligationID: obligationID,
		EventID:      ev.ID,
		Tenders:      tender.Encode(ev.Entries),
		DebtorName:   strings.TrimSpace(ev.DebtorName),
		Actor:        ev.Actor,
		FromState:    tr.From,
		ToState:      tr.To,
		AppliedAt:    ev.At,
	}
	if err := p.repo.Commit(ctx, next, current.Version, rec); err != nil {
		return models.ObligationResult{}, err
	}

	metrics.SettlementsApplied.WithLabelValues(string(next.State)).Inc()
	for _, e := range ev.Entries {
		metrics.TenderAmount.WithLabelValues(e.Name()).Add(e.Amount.InexactFloat64())
	}
	telemetry.Logger.Info("Settlement applied",
		zap.String("obligation_id", obligationID),
		zap.String("event_id", ev.ID),
		zap.String("actor", ev.Actor),
		zap.String("tenders", rec.Tenders),
		zap.String("from_state", string(tr.From)),
		zap.String("to_state", string(tr.To)),
		zap.String("amount_settled", next.AmountSettled.String()),
		zap.Int64("version", next.Version),
	)

	p.afterCommit(ctx, models.ObligationChange{
		ObligationID:  obligationID,
		EventID:       ev.ID,
		State:         next.State,
		PreviousState: tr.From,
		AmountSettled: next.AmountSettled,
		Version:       next.Version,
		Timestamp:     now,
	}, trigger)

	return models.ObligationResult{Obligation: next, Trigger: trigger}, nil
}

// ApplyWithRetry re-reads and reapplies the event while it keeps losing the
// optimistic version check, up to attempts tries. Other errors return at once.
func (p *Processor) ApplyWithRetry(ctx context.Context, obligationID string, ev models.SettlementEvent, attempts int) (models.ObligationResult, error) {
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryInterval
	b.MaxElapsedTime = 0

	var res models.ObligationResult
	op := func() error {
		var err error
		res, err = p.Apply(ctx, obligationID, ev)
		if err != nil && !errors.Is(err, models.ErrConcurrentModification) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		telemetry.Logger.Info("Retrying settlement after conflict",
			zap.String("obligation_id", obligationID),
			zap.String("event_id", ev.ID),
			zap.Duration("wait", wait),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx), notify)
	if err != nil {
		return models.ObligationResult{}, err
	}
	return res, nil
}

// Redeliver dispatches the fulfillment trigger of an already fulfilled
// obligation again. The coordinator deduplicates, so this is safe to call
// when a dispatch is suspected lost.
func (p *Processor) Redeliver(ctx context.Context, obligationID string) (models.FulfillmentTrigger, error) {
	obl, err := p.Get(ctx, obligationID)
	if err != nil {
		return models.FulfillmentTrigger{}, err
	}
	if !obl.Fulfilled {
		return models.FulfillmentTrigger{}, fmt.Errorf("%w: %s is %s", models.ErrNotFulfilled, obligationID, obl.State)
	}

	trigger := models.NewTrigger(obl, p.now())
	if p.dispatcher == nil {
		return trigger, nil
	}
	if err := p.dispatcher.Dispatch(ctx, trigger); err != nil {
		return models.FulfillmentTrigger{}, fmt.Errorf("dispatch trigger %s: %w", trigger.ID, err)
	}
	telemetry.Logger.Info("Fulfillment trigger redelivered",
		zap.String("obligation_id", obligationID),
		zap.String("trigger_id", trigger.ID),
	)
	return trigger, nil
}

// afterCommit runs the side effects of a committed write. They must not be
// cut short by the caller's deadline, and their failure never undoes the
// settlement.
func (p *Processor) afterCommit(ctx context.Context, change models.ObligationChange, trigger *models.FulfillmentTrigger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.sideEffectTimeout)
	defer cancel()

	p.notify(ctx, change)

	if trigger == nil {
		return
	}
	metrics.FulfillmentsTriggered.Inc()
	if p.dispatcher == nil {
		return
	}
	if err := p.dispatcher.Dispatch(ctx, *trigger); err != nil {
		telemetry.Logger.Error("Fulfillment dispatch failed; redeliver required",
			zap.String("obligation_id", trigger.ObligationID),
			zap.String("trigger_id", trigger.ID),
			zap.Error(err),
		)
	}
}

func (p *Processor) notify(ctx context.Context, change models.ObligationChange) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, change); err != nil {
		telemetry.Logger.Warn("Failed to publish obligation change",
			zap.String("obligation_id", change.ObligationID),
			zap.Error(err),
		)
	}
}

// sameSettlement checks that a replayed event carries what was recorded
// under its id. Entry order is not significant.
func sameSettlement(stored models.EventRecord, ev models.SettlementEvent) error {
	entries, err := tender.Decode(stored.Tenders)
	if err != nil {
		return fmt.Errorf("stored event %s: %w", ev.ID, err)
	}
	if !entries.SameEntries(ev.Entries) {
		return fmt.Errorf("%w: event %s already applied with tenders %s", models.ErrInvalidEvent, ev.ID, stored.Tenders)
	}
	if !strings.EqualFold(stored.DebtorName, strings.TrimSpace(ev.DebtorName)) {
		return fmt.Errorf("%w: event %s already applied with a different debtor", models.ErrInvalidEvent, ev.ID)
	}
	return nil
}
