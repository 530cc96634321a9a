package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/metrics"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
)

var ErrRetryQueueFull = errors.New("stock retry queue full")

// releaseTimeout bounds a claim release that runs after the caller's context
// was cancelled.
const releaseTimeout = 5 * time.Second

type CoordinatorOptions struct {
	QueueSize       int
	RetryInterval   time.Duration
	RetryMaxElapsed time.Duration
}

// Coordinator applies the stock side effect of fulfilled obligations. Every
// trigger line is claimed in the dedup store before stock is touched, so a
// trigger delivered more than once decrements each line once.
type Coordinator struct {
	stock interfaces.StockStore
	dedup interfaces.TriggerDeduper
	opts  CoordinatorOptions

	retries chan pendingLine
	wg      sync.WaitGroup
}

type pendingLine struct {
	key       string
	triggerID string
	line      models.LineItem
	// claimed is set when the claim could not be released after a failure;
	// the retry then skips claiming.
	claimed bool
}

func NewCoordinator(stock interfaces.StockStore, dedup interfaces.TriggerDeduper, opts CoordinatorOptions) *Coordinator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.RetryMaxElapsed <= 0 {
		opts.RetryMaxElapsed = 10 * time.Minute
	}
	return &Coordinator{
		stock:   stock,
		dedup:   dedup,
		opts:    opts,
		retries: make(chan pendingLine, opts.QueueSize),
	}
}

func lineKey(triggerID string, index int) string {
	return fmt.Sprintf("%s#%d", triggerID, index)
}

// OnFulfilled decrements stock for every line of the trigger. Lines whose
// decrement fails are queued for asynchronous retry; an error is returned
// only when a line could not be queued.
func (c *Coordinator) OnFulfilled(ctx context.Context, trigger models.FulfillmentTrigger) error {
	ctx, span := telemetry.Tracer.Start(ctx, "fulfillment.on_fulfilled", trace.WithAttributes(
		attribute.String("fulfillment.trigger_id", trigger.ID),
		attribute.Int("fulfillment.lines", len(trigger.Lines)),
	))
	defer span.End()

	var errs []error
	for i, line := range trigger.Lines {
		p := pendingLine{key: lineKey(trigger.ID, i), triggerID: trigger.ID, line: line}
		retry, err := c.applyLine(ctx, &p)
		if err == nil || !retry {
			continue
		}
		telemetry.Logger.Warn("Stock decrement failed, queued for retry",
			zap.String("trigger_id", trigger.ID),
			zap.String("item_id", line.ItemID),
			zap.Error(err),
		)
		if qErr := c.enqueue(p); qErr != nil {
			errs = append(errs, fmt.Errorf("line %d (%s): %w", i, line.ItemID, qErr))
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// applyLine runs one line. retry reports whether a failure is worth retrying.
func (c *Coordinator) applyLine(ctx context.Context, p *pendingLine) (retry bool, err error) {
	if !p.claimed {
		first, err := c.dedup.Claim(ctx, p.key)
		if err != nil {
			metrics.StockLinesApplied.WithLabelValues("claim_error").Inc()
			return true, fmt.Errorf("claim %s: %w", p.key, err)
		}
		if !first {
			metrics.StockLinesApplied.WithLabelValues("duplicate").Inc()
			telemetry.Logger.Debug("Stock line already applied",
				zap.String("trigger_id", p.triggerID),
				zap.String("key", p.key),
			)
			return false, nil
		}
	}

	res, err := c.stock.Decrement(ctx, p.line.ItemID, p.line.Quantity)
	if err != nil {
		if errors.Is(err, models.ErrStockItemNotFound) {
			metrics.StockLinesApplied.WithLabelValues("missing_item").Inc()
			telemetry.Logger.Error("Stock item missing, decrement skipped",
				zap.String("trigger_id", p.triggerID),
				zap.String("item_id", p.line.ItemID),
			)
			return false, err
		}
		metrics.StockLinesApplied.WithLabelValues("error").Inc()
		p.claimed = !c.release(ctx, p.key)
		return true, err
	}

	metrics.StockLinesApplied.WithLabelValues("applied").Inc()
	if res.Shortfall.IsPositive() {
		metrics.StockShortfalls.Inc()
		telemetry.Logger.Warn("Short stock, quantity clamped at zero",
			zap.String("trigger_id", p.triggerID),
			zap.String("item_id", p.line.ItemID),
			zap.String("requested", p.line.Quantity.String()),
			zap.String("available", res.Before.String()),
			zap.String("shortfall", res.Shortfall.String()),
		)
	}
	return false, nil
}

// release drops the claim on a line that was not applied. It runs even when
// ctx is already cancelled, so a decrement interrupted by shutdown leaves the
// line free for a redelivered trigger.
func (c *Coordinator) release(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := c.dedup.Release(ctx, key); err != nil {
		telemetry.Logger.Error("Failed to release stock claim",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (c *Coordinator) enqueue(p pendingLine) error {
	select {
	case c.retries <- p:
		metrics.RetryQueueDepth.Inc()
		return nil
	default:
		telemetry.Logger.Error("Stock retry queue full, line dropped",
			zap.String("trigger_id", p.triggerID),
			zap.String("item_id", p.line.ItemID),
		)
		return ErrRetryQueueFull
	}
}

// Run drains the retry queue until ctx is done, then waits for in-flight
// retries to stop. Lines still queued at that point are dropped with their
// claims released, so redelivering the trigger applies them.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.dropQueued(ctx)
	defer c.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-c.retries:
			metrics.RetryQueueDepth.Dec()
			c.wg.Add(1)
			go func(p pendingLine) {
				defer c.wg.Done()
				c.retry(ctx, p)
			}(p)
		}
	}
}

func (c *Coordinator) retry(ctx context.Context, p pendingLine) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInterval
	b.MaxElapsedTime = c.opts.RetryMaxElapsed

	op := func() error {
		retry, err := c.applyLine(ctx, &p)
		if err != nil && !retry {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		telemetry.Logger.Warn("Stock decrement retry failed",
			zap.String("trigger_id", p.triggerID),
			zap.String("item_id", p.line.ItemID),
			zap.Duration("next_attempt_in", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		c.abandon(ctx, p, err)
	}
}

func (c *Coordinator) abandon(ctx context.Context, p pendingLine, err error) {
	if p.claimed {
		c.release(ctx, p.key)
	}
	metrics.StockLinesApplied.WithLabelValues("abandoned").Inc()
	telemetry.Logger.Error("Stock decrement abandoned",
		zap.String("trigger_id", p.triggerID),
		zap.String("item_id", p.line.ItemID),
		zap.String("quantity", p.line.Quantity.String()),
		zap.Error(err),
	)
}

func (c *Coordinator) dropQueued(ctx context.Context) {
	for {
		select {
		case p := <-c.retries:
			metrics.RetryQueueDepth.Dec()
			c.abandon(ctx, p, context.Cause(ctx))
		default:
			return
		}
	}
}

// DirectDispatcher hands triggers straight to an in-process coordinator.
type DirectDispatcher struct {
	coordinator *Coordinator
}

var _ interfaces.TriggerDispatcher = (*DirectDispatcher)(nil)

func NewDirectDispatcher(c *Coordinator) *DirectDispatcher {
	return &DirectDispatcher{coordinator: c}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, trigger models.FulfillmentTrigger) error {
	return d.coordinator.OnFulfilled(ctx, trigger)
}
