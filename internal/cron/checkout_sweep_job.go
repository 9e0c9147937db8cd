package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

const sweepBatchSize = 100

type sessionSweeper interface {
	SweepExpired(ctx context.Context, batch int) (int, error)
}

type cartPurger interface {
	PurgeExpired(ctx context.Context, batch int) (int, error)
}

// CheckoutSweepJobParams configure the expired-checkout reaper.
type CheckoutSweepJobParams struct {
	Logger   *logger.Logger
	Checkout sessionSweeper
	Carts    cartPurger
	Batch    int
}

// NewCheckoutSweepJob builds the job that releases reservations held by
// expired checkout sessions and purges abandoned carts.
func NewCheckoutSweepJob(params CheckoutSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = sweepBatchSize
	}
	return &checkoutSweepJob{
		logg:     params.Logger,
		checkout: params.Checkout,
		carts:    params.Carts,
		batch:    batch,
	}, nil
}

type checkoutSweepJob struct {
	logg     *logger.Logger
	checkout sessionSweeper
	carts    cartPurger
	batch    int
}

func (j *checkoutSweepJob) Name() string { return "checkout-session-sweep" }

func (j *checkoutSweepJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.sweepSessions(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.purgeCarts(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *checkoutSweepJob) sweepSessions(ctx context.Context) error {
	swept, err := j.checkout.SweepExpired(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("sweep expired checkout sessions: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": swept})
	j.logg.Info(logCtx, "checkout session sweep complete")
	return nil
}

func (j *checkoutSweepJob) purgeCarts(ctx context.Context) error {
	purged, err := j.carts.PurgeExpired(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("purge expired carts: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": purged})
	j.logg.Info(logCtx, "expired cart purge complete")
	return nil
}
