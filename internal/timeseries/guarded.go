package timeseries

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/apperr"
	"github.com/septivank/farm-telemetry/internal/model"
)

// GuardedConfig configures GuardedStore.
type GuardedConfig struct {
	Timeout         time.Duration
	BreakerFailures int
	BreakerOpen     time.Duration
}

// GuardedStore bounds every call with a deadline and a circuit breaker, and
// reports any backend failure as StorageUnavailable.
type GuardedStore struct {
	next    Store
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

// NewGuardedStore wraps next.
func NewGuardedStore(next Store, cfg GuardedConfig, logger *zap.Logger) *GuardedStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 1
	}
	fails := uint32(cfg.BreakerFailures)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "timeseries",
		Timeout: cfg.BreakerOpen,
		IsSuccessful: func(err error) bool {
			var gone *callerGone
			return err == nil || errors.As(err, &gone)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("storage circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &GuardedStore{next: next, timeout: cfg.Timeout, cb: cb}
}

func (g *GuardedStore) Append(ctx context.Context, rec model.Record) error {
	_, err := g.run(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, g.next.Append(ctx, rec)
	})
	return err
}

func (g *GuardedStore) QueryRange(ctx context.Context, zone string, start, end time.Time) ([]model.Record, error) {
	out, err := g.run(ctx, func(ctx context.Context) (interface{}, error) {
		return g.next.QueryRange(ctx, zone, start, end)
	})
	if err != nil {
		return nil, err
	}
	return out.([]model.Record), nil
}

func (g *GuardedStore) QueryRangeAllZones(ctx context.Context, start, end time.Time) ([]model.Record, error) {
	out, err := g.run(ctx, func(ctx context.Context) (interface{}, error) {
		return g.next.QueryRangeAllZones(ctx, start, end)
	})
	if err != nil {
		return nil, err
	}
	return out.([]model.Record), nil
}

// Ping bypasses the breaker so health checks see the real backend state.
func (g *GuardedStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.next.Ping(ctx); err != nil {
		return apperr.Unavailable(err)
	}
	return nil
}

// State returns the breaker state for health reporting.
func (g *GuardedStore) State() string {
	return g.cb.State().String()
}

// callerGone marks a failure caused by the caller's own context ending.
// The backend did nothing wrong, so the breaker does not count it.
type callerGone struct{ err error }

func (e *callerGone) Error() string { return e.err.Error() }
func (e *callerGone) Unwrap() error { return e.err }

func (g *GuardedStore) run(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		out, err := fn(callCtx)
		if err != nil && ctx.Err() != nil {
			return nil, &callerGone{err: err}
		}
		return out, err
	})
	if err != nil {
		var gone *callerGone
		if errors.As(err, &gone) {
			err = gone.err
		}
		return nil, apperr.Unavailable(err)
	}
	return out, nil
}
