package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/metrics"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/internal/timeseries"
)

// WriterConfig holds async append settings
type WriterConfig struct {
	QueueSize     int
	Workers       int
	MaxRetries    int
	Timeout       time.Duration
	RetryInterval time.Duration
}

// Writer appends records to the time-series store off the request path.
// Submit never blocks; when the queue is full the record is dropped.
type Writer struct {
	store  timeseries.Store
	cfg    WriterConfig
	logger *zap.Logger

	mu     sync.RWMutex
	queue  chan model.Record
	closed bool
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewWriter creates a writer. Call Start before submitting.
func NewWriter(store timeseries.Store, cfg WriterConfig, logger *zap.Logger) *Writer {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	return &Writer{
		store:  store,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan model.Record, cfg.QueueSize),
		now:    time.Now,
	}
}

// Start launches the append workers
func (w *Writer) Start() {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}
	w.logger.Info("time-series writer started",
		zap.Int("workers", w.cfg.Workers),
		zap.Int("queue_size", w.cfg.QueueSize),
	)
}

// Submit enqueues rec and reports whether it was accepted
func (w *Writer) Submit(rec model.Record) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.drop(rec, "writer stopped")
		return false
	}

	select {
	case w.queue <- rec:
		metrics.WriteQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		w.drop(rec, "write queue full")
		return false
	}
}

// Stop closes intake and waits for queued records to be appended, or for
// ctx to expire.
func (w *Writer) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("time-series writer drained")
		return nil
	case <-ctx.Done():
		w.logger.Warn("time-series writer stop deadline reached",
			zap.Int("pending", len(w.queue)),
		)
		return ctx.Err()
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()

	for rec := range w.queue {
		metrics.WriteQueueDepth.Set(float64(len(w.queue)))
		rec.PersistedAt = w.now()

		if err := w.persist(rec); err != nil {
			metrics.RecordsPersisted.WithLabelValues("failed").Inc()
			w.logger.Error("failed to append reading",
				zap.Error(err),
				zap.String("zone", rec.Reading.Zone),
				zap.String("record_id", rec.ID.String()),
			)
			continue
		}
		metrics.RecordsPersisted.WithLabelValues("ok").Inc()
	}
}

// persist retries with exponential backoff. An open breaker is not retried.
func (w *Writer) persist(rec model.Record) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.cfg.RetryInterval
	policy.MaxInterval = 20 * w.cfg.RetryInterval

	attempt := 0
	operation := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
		defer cancel()

		err := w.store.Append(ctx, rec)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		w.logger.Warn("append failed, retrying",
			zap.Error(err),
			zap.String("record_id", rec.ID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", next),
		)
	}

	return backoff.RetryNotify(operation, backoff.WithMaxRetries(policy, uint64(w.cfg.MaxRetries)), notify)
}

func (w *Writer) drop(rec model.Record, reason string) {
	metrics.RecordsPersisted.WithLabelValues("dropped").Inc()
	w.logger.Error("dropping reading",
		zap.String("reason", reason),
		zap.String("zone", rec.Reading.Zone),
		zap.String("record_id", rec.ID.String()),
	)
}
