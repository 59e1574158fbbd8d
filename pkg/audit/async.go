package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncConfig contains configuration for the async reporter.
type AsyncConfig struct {
	// Buffer is the size of the submit channel. When the buffer is
	// full, reports are dropped rather than blocking the evaluation
	// hot path. Default: 1000.
	Buffer int

	// DeliveryTimeout bounds each delivery to the wrapped reporter.
	// Default: 5 seconds.
	DeliveryTimeout time.Duration

	// OnDrop, when set, is invoked once per dropped report.
	OnDrop func()
}

// DefaultAsyncConfig returns the default async reporter configuration.
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		Buffer:          1000,
		DeliveryTimeout: 5 * time.Second,
	}
}

// AsyncReporter wraps a Reporter with a buffered submit channel and a
// background delivery worker, so audit reporting never adds latency to
// the guarded business operation. Submission is fire-and-forget: under
// load, reports are dropped and counted rather than queued unboundedly.
type AsyncReporter struct {
	inner   Reporter
	cfg     AsyncConfig
	reports chan *ViolationReport
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
	logger  *slog.Logger

	// mu orders submissions against Close: a Report that sees closed
	// false finishes its send before the worker's final drain starts,
	// so nothing is left stranded in the channel.
	mu     sync.RWMutex
	closed bool
}

// NewAsyncReporter creates and starts an async reporter delivering to
// inner.
func NewAsyncReporter(inner Reporter, cfg AsyncConfig, logger *slog.Logger) *AsyncReporter {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultAsyncConfig().Buffer
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultAsyncConfig().DeliveryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &AsyncReporter{
		inner:   inner,
		cfg:     cfg,
		reports: make(chan *ViolationReport, cfg.Buffer),
		done:    make(chan struct{}),
		logger:  logger.With("component", "audit.async_reporter"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Report enqueues the report and returns immediately. It never blocks:
// a full buffer, or a reporter that has been closed, drops the report
// and increments the drop counter.
func (r *AsyncReporter) Report(ctx context.Context, report *ViolationReport) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop()
		return nil
	}

	select {
	case r.reports <- report:
		return nil
	default:
		r.drop()
		r.logger.Warn("audit buffer full, dropping violation report",
			"report_id", report.ID,
			"correlation_id", report.CorrelationID,
			"buffer", r.cfg.Buffer,
		)
		return nil
	}
}

func (r *AsyncReporter) drop() {
	r.dropped.Add(1)
	if r.cfg.OnDrop != nil {
		r.cfg.OnDrop()
	}
}

// Dropped returns how many reports have been dropped since start.
func (r *AsyncReporter) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops the worker after draining buffered reports. Close is
// idempotent; reports submitted afterwards are counted as dropped.
func (r *AsyncReporter) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *AsyncReporter) worker() {
	defer r.wg.Done()

	for {
		select {
		case report := <-r.reports:
			r.deliver(report)

		case <-r.done:
			// Drain what is already buffered, then exit.
			for {
				select {
				case report := <-r.reports:
					r.deliver(report)
				default:
					return
				}
			}
		}
	}
}

func (r *AsyncReporter) deliver(report *ViolationReport) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.DeliveryTimeout)
	defer cancel()

	if err := r.inner.Report(ctx, report); err != nil {
		r.logger.Error("failed to deliver violation report",
			"report_id", report.ID,
			"correlation_id", report.CorrelationID,
			"error", err,
		)
	}
}
