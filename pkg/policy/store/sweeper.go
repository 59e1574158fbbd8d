package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the store's eviction sweep on a cron schedule so memory
// held by expired policies is reclaimed without waiting for a read.
// It is an optimization only; the store's read paths already filter
// expired entries.
type Sweeper struct {
	store    *Store
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper for the given store. schedule is a
// standard cron expression, e.g. "*/5 * * * *" for every five minutes.
func NewSweeper(store *Store, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "store.sweeper"),
	}
}

// Start begins scheduled sweeping. An empty schedule disables the
// sweeper without error. The sweeper stops when ctx is cancelled or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, relying on lazy eviction")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		evicted := s.store.Sweep()
		if evicted > 0 {
			s.logger.Debug("sweep evicted expired policies", "evicted", evicted)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("policy store sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("policy store sweeper stopped")
	}
}

// IsRunning reports whether scheduled sweeping is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
