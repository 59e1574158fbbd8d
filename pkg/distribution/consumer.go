// Package distribution feeds the local policy cache from the
// governance authority's distribution channel, and from optional local
// YAML policy bundles used to bootstrap an agent before the first
// distribution batch arrives.
package distribution

import (
	"context"
	"fmt"
	"log/slog"

	"meridian-hq/aegis/pkg/policy"
	"meridian-hq/aegis/pkg/policy/store"
)

// Update is one logical message from the distribution channel. A nil
// Policy is a tombstone removing PolicyID; a non-nil Policy is an
// upsert.
type Update struct {
	PolicyID string
	Policy   *policy.Policy
}

// CacheGauge receives the live cached-policy count after each applied
// update. Implemented by telemetry/metrics.Collector.
type CacheGauge interface {
	SetCachedPolicies(n int)
}

// Consumer applies policy updates to the store. Policies outside this
// service's scope are discarded immediately and never cached.
type Consumer struct {
	service string
	store   *store.Store
	gauge   CacheGauge
	logger  *slog.Logger
}

// NewConsumer creates a consumer for the given service name and store.
// gauge may be nil.
func NewConsumer(service string, st *store.Store, gauge CacheGauge, logger *slog.Logger) (*Consumer, error) {
	if service == "" {
		return nil, fmt.Errorf("distribution: service name cannot be empty")
	}
	if st == nil {
		return nil, fmt.Errorf("distribution: store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		service: service,
		store:   st,
		gauge:   gauge,
		logger:  logger.With("component", "distribution.consumer", "service", service),
	}, nil
}

// Apply processes a single update: tombstone, out-of-scope discard, or
// upsert. Malformed policies are rejected with an error and never
// cached.
func (c *Consumer) Apply(u Update) error {
	if u.Policy == nil {
		if u.PolicyID == "" {
			return fmt.Errorf("distribution: tombstone without policy id")
		}
		c.store.Remove(u.PolicyID)
		c.logger.Info("policy removed", "policy_id", u.PolicyID)
		c.updateGauge()
		return nil
	}

	p := u.Policy
	if u.PolicyID != "" && u.PolicyID != p.ID {
		return fmt.Errorf("distribution: update id %q does not match policy id %q", u.PolicyID, p.ID)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("distribution: rejecting update: %w", err)
	}

	if !p.Scope.MatchesService(c.service) {
		c.logger.Debug("discarding out-of-scope policy",
			"policy_id", p.ID,
			"scope_services", p.Scope.Services,
		)
		return nil
	}

	if err := c.store.Put(p); err != nil {
		return fmt.Errorf("distribution: failed to cache policy %q: %w", p.ID, err)
	}
	c.logger.Info("policy cached",
		"policy_id", p.ID,
		"version", p.Version,
		"enforcement", p.Enforcement,
		"priority", p.Priority,
	)
	c.updateGauge()
	return nil
}

// Run applies updates from the channel until it closes or ctx is
// cancelled. Individual bad updates are logged and skipped so one
// malformed policy cannot stall the stream.
func (c *Consumer) Run(ctx context.Context, updates <-chan Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := c.Apply(u); err != nil {
				c.logger.Error("failed to apply policy update",
					"policy_id", u.PolicyID,
					"error", err,
				)
			}
		}
	}
}

func (c *Consumer) updateGauge() {
	if c.gauge != nil {
		c.gauge.SetCachedPolicies(c.store.Size())
	}
}
