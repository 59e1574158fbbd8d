// Package store provides the bounded-freshness, concurrent cache of
// distributed policies that the enforcement agent evaluates against.
//
// Entries carry an expiry computed from a TTL at insertion time.
// Eviction is lazy: every read path filters expired entries itself, so
// a stale policy can never influence a decision even if no sweep has
// run. A background sweep (see Sweeper) only reclaims memory.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"meridian-hq/aegis/pkg/policy"
)

// DefaultTTL is the freshness bound applied when no TTL is configured.
// Policies not refreshed by the distribution channel within this window
// vanish from consideration.
const DefaultTTL = 10 * time.Minute

// Config contains configuration for the policy store.
type Config struct {
	// TTL is the time a cached policy stays live after its last
	// successful update. Default: DefaultTTL.
	TTL time.Duration

	// Clock returns the current time. Default: time.Now. Tests inject
	// a fake clock to exercise expiry deterministically.
	Clock func() time.Time
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		TTL:   DefaultTTL,
		Clock: time.Now,
	}
}

// Validate validates the store configuration.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("store: ttl must be positive, got %v", c.TTL)
	}
	return nil
}

// entry is a cached policy plus its computed expiry and the scope's
// namespace patterns compiled once at insertion.
type entry struct {
	policy     *policy.Policy
	namespaces policy.NamespaceMatcher
	expires    time.Time
}

// Store is a thread-safe in-memory cache of policies keyed by policy ID.
// It supports many concurrent readers (evaluation threads) against an
// occasionally updating writer (the distribution consumer); writes are
// atomic per policy ID.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   func() time.Time
}

// New creates an empty policy store. The store holds no persistent
// state; on restart it rebuilds purely from the distribution channel.
func New(cfg Config) (*Store, error) {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
	}, nil
}

// Put upserts a policy and resets its expiry to now + TTL. The store
// caches its own deep copy, so later caller mutations never reach
// in-flight evaluations.
func (s *Store) Put(p *policy.Policy) error {
	if p == nil {
		return fmt.Errorf("store: policy cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("store: policy id cannot be empty")
	}

	now := s.clock()
	cached := p.Clone()
	cached.CachedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[p.ID] = entry{
		policy:     cached,
		namespaces: cached.Scope.CompileNamespaces(),
		expires:    now.Add(s.ttl),
	}
	return nil
}

// Remove deletes a policy immediately, regardless of remaining TTL.
// Removing an unknown ID is not an error; the distribution channel may
// tombstone policies this agent never cached.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Get returns the live policy for id, or nil if absent or expired.
func (s *Store) Get(id string) *policy.Policy {
	now := s.clock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || !e.expires.After(now) {
		return nil
	}
	return e.policy
}

// Size returns the number of live (non-expired) policies. It sweeps
// expired entries first so the count reflects what Query can return.
func (s *Store) Size() int {
	s.Sweep()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Query returns all enabled, non-expired policies whose scope matches
// both the object type and the namespace, sorted ascending by priority.
// Equal priorities order by policy ID so evaluation order is
// deterministic for a fixed store state.
func (s *Store) Query(objectType, namespace string) []*policy.Policy {
	now := s.clock()

	s.mu.RLock()
	matched := make([]*policy.Policy, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.expires.After(now) {
			continue
		}
		p := e.policy
		if !p.Enabled {
			continue
		}
		if !p.Scope.MatchesObjectType(objectType) || !e.namespaces.Matches(namespace) {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

// Sweep removes expired entries to reclaim memory and returns how many
// were evicted. Correctness never depends on Sweep running: every read
// path filters by expiry itself.
func (s *Store) Sweep() int {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.entries {
		if !e.expires.After(now) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

// TTL returns the configured freshness bound.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
