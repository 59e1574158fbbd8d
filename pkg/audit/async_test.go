package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type captureReporter struct {
	mu      sync.Mutex
	reports []*ViolationReport
	block   chan struct{} // when non-nil, deliveries wait here
}

func (r *captureReporter) Report(ctx context.Context, report *ViolationReport) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *captureReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func testReport(id string) *ViolationReport {
	return &ViolationReport{
		ID:            id,
		Operation:     "capsule.create",
		ObjectType:    "CAPSULE",
		Namespace:     "finance",
		PrincipalID:   "svc",
		CorrelationID: "corr-" + id,
		Violations: []Violation{
			{PolicyID: "gov", ConstraintType: "REQUIRE_GOVERNANCE", Enforcement: "BLOCK"},
		},
		OccurredAt: time.Now().UTC(),
	}
}

func TestAsyncReporterDelivers(t *testing.T) {
	inner := &captureReporter{}
	r := NewAsyncReporter(inner, AsyncConfig{Buffer: 8}, nil)

	for i := 0; i < 3; i++ {
		if err := r.Report(context.Background(), testReport("r")); err != nil {
			t.Fatalf("Report() error = %v", err)
		}
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := inner.count(); got != 3 {
		t.Errorf("delivered %d reports, want 3", got)
	}
	if r.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", r.Dropped())
	}
}

func TestAsyncReporterDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	inner := &captureReporter{block: release}

	var hookCalls int64
	r := NewAsyncReporter(inner, AsyncConfig{
		Buffer: 1,
		OnDrop: func() { atomic.AddInt64(&hookCalls, 1) },
	}, nil)

	// First report occupies the worker, second fills the buffer, the
	// rest are dropped without blocking.
	for i := 0; i < 5; i++ {
		r.Report(context.Background(), testReport("r"))
	}

	// Submission never blocked, so some reports must have been dropped.
	if r.Dropped() == 0 {
		t.Error("Dropped() = 0, want drops with a full buffer")
	}
	if atomic.LoadInt64(&hookCalls) != r.Dropped() {
		t.Errorf("OnDrop calls = %d, want %d", hookCalls, r.Dropped())
	}

	close(release)
	r.Close()
}

func TestAsyncReporterReportAfterClose(t *testing.T) {
	inner := &captureReporter{}
	r := NewAsyncReporter(inner, AsyncConfig{Buffer: 8}, nil)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Close is idempotent.
	if err := r.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	// Submissions after Close never strand a report in the channel:
	// each is counted as dropped.
	for i := 0; i < 3; i++ {
		if err := r.Report(context.Background(), testReport("r")); err != nil {
			t.Fatalf("Report() after Close error = %v", err)
		}
	}
	if inner.count() != 0 {
		t.Errorf("delivered %d reports after Close, want 0", inner.count())
	}
	if r.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", r.Dropped())
	}
}

func TestAsyncReporterDrainsOnClose(t *testing.T) {
	inner := &captureReporter{}
	r := NewAsyncReporter(inner, AsyncConfig{Buffer: 16}, nil)

	for i := 0; i < 10; i++ {
		r.Report(context.Background(), testReport("r"))
	}
	r.Close()

	if got := inner.count(); got+int(r.Dropped()) != 10 {
		t.Errorf("delivered %d + dropped %d, want 10 total", got, r.Dropped())
	}
	if got := inner.count(); got == 0 {
		t.Error("Close() delivered nothing, want buffered reports drained")
	}
}
