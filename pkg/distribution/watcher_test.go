package distribution

import (
	"context"
	"testing"
	"time"
)

func TestBundleWatcherLoad(t *testing.T) {
	c, st := newTestConsumer(t, nil)
	dir := t.TempDir()

	writeBundle(t, dir, "policies.yaml",
		"policies:\n  - {id: a, name: a, enforcement: BLOCK, enabled: true}\n")

	w, err := NewBundleWatcher(BundleWatcherConfig{Dir: dir}, c, nil)
	if err != nil {
		t.Fatalf("NewBundleWatcher() error = %v", err)
	}
	if err := w.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.Get("a") == nil {
		t.Error("Get() = nil after bundle load")
	}
}

func TestBundleWatcherWatchReload(t *testing.T) {
	c, st := newTestConsumer(t, nil)
	dir := t.TempDir()

	writeBundle(t, dir, "policies.yaml",
		"policies:\n  - {id: a, name: a, enforcement: BLOCK, enabled: true}\n")

	w, err := NewBundleWatcher(BundleWatcherConfig{Dir: dir, DebounceInterval: 20 * time.Millisecond}, c, nil)
	if err != nil {
		t.Fatalf("NewBundleWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Initial load happens before watching starts.
	waitFor(t, func() bool { return st.Get("a") != nil }, "initial bundle load")

	writeBundle(t, dir, "policies.yaml",
		"policies:\n  - {id: a, name: a, enforcement: BLOCK, enabled: true}\n  - {id: b, name: b, enforcement: WARN, enabled: true}\n")

	waitFor(t, func() bool { return st.Get("b") != nil }, "reload after write")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after context cancel")
	}
}

func TestBundleWatcherValidation(t *testing.T) {
	c, _ := newTestConsumer(t, nil)

	if _, err := NewBundleWatcher(BundleWatcherConfig{}, c, nil); err == nil {
		t.Error("NewBundleWatcher(empty dir) expected error")
	}
	if _, err := NewBundleWatcher(BundleWatcherConfig{Dir: t.TempDir()}, nil, nil); err == nil {
		t.Error("NewBundleWatcher(nil consumer) expected error")
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
