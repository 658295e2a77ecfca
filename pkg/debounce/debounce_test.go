package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebounceCoalescesBurst(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		i := i
		d.Debounce(func() {
			calls.Add(1)
			last.Store(int32(i))
		})
	}

	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Fatalf("expected the latest fn to run, got %d", got)
	}
	if d.Pending() {
		t.Fatalf("nothing should be pending after firing")
	}
}

func TestFlushRunsPendingImmediately(t *testing.T) {
	d := New(time.Hour)
	var calls atomic.Int32
	d.Debounce(func() { calls.Add(1) })

	if !d.Pending() {
		t.Fatalf("expected pending call")
	}
	if !d.Flush() {
		t.Fatalf("expected flush to run the pending call")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call after flush, got %d", calls.Load())
	}
	if d.Flush() {
		t.Fatalf("second flush should be a no-op")
	}
}

func TestCancelDropsPending(t *testing.T) {
	d := New(10 * time.Millisecond)
	var calls atomic.Int32
	d.Debounce(func() { calls.Add(1) })
	d.Cancel()

	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("canceled call should not run")
	}
	if d.Pending() {
		t.Fatalf("nothing should be pending after cancel")
	}
}

func TestDebounceIgnoresNil(t *testing.T) {
	d := New(time.Millisecond)
	d.Debounce(nil)
	if d.Pending() {
		t.Fatalf("nil fn should not be scheduled")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
