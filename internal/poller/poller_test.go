package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestProbeRunsUntilStopped(t *testing.T) {
	var count atomic.Int64
	h := Start(5*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	})

	deadline := time.After(time.Second)
	for count.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("probe never ran")
		case <-time.After(time.Millisecond):
		}
	}

	h.Stop()
	settled := count.Load()
	time.Sleep(30 * time.Millisecond)
	if got := count.Load(); got > settled+1 {
		t.Fatalf("probe kept running after Stop: %d -> %d", settled, got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := Start(time.Millisecond, func(ctx context.Context) {})
	h.Stop()
	h.Stop()
	h.Stop()
}

func TestStopFromInsideProbe(t *testing.T) {
	var count atomic.Int64
	done := make(chan struct{})
	handleCh := make(chan *Handle, 1)
	h := Start(time.Millisecond, func(ctx context.Context) {
		if count.Add(1) == 1 {
			(<-handleCh).Stop()
			close(done)
		}
	})
	handleCh <- h

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("probe never ran")
	}
	time.Sleep(20 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Fatalf("probe ran %d times after stopping itself", got)
	}
}

func TestProbeContextCancelledOnStop(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	h := Start(time.Millisecond, func(ctx context.Context) {
		select {
		case <-started:
		default:
			close(started)
		}
		<-ctx.Done()
		select {
		case <-cancelled:
		default:
			close(cancelled)
		}
	})

	<-started
	h.Stop()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("probe context was not cancelled by Stop")
	}
}
