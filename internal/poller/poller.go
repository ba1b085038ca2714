package poller

import (
	"context"
	"sync"
	"time"
)

// Probe is one repeated observation. The context is cancelled when the
// handle is stopped; a probe that is mid-flight at that point must not
// apply its result.
type Probe func(ctx context.Context)

// Handle controls a running poller. Stop is idempotent and safe to call
// from any goroutine, including from inside the probe itself.
type Handle struct {
	cancel context.CancelFunc
	once   sync.Once
}

// Stop cancels the poller. Subsequent calls are no-ops.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
}

// Start schedules probe to run every interval until the handle is stopped.
// Probes never overlap: each runs to completion before the next tick is
// considered, and ticks missed while a slow probe is in flight coalesce,
// so consumers see a "latest observation" stream rather than a queue.
func Start(interval time.Duration, probe Probe) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe(ctx)
			}
		}
	}()

	return h
}
