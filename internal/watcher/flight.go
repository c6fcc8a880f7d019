package watcher

import (
	"context"
	"sync"
)

// flight runs fn on a single goroutine at a time. A trigger that arrives
// while fn is running marks a rerun instead of starting a second run; any
// number of such triggers collapse into one rerun.
type flight struct {
	fn func(ctx context.Context)

	mu      sync.Mutex
	running bool
	rerun   bool
	wg      sync.WaitGroup
}

func newFlight(fn func(ctx context.Context)) *flight {
	return &flight{fn: fn}
}

// trigger starts a run, or requests a rerun if one is in flight. It reports
// whether a new run was started.
func (f *flight) trigger(ctx context.Context) bool {
	f.mu.Lock()
	if f.running {
		f.rerun = true
		f.mu.Unlock()
		return false
	}
	f.running = true
	f.wg.Add(1)
	f.mu.Unlock()

	go f.loop(ctx)
	return true
}

func (f *flight) loop(ctx context.Context) {
	defer f.wg.Done()
	for {
		f.fn(ctx)

		f.mu.Lock()
		if !f.rerun || ctx.Err() != nil {
			f.running = false
			f.rerun = false
			f.mu.Unlock()
			return
		}
		f.rerun = false
		f.mu.Unlock()
	}
}

// wait blocks until no run is in flight.
func (f *flight) wait() {
	f.wg.Wait()
}
