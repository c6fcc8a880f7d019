package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlight_CoalescesTriggersWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	var runs, concurrent, maxConcurrent int32

	f := newFlight(func(ctx context.Context) {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			old := atomic.LoadInt32(&maxConcurrent)
			if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
				break
			}
		}
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
		atomic.AddInt32(&concurrent, -1)
	})

	ctx := context.Background()
	assert.True(t, f.trigger(ctx))
	<-started

	for i := 0; i < 5; i++ {
		assert.False(t, f.trigger(ctx))
	}

	close(release)
	f.wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&runs), "five triggers during a run collapse into one rerun")
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}

func TestFlight_ConcurrentTriggers(t *testing.T) {
	var mu sync.Mutex
	active := 0
	overlap := false

	f := newFlight(func(ctx context.Context) {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		mu.Unlock()

		mu.Lock()
		active--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.trigger(context.Background())
		}()
	}
	wg.Wait()
	f.wait()

	assert.False(t, overlap)
}

func TestFlight_CancelledContextDropsRerun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var runs int32

	f := newFlight(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
		<-release
	})

	f.trigger(ctx)
	f.trigger(ctx)
	cancel()
	close(release)
	f.wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}
