package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CollapsesBurstToOneFlush(t *testing.T) {
	var mu sync.Mutex
	var flushes [][]string
	d := NewDebouncer(60*time.Millisecond, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		flushes = append(flushes, paths)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	d.Touch("a.go")
	time.Sleep(10 * time.Millisecond)
	d.Touch("a.go") // overwrite within the window: one logical change
	d.Touch("b.go")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushes) >= 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, flushes, 1)
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, flushes[0])
}

func TestDebouncer_StopWaitsForInFlightFlush(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	d := NewDebouncer(20*time.Millisecond, func(paths []string) {
		close(started)
		<-release
	})

	ctx := context.Background()
	d.Start(ctx)
	d.Touch("a.go")

	<-started
	close(release)
	d.Stop() // must return only after the flush above completes
}
