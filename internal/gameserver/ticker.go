package gameserver

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Ticker runs named callbacks on a fixed interval from a single goroutine.
//
// Invariant: callbacks run sequentially in name order, at most once per tick.
type Ticker struct {
	interval time.Duration
	mu       sync.Mutex
	jobs     map[string]func(context.Context)
	done     chan struct{}
}

// NewTicker returns a Ticker that fires every interval.
//
// Precondition: interval must be > 0.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		panic("gameserver.NewTicker: interval must be > 0")
	}
	return &Ticker{
		interval: interval,
		jobs:     make(map[string]func(context.Context)),
		done:     make(chan struct{}),
	}
}

// Register adds fn under name, replacing any existing callback.
func (t *Ticker) Register(name string, fn func(context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[name] = fn
}

// Unregister removes the callback registered under name.
func (t *Ticker) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, name)
}

// Start begins the tick loop. It runs until ctx is cancelled, after which Done
// is closed.
func (t *Ticker) Start(ctx context.Context) {
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, fn := range t.snapshot() {
					fn(ctx)
				}
			}
		}
	}()
}

// Done is closed once the loop started by Start has exited.
func (t *Ticker) Done() <-chan struct{} { return t.done }

func (t *Ticker) snapshot() []func(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.jobs))
	for name := range t.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	fns := make([]func(context.Context), 0, len(names))
	for _, name := range names {
		fns = append(fns, t.jobs[name])
	}
	return fns
}
