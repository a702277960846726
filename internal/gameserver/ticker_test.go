package gameserver_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/kater/internal/gameserver"
)

func TestTicker_StopsOnCancel(t *testing.T) {
	tk := gameserver.NewTicker(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	tk.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("ticker loop did not exit after cancel")
	}
}

func TestTicker_CallbackInvoked(t *testing.T) {
	tk := gameserver.NewTicker(10 * time.Millisecond)
	called := make(chan struct{}, 1)
	tk.Register("engine", func(context.Context) {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	tk.Start(ctx)
	select {
	case <-called:
	case <-ctx.Done():
		t.Fatal("tick callback not invoked within timeout")
	}
}

func TestTicker_RunsCallbacksInNameOrder(t *testing.T) {
	tk := gameserver.NewTicker(10 * time.Millisecond)
	var mu sync.Mutex
	var order []string
	first := make(chan struct{})
	var once sync.Once
	record := func(name string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			defer mu.Unlock()
			if len(order) < 3 {
				order = append(order, name)
			}
			if len(order) == 3 {
				once.Do(func() { close(first) })
			}
		}
	}
	tk.Register("c", record("c"))
	tk.Register("a", record("a"))
	tk.Register("b", record("b"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tk.Start(ctx)
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("callbacks not invoked")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTicker_UnregisterStopsCallback(t *testing.T) {
	tk := gameserver.NewTicker(10 * time.Millisecond)
	var count atomic.Int64
	tk.Register("autosave", func(context.Context) { count.Add(1) })
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	tk.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	tk.Unregister("autosave")
	before := count.Load()
	time.Sleep(50 * time.Millisecond)
	if count.Load() > before+1 {
		t.Fatalf("tick continued after unregister: before=%d after=%d", before, count.Load())
	}
}

func TestNewTicker_PanicsOnNonPositiveInterval(t *testing.T) {
	assert.Panics(t, func() { gameserver.NewTicker(0) })
}
