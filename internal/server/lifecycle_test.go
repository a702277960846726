package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// blockingService blocks in Start until Stop and records the stop order.
type blockingService struct {
	name    string
	started chan struct{}
	stop    chan struct{}
	once    sync.Once
	order   *stopOrder
}

type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func newBlockingService(name string, order *stopOrder) *blockingService {
	return &blockingService{name: name, started: make(chan struct{}), stop: make(chan struct{}), order: order}
}

func (b *blockingService) Start() error {
	close(b.started)
	<-b.stop
	return nil
}

func (b *blockingService) Stop() {
	b.once.Do(func() {
		b.order.mu.Lock()
		b.order.names = append(b.order.names, b.name)
		b.order.mu.Unlock()
		close(b.stop)
	})
}

func waitStarted(t *testing.T, svcs ...*blockingService) {
	t.Helper()
	for _, s := range svcs {
		select {
		case <-s.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("service %s did not start in time", s.name)
		}
	}
}

func TestLifecycle_StopsInReverseOrderOnCancel(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	order := &stopOrder{}
	httpSvc := newBlockingService("http", order)
	loopSvc := newBlockingService("loop", order)
	lc.Add("http", httpSvc)
	lc.Add("loop", loopSvc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	waitStarted(t, httpSvc, loopSvc)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"loop", "http"}, order.names)
}

func TestLifecycle_FailingServiceStopsOthers(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	order := &stopOrder{}
	loopSvc := newBlockingService("loop", order)
	boom := errors.New("address in use")
	lc.Add("loop", loopSvc)
	lc.Add("http", &FuncService{
		StartFn: func() error {
			<-loopSvc.started
			return boom
		},
		StopFn: func() {},
	})

	done := make(chan error, 1)
	go func() { done <- lc.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "service http")
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not stop after a service failure")
	}
	assert.Equal(t, []string{"loop"}, order.names)
}

func TestFuncService(t *testing.T) {
	started, stopped := false, false
	svc := &FuncService{
		StartFn: func() error { started = true; return nil },
		StopFn:  func() { stopped = true },
	}
	assert.NoError(t, svc.Start())
	assert.True(t, started)
	svc.Stop()
	assert.True(t, stopped)
}
