package gameserver

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const finalSaveTimeout = 10 * time.Second

// Loop drives a Session: it ticks the engine, pushes each frame to the Hub and
// autosaves periodically. It implements server.Service.
type Loop struct {
	session  *Session
	hub      *Hub
	tick     *Ticker
	autosave *Ticker
	logger   *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	finished chan struct{}
}

// NewLoop returns a Loop ticking every tickInterval. autosaveInterval <= 0
// disables autosave; a final save still happens on Stop.
//
// Precondition: tickInterval must be > 0.
func NewLoop(session *Session, hub *Hub, tickInterval, autosaveInterval time.Duration, logger *zap.Logger) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		session:  session,
		hub:      hub,
		tick:     NewTicker(tickInterval),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
	l.tick.Register("engine", l.step)
	if autosaveInterval > 0 {
		l.autosave = NewTicker(autosaveInterval)
		l.autosave.Register("autosave", l.save)
	}
	return l
}

// Start runs the hub and tickers and blocks until Stop.
func (l *Loop) Start() error {
	defer close(l.finished)
	go l.hub.Run(l.ctx)
	l.tick.Start(l.ctx)
	if l.autosave != nil {
		l.autosave.Start(l.ctx)
	}
	<-l.ctx.Done()
	<-l.hub.Done()
	<-l.tick.Done()
	if l.autosave != nil {
		<-l.autosave.Done()
	}
	return nil
}

// Stop halts ticking and writes a final save.
//
// Precondition: Start has been called.
func (l *Loop) Stop() {
	l.cancel()
	<-l.finished
	ctx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
	defer cancel()
	if err := l.session.Save(ctx); err != nil {
		l.logger.Error("final save", zap.Error(err))
		return
	}
	l.logger.Info("final save written")
}

func (l *Loop) step(context.Context) {
	view := l.session.Tick()
	for _, n := range view.Notifications {
		l.logger.Info("action completed",
			zap.Stringer("category", n.Category),
			zap.String("name", n.Name),
			zap.Int("experience", n.Experience),
			zap.Int("quantity", n.Quantity),
			zap.Bool("stored", n.Stored),
			zap.Int("bonus", n.Bonus),
		)
	}
	if l.hub.Clients() > 0 {
		l.hub.Broadcast(Envelope{Type: MsgView, Data: view})
	}
}

func (l *Loop) save(ctx context.Context) {
	if err := l.session.Save(ctx); err != nil {
		l.logger.Warn("autosave", zap.Error(err))
	}
}
