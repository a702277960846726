// Package gameserver hosts one player's engine behind a lock and exposes it over
// HTTP and websocket.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/engine"
	"github.com/cory-johannsen/kater/internal/game/inventory"
	"github.com/cory-johannsen/kater/internal/game/resource"
	"github.com/cory-johannsen/kater/internal/game/savefile"
	"github.com/cory-johannsen/kater/internal/game/scheduler"
	"github.com/cory-johannsen/kater/internal/storage"
)

// SaveRecorder observes save attempts; observability.Metrics implements it.
type SaveRecorder interface {
	SaveAttempted(err error)
}

// ActionView is the presentation form of one category's status.
type ActionView struct {
	scheduler.Status
	RemainingMs int64 `json:"remaining_ms"`
}

// NotificationView is a notification plus its flash label.
type NotificationView struct {
	engine.Notification
	Flash string `json:"flash,omitempty"`
}

// View is everything a client renders for one frame.
type View struct {
	Resources     resource.Snapshot  `json:"resources"`
	Inventory     []inventory.Slot   `json:"inventory"`
	Actions       []ActionView       `json:"actions"`
	Notifications []NotificationView `json:"notifications"`
	At            time.Time          `json:"at"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock replaces time.Now as the session's time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSaveRecorder attaches a save observer.
func WithSaveRecorder(r SaveRecorder) SessionOption {
	return func(s *Session) { s.saves = r }
}

// Session serializes access to a single player's Engine and binds it to a
// store slot.
//
// Invariant: every Engine call happens with mu held.
type Session struct {
	mu       sync.Mutex
	saveMu   sync.Mutex
	eng      *engine.Engine
	store    storage.Store
	playerID uuid.UUID
	now      func() time.Time
	saves    SaveRecorder
	logger   *zap.Logger
}

// NewSession wraps eng for playerID.
//
// Precondition: eng, store and logger must not be nil.
func NewSession(eng *engine.Engine, store storage.Store, playerID uuid.UUID, logger *zap.Logger, opts ...SessionOption) *Session {
	s := &Session{
		eng:      eng,
		store:    store,
		playerID: playerID,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlayerID returns the store key of this session.
func (s *Session) PlayerID() uuid.UUID { return s.playerID }

// Catalog returns the immutable action catalog.
func (s *Session) Catalog() *action.Catalog { return s.eng.Catalog() }

// TryStart starts tier of category c at the current time.
func (s *Session) TryStart(c action.Category, tier int) (scheduler.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.TryStart(c, tier, s.now())
}

// Tick advances the engine to the current time and returns the frame that
// results.
func (s *Session) Tick() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.eng.Tick(now)
	return s.viewLocked(now)
}

// View returns the current frame without advancing the engine.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(s.now())
}

// Status returns the presentation status of c.
func (s *Session) Status(c action.Category) ActionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return actionView(s.eng.Status(c, s.now()))
}

func (s *Session) viewLocked(now time.Time) View {
	statuses := s.eng.Statuses(now)
	actions := make([]ActionView, 0, len(statuses))
	for _, st := range statuses {
		actions = append(actions, actionView(st))
	}
	notes := s.eng.Notifications()
	views := make([]NotificationView, 0, len(notes))
	for _, n := range notes {
		views = append(views, NotificationView{Notification: n, Flash: n.Flash()})
	}
	return View{
		Resources:     s.eng.ResourceSnapshot(),
		Inventory:     s.eng.InventorySnapshot(),
		Actions:       actions,
		Notifications: views,
		At:            now,
	}
}

func actionView(st scheduler.Status) ActionView {
	return ActionView{Status: st, RemainingMs: st.Remaining.Milliseconds()}
}

// Save encodes the engine and writes the record to the store.
//
// Invariant: saves are serialized through saveMu, so the last record written
// is the last snapshot taken. mu is held only while encoding.
func (s *Session) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	data, err := s.eng.SaveBytes()
	s.mu.Unlock()
	if err == nil {
		err = s.store.Save(ctx, s.playerID, data)
	}
	if s.saves != nil {
		s.saves.SaveAttempted(err)
	}
	if err != nil {
		return fmt.Errorf("saving player %s: %w", s.playerID, err)
	}
	s.logger.Debug("saved", zap.Int("bytes", len(data)))
	return nil
}

// Restore loads the stored record into the engine.
//
// Postcondition: Returns (false, nil) when no record exists and the engine is
// left fresh. A malformed record returns an error wrapping savefile.ErrMalformed
// and leaves the engine unchanged.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	data, err := s.store.Load(ctx, s.playerID)
	if errors.Is(err, storage.ErrSaveNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restoring player %s: %w", s.playerID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.LoadBytes(data); err != nil {
		var le *savefile.LoadError
		if errors.As(err, &le) {
			s.logger.Warn("stored record rejected", zap.Int("line", le.Line), zap.String("reason", le.Reason))
		}
		return false, fmt.Errorf("restoring player %s: %w", s.playerID, err)
	}
	return true, nil
}
