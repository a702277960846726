// Package engine ties resources, inventory, catalog and scheduler together
// behind one explicit context object driven by tick(now).
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/inventory"
	"github.com/cory-johannsen/kater/internal/game/resource"
	"github.com/cory-johannsen/kater/internal/game/savefile"
	"github.com/cory-johannsen/kater/internal/game/scheduler"
)

// Config carries the global tunables of an Engine.
type Config struct {
	Caps              resource.Caps
	EnergyRegen       int
	HitpointsRegen    int
	RegenInterval     time.Duration
	InventoryCapacity int
}

// DefaultConfig returns caps of 100, one point of energy and hit points every
// second, and twelve inventory slots.
func DefaultConfig() Config {
	return Config{
		Caps:              resource.Caps{Energy: 100, Hitpoints: 100},
		EnergyRegen:       1,
		HitpointsRegen:    1,
		RegenInterval:     time.Second,
		InventoryCapacity: 12,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Caps.Energy < 0 {
		errs = append(errs, fmt.Errorf("energy cap must be >= 0, got %d", c.Caps.Energy))
	}
	if c.Caps.Hitpoints < 0 {
		errs = append(errs, fmt.Errorf("hitpoints cap must be >= 0, got %d", c.Caps.Hitpoints))
	}
	if c.EnergyRegen < 0 || c.HitpointsRegen < 0 {
		errs = append(errs, fmt.Errorf("regen amounts must be >= 0, got %d/%d", c.EnergyRegen, c.HitpointsRegen))
	}
	if c.RegenInterval < 0 {
		errs = append(errs, fmt.Errorf("regen interval must be >= 0, got %s", c.RegenInterval))
	}
	if c.InventoryCapacity < 0 {
		errs = append(errs, fmt.Errorf("inventory capacity must be >= 0, got %d", c.InventoryCapacity))
	}
	return errors.Join(errs...)
}

// RewardHook is consulted once per resolved action. A positive bonus is paid
// into the player's balance.
type RewardHook interface {
	OnActionComplete(c scheduler.Completion) (bonus int, err error)
}

// Recorder observes engine events; observability.Metrics implements it.
type Recorder interface {
	ActionStarted(c action.Category)
	ActionRejected(c action.Category, reason string)
	ActionCompleted(c action.Category, forfeited bool)
	ResourcesObserved(energy, hitpoints int)
}

// Notification is the reward summary of one resolved action, visible until the
// following Tick.
type Notification struct {
	scheduler.Completion
	Bonus int `json:"bonus"`
}

// Flash returns the "+quantity" label for an item payout, or "" when nothing was
// stored.
func (n Notification) Flash() string {
	if !n.Stored {
		return ""
	}
	return fmt.Sprintf("+%d", n.Quantity)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder attaches an event recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRewardHook attaches a completion hook.
func WithRewardHook(h RewardHook) Option {
	return func(e *Engine) { e.hook = h }
}

// Engine owns one player's ResourceState, Inventory and scheduler slots.
//
// Invariant: time observed by the engine never moves backwards.
//
// Concurrency: not safe for concurrent use; hosts hold one exclusive lock
// around every call.
type Engine struct {
	cfg      Config
	catalog  *action.Catalog
	logger   *zap.Logger
	recorder Recorder
	hook     RewardHook

	res   *resource.State
	inv   *inventory.Inventory
	sched *scheduler.Scheduler

	clockSet bool
	lastSeen time.Time
	regenAt  time.Time

	notes []Notification
}

// New returns an Engine for a fresh player.
//
// Precondition: catalog must not be nil.
// Postcondition: Returns an Engine with full energy and hit points, an empty
// inventory and every category Idle, or an error if cfg is invalid.
func New(cfg Config, catalog *action.Catalog, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("engine: catalog must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	e := &Engine{
		cfg:     cfg,
		catalog: catalog,
		logger:  zap.NewNop(),
		res:     resource.New(cfg.Caps),
		inv:     inventory.New(cfg.InventoryCapacity),
		sched:   scheduler.New(catalog),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// clamp returns now, or the last observed instant if now is earlier.
func (e *Engine) clamp(now time.Time) time.Time {
	if e.clockSet && now.Before(e.lastSeen) {
		e.logger.Warn("clock moved backwards; clamping",
			zap.Time("now", now),
			zap.Time("last_seen", e.lastSeen),
		)
		return e.lastSeen
	}
	return now
}

// observe clamps now and records it as the last observed instant. The first
// recorded instant is the regeneration baseline.
func (e *Engine) observe(now time.Time) time.Time {
	now = e.clamp(now)
	if !e.clockSet {
		e.clockSet = true
		e.regenAt = now
	}
	e.lastSeen = now
	return now
}

// TryStart starts tier of category c at now.
//
// Postcondition: On success the energy cost is spent, c is Running and now is
// recorded as observed. A *scheduler.RejectedError or catalog lookup error
// leaves all state unchanged, including the observed clock.
func (e *Engine) TryStart(c action.Category, tier int, now time.Time) (scheduler.PendingAction, error) {
	now = e.clamp(now)
	pa, err := e.sched.TryStart(c, tier, now, e.res)
	if err != nil {
		reason := "unknown"
		var rej *scheduler.RejectedError
		switch {
		case errors.As(err, &rej):
			reason = rejectionReason(rej)
		case errors.Is(err, action.ErrUnknownTier):
			reason = "unknown_tier"
		case errors.Is(err, action.ErrUnknownCategory):
			reason = "unknown_category"
		}
		e.logger.Debug("action rejected",
			zap.Stringer("category", c),
			zap.Int("tier", tier),
			zap.String("reason", reason),
		)
		if e.recorder != nil {
			e.recorder.ActionRejected(c, reason)
		}
		return scheduler.PendingAction{}, err
	}
	e.observe(now)

	e.logger.Debug("action started",
		zap.Stringer("category", c),
		zap.Int("tier", tier),
		zap.String("action_id", pa.ID.String()),
		zap.Time("end", pa.End),
	)
	if e.recorder != nil {
		e.recorder.ActionStarted(c)
		e.recorder.ResourcesObserved(e.res.Energy(), e.res.Hitpoints())
	}
	return pa, nil
}

func rejectionReason(rej *scheduler.RejectedError) string {
	switch {
	case errors.Is(rej, scheduler.ErrAlreadyRunning):
		return "already_running"
	case errors.Is(rej, scheduler.ErrInsufficientEnergy):
		return "insufficient_energy"
	}
	return "unknown"
}

// Tick advances engine time to now: regeneration for every full interval
// elapsed, then resolution of every due action in category declaration order.
//
// Postcondition: Returns the notifications of this tick, which replace those of
// the previous tick.
func (e *Engine) Tick(now time.Time) []Notification {
	now = e.observe(now)
	e.regenerate(now)

	done := e.sched.Tick(now, e.res, e.inv)
	notes := make([]Notification, 0, len(done))
	for _, comp := range done {
		notes = append(notes, e.settle(comp))
	}
	e.notes = notes

	if e.recorder != nil {
		e.recorder.ResourcesObserved(e.res.Energy(), e.res.Hitpoints())
	}
	return e.Notifications()
}

func (e *Engine) regenerate(now time.Time) {
	if e.cfg.RegenInterval <= 0 {
		return
	}
	n := int(now.Sub(e.regenAt) / e.cfg.RegenInterval)
	if n <= 0 {
		return
	}
	e.res.RefillEnergy(regenAmount(n, e.cfg.EnergyRegen, e.cfg.Caps.Energy))
	e.res.RefillHitpoints(regenAmount(n, e.cfg.HitpointsRegen, e.cfg.Caps.Hitpoints))
	e.regenAt = e.regenAt.Add(time.Duration(n) * e.cfg.RegenInterval)
}

// regenAmount returns n steps of per, saturated at limit.
func regenAmount(n, per, limit int) int {
	if per <= 0 {
		return 0
	}
	if n > limit/per {
		return limit
	}
	return n * per
}

// settle applies the post-resolution effects of comp that live outside the
// scheduler: skill progress, the reward hook and logging.
func (e *Engine) settle(comp scheduler.Completion) Notification {
	if comp.Category.IsSkill() {
		skill := comp.Category.String()
		p, ok := e.res.SkillProgress(skill)
		if !ok {
			p = resource.SkillProgress{Level: 1}
		}
		e.res.RecordSkillProgress(skill, p.Level, p.Experience+comp.Experience)
	}

	n := Notification{Completion: comp}
	if e.hook != nil {
		bonus, err := e.hook.OnActionComplete(comp)
		if err != nil {
			e.logger.Warn("reward hook failed",
				zap.Stringer("category", comp.Category),
				zap.Error(err),
			)
		} else if bonus > 0 {
			e.res.GrantBalance(bonus)
			n.Bonus = bonus
		}
	}

	if comp.Forfeited() {
		e.logger.Info("inventory full; reward forfeited",
			zap.Stringer("category", comp.Category),
			zap.String("item", comp.Item.Name),
			zap.Int("quantity", comp.Quantity),
		)
	} else {
		e.logger.Debug("action completed",
			zap.Stringer("category", comp.Category),
			zap.Int("tier", comp.Tier),
			zap.Int("experience", comp.Experience),
		)
	}
	if e.recorder != nil {
		e.recorder.ActionCompleted(comp.Category, comp.Forfeited())
	}
	return n
}

// Status reports the phase of c as of now without advancing engine time.
func (e *Engine) Status(c action.Category, now time.Time) scheduler.Status {
	if e.clockSet && now.Before(e.lastSeen) {
		now = e.lastSeen
	}
	return e.sched.Status(c, now)
}

// Statuses reports every category in declaration order.
func (e *Engine) Statuses(now time.Time) []scheduler.Status {
	out := make([]scheduler.Status, 0, action.NumCategories)
	for _, c := range action.Categories {
		out = append(out, e.Status(c, now))
	}
	return out
}

// ResourceSnapshot returns a copy of the player's attributes.
func (e *Engine) ResourceSnapshot() resource.Snapshot {
	return e.res.Snapshot()
}

// InventorySnapshot returns a copy of every occupied slot in insertion order.
func (e *Engine) InventorySnapshot() []inventory.Slot {
	return e.inv.Slots()
}

// Notifications returns a copy of the latest tick's reward summaries.
func (e *Engine) Notifications() []Notification {
	out := make([]Notification, len(e.notes))
	copy(out, e.notes)
	return out
}

// Catalog returns the engine's action catalog.
func (e *Engine) Catalog() *action.Catalog { return e.catalog }

// Record returns the persistent content of the engine.
func (e *Engine) Record() savefile.Record {
	return savefile.Record{
		Values: e.res.Values(),
		Skills: e.res.Skills(),
		Items:  e.inv.Slots(),
	}
}

// Save writes the save record to w. Running actions are not persisted.
func (e *Engine) Save(w io.Writer) error {
	if err := savefile.Encode(w, e.Record()); err != nil {
		return fmt.Errorf("engine: saving: %w", err)
	}
	return nil
}

// SaveBytes returns the encoded save record.
func (e *Engine) SaveBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load replaces the player's state with the record read from r.
//
// Postcondition: On success resources, skills and inventory equal the record,
// every category is Idle and notifications are cleared. On failure (an error
// wrapping savefile.ErrMalformed, or a read error) the engine is unchanged.
func (e *Engine) Load(r io.Reader) error {
	rec, err := savefile.Decode(r)
	if err != nil {
		return fmt.Errorf("engine: loading: %w", err)
	}
	res, inv, err := e.restore(rec)
	if err != nil {
		return fmt.Errorf("engine: loading: %w", err)
	}

	e.res = res
	e.inv = inv
	e.sched.Reset()
	e.notes = nil
	e.logger.Debug("save loaded",
		zap.Int("skills", len(rec.Skills)),
		zap.Int("items", len(rec.Items)),
	)
	if e.recorder != nil {
		e.recorder.ResourcesObserved(res.Energy(), res.Hitpoints())
	}
	return nil
}

// LoadBytes loads a save record held in memory.
func (e *Engine) LoadBytes(data []byte) error {
	return e.Load(bytes.NewReader(data))
}

func (e *Engine) restore(rec savefile.Record) (*resource.State, *inventory.Inventory, error) {
	res, err := resource.Restore(e.cfg.Caps, rec.Values, rec.Skills)
	if err != nil {
		return nil, nil, &savefile.LoadError{Line: 1, Reason: err.Error()}
	}
	if len(rec.Items) > e.cfg.InventoryCapacity {
		return nil, nil, &savefile.LoadError{
			Reason: fmt.Sprintf("%d items exceed inventory capacity %d", len(rec.Items), e.cfg.InventoryCapacity),
		}
	}
	inv := inventory.New(e.cfg.InventoryCapacity)
	for _, slot := range rec.Items {
		if !inv.Add(slot.Item, slot.Quantity) {
			return nil, nil, &savefile.LoadError{Reason: fmt.Sprintf("item %q could not be stored", slot.Item.Name)}
		}
	}
	return res, inv, nil
}
