// Package scheduler tracks in-flight timed actions and resolves them against a
// caller-supplied clock.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/inventory"
)

// Rejection reasons wrapped by RejectedError.
var (
	ErrAlreadyRunning     = errors.New("action already running")
	ErrInsufficientEnergy = errors.New("insufficient energy")
)

// RejectedError reports why TryStart declined to start an action. It is an
// informational rejection: no state was changed.
type RejectedError struct {
	Category action.Category
	Tier     int
	Reason   error
	// Need and Have are the energy cost and current energy for
	// ErrInsufficientEnergy rejections.
	Need, Have int
}

func (e *RejectedError) Error() string {
	if errors.Is(e.Reason, ErrInsufficientEnergy) {
		return fmt.Sprintf("start %s tier %d rejected: %v (need %d, have %d)", e.Category, e.Tier, e.Reason, e.Need, e.Have)
	}
	return fmt.Sprintf("start %s tier %d rejected: %v", e.Category, e.Tier, e.Reason)
}

func (e *RejectedError) Unwrap() error { return e.Reason }

// Player is the resource surface the scheduler reads and mutates.
type Player interface {
	Energy() int
	SpendEnergy(amount int) error
	GrantExperience(amount int)
}

// Stash receives item payouts. Add reports whether the units were stored.
type Stash interface {
	Add(item inventory.Item, quantity int) bool
}

// PendingAction is a started, not yet resolved action. Its Definition is a
// snapshot taken at start time.
type PendingAction struct {
	ID         uuid.UUID
	Definition action.Definition
	Start      time.Time
	End        time.Time
}

// Remaining returns the time left until End, never negative.
func (p PendingAction) Remaining(now time.Time) time.Duration {
	if d := p.End.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Completion summarises one resolved action.
type Completion struct {
	ActionID    uuid.UUID       `json:"action_id"`
	Category    action.Category `json:"category"`
	Tier        int             `json:"tier"`
	Name        string          `json:"name"`
	Experience  int             `json:"experience"`
	Item        inventory.Item  `json:"item"`
	Quantity    int             `json:"quantity"`
	Stored      bool            `json:"stored"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Forfeited reports whether the action paid an item that did not fit.
func (c Completion) Forfeited() bool {
	return c.Quantity > 0 && !c.Stored
}

// Scheduler holds at most one PendingAction per category.
//
// Invariant: slots[c] is nil (Idle) or the single Running action of c.
//
// Concurrency: not safe for concurrent use; callers serialize access.
type Scheduler struct {
	catalog *action.Catalog
	slots   [action.NumCategories]*PendingAction
}

// New returns a Scheduler with every category Idle.
//
// Precondition: catalog must not be nil.
func New(catalog *action.Catalog) *Scheduler {
	return &Scheduler{catalog: catalog}
}

// TryStart starts tier of category c at now, spending its energy cost from p.
//
// Precondition: p must not be nil.
// Postcondition: On success energy has been spent and c is Running until
// now+duration. On rejection (*RejectedError wrapping ErrAlreadyRunning or
// ErrInsufficientEnergy) or lookup failure (action.ErrUnknownCategory,
// action.ErrUnknownTier) neither p nor the scheduler is modified.
func (s *Scheduler) TryStart(c action.Category, tier int, now time.Time, p Player) (PendingAction, error) {
	if c.Valid() && s.slots[c] != nil {
		return PendingAction{}, &RejectedError{Category: c, Tier: tier, Reason: ErrAlreadyRunning}
	}
	def, err := s.catalog.DefinitionOf(c, tier)
	if err != nil {
		return PendingAction{}, err
	}
	if have := p.Energy(); def.EnergyCost > have {
		return PendingAction{}, &RejectedError{
			Category: c, Tier: tier, Reason: ErrInsufficientEnergy,
			Need: def.EnergyCost, Have: have,
		}
	}
	if err := p.SpendEnergy(def.EnergyCost); err != nil {
		return PendingAction{}, &RejectedError{
			Category: c, Tier: tier, Reason: ErrInsufficientEnergy,
			Need: def.EnergyCost, Have: p.Energy(),
		}
	}

	pa := &PendingAction{
		ID:         uuid.New(),
		Definition: def,
		Start:      now,
		End:        now.Add(def.Duration),
	}
	s.slots[c] = pa
	return *pa, nil
}

// Tick resolves, in category declaration order, every Running action whose End
// is at or before now: experience is granted to p, the yield (if any) is offered
// to stash exactly once, and the category returns to Idle. A full stash forfeits
// the item.
//
// Postcondition: Returns one Completion per resolved action; no resolved
// category remains Running.
func (s *Scheduler) Tick(now time.Time, p Player, stash Stash) []Completion {
	var done []Completion
	for _, c := range action.Categories {
		pa := s.slots[c]
		if pa == nil || pa.End.After(now) {
			continue
		}
		def := pa.Definition
		p.GrantExperience(def.ExperienceReward)
		comp := Completion{
			ActionID:    pa.ID,
			Category:    c,
			Tier:        def.Tier,
			Name:        def.Name,
			Experience:  def.ExperienceReward,
			CompletedAt: pa.End,
		}
		if def.HasYield() {
			comp.Item = def.Yield.Item
			comp.Quantity = def.Yield.Quantity
			comp.Stored = stash.Add(def.Yield.Item, def.Yield.Quantity)
		}
		s.slots[c] = nil
		done = append(done, comp)
	}
	return done
}

// Phase is the lifecycle phase of a category.
type Phase string

const (
	Idle    Phase = "idle"
	Running Phase = "running"
)

// Status is a presentation snapshot of one category.
type Status struct {
	Category  action.Category `json:"category"`
	Phase     Phase           `json:"phase"`
	Tier      int             `json:"tier,omitempty"`
	Name      string          `json:"name,omitempty"`
	Remaining time.Duration   `json:"-"`
}

// Status reports whether c is Idle or Running and, if Running, the time left
// as of now.
func (s *Scheduler) Status(c action.Category, now time.Time) Status {
	st := Status{Category: c, Phase: Idle}
	if !c.Valid() || s.slots[c] == nil {
		return st
	}
	pa := s.slots[c]
	st.Phase = Running
	st.Tier = pa.Definition.Tier
	st.Name = pa.Definition.Name
	st.Remaining = pa.Remaining(now)
	return st
}

// Pending returns a copy of every Running action in category order.
func (s *Scheduler) Pending() []PendingAction {
	var out []PendingAction
	for _, pa := range s.slots {
		if pa != nil {
			out = append(out, *pa)
		}
	}
	return out
}

// Reset returns every category to Idle without resolving anything.
func (s *Scheduler) Reset() {
	s.slots = [action.NumCategories]*PendingAction{}
}
