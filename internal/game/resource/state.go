// Package resource holds the player's scalar attributes and per-skill progress.
package resource

import (
	"errors"
	"fmt"
)

// ErrInsufficientEnergy is returned by SpendEnergy when the requested amount
// exceeds the current energy.
var ErrInsufficientEnergy = errors.New("insufficient energy")

// ErrOutOfRange is returned by Restore when a value violates its bounds.
var ErrOutOfRange = errors.New("value out of range")

// Caps are the configured upper bounds for the capped attributes.
//
// Invariant: Energy >= 0 and Hitpoints >= 0.
type Caps struct {
	Energy    int
	Hitpoints int
}

// SkillProgress is the (level, experience) tuple recorded for one skill.
type SkillProgress struct {
	Level      int `json:"level"`
	Experience int `json:"experience"`
}

// Skill pairs a skill name with its recorded progress.
type Skill struct {
	Name string `json:"name"`
	SkillProgress
}

// State owns the player's scalar attributes.
//
// Invariant: 0 <= energy <= caps.Energy and 0 <= hitpoints <= caps.Hitpoints
// after every mutation; level >= 1; balance and experience >= 0.
type State struct {
	caps       Caps
	energy     int
	hitpoints  int
	balance    int
	level      int
	experience int

	skillOrder []string
	skills     map[string]SkillProgress
}

// New returns a fresh State with full energy and hit points at level 1.
//
// Precondition: caps.Energy >= 0 and caps.Hitpoints >= 0.
// Postcondition: energy == caps.Energy, hitpoints == caps.Hitpoints, balance == 0,
// level == 1, experience == 0, no skills recorded.
func New(caps Caps) *State {
	return &State{
		caps:      caps,
		energy:    caps.Energy,
		hitpoints: caps.Hitpoints,
		level:     1,
		skills:    make(map[string]SkillProgress),
	}
}

// Values is the flat set of scalar attributes a State can be restored from.
type Values struct {
	Energy     int
	Hitpoints  int
	Balance    int
	Level      int
	Experience int
}

// Restore builds a State from previously saved values.
//
// Postcondition: Returns a State holding exactly v and skills (in the given
// order), or an error wrapping ErrOutOfRange if any value violates the State
// invariant or a skill name repeats. No State is returned on error.
func Restore(caps Caps, v Values, skills []Skill) (*State, error) {
	switch {
	case v.Energy < 0 || v.Energy > caps.Energy:
		return nil, fmt.Errorf("energy %d not in [0, %d]: %w", v.Energy, caps.Energy, ErrOutOfRange)
	case v.Hitpoints < 0 || v.Hitpoints > caps.Hitpoints:
		return nil, fmt.Errorf("hitpoints %d not in [0, %d]: %w", v.Hitpoints, caps.Hitpoints, ErrOutOfRange)
	case v.Balance < 0:
		return nil, fmt.Errorf("balance %d is negative: %w", v.Balance, ErrOutOfRange)
	case v.Level < 1:
		return nil, fmt.Errorf("level %d is below 1: %w", v.Level, ErrOutOfRange)
	case v.Experience < 0:
		return nil, fmt.Errorf("experience %d is negative: %w", v.Experience, ErrOutOfRange)
	}

	s := &State{
		caps:       caps,
		energy:     v.Energy,
		hitpoints:  v.Hitpoints,
		balance:    v.Balance,
		level:      v.Level,
		experience: v.Experience,
		skills:     make(map[string]SkillProgress, len(skills)),
	}
	for _, sk := range skills {
		if _, dup := s.skills[sk.Name]; dup {
			return nil, fmt.Errorf("skill %q recorded twice: %w", sk.Name, ErrOutOfRange)
		}
		s.RecordSkillProgress(sk.Name, sk.Level, sk.Experience)
	}
	return s, nil
}

// Caps returns the configured caps.
func (s *State) Caps() Caps { return s.caps }

// Energy returns the current energy.
func (s *State) Energy() int { return s.energy }

// Hitpoints returns the current hit points.
func (s *State) Hitpoints() int { return s.hitpoints }

// Balance returns the current currency balance.
func (s *State) Balance() int { return s.balance }

// Level returns the current level.
func (s *State) Level() int { return s.level }

// Experience returns the accumulated experience.
func (s *State) Experience() int { return s.experience }

// RefillEnergy adds amount to energy, clamped at the energy cap.
//
// Precondition: amount >= 0; negative amounts are ignored.
// Postcondition: energy == min(old + amount, caps.Energy).
func (s *State) RefillEnergy(amount int) {
	s.energy = refill(s.energy, amount, s.caps.Energy)
}

// RefillHitpoints adds amount to hit points, clamped at the hit point cap.
//
// Precondition: amount >= 0; negative amounts are ignored.
// Postcondition: hitpoints == min(old + amount, caps.Hitpoints).
func (s *State) RefillHitpoints(amount int) {
	s.hitpoints = refill(s.hitpoints, amount, s.caps.Hitpoints)
}

func refill(value, amount, limit int) int {
	if amount <= 0 {
		return value
	}
	if amount > limit-value {
		return limit
	}
	return value + amount
}

// SpendEnergy subtracts amount from energy.
//
// Precondition: amount >= 0.
// Postcondition: on success energy is reduced by amount; returns
// ErrInsufficientEnergy and leaves energy untouched when amount > energy.
func (s *State) SpendEnergy(amount int) error {
	if amount < 0 {
		return fmt.Errorf("resource: negative energy spend %d", amount)
	}
	if amount > s.energy {
		return ErrInsufficientEnergy
	}
	s.energy -= amount
	return nil
}

// GrantExperience adds amount to experience. Level is never changed.
func (s *State) GrantExperience(amount int) {
	if amount > 0 {
		s.experience += amount
	}
}

// GrantBalance adds amount to the currency balance.
func (s *State) GrantBalance(amount int) {
	if amount > 0 {
		s.balance += amount
	}
}

// RecordSkillProgress overwrites the progress tuple for skill.
//
// Postcondition: SkillProgress(skill) == (level, experience); a skill seen for the
// first time is appended to the iteration order.
func (s *State) RecordSkillProgress(skill string, level, experience int) {
	if _, ok := s.skills[skill]; !ok {
		s.skillOrder = append(s.skillOrder, skill)
	}
	s.skills[skill] = SkillProgress{Level: level, Experience: experience}
}

// SkillProgress returns the recorded progress for skill and whether any exists.
func (s *State) SkillProgress(skill string) (SkillProgress, bool) {
	p, ok := s.skills[skill]
	return p, ok
}

// Skills returns every recorded skill in first-recorded order.
//
// Postcondition: returned slice is a copy.
func (s *State) Skills() []Skill {
	out := make([]Skill, 0, len(s.skillOrder))
	for _, name := range s.skillOrder {
		out = append(out, Skill{Name: name, SkillProgress: s.skills[name]})
	}
	return out
}

// Values returns the scalar attributes.
func (s *State) Values() Values {
	return Values{
		Energy:     s.energy,
		Hitpoints:  s.hitpoints,
		Balance:    s.balance,
		Level:      s.level,
		Experience: s.experience,
	}
}
