package resource

import "fmt"

// Kind names one scalar attribute of a State.
type Kind int

const (
	KindEnergy Kind = iota
	KindHitpoints
	KindBalance
	KindLevel
	KindExperience
)

// Kinds lists every Kind in display order.
var Kinds = []Kind{KindHitpoints, KindBalance, KindEnergy, KindLevel, KindExperience}

var kindNames = [...]string{
	KindEnergy:     "energy",
	KindHitpoints:  "hitpoints",
	KindBalance:    "balance",
	KindLevel:      "level",
	KindExperience: "experience",
}

// accessors is the typed lookup table backing Get.
var accessors = [...]func(*State) int{
	KindEnergy:     (*State).Energy,
	KindHitpoints:  (*State).Hitpoints,
	KindBalance:    (*State).Balance,
	KindLevel:      (*State).Level,
	KindExperience: (*State).Experience,
}

// String returns the lower-case attribute name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Get returns the value of the attribute named by k.
//
// Precondition: k is one of the declared Kind constants.
// Postcondition: Returns the attribute value, or panics on an undeclared Kind.
func (s *State) Get(k Kind) int {
	if k < 0 || int(k) >= len(accessors) {
		panic(fmt.Sprintf("resource: unknown kind %d", int(k)))
	}
	return accessors[k](s)
}

// Snapshot is an immutable copy of a State for presentation layers.
type Snapshot struct {
	Energy       int     `json:"energy"`
	EnergyCap    int     `json:"energy_cap"`
	Hitpoints    int     `json:"hitpoints"`
	HitpointsCap int     `json:"hitpoints_cap"`
	Balance      int     `json:"balance"`
	Level        int     `json:"level"`
	Experience   int     `json:"experience"`
	Skills       []Skill `json:"skills"`
}

// Snapshot returns a copy of every attribute, cap and skill.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Energy:       s.energy,
		EnergyCap:    s.caps.Energy,
		Hitpoints:    s.hitpoints,
		HitpointsCap: s.caps.Hitpoints,
		Balance:      s.balance,
		Level:        s.level,
		Experience:   s.experience,
		Skills:       s.Skills(),
	}
}
