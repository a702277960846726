package action

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cory-johannsen/kater/internal/game/inventory"
)

// ErrUnknownTier is returned when a tier index is out of range for its category.
var ErrUnknownTier = errors.New("unknown action tier")

// Yield is the item payout of a completed action.
type Yield struct {
	Item     inventory.Item
	Quantity int
}

// Definition is the immutable configuration of one category tier.
//
// Invariant: EnergyCost, Duration and ExperienceReward are >= 0; Yield.Quantity
// is 0 when the action pays no item and > 0 otherwise.
type Definition struct {
	Category         Category
	Tier             int
	Name             string
	EnergyCost       int
	Duration         time.Duration
	ExperienceReward int
	Yield            Yield
}

// HasYield reports whether completing the action pays out an item.
func (d Definition) HasYield() bool {
	return d.Yield.Quantity > 0
}

// Catalog maps every category and tier to its Definition. It is immutable after
// construction and safe for concurrent reads.
type Catalog struct {
	tiers [NumCategories][]Definition
}

// Document is the on-disk shape of a catalog.
type Document struct {
	Categories map[string][]TierDoc `yaml:"categories"`
}

// TierDoc configures one tier of a category.
type TierDoc struct {
	Name       string    `yaml:"name" validate:"required"`
	Energy     int       `yaml:"energy" validate:"gte=0"`
	DurationMs int       `yaml:"duration_ms" validate:"gte=0"`
	Experience int       `yaml:"experience" validate:"gte=0"`
	Yields     *YieldDoc `yaml:"yields" validate:"omitempty"`
}

// YieldDoc configures the item payout of a tier.
type YieldDoc struct {
	Item       string `yaml:"item" validate:"required,excludesall=0x2C"`
	ResourceID string `yaml:"resource_id" validate:"excludesall=0x2C"`
	Quantity   int    `yaml:"quantity" validate:"gte=1"`
}

var validate = validator.New()

// NewCatalog validates doc and builds a Catalog from it.
//
// Every declared category must be present with at least one tier, and no
// undeclared category may appear.
//
// Postcondition: Returns a Catalog or an error describing every violation.
func NewCatalog(doc Document) (*Catalog, error) {
	var errs []string
	cat := &Catalog{}

	names := make([]string, 0, len(doc.Categories))
	for name := range doc.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c, err := ParseCategory(name)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		tiers := doc.Categories[name]
		for i, td := range tiers {
			if err := validate.Struct(td); err != nil {
				errs = append(errs, fmt.Sprintf("%s tier %d: %v", name, i, err))
				continue
			}
			def := Definition{
				Category:         c,
				Tier:             i,
				Name:             td.Name,
				EnergyCost:       td.Energy,
				Duration:         time.Duration(td.DurationMs) * time.Millisecond,
				ExperienceReward: td.Experience,
			}
			if td.Yields != nil {
				item := inventory.NewItem(td.Yields.Item)
				if td.Yields.ResourceID != "" {
					item.ResourceID = td.Yields.ResourceID
				}
				def.Yield = Yield{Item: item, Quantity: td.Yields.Quantity}
			}
			cat.tiers[c] = append(cat.tiers[c], def)
		}
	}

	for _, c := range Categories {
		if _, ok := doc.Categories[c.String()]; ok && len(doc.Categories[c.String()]) == 0 {
			errs = append(errs, fmt.Sprintf("category %s declares no tiers", c))
		} else if !ok {
			errs = append(errs, fmt.Sprintf("category %s is missing", c))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("action catalog invalid: %s", strings.Join(errs, "; "))
	}
	return cat, nil
}

// DefinitionOf returns a copy of the Definition for tier of c.
//
// Postcondition: Returns the Definition, or an error wrapping ErrUnknownCategory
// or ErrUnknownTier.
func (cat *Catalog) DefinitionOf(c Category, tier int) (Definition, error) {
	if !c.Valid() {
		return Definition{}, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	tiers := cat.tiers[c]
	if tier < 0 || tier >= len(tiers) {
		return Definition{}, fmt.Errorf("%w: %s tier %d (have %d)", ErrUnknownTier, c, tier, len(tiers))
	}
	return tiers[tier], nil
}

// Tiers returns a copy of every Definition of c in tier order.
func (cat *Catalog) Tiers(c Category) []Definition {
	if !c.Valid() {
		return nil
	}
	out := make([]Definition, len(cat.tiers[c]))
	copy(out, cat.tiers[c])
	return out
}
