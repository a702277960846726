// Package action defines the action categories and the immutable catalog of
// timed actions the player can commit to.
package action

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned when a category name or value is not declared.
var ErrUnknownCategory = errors.New("unknown action category")

// Category is one of the six action families.
type Category int

// Declaration order is the resolution order used by the scheduler.
const (
	Mining Category = iota
	Woodcutting
	Fishing
	Herbalism
	Divination
	Explore
)

// NumCategories is the number of declared categories.
const NumCategories = int(Explore) + 1

// Categories lists every category in declaration order.
var Categories = [NumCategories]Category{Mining, Woodcutting, Fishing, Herbalism, Divination, Explore}

var categoryNames = [NumCategories]string{
	Mining:      "mining",
	Woodcutting: "woodcutting",
	Fishing:     "fishing",
	Herbalism:   "herbalism",
	Divination:  "divination",
	Explore:     "explore",
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

// String returns the lower-case category name.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// IsSkill reports whether actions in c record skill progress. Explore does not.
func (c Category) IsSkill() bool {
	return c.Valid() && c != Explore
}

// ParseCategory resolves a category name.
//
// Postcondition: Returns the Category whose String() equals name, or an error
// wrapping ErrUnknownCategory.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
