// Package inventory provides the player's fixed-capacity, insertion-ordered item store.
package inventory

import "iter"

// Slot is one occupied inventory slot.
type Slot struct {
	Item     Item `json:"item"`
	Quantity int  `json:"quantity"`
}

// Inventory holds at most Capacity distinct item identities in insertion order.
//
// Invariant: Len() <= Capacity(); every slot quantity is > 0.
type Inventory struct {
	capacity int
	slots    []Slot
	index    map[string]int // item name → position in slots
}

// New returns an empty Inventory with the given slot capacity.
//
// Precondition: capacity >= 0.
// Postcondition: Len() == 0.
func New(capacity int) *Inventory {
	if capacity < 0 {
		capacity = 0
	}
	return &Inventory{
		capacity: capacity,
		index:    make(map[string]int),
	}
}

// Add stores quantity units of item.
//
// An item whose name is already present accumulates into its slot. A new
// identity takes a fresh slot when one is free. When the inventory is full the
// call is a no-op and returns false; callers treat false as a lost reward.
//
// Precondition: quantity > 0; non-positive quantities are rejected with false.
// Postcondition: returns true iff the units were stored; slot count never
// exceeds Capacity().
func (inv *Inventory) Add(item Item, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	if i, ok := inv.index[item.Name]; ok {
		inv.slots[i].Quantity += quantity
		return true
	}
	if len(inv.slots) >= inv.capacity {
		return false
	}
	inv.index[item.Name] = len(inv.slots)
	inv.slots = append(inv.slots, Slot{Item: item, Quantity: quantity})
	return true
}

// All returns a restartable sequence of (item, quantity) pairs in insertion order.
// The inventory must not be mutated while a sequence is being ranged over.
func (inv *Inventory) All() iter.Seq2[Item, int] {
	return func(yield func(Item, int) bool) {
		for _, s := range inv.slots {
			if !yield(s.Item, s.Quantity) {
				return
			}
		}
	}
}

// Slots returns a snapshot copy of every occupied slot in insertion order.
//
// Postcondition: returned slice is a copy; mutations do not affect the inventory.
func (inv *Inventory) Slots() []Slot {
	out := make([]Slot, len(inv.slots))
	copy(out, inv.slots)
	return out
}

// Quantity returns the stored quantity for the item named name, or 0.
func (inv *Inventory) Quantity(name string) int {
	if i, ok := inv.index[name]; ok {
		return inv.slots[i].Quantity
	}
	return 0
}

// Len returns the number of distinct item identities held.
func (inv *Inventory) Len() int { return len(inv.slots) }

// Capacity returns the slot capacity.
func (inv *Inventory) Capacity() int { return inv.capacity }

// Full reports whether no new identity can be added.
func (inv *Inventory) Full() bool { return len(inv.slots) >= inv.capacity }
