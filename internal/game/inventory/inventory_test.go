package inventory_test

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/cory-johannsen/kater/internal/game/inventory"
)

func TestResourceIDFor(t *testing.T) {
	cases := map[string]string{
		"Copper Ore":  "copper_ore.png",
		"Carp":        "carp.png",
		"Maple  Log ": "maple_log.png",
	}
	for name, want := range cases {
		if got := inventory.ResourceIDFor(name); got != want {
			t.Errorf("ResourceIDFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestInventory_Add_NewItem(t *testing.T) {
	inv := inventory.New(5)
	if !inv.Add(inventory.NewItem("Copper Ore"), 1) {
		t.Fatal("expected add to succeed")
	}
	if inv.Len() != 1 {
		t.Errorf("got Len=%d, want 1", inv.Len())
	}
	if got := inv.Quantity("Copper Ore"); got != 1 {
		t.Errorf("got Quantity=%d, want 1", got)
	}
}

func TestInventory_Add_ExistingItem_Accumulates(t *testing.T) {
	inv := inventory.New(1)
	ore := inventory.NewItem("Copper Ore")
	inv.Add(ore, 2)
	if !inv.Add(ore, 3) {
		t.Fatal("existing identity must accumulate even at capacity")
	}
	if inv.Len() != 1 {
		t.Errorf("got Len=%d, want 1", inv.Len())
	}
	if got := inv.Quantity("Copper Ore"); got != 5 {
		t.Errorf("got Quantity=%d, want 5", got)
	}
}

func TestInventory_Add_AtCapacity_Dropped(t *testing.T) {
	inv := inventory.New(1)
	inv.Add(inventory.NewItem("A"), 1)
	if inv.Add(inventory.NewItem("B"), 1) {
		t.Fatal("expected add to fail at capacity")
	}
	slots := inv.Slots()
	if len(slots) != 1 || slots[0].Item.Name != "A" || slots[0].Quantity != 1 {
		t.Errorf("inventory changed after rejected add: %+v", slots)
	}
	if !inv.Full() {
		t.Error("expected Full() at capacity")
	}
}

func TestInventory_Add_NonPositiveQuantity(t *testing.T) {
	inv := inventory.New(3)
	if inv.Add(inventory.NewItem("A"), 0) || inv.Add(inventory.NewItem("A"), -2) {
		t.Fatal("non-positive quantity must be rejected")
	}
	if inv.Len() != 0 {
		t.Errorf("got Len=%d, want 0", inv.Len())
	}
}

func TestInventory_ZeroCapacity(t *testing.T) {
	inv := inventory.New(0)
	if inv.Add(inventory.NewItem("A"), 1) {
		t.Fatal("zero-capacity inventory accepted an item")
	}
}

func TestInventory_All_InsertionOrderAndRestartable(t *testing.T) {
	inv := inventory.New(4)
	for _, name := range []string{"Oak Log", "Carp", "Jade"} {
		inv.Add(inventory.NewItem(name), 1)
	}
	inv.Add(inventory.NewItem("Carp"), 2)

	collect := func() []string {
		var out []string
		for item, qty := range inv.All() {
			out = append(out, fmt.Sprintf("%s=%d", item.Name, qty))
		}
		return out
	}
	want := []string{"Oak Log=1", "Carp=3", "Jade=1"}
	for pass := 0; pass < 2; pass++ {
		got := collect()
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("pass %d: got %v, want %v", pass, got, want)
		}
	}
}

func TestInventory_All_EarlyBreak(t *testing.T) {
	inv := inventory.New(3)
	inv.Add(inventory.NewItem("A"), 1)
	inv.Add(inventory.NewItem("B"), 1)
	seen := 0
	for range inv.All() {
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("got %d iterations, want 1", seen)
	}
}

func TestInventory_Slots_IsCopy(t *testing.T) {
	inv := inventory.New(2)
	inv.Add(inventory.NewItem("A"), 1)
	slots := inv.Slots()
	slots[0].Quantity = 99
	if inv.Quantity("A") != 1 {
		t.Fatal("mutating snapshot changed inventory")
	}
}

func TestProperty_Inventory_NeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(0, 12).Draw(t, "capacity")
		inv := inventory.New(capacity)
		names := rapid.SliceOfN(rapid.SampledFrom([]string{"A", "B", "C", "D", "E", "F", "G", "H"}), 1, 60).Draw(t, "names")
		for _, name := range names {
			before := inv.Len()
			present := inv.Quantity(name) > 0
			stored := inv.Add(inventory.NewItem(name), 1)
			if present && (!stored || inv.Len() != before) {
				t.Fatalf("existing %q: stored=%v len %d→%d", name, stored, before, inv.Len())
			}
			if !present && stored != (before < capacity) {
				t.Fatalf("new %q at %d/%d: stored=%v", name, before, capacity, stored)
			}
			if inv.Len() > capacity {
				t.Fatalf("Len %d > capacity %d", inv.Len(), capacity)
			}
		}
	})
}

func TestProperty_Inventory_QuantitiesSum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		inv := inventory.New(8)
		adds := rapid.SliceOfN(rapid.IntRange(1, 9), 1, 40).Draw(t, "adds")
		total := 0
		for _, qty := range adds {
			if inv.Add(inventory.NewItem("Carp"), qty) {
				total += qty
			}
		}
		if inv.Quantity("Carp") != total {
			t.Fatalf("Quantity=%d, want %d", inv.Quantity("Carp"), total)
		}
	})
}
