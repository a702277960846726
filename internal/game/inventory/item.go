package inventory

import "strings"

// Item describes an inventory item. Name is the item's identity.
type Item struct {
	Name       string `json:"name"`
	ResourceID string `json:"resource_id"`
}

// NewItem returns an Item whose ResourceID is derived from name.
func NewItem(name string) Item {
	return Item{Name: name, ResourceID: ResourceIDFor(name)}
}

// ResourceIDFor derives the presentation resource identifier for an item name:
// lower-cased words joined with underscores plus a ".png" suffix.
//
// Postcondition: ResourceIDFor("Copper Ore") == "copper_ore.png".
func ResourceIDFor(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_")) + ".png"
}
