package action

// gatherTiers builds the two-tier table shared by every gathering skill.
func gatherTiers(low, high string) []TierDoc {
	return []TierDoc{
		{Name: low, Energy: 5, DurationMs: 5000, Experience: 1, Yields: &YieldDoc{Item: low, Quantity: 1}},
		{Name: high, Energy: 10, DurationMs: 10000, Experience: 2, Yields: &YieldDoc{Item: high, Quantity: 1}},
	}
}

// DefaultDocument returns the built-in catalog document.
func DefaultDocument() Document {
	return Document{Categories: map[string][]TierDoc{
		"mining":      gatherTiers("Copper Ore", "Silver Ore"),
		"woodcutting": gatherTiers("Oak Log", "Maple Log"),
		"fishing":     gatherTiers("Carp", "Salmon"),
		"herbalism":   gatherTiers("Mugwort", "Thistle"),
		"divination":  gatherTiers("Quartz", "Jade"),
		"explore": {
			{Name: "short", Energy: 10, DurationMs: 5000, Experience: 10},
			{Name: "medium", Energy: 20, DurationMs: 10000, Experience: 20},
			{Name: "long", Energy: 30, DurationMs: 15000, Experience: 30},
		},
	}}
}

// DefaultCatalog returns the built-in catalog.
//
// Postcondition: Returns a non-nil Catalog; panics only if the built-in table is invalid.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog(DefaultDocument())
	if err != nil {
		panic("action: built-in catalog invalid: " + err.Error())
	}
	return cat
}
