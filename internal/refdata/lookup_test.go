package refdata

import "testing"

func testStore() *Store {
	return NewStore(
		map[string][]ItemDef{
			SourceItemDesc:     {{ID: 1, Name: "Iron Ingot", Tier: 2, Tag: "Metal"}},
			SourceCargoDesc:    {{ID: 1, Name: "Supply Crate", Tier: 1, Tag: "Cargo"}, {ID: 2, Name: "Ore Shipment", Tier: 1}},
			SourceResourceDesc: {{ID: 3, Name: "Rough Stone", Tier: 0}},
		},
		[]RecipeDef{
			{ID: 10, Name: "Smelt {2} Iron Ingot", TimeRequirement: 300, CraftedItemStacks: []ItemStack{{ItemID: 1, Quantity: 1}}},
			{ID: 11, Name: "Pack Ore Shipment", CraftedItemStacks: []ItemStack{{ItemID: 2, Quantity: 1}}},
			{ID: 12, Name: "Mystery {5} Procedure"},
		},
		[]BuildingDef{{ID: 44, Name: "Smelter"}},
	)
}

func TestLookupItemPriority(t *testing.T) {
	s := testStore()

	// Id 1 exists in both item_desc and cargo_desc; item_desc wins without
	// a preference.
	def, ok := s.LookupItem(1, "")
	if !ok || def.Name != "Iron Ingot" {
		t.Fatalf("flat lookup = (%+v, %v)", def, ok)
	}

	def, ok = s.LookupItem(1, SourceCargoDesc)
	if !ok || def.Name != "Supply Crate" {
		t.Fatalf("preferred source ignored: %+v", def)
	}

	def, ok = s.LookupItem(3, "")
	if !ok || def.Name != "Rough Stone" {
		t.Fatalf("resource lookup = (%+v, %v)", def, ok)
	}

	if _, ok := s.LookupItem(999, ""); ok {
		t.Fatalf("unknown id resolved")
	}
}

func TestItemNameFallback(t *testing.T) {
	s := testStore()
	if got := s.ItemName(999); got != "Unknown Item 999" {
		t.Fatalf("fallback = %q", got)
	}
}

func TestRecipeDisplayNameStripsLevelMarkers(t *testing.T) {
	cases := map[string]string{
		"Smelt {2} Iron Ingot": "Smelt  Iron Ingot",
		"{1}Basic Thread":      "Basic Thread",
		"Plain Name":           "Plain Name",
	}
	for in, want := range cases {
		if got := RecipeDisplayName(in); got != want {
			t.Fatalf("RecipeDisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPreferredItemSource(t *testing.T) {
	if got := PreferredItemSource(RecipeDef{Name: "Pack Ore Shipment"}); got != SourceCargoDesc {
		t.Fatalf("shipment recipe source = %q", got)
	}
	if got := PreferredItemSource(RecipeDef{Name: "Smelt Iron Ingot"}); got != SourceItemDesc {
		t.Fatalf("plain recipe source = %q", got)
	}
}

func TestCraftedItem(t *testing.T) {
	s := testStore()

	def, name := s.CraftedItem(10)
	if name != "Iron Ingot" || def.Tier != 2 {
		t.Fatalf("crafted item = (%+v, %q)", def, name)
	}

	// Cargo-flavored recipe resolves through cargo_desc.
	_, name = s.CraftedItem(11)
	if name != "Ore Shipment" {
		t.Fatalf("cargo crafted item = %q", name)
	}

	// No output stacks: falls back to the cleaned recipe name.
	_, name = s.CraftedItem(12)
	if name != "Mystery  Procedure" {
		t.Fatalf("stackless recipe name = %q", name)
	}

	// Unknown recipe id.
	_, name = s.CraftedItem(999)
	if name != "Recipe 999" {
		t.Fatalf("unknown recipe = %q", name)
	}
}

func TestBuildingName(t *testing.T) {
	s := testStore()
	if name, ok := s.BuildingName(44); !ok || name != "Smelter" {
		t.Fatalf("building = (%q, %v)", name, ok)
	}
	if _, ok := s.BuildingName(999); ok {
		t.Fatalf("unknown building resolved")
	}
}
