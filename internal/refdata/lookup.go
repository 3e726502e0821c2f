package refdata

import (
	"fmt"
	"regexp"
	"strings"
)

// itemIndex resolves item ids across the three item tables. Ids are not
// globally unique (the same id can name different things in item_desc and
// cargo_desc), so the index keeps per-source entries alongside a
// priority-resolved flat view: item_desc > cargo_desc > resource_desc.
type itemIndex struct {
	bySource map[string]map[int64]ItemDef
	flat     map[int64]ItemDef
}

var sourcePriority = []string{SourceItemDesc, SourceCargoDesc, SourceResourceDesc}

func buildItemIndex(items map[string][]ItemDef) *itemIndex {
	idx := &itemIndex{
		bySource: make(map[string]map[int64]ItemDef, len(items)),
		flat:     make(map[int64]ItemDef),
	}
	for source, defs := range items {
		m := make(map[int64]ItemDef, len(defs))
		for _, def := range defs {
			m[def.ID] = def
		}
		idx.bySource[source] = m
	}
	// Lowest priority first so later sources overwrite.
	for i := len(sourcePriority) - 1; i >= 0; i-- {
		for id, def := range idx.bySource[sourcePriority[i]] {
			idx.flat[id] = def
		}
	}
	return idx
}

func (idx *itemIndex) size() int {
	n := 0
	for _, m := range idx.bySource {
		n += len(m)
	}
	return n
}

// LookupItem resolves an item id, trying preferredSource first (empty means
// no preference), then the priority-resolved view, then every source.
func (s *Store) LookupItem(id int64, preferredSource string) (ItemDef, bool) {
	if preferredSource != "" {
		if def, ok := s.lookup.bySource[preferredSource][id]; ok {
			return def, true
		}
	}
	if def, ok := s.lookup.flat[id]; ok {
		return def, true
	}
	for _, source := range sourcePriority {
		if def, ok := s.lookup.bySource[source][id]; ok {
			return def, true
		}
	}
	return ItemDef{}, false
}

func (s *Store) ItemName(id int64) string {
	if def, ok := s.LookupItem(id, ""); ok {
		return def.Name
	}
	return fmt.Sprintf("Unknown Item %d", id)
}

func (s *Store) Recipe(id int64) (RecipeDef, bool) {
	def, ok := s.Recipes[id]
	return def, ok
}

func (s *Store) BuildingName(descriptionID int64) (string, bool) {
	if def, ok := s.Buildings[descriptionID]; ok {
		return def.Name, true
	}
	return "", false
}

// levelMarker matches the {N} placeholders embedded in recipe names.
var levelMarker = regexp.MustCompile(`\{\d+\}`)

// RecipeDisplayName strips level markers from a recipe name.
func RecipeDisplayName(name string) string {
	return strings.TrimSpace(levelMarker.ReplaceAllString(name, ""))
}

// cargoIndicators flag recipe names that most likely produce cargo rather
// than inventory items, steering lookups to cargo_desc first.
var cargoIndicators = []string{"pack", "package", "bundle", "crate", "supplies", "materials", "goods", "cargo", "shipment"}

// PreferredItemSource guesses which item table a recipe's output lives in.
func PreferredItemSource(recipe RecipeDef) string {
	name := strings.ToLower(recipe.Name)
	for _, indicator := range cargoIndicators {
		if strings.Contains(name, indicator) {
			return SourceCargoDesc
		}
	}
	return SourceItemDesc
}

// CraftedItem resolves the primary output of a recipe. Falls back to the
// cleaned recipe name, then to a placeholder.
func (s *Store) CraftedItem(recipeID int64) (ItemDef, string) {
	recipe, ok := s.Recipe(recipeID)
	if !ok {
		return ItemDef{}, fmt.Sprintf("Recipe %d", recipeID)
	}
	if len(recipe.CraftedItemStacks) > 0 {
		stack := recipe.CraftedItemStacks[0]
		if def, found := s.LookupItem(stack.ItemID, PreferredItemSource(recipe)); found {
			return def, def.Name
		}
		return ItemDef{}, fmt.Sprintf("Unknown Item %d", stack.ItemID)
	}
	if recipe.Name != "" {
		return ItemDef{}, RecipeDisplayName(recipe.Name)
	}
	return ItemDef{}, fmt.Sprintf("Recipe %d", recipeID)
}
