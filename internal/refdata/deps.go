package refdata

import (
	"sort"

	"craftwatch/internal/engine/cascade"
)

// DependencyTrees flattens the recipe graph into per-material transitive
// dependency fan-outs for the cascading calculator. For a material produced
// by a recipe, every consumed ingredient contributes an edge with ratio
// consumed/produced, and the ingredient's own tree is folded in scaled by
// that ratio. Computed once per process and cached on the Store by the
// caller.
func (s *Store) DependencyTrees() map[string]cascade.Tree {
	producers := s.primaryProducers()

	memo := make(map[string]map[string]float64, len(producers))
	visiting := make(map[string]bool)

	var expand func(item string) map[string]float64
	expand = func(item string) map[string]float64 {
		if edges, ok := memo[item]; ok {
			return edges
		}
		if visiting[item] {
			// Recipe cycle; cut it off rather than recurse forever.
			return nil
		}
		visiting[item] = true
		defer delete(visiting, item)

		edges := make(map[string]float64)
		recipe, ok := producers[item]
		if ok && len(recipe.CraftedItemStacks) > 0 {
			produced := recipe.CraftedItemStacks[0].Quantity
			if produced <= 0 {
				produced = 1
			}
			for _, ingredient := range recipe.ConsumedItemStacks {
				name := s.ItemName(ingredient.ItemID)
				ratio := ingredient.Quantity / produced
				edges[name] += ratio
				for dep, sub := range expand(name) {
					edges[dep] += ratio * sub
				}
			}
		}
		memo[item] = edges
		return edges
	}

	trees := make(map[string]cascade.Tree, len(producers))
	for item := range producers {
		edgeMap := expand(item)
		if len(edgeMap) == 0 {
			continue
		}
		names := make([]string, 0, len(edgeMap))
		for name := range edgeMap {
			names = append(names, name)
		}
		sort.Strings(names)
		edges := make([]cascade.Edge, 0, len(names))
		for _, name := range names {
			edges = append(edges, cascade.Edge{Dependent: name, Ratio: edgeMap[name]})
		}
		tier := 0
		if def, ok := s.itemByName(item); ok {
			tier = def.Tier
		}
		trees[item] = cascade.Tree{Edges: edges, Tier: tier}
	}
	return trees
}

// primaryProducers maps each item name to the recipe that produces it as
// its primary output. When several recipes produce the same item the lowest
// recipe id wins, keeping the result deterministic.
func (s *Store) primaryProducers() map[string]RecipeDef {
	ids := make([]int64, 0, len(s.Recipes))
	for id := range s.Recipes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	producers := make(map[string]RecipeDef)
	for _, id := range ids {
		recipe := s.Recipes[id]
		if len(recipe.CraftedItemStacks) == 0 {
			continue
		}
		name := s.ItemName(recipe.CraftedItemStacks[0].ItemID)
		if _, taken := producers[name]; !taken {
			producers[name] = recipe
		}
	}
	return producers
}

func (s *Store) itemByName(name string) (ItemDef, bool) {
	for _, source := range sourcePriority {
		for _, def := range s.Items[source] {
			if def.Name == name {
				return def, true
			}
		}
	}
	return ItemDef{}, false
}
