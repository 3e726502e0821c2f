package refdata

import (
	"math"
	"testing"
)

func depsStore(recipes []RecipeDef) *Store {
	return NewStore(
		map[string][]ItemDef{
			SourceItemDesc: {
				{ID: 1, Name: "Fiber", Tier: 0},
				{ID: 2, Name: "Thread", Tier: 1},
				{ID: 3, Name: "Cloth", Tier: 2},
			},
		},
		recipes,
		nil,
	)
}

func treeEdges(t *testing.T, s *Store, item string) map[string]float64 {
	t.Helper()
	trees := s.DependencyTrees()
	tree, ok := trees[item]
	if !ok {
		t.Fatalf("no tree for %s: %v", item, trees)
	}
	out := make(map[string]float64, len(tree.Edges))
	for _, e := range tree.Edges {
		out[e.Dependent] = e.Ratio
	}
	return out
}

func TestDependencyTreesTransitive(t *testing.T) {
	s := depsStore([]RecipeDef{
		{ID: 10, CraftedItemStacks: []ItemStack{{ItemID: 2, Quantity: 1}}, ConsumedItemStacks: []ItemStack{{ItemID: 1, Quantity: 2}}},
		{ID: 11, CraftedItemStacks: []ItemStack{{ItemID: 3, Quantity: 1}}, ConsumedItemStacks: []ItemStack{{ItemID: 2, Quantity: 2}}},
	})

	thread := treeEdges(t, s, "Thread")
	if thread["Fiber"] != 2 {
		t.Fatalf("Thread edges = %v", thread)
	}

	cloth := treeEdges(t, s, "Cloth")
	if cloth["Thread"] != 2 {
		t.Fatalf("Cloth->Thread = %v", cloth)
	}
	// Transitive: 2 Thread each consuming 2 Fiber.
	if cloth["Fiber"] != 4 {
		t.Fatalf("Cloth->Fiber = %v", cloth)
	}
}

func TestDependencyTreesBatchRatio(t *testing.T) {
	// One run produces 4 Thread from 2 Fiber: ratio 0.5 per unit.
	s := depsStore([]RecipeDef{
		{ID: 10, CraftedItemStacks: []ItemStack{{ItemID: 2, Quantity: 4}}, ConsumedItemStacks: []ItemStack{{ItemID: 1, Quantity: 2}}},
	})
	thread := treeEdges(t, s, "Thread")
	if math.Abs(thread["Fiber"]-0.5) > 1e-9 {
		t.Fatalf("batch ratio = %v, want 0.5", thread["Fiber"])
	}
}

func TestDependencyTreesLowestRecipeIDWins(t *testing.T) {
	s := depsStore([]RecipeDef{
		{ID: 20, CraftedItemStacks: []ItemStack{{ItemID: 2, Quantity: 1}}, ConsumedItemStacks: []ItemStack{{ItemID: 1, Quantity: 2}}},
		{ID: 5, CraftedItemStacks: []ItemStack{{ItemID: 2, Quantity: 1}}, ConsumedItemStacks: []ItemStack{{ItemID: 1, Quantity: 3}}},
	})
	thread := treeEdges(t, s, "Thread")
	if thread["Fiber"] != 3 {
		t.Fatalf("producer selection = %v, want ratio from recipe 5", thread)
	}
}

func TestDependencyTreesCycleGuard(t *testing.T) {
	// Thread consumes Cloth, Cloth consumes Thread. Must terminate.
	s := depsStore([]RecipeDef{
		{ID: 10, CraftedItemStacks: []ItemStack{{ItemID: 2, Quantity: 1}}, ConsumedItemStacks: []ItemStack{{ItemID: 3, Quantity: 1}}},
		{ID: 11, CraftedItemStacks: []ItemStack{{ItemID: 3, Quantity: 1}}, ConsumedItemStacks: []ItemStack{{ItemID: 2, Quantity: 1}}},
	})
	trees := s.DependencyTrees()
	if len(trees) == 0 {
		t.Fatalf("cycle produced no trees at all")
	}
	for item, tree := range trees {
		for _, e := range tree.Edges {
			if e.Ratio <= 0 {
				t.Fatalf("%s edge %+v has non-positive ratio", item, e)
			}
		}
	}
}

func TestDependencyTreesCarryTier(t *testing.T) {
	s := depsStore([]RecipeDef{
		{ID: 11, CraftedItemStacks: []ItemStack{{ItemID: 3, Quantity: 1}}, ConsumedItemStacks: []ItemStack{{ItemID: 2, Quantity: 2}}},
	})
	trees := s.DependencyTrees()
	if trees["Cloth"].Tier != 2 {
		t.Fatalf("Cloth tier = %d, want 2", trees["Cloth"].Tier)
	}
}
