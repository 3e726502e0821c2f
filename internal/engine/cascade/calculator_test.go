package cascade

import (
	"io"
	"log"
	"testing"
)

func clothTrees() map[string]Tree {
	// One Cloth consumes 2 Cloth Strip, which consume 4 Thread, which
	// consume 8 Fiber, transitively.
	return map[string]Tree{
		"Cloth": {
			Edges: []Edge{
				{Dependent: "Cloth Strip", Ratio: 2},
				{Dependent: "Fiber", Ratio: 8},
				{Dependent: "Thread", Ratio: 4},
			},
			Tier: 2,
		},
		"Cloth Strip": {
			Edges: []Edge{
				{Dependent: "Fiber", Ratio: 4},
				{Dependent: "Thread", Ratio: 2},
			},
			Tier: 1,
		},
		"Thread": {
			Edges: []Edge{{Dependent: "Fiber", Ratio: 2}},
			Tier:  1,
		},
	}
}

func newTestCalculator() *Calculator {
	return NewCalculator(clothTrees(), log.New(io.Discard, "", 0))
}

func TestApplyCascadesThroughChain(t *testing.T) {
	c := newTestCalculator()

	base := map[string]float64{"Cloth Strip": 50, "Thread": 100, "Fiber": 200}
	inventory := map[string]float64{"Cloth": 20}

	result := c.Apply(base, inventory)

	strip := result["Cloth Strip"]
	if strip.InventoryReduction != 40 || strip.FinalNeed != 10 {
		t.Fatalf("Cloth Strip = %+v", strip)
	}
	thread := result["Thread"]
	if thread.InventoryReduction != 80 || thread.FinalNeed != 20 {
		t.Fatalf("Thread = %+v", thread)
	}
	fiber := result["Fiber"]
	if fiber.InventoryReduction != 160 || fiber.FinalNeed != 40 {
		t.Fatalf("Fiber = %+v", fiber)
	}
	if strip.HasInventory || thread.HasInventory || fiber.HasInventory {
		t.Fatalf("nothing held directly, HasInventory must be false")
	}
}

func TestApplyCoversRequirementsCompletely(t *testing.T) {
	trees := map[string]Tree{
		"Cloth": {
			Edges: []Edge{
				{Dependent: "Cloth Strip", Ratio: 1},
				{Dependent: "Thread", Ratio: 3},
			},
			Tier: 2,
		},
	}
	c := NewCalculator(trees, log.New(io.Discard, "", 0))

	result := c.Apply(
		map[string]float64{"Cloth Strip": 100, "Thread": 300},
		map[string]float64{"Cloth": 100},
	)

	strip := result["Cloth Strip"]
	if strip.FinalNeed != 0 || strip.InventoryReduction != strip.OriginalNeed {
		t.Fatalf("Cloth Strip = %+v, want fully covered", strip)
	}
	thread := result["Thread"]
	if thread.FinalNeed != 0 || thread.InventoryReduction != thread.OriginalNeed {
		t.Fatalf("Thread = %+v, want fully covered", thread)
	}
}

func TestApplyReductionCappedAtRemaining(t *testing.T) {
	c := newTestCalculator()

	// 100 Cloth would cover 200 Cloth Strip; only 30 are needed.
	result := c.Apply(map[string]float64{"Cloth Strip": 30}, map[string]float64{"Cloth": 100})
	strip := result["Cloth Strip"]
	if strip.InventoryReduction != 30 || strip.FinalNeed != 0 {
		t.Fatalf("Cloth Strip = %+v, want fully covered", strip)
	}
}

func TestApplyDirectHoldingFlag(t *testing.T) {
	c := newTestCalculator()

	result := c.Apply(map[string]float64{"Fiber": 10}, map[string]float64{"Fiber": 5})
	fiber := result["Fiber"]
	if !fiber.HasInventory {
		t.Fatalf("direct holding not flagged: %+v", fiber)
	}
	// Fiber has no tree edges pointing at itself; holding Fiber does not
	// reduce the Fiber requirement, it only flags the holding.
	if fiber.FinalNeed != 10 {
		t.Fatalf("Fiber = %+v", fiber)
	}
}

func TestApplyUnknownMaterialCascadesNothing(t *testing.T) {
	c := newTestCalculator()
	result := c.Apply(map[string]float64{"Thread": 10}, map[string]float64{"Mystery Meat": 99})
	if got := result["Thread"]; got.FinalNeed != 10 || got.InventoryReduction != 0 {
		t.Fatalf("unknown material changed requirements: %+v", got)
	}
}

func TestApplyCachesByCanonicalKey(t *testing.T) {
	c := newTestCalculator()

	base := map[string]float64{"Thread": 100, "Fiber": 200}
	inventory := map[string]float64{"Cloth": 20, "Sand": 0}

	first := c.Apply(base, inventory)
	// Same content, different map instances, zero-quantity holding dropped.
	second := c.Apply(map[string]float64{"Fiber": 200, "Thread": 100}, map[string]float64{"Cloth": 20})

	hits, misses, entries := c.Stats()
	if hits != 1 || misses != 1 || entries != 1 {
		t.Fatalf("stats = (%d, %d, %d), want (1, 1, 1)", hits, misses, entries)
	}
	if first["Thread"] != second["Thread"] {
		t.Fatalf("cached result diverged: %+v vs %+v", first["Thread"], second["Thread"])
	}
}

func TestInvalidateDropsCache(t *testing.T) {
	c := newTestCalculator()
	base := map[string]float64{"Thread": 10}
	inv := map[string]float64{"Cloth": 1}

	c.Apply(base, inv)
	c.Invalidate()
	if _, _, entries := c.Stats(); entries != 0 {
		t.Fatalf("entries = %d after invalidate", entries)
	}
	c.Apply(base, inv)
	if hits, misses, _ := c.Stats(); hits != 0 || misses != 2 {
		t.Fatalf("stats = (%d, %d), want recompute after invalidate", hits, misses)
	}
}

func TestSortedInventoryOrdersByComplexity(t *testing.T) {
	c := newTestCalculator()
	items := c.sortedInventory(map[string]float64{
		"Fiber":       50, // no tree: complexity 0
		"Thread":      10, // 1 edge
		"Cloth":       5,  // 3 edges
		"Cloth Strip": 5,  // 2 edges
	})
	want := []string{"Cloth", "Cloth Strip", "Thread", "Fiber"}
	for i, item := range items {
		if item.name != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, item.name, want[i])
		}
	}
}
