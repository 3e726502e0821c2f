// Package cascade computes adjusted material requirements by propagating
// "already on hand" savings through recipe dependency chains. Holding 100
// Cloth reduces the need for Cloth Strip directly and for Thread and Fiber
// transitively, because every Cloth not yet crafted would have consumed them.
package cascade

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
)

// Edge says: one unit of the owning material absorbs Ratio units of
// Dependent somewhere down its crafting chain.
type Edge struct {
	Dependent string
	Ratio     float64
}

// Tree is the full transitive dependency fan-out of one material.
type Tree struct {
	Edges []Edge
	Tier  int
}

// Result describes how inventory changed one material's requirement.
type Result struct {
	OriginalNeed       float64 `json:"original_need"`
	InventoryReduction float64 `json:"inventory_reduction"`
	FinalNeed          float64 `json:"final_need"`
	HasInventory       bool    `json:"has_inventory"`
}

// Calculator applies cascading reductions. Results are cached keyed by a
// canonical (requirements, inventory) signature; the cache must be
// invalidated whenever inventory changes.
type Calculator struct {
	trees      map[string]Tree
	complexity map[string]int

	cache  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64

	logger *log.Logger
}

func NewCalculator(trees map[string]Tree, logger *log.Logger) *Calculator {
	c := &Calculator{
		trees:      trees,
		complexity: make(map[string]int, len(trees)),
		cache:      gocache.New(gocache.NoExpiration, 0),
		logger:     logger,
	}
	for name, tree := range trees {
		c.complexity[name] = len(tree.Edges)
	}
	return c
}

// Apply reduces base requirements by what inventory can cover, transitively.
// A material missing from the dependency trees simply cascades no further;
// that is not an error.
func (c *Calculator) Apply(base map[string]float64, inventory map[string]float64) map[string]Result {
	key := cacheKey(base, inventory)
	if cached, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return cached.(map[string]Result)
	}
	c.misses.Add(1)

	working := make(map[string]float64, len(base))
	for name, qty := range base {
		working[name] = qty
	}
	reductions := make(map[string]float64)

	for _, item := range c.sortedInventory(inventory) {
		tree, ok := c.trees[item.name]
		if !ok {
			continue
		}
		for _, edge := range tree.Edges {
			remaining, needed := working[edge.Dependent]
			if !needed || remaining <= 0 {
				continue
			}
			reduction := item.quantity * edge.Ratio
			if reduction > remaining {
				reduction = remaining
			}
			working[edge.Dependent] = remaining - reduction
			reductions[edge.Dependent] += reduction
		}
	}

	result := make(map[string]Result, len(base))
	for name, original := range base {
		final := working[name]
		if final < 0 {
			final = 0
		}
		result[name] = Result{
			OriginalNeed:       original,
			InventoryReduction: reductions[name],
			FinalNeed:          final,
			HasInventory:       inventory[name] > 0,
		}
	}

	c.cache.Set(key, result, gocache.NoExpiration)
	return result
}

// Invalidate drops all cached results. Call whenever inventory changes.
func (c *Calculator) Invalidate() {
	c.cache.Flush()
	if c.logger != nil {
		c.logger.Printf("cascade: cache invalidated (hits=%d misses=%d)", c.hits.Load(), c.misses.Load())
	}
}

// Stats reports cache behavior for observability and tests.
func (c *Calculator) Stats() (hits, misses uint64, entries int) {
	return c.hits.Load(), c.misses.Load(), c.cache.ItemCount()
}

type inventoryItem struct {
	name       string
	quantity   float64
	complexity int
}

// sortedInventory orders holdings by descending complexity (dependency edge
// count) then descending quantity. High-complexity materials cascade
// further, so spending them first maximizes the total reduction.
func (c *Calculator) sortedInventory(inventory map[string]float64) []inventoryItem {
	items := make([]inventoryItem, 0, len(inventory))
	for name, qty := range inventory {
		if qty <= 0 {
			continue
		}
		items = append(items, inventoryItem{name: name, quantity: qty, complexity: c.complexity[name]})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].complexity != items[j].complexity {
			return items[i].complexity > items[j].complexity
		}
		if items[i].quantity != items[j].quantity {
			return items[i].quantity > items[j].quantity
		}
		return items[i].name < items[j].name
	})
	return items
}

func cacheKey(base map[string]float64, inventory map[string]float64) string {
	var sb strings.Builder
	sb.WriteString("req:")
	writeSorted(&sb, base, false)
	sb.WriteString("|inv:")
	writeSorted(&sb, inventory, true)
	return sb.String()
}

func writeSorted(sb *strings.Builder, m map[string]float64, skipZero bool) {
	names := make([]string, 0, len(m))
	for name, qty := range m {
		if skipZero && qty <= 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(sb, "%s=%g", name, m[name])
	}
}
