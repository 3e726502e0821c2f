package crafting

import (
	"fmt"
	"sort"
	"strings"
)

// ReadyItem is one operation that finished this tick, resolved to its
// output item.
type ReadyItem struct {
	EntityID uint64 `json:"entity_id"`
	RecipeID int64  `json:"recipe_id"`
	ItemName string `json:"item_name"`
}

// Decision is the "fire a notification now" record pushed to the
// presentation layer. Rendering is not this engine's business; the decision
// of when and with what summary is.
type Decision struct {
	Message  string      `json:"message"`
	Quantity int         `json:"quantity"`
	Items    []ReadyItem `json:"items"`
}

// BundleReady folds all items that became ready in one tick into a single
// decision, so ten simultaneous completions produce one alert instead of
// ten.
func BundleReady(items []ReadyItem) (Decision, bool) {
	if len(items) == 0 {
		return Decision{}, false
	}

	counts := make(map[string]int)
	var names []string
	for _, item := range items {
		if counts[item.ItemName] == 0 {
			names = append(names, item.ItemName)
		}
		counts[item.ItemName]++
	}

	if len(names) == 1 {
		return Decision{Message: names[0], Quantity: counts[names[0]], Items: items}, true
	}

	sort.Strings(names)
	entries := make([]string, 0, len(names))
	for _, name := range names {
		if counts[name] == 1 {
			entries = append(entries, name)
		} else {
			entries = append(entries, fmt.Sprintf("%dx %s", counts[name], name))
		}
	}

	var summary string
	if len(entries) <= 3 {
		summary = strings.Join(entries, ", ")
	} else {
		summary = fmt.Sprintf("%s and %d more types", strings.Join(entries[:2], ", "), len(entries)-2)
	}
	return Decision{
		Message:  "Multiple items ready: " + summary,
		Quantity: 1,
		Items:    items,
	}, true
}
