// Package refdata loads the static game reference tables (items, cargo,
// resources, recipes, building descriptions) from the local sqlite cache and
// serves lookups against them. The data never changes for the lifetime of
// the process.
package refdata

import (
	"encoding/json"
	"fmt"
)

// Source names mirror the reference table each item definition came from.
const (
	SourceItemDesc     = "item_desc"
	SourceCargoDesc    = "cargo_desc"
	SourceResourceDesc = "resource_desc"
)

type ItemDef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Tier int    `json:"tier"`
	Tag  string `json:"tag"`
}

type BuildingDef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RecipeDef struct {
	ID                int64       `json:"id"`
	Name              string      `json:"name"`
	TimeRequirement   float64     `json:"time_requirement"`
	CraftedItemStacks []ItemStack `json:"crafted_item_stacks"`
	ConsumedItemStacks []ItemStack `json:"consumed_item_stacks"`
}

// ItemStack is encoded on the wire as a positional array
// [item_id, quantity, ...]; trailing elements are ignored.
type ItemStack struct {
	ItemID   int64
	Quantity float64
}

func (s *ItemStack) UnmarshalJSON(b []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	if len(arr) < 2 {
		return fmt.Errorf("item stack: want at least 2 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &s.ItemID); err != nil {
		return fmt.Errorf("item stack id: %w", err)
	}
	if err := json.Unmarshal(arr[1], &s.Quantity); err != nil {
		return fmt.Errorf("item stack quantity: %w", err)
	}
	return nil
}

func (s ItemStack) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.ItemID, s.Quantity})
}
