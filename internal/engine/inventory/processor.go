// Package inventory consolidates claim storage contents into a single
// material view and keeps the cascading calculator's cache honest.
package inventory

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"craftwatch/internal/engine"
	"craftwatch/internal/engine/cascade"
	"craftwatch/internal/protocol"
	"craftwatch/internal/refdata"
)

// Record is one inventory_state row: the pockets of one container entity.
type Record struct {
	EntityID uint64
	OwnerID  uint64
	Pockets  []json.RawMessage
}

// Item is one consolidated material across all containers.
type Item struct {
	Tier          int                `json:"tier"`
	TotalQuantity float64            `json:"total_quantity"`
	Tag           string             `json:"tag"`
	Containers    map[string]float64 `json:"containers"`
}

type Config struct {
	Logger *log.Logger
	Queue  *engine.Queue
	Ref    *refdata.Store

	// Calculator is invalidated whenever inventory changes; stale cascade
	// results must never survive an inventory move. May be nil.
	Calculator *cascade.Calculator
}

type Processor struct {
	logger     *log.Logger
	queue      *engine.Queue
	ref        *refdata.Store
	calculator *cascade.Calculator

	records   map[uint64]Record
	buildings map[uint64]buildingRecord
	nicknames map[uint64]string
}

type buildingRecord struct {
	entityID      uint64
	descriptionID int64
}

func New(cfg Config) *Processor {
	return &Processor{
		logger:     cfg.Logger,
		queue:      cfg.Queue,
		ref:        cfg.Ref,
		calculator: cfg.Calculator,
		records:    make(map[uint64]Record),
		buildings:  make(map[uint64]buildingRecord),
		nicknames:  make(map[uint64]string),
	}
}

func (p *Processor) Name() string { return "inventory" }

func (p *Processor) TableNames() []string {
	return []string{
		protocol.TableInventoryState,
		protocol.TableBuildingState,
		protocol.TableBuildingNicknameState,
	}
}

func (p *Processor) ClearCache() {
	p.records = make(map[uint64]Record)
	p.buildings = make(map[uint64]buildingRecord)
	p.nicknames = make(map[uint64]string)
	if p.calculator != nil {
		p.calculator.Invalidate()
	}
	p.logger.Printf("inventory: cache cleared")
}

func (p *Processor) ProcessTransaction(change protocol.TableUpdate, reducerName string, at time.Time) error {
	if !p.apply(change) {
		return nil
	}
	p.push(map[string]any{"source": "live_transaction", "reducer": reducerName}, at)
	return nil
}

func (p *Processor) ProcessSubscription(change protocol.TableUpdate, initial bool) error {
	if !p.apply(change) {
		return nil
	}
	p.push(nil, time.Now())
	return nil
}

// apply folds a change-set into the caches. Delete+insert pairs for the
// same entity id within one batch land as in-place updates because deletes
// are applied before inserts per row-set.
func (p *Processor) apply(change protocol.TableUpdate) bool {
	changed := false
	for _, set := range change.Updates {
		for _, raw := range set.Deletes {
			if p.applyRow(change.TableName, raw, true) {
				changed = true
			}
		}
		for _, raw := range set.Inserts {
			if p.applyRow(change.TableName, raw, false) {
				changed = true
			}
		}
	}
	if changed && change.TableName == protocol.TableInventoryState && p.calculator != nil {
		p.calculator.Invalidate()
	}
	return changed
}

func (p *Processor) applyRow(table string, raw []byte, remove bool) bool {
	switch table {
	case protocol.TableInventoryState:
		rec, err := decodeRecord(raw)
		if err != nil {
			p.logger.Printf("inventory: bad %s row skipped: %v", table, err)
			return false
		}
		if remove {
			if _, ok := p.records[rec.EntityID]; !ok {
				return false
			}
			delete(p.records, rec.EntityID)
		} else {
			p.records[rec.EntityID] = rec
		}
	case protocol.TableBuildingState:
		var row struct {
			EntityID              uint64 `json:"entity_id"`
			BuildingDescriptionID int64  `json:"building_description_id"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil || row.EntityID == 0 {
			if err != nil {
				p.logger.Printf("inventory: bad %s row skipped: %v", table, err)
			}
			return false
		}
		if remove {
			delete(p.buildings, row.EntityID)
		} else {
			p.buildings[row.EntityID] = buildingRecord{entityID: row.EntityID, descriptionID: row.BuildingDescriptionID}
		}
	case protocol.TableBuildingNicknameState:
		var row struct {
			EntityID uint64 `json:"entity_id"`
			Nickname string `json:"nickname"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil || row.EntityID == 0 {
			if err != nil {
				p.logger.Printf("inventory: bad %s row skipped: %v", table, err)
			}
			return false
		}
		if remove {
			delete(p.nicknames, row.EntityID)
		} else {
			p.nicknames[row.EntityID] = row.Nickname
		}
	default:
		return false
	}
	return true
}

func (p *Processor) push(changes map[string]any, at time.Time) {
	var ts float64
	if !at.IsZero() {
		ts = float64(at.UnixMicro()) / 1e6
	}
	p.queue.Push(engine.Update{
		Type:      "inventory_update",
		Data:      p.Consolidated(),
		Changes:   changes,
		Timestamp: ts,
	})
}

// Consolidated merges every container's pockets into a material → totals
// view, resolving container display names through nicknames and building
// descriptions.
func (p *Processor) Consolidated() map[string]Item {
	out := make(map[string]Item)
	for _, rec := range p.records {
		container := p.containerName(rec.OwnerID)
		for _, pocket := range rec.Pockets {
			itemID, quantity, ok := decodePocket(pocket)
			if !ok {
				continue
			}
			def, _ := p.ref.LookupItem(itemID, "")
			name := def.Name
			if name == "" {
				name = fmt.Sprintf("Unknown Item %d", itemID)
			}
			item, exists := out[name]
			if !exists {
				item = Item{Tier: def.Tier, Tag: def.Tag, Containers: make(map[string]float64)}
			}
			item.TotalQuantity += quantity
			item.Containers[container] += quantity
			out[name] = item
		}
	}
	return out
}

// Quantities flattens the consolidated view for the cascading calculator.
func (p *Processor) Quantities() map[string]float64 {
	out := make(map[string]float64)
	for name, item := range p.Consolidated() {
		out[name] = item.TotalQuantity
	}
	return out
}

func (p *Processor) containerName(buildingID uint64) string {
	if nickname, ok := p.nicknames[buildingID]; ok {
		return nickname
	}
	if rec, ok := p.buildings[buildingID]; ok {
		if name, found := p.ref.BuildingName(rec.descriptionID); found {
			return name
		}
	}
	return fmt.Sprintf("Building %d", buildingID)
}

func decodeRecord(raw []byte) (Record, error) {
	var row struct {
		EntityID uint64            `json:"entity_id"`
		OwnerID  uint64            `json:"owner_entity_id"`
		Pockets  []json.RawMessage `json:"pockets"`
	}
	if err := protocol.DecodeRow(raw, &row); err != nil {
		return Record{}, err
	}
	if row.EntityID == 0 {
		return Record{}, fmt.Errorf("inventory row: missing entity_id")
	}
	return Record{EntityID: row.EntityID, OwnerID: row.OwnerID, Pockets: row.Pockets}, nil
}

// decodePocket unpacks one pocket: [slot_info, [type, [item_id, quantity]]].
// Empty pockets and unknown layouts are skipped silently; pockets with no
// contents are the common case.
func decodePocket(raw json.RawMessage) (itemID int64, quantity float64, ok bool) {
	var pocket []json.RawMessage
	if err := json.Unmarshal(raw, &pocket); err != nil || len(pocket) < 2 {
		return 0, 0, false
	}
	var contents []json.RawMessage
	if err := json.Unmarshal(pocket[1], &contents); err != nil || len(contents) < 2 {
		return 0, 0, false
	}
	var stack refdata.ItemStack
	if err := json.Unmarshal(contents[1], &stack); err != nil {
		return 0, 0, false
	}
	return stack.ItemID, stack.Quantity, true
}
