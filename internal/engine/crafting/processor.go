package crafting

import (
	"fmt"
	"log"
	"time"

	"craftwatch/internal/engine"
	"craftwatch/internal/protocol"
	"craftwatch/internal/refdata"
)

// EventKind classifies one reconciliation outcome for a craft operation.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventUpdated   EventKind = "updated"
	EventCollected EventKind = "collected"
)

type Event struct {
	Kind EventKind
	Op   Operation
	At   time.Time
}

// Journal receives craft lifecycle events for the activity log. May be nil.
type Journal interface {
	Write(v any) error
}

type Config struct {
	Logger  *log.Logger
	Queue   *engine.Queue
	Ref     *refdata.Store
	Journal Journal

	// PlayerID identifies the current viewing player. Ready alerts fire
	// only for this player's operations; the claim-membership filter below
	// decides which operations are tracked at all. The two filters are
	// deliberately distinct.
	PlayerID   uint64
	PlayerName string
}

// Processor indexes the four tables behind the passive crafting view and
// rebuilds the consolidated hierarchy on every change. The dispatcher
// goroutine is the sole writer of all maps; the timer goroutine only sees
// snapshots handed over via the scheduler.
type Processor struct {
	logger  *log.Logger
	queue   *engine.Queue
	ref     *refdata.Store
	journal Journal

	playerID   uint64
	playerName string

	scheduler *Scheduler

	ops       map[uint64]Operation
	buildings map[uint64]BuildingRecord
	nicknames map[uint64]string
	members   map[uint64]string
}

func New(cfg Config) *Processor {
	p := &Processor{
		logger:     cfg.Logger,
		queue:      cfg.Queue,
		ref:        cfg.Ref,
		journal:    cfg.Journal,
		playerID:   cfg.PlayerID,
		playerName: cfg.PlayerName,
		ops:        make(map[uint64]Operation),
		buildings:  make(map[uint64]BuildingRecord),
		nicknames:  make(map[uint64]string),
		members:    make(map[uint64]string),
	}
	p.scheduler = NewScheduler(cfg.Logger, p.refreshFromTimer, p.timerReady)
	return p
}

func (p *Processor) Name() string { return "crafting" }

func (p *Processor) TableNames() []string {
	return []string{
		protocol.TablePassiveCraftState,
		protocol.TableBuildingState,
		protocol.TableBuildingNicknameState,
		protocol.TableClaimMemberState,
	}
}

// Scheduler exposes the timer for lifecycle control by the owner.
func (p *Processor) Scheduler() *Scheduler { return p.scheduler }

func (p *Processor) ClearCache() {
	p.ops = make(map[uint64]Operation)
	p.buildings = make(map[uint64]BuildingRecord)
	p.nicknames = make(map[uint64]string)
	p.members = make(map[uint64]string)
	p.scheduler.Reset()
	p.logger.Printf("crafting: cache cleared")
}

func (p *Processor) ProcessTransaction(change protocol.TableUpdate, reducerName string, at time.Time) error {
	switch change.TableName {
	case protocol.TablePassiveCraftState:
		events := p.reconcile(change)
		if len(events) == 0 {
			return nil
		}
		for _, ev := range events {
			p.record(ev, reducerName)
		}
		p.pushConsolidated(map[string]any{
			"type":    "incremental",
			"source":  "live_transaction",
			"reducer": reducerName,
		}, at)
	case protocol.TableBuildingState, protocol.TableBuildingNicknameState, protocol.TableClaimMemberState:
		if p.applySupportRows(change) {
			p.pushConsolidated(map[string]any{"source": "live_update"}, at)
		}
	default:
		// Registered tables only; anything else is a routing bug upstream
		// and harmless here.
	}
	return nil
}

// ProcessSubscription applies batch state. No lifecycle events fire on
// this path, and operations that are already complete at snapshot time
// compute to READY immediately, so an initial load never produces started
// or ready alerts for pre-existing crafts.
func (p *Processor) ProcessSubscription(change protocol.TableUpdate, initial bool) error {
	changed := false
	switch change.TableName {
	case protocol.TablePassiveCraftState:
		changed = p.applyCraftBatch(change)
	case protocol.TableBuildingState, protocol.TableBuildingNicknameState, protocol.TableClaimMemberState:
		changed = p.applySupportRows(change)
	}
	if changed {
		p.pushConsolidated(nil, time.Now())
	}
	return nil
}

// reconcile partitions a live batch's deletes and inserts by entity id and
// classifies each id. A delete and insert sharing an id within one batch is
// a single UPDATE, never a COLLECTED followed by a STARTED; processing the
// two sides independently would double-fire notifications.
func (p *Processor) reconcile(change protocol.TableUpdate) []Event {
	deletes := make(map[uint64]Operation)
	inserts := make(map[uint64]Operation)
	for _, set := range change.Updates {
		for _, raw := range set.Deletes {
			op, err := DecodeOperation(raw)
			if err != nil {
				p.logger.Printf("crafting: bad delete row skipped: %v", err)
				continue
			}
			if p.isClaimMember(op.OwnerID) {
				deletes[op.EntityID] = op
			}
		}
		for _, raw := range set.Inserts {
			op, err := DecodeOperation(raw)
			if err != nil {
				p.logger.Printf("crafting: bad insert row skipped: %v", err)
				continue
			}
			if p.isClaimMember(op.OwnerID) {
				inserts[op.EntityID] = op
			}
		}
	}

	now := time.Now()
	var events []Event
	for id, op := range inserts {
		p.ops[id] = op
		if _, updated := deletes[id]; updated {
			events = append(events, Event{Kind: EventUpdated, Op: op, At: now})
		} else {
			events = append(events, Event{Kind: EventStarted, Op: op, At: now})
		}
	}
	for id, op := range deletes {
		if _, updated := inserts[id]; updated {
			continue
		}
		// Standalone delete: the craft was collected. Emitting only when
		// the id is still cached keeps replays idempotent.
		if _, known := p.ops[id]; known {
			delete(p.ops, id)
			events = append(events, Event{Kind: EventCollected, Op: op, At: now})
		}
	}
	return events
}

// applyCraftBatch applies a subscription change-set to the operation cache
// without emitting lifecycle events; batches describe state, not
// transitions.
func (p *Processor) applyCraftBatch(change protocol.TableUpdate) bool {
	changed := false
	for _, set := range change.Updates {
		for _, raw := range set.Deletes {
			op, err := DecodeOperation(raw)
			if err != nil {
				p.logger.Printf("crafting: bad delete row skipped: %v", err)
				continue
			}
			if _, ok := p.ops[op.EntityID]; ok {
				delete(p.ops, op.EntityID)
				changed = true
			}
		}
		for _, raw := range set.Inserts {
			op, err := DecodeOperation(raw)
			if err != nil {
				p.logger.Printf("crafting: bad insert row skipped: %v", err)
				continue
			}
			p.ops[op.EntityID] = op
			changed = true
		}
	}
	return changed
}

func (p *Processor) applySupportRows(change protocol.TableUpdate) bool {
	changed := false
	for _, set := range change.Updates {
		for _, raw := range set.Inserts {
			if p.applySupportRow(change.TableName, raw, false) {
				changed = true
			}
		}
		for _, raw := range set.Deletes {
			if p.applySupportRow(change.TableName, raw, true) {
				changed = true
			}
		}
	}
	return changed
}

func (p *Processor) applySupportRow(table string, raw []byte, remove bool) bool {
	switch table {
	case protocol.TableBuildingState:
		rec, err := decodeBuilding(raw)
		if err != nil {
			p.logger.Printf("crafting: bad %s row skipped: %v", table, err)
			return false
		}
		if remove {
			delete(p.buildings, rec.EntityID)
		} else {
			p.buildings[rec.EntityID] = rec
		}
	case protocol.TableBuildingNicknameState:
		id, nickname, err := decodeNickname(raw)
		if err != nil {
			p.logger.Printf("crafting: bad %s row skipped: %v", table, err)
			return false
		}
		if remove {
			delete(p.nicknames, id)
		} else {
			p.nicknames[id] = nickname
		}
	case protocol.TableClaimMemberState:
		rec, err := decodeMember(raw)
		if err != nil {
			p.logger.Printf("crafting: bad %s row skipped: %v", table, err)
			return false
		}
		if remove {
			delete(p.members, rec.PlayerID)
		} else {
			p.members[rec.PlayerID] = rec.UserName
		}
	}
	return true
}

// isClaimMember applies the display filter. An empty roster means member
// data has not arrived yet; everything passes rather than dropping rows on
// the floor. Once the roster exists, unknown owners are not members.
func (p *Processor) isClaimMember(ownerID uint64) bool {
	if len(p.members) == 0 {
		return true
	}
	_, ok := p.members[ownerID]
	return ok
}

// pushConsolidated rebuilds the hierarchy from the live cache, refreshes
// the timer snapshot, and queues a full crafting_update.
func (p *Processor) pushConsolidated(changes map[string]any, at time.Time) {
	snapshot := p.snapshot(time.Now())
	groups := BuildHierarchy(rowsFromSnapshot(snapshot))
	p.scheduler.SetOperations(snapshot)

	var ts float64
	if !at.IsZero() {
		ts = float64(at.UnixMicro()) / 1e6
	}
	p.queue.Push(engine.Update{
		Type:      "crafting_update",
		Data:      groups,
		Changes:   changes,
		Timestamp: ts,
	})
}

// snapshot resolves every cached operation against reference data into a
// self-contained timer view. Claim-membership is re-evaluated here, per
// display refresh, not baked into the cache.
func (p *Processor) snapshot(now time.Time) []TimerOp {
	out := make([]TimerOp, 0, len(p.ops))
	for _, op := range p.ops {
		if !p.isClaimMember(op.OwnerID) {
			continue
		}
		recipe, hasRecipe := p.ref.Recipe(op.RecipeID)

		quantity := float64(1)
		var item refdata.ItemDef
		itemName := fmt.Sprintf("Recipe %d", op.RecipeID)
		if hasRecipe {
			item, itemName = p.ref.CraftedItem(op.RecipeID)
			if len(recipe.CraftedItemStacks) > 0 && recipe.CraftedItemStacks[0].Quantity > 0 {
				quantity = recipe.CraftedItemStacks[0].Quantity
			}
		}

		top := TimerOp{
			EntityID:        op.EntityID,
			OwnerID:         op.OwnerID,
			RecipeID:        op.RecipeID,
			StartMicros:     op.StartMicros,
			Status:          op.Status,
			DurationSeconds: recipe.TimeRequirement,
			ItemName:        itemName,
			Tier:            item.Tier,
			Quantity:        quantity,
			Tag:             item.Tag,
			Crafter:         p.playerNameFor(op.OwnerID),
			BuildingName:    p.buildingNameFor(op.BuildingID),
		}
		top.Remaining, _ = computeRemaining(&top, now)
		out = append(out, top)
	}
	return out
}

func rowsFromSnapshot(ops []TimerOp) []Row {
	rows := make([]Row, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, op.Row())
	}
	return rows
}

func (p *Processor) buildingNameFor(buildingID uint64) string {
	if nickname, ok := p.nicknames[buildingID]; ok {
		return nickname
	}
	if rec, ok := p.buildings[buildingID]; ok {
		if name, found := p.ref.BuildingName(rec.BuildingDescriptionID); found {
			return name
		}
	}
	return fmt.Sprintf("Building %d", buildingID)
}

func (p *Processor) playerNameFor(playerID uint64) string {
	if name, ok := p.members[playerID]; ok {
		return name
	}
	return fmt.Sprintf("Player %d", playerID)
}

// refreshFromTimer rebuilds the full view from the timer's own snapshot.
// Runs on the timer goroutine; touches no processor-owned map.
func (p *Processor) refreshFromTimer(source string) {
	ops := p.scheduler.Snapshot()
	groups := BuildHierarchy(rowsFromSnapshot(ops))
	p.queue.Push(engine.Update{
		Type:    "crafting_update",
		Data:    groups,
		Changes: map[string]any{"source": source},
	})
}

// timerReady fires the ready-alert decision for operations that completed
// this tick. Alerts are restricted to the current viewing player; the
// wider claim-membership filter already decided what is tracked.
func (p *Processor) timerReady(ops []TimerOp) {
	var items []ReadyItem
	for _, op := range ops {
		if op.OwnerID != p.playerID {
			continue
		}
		items = append(items, ReadyItem{EntityID: op.EntityID, RecipeID: op.RecipeID, ItemName: op.ItemName})
	}
	decision, ok := BundleReady(items)
	if !ok {
		return
	}
	p.queue.Push(engine.Update{
		Type:    "passive_craft_notification",
		Data:    decision,
		Changes: map[string]any{"source": "timer_update"},
	})
	if p.journal != nil {
		if err := p.journal.Write(map[string]any{
			"event":   "craft_ready",
			"message": decision.Message,
			"count":   len(decision.Items),
		}); err != nil {
			p.logger.Printf("crafting: journal write failed: %v", err)
		}
	}
}

func (p *Processor) record(ev Event, reducerName string) {
	switch ev.Kind {
	case EventStarted:
		p.logger.Printf("crafting: STARTED entity=%d recipe=%d building=%d", ev.Op.EntityID, ev.Op.RecipeID, ev.Op.BuildingID)
	case EventUpdated:
		p.logger.Printf("crafting: UPDATED entity=%d recipe=%d building=%d", ev.Op.EntityID, ev.Op.RecipeID, ev.Op.BuildingID)
	case EventCollected:
		p.logger.Printf("crafting: COLLECTED entity=%d recipe=%d building=%d", ev.Op.EntityID, ev.Op.RecipeID, ev.Op.BuildingID)
	}
	if p.journal == nil {
		return
	}
	if err := p.journal.Write(map[string]any{
		"event":     "craft_" + string(ev.Kind),
		"entity_id": ev.Op.EntityID,
		"owner_id":  ev.Op.OwnerID,
		"recipe_id": ev.Op.RecipeID,
		"reducer":   reducerName,
		"at":        ev.At.UnixMicro(),
	}); err != nil {
		p.logger.Printf("crafting: journal write failed: %v", err)
	}
}
