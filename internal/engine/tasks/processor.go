// Package tasks tracks the player's traveler tasks: live completion state
// joined against static task descriptions, plus the loop timer that says
// when the task set rotates.
package tasks

import (
	"log"
	"sort"
	"time"

	"craftwatch/internal/engine"
	"craftwatch/internal/protocol"
	"craftwatch/internal/refdata"
)

type taskState struct {
	EntityID   uint64
	PlayerID   uint64
	TravelerID int64
	TaskID     int64
	Completed  bool
}

type taskDesc struct {
	ID            int64
	Description   string
	RequiredItems []refdata.ItemStack
}

// Task is one display row: state joined to its description.
type Task struct {
	EntityID      uint64              `json:"entity_id"`
	TravelerID    int64               `json:"traveler_id"`
	TaskID        int64               `json:"task_id"`
	Description   string              `json:"description"`
	RequiredItems []refdata.ItemStack `json:"required_items"`
	Completed     bool                `json:"completed"`
}

// View is the consolidated payload for tasks_update items.
type View struct {
	Tasks            []Task `json:"tasks"`
	CompletedCount   int    `json:"completed_count"`
	ExpirationMicros int64  `json:"expiration_micros"`
}

type Config struct {
	Logger *log.Logger
	Queue  *engine.Queue
	// PlayerID scopes traveler_task_state rows to the viewing player.
	PlayerID uint64
}

type Processor struct {
	logger   *log.Logger
	queue    *engine.Queue
	playerID uint64

	states    map[uint64]taskState
	descs     map[int64]taskDesc
	loopTimer int64
}

func New(cfg Config) *Processor {
	return &Processor{
		logger:   cfg.Logger,
		queue:    cfg.Queue,
		playerID: cfg.PlayerID,
		states:   make(map[uint64]taskState),
		descs:    make(map[int64]taskDesc),
	}
}

func (p *Processor) Name() string { return "tasks" }

func (p *Processor) TableNames() []string {
	return []string{
		protocol.TableTravelerTaskState,
		protocol.TableTravelerTaskDesc,
		protocol.TablePlayerState,
		protocol.TableTravelerTaskLoopTimer,
	}
}

func (p *Processor) ClearCache() {
	p.states = make(map[uint64]taskState)
	p.loopTimer = 0
	// Task descriptions are static reference rows; they survive claim
	// switches.
	p.logger.Printf("tasks: cache cleared")
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
	return changed
}

func (p *Processor) applyRow(table string, raw []byte, remove bool) bool {
	switch table {
	case protocol.TableTravelerTaskState:
		var row struct {
			EntityID   uint64 `json:"entity_id"`
			PlayerID   uint64 `json:"player_entity_id"`
			TravelerID int64  `json:"traveler_id"`
			TaskID     int64  `json:"task_id"`
			Completed  bool   `json:"completed"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil {
			p.logger.Printf("tasks: bad %s row skipped: %v", table, err)
			return false
		}
		if row.EntityID == 0 || (p.playerID != 0 && row.PlayerID != p.playerID) {
			return false
		}
		if remove {
			if _, ok := p.states[row.EntityID]; !ok {
				return false
			}
			delete(p.states, row.EntityID)
			return true
		}
		p.states[row.EntityID] = taskState{
			EntityID:   row.EntityID,
			PlayerID:   row.PlayerID,
			TravelerID: row.TravelerID,
			TaskID:     row.TaskID,
			Completed:  row.Completed,
		}
	case protocol.TableTravelerTaskDesc:
		var row struct {
			ID            int64               `json:"id"`
			Description   string              `json:"description"`
			RequiredItems []refdata.ItemStack `json:"required_items"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil {
			p.logger.Printf("tasks: bad %s row skipped: %v", table, err)
			return false
		}
		if row.ID == 0 || remove {
			return false
		}
		p.descs[row.ID] = taskDesc{ID: row.ID, Description: row.Description, RequiredItems: row.RequiredItems}
	case protocol.TableTravelerTaskLoopTimer:
		var row struct {
			ScheduledAt protocol.Timestamp `json:"scheduled_at"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil {
			p.logger.Printf("tasks: bad %s row skipped: %v", table, err)
			return false
		}
		if remove {
			return false
		}
		p.loopTimer = row.ScheduledAt.EpochMicros
	case protocol.TablePlayerState:
		// Indexed for completeness of the subscription set; nothing here
		// feeds the task view directly.
		return !remove
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
		Type:      "tasks_update",
		Data:      p.View(),
		Changes:   changes,
		Timestamp: ts,
	})
}

// View joins task state to descriptions in a deterministic order.
func (p *Processor) View() View {
	tasks := make([]Task, 0, len(p.states))
	completed := 0
	for _, state := range p.states {
		desc := p.descs[state.TaskID]
		description := desc.Description
		if description == "" {
			description = "Unknown Task"
		}
		if state.Completed {
			completed++
		}
		tasks = append(tasks, Task{
			EntityID:      state.EntityID,
			TravelerID:    state.TravelerID,
			TaskID:        state.TaskID,
			Description:   description,
			RequiredItems: desc.RequiredItems,
			Completed:     state.Completed,
		})
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].TravelerID != tasks[j].TravelerID {
			return tasks[i].TravelerID < tasks[j].TravelerID
		}
		return tasks[i].EntityID < tasks[j].EntityID
	})
	return View{Tasks: tasks, CompletedCount: completed, ExpirationMicros: p.loopTimer}
}
