// Package claims tracks metadata for the active claim: display name,
// treasury, supplies, tile count, and the member roster with permissions.
package claims

import (
	"log"
	"sort"
	"time"

	"craftwatch/internal/engine"
	"craftwatch/internal/protocol"
)

type Member struct {
	PlayerID    uint64      `json:"player_entity_id"`
	UserName    string      `json:"user_name"`
	Permissions Permissions `json:"permissions"`
}

type Permissions struct {
	Inventory bool `json:"inventory"`
	Build     bool `json:"build"`
	Officer   bool `json:"officer"`
	CoOwner   bool `json:"co_owner"`
}

// Info is the consolidated claim metadata view.
type Info struct {
	ClaimID   uint64   `json:"claim_id"`
	Name      string   `json:"name"`
	Treasury  float64  `json:"treasury"`
	Supplies  float64  `json:"supplies"`
	TileCount int      `json:"tile_count"`
	Members   []Member `json:"members"`
}

type Config struct {
	Logger *log.Logger
	Queue  *engine.Queue
	// ClaimID scopes claim_state and claim_local_state rows; rows for
	// other claims the player belongs to are ignored.
	ClaimID uint64
}

type Processor struct {
	logger  *log.Logger
	queue   *engine.Queue
	claimID uint64

	name      string
	treasury  float64
	supplies  float64
	tileCount int
	members   map[uint64]Member
}

func New(cfg Config) *Processor {
	return &Processor{
		logger:  cfg.Logger,
		queue:   cfg.Queue,
		claimID: cfg.ClaimID,
		members: make(map[uint64]Member),
	}
}

func (p *Processor) Name() string { return "claims" }

func (p *Processor) TableNames() []string {
	return []string{
		protocol.TableClaimLocalState,
		protocol.TableClaimState,
		protocol.TableClaimMemberState,
	}
}

// SetClaimID retargets the processor at a different claim. Callers clear
// the cache around the switch; rows for the old claim would otherwise leak
// into the new view.
func (p *Processor) SetClaimID(id uint64) {
	p.claimID = id
}

func (p *Processor) ClearCache() {
	p.name = ""
	p.treasury = 0
	p.supplies = 0
	p.tileCount = 0
	p.members = make(map[uint64]Member)
	p.logger.Printf("claims: cache cleared")
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
	case protocol.TableClaimState:
		var row struct {
			EntityID uint64 `json:"entity_id"`
			Name     string `json:"name"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil {
			p.logger.Printf("claims: bad %s row skipped: %v", table, err)
			return false
		}
		if row.EntityID != p.claimID || remove {
			return false
		}
		p.name = row.Name
	case protocol.TableClaimLocalState:
		var row struct {
			EntityID uint64  `json:"entity_id"`
			Treasury float64 `json:"treasury"`
			Supplies float64 `json:"supplies"`
			NumTiles int     `json:"num_tiles"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil {
			p.logger.Printf("claims: bad %s row skipped: %v", table, err)
			return false
		}
		if row.EntityID != p.claimID || remove {
			return false
		}
		p.treasury = row.Treasury
		p.supplies = row.Supplies
		p.tileCount = row.NumTiles
	case protocol.TableClaimMemberState:
		var row struct {
			ClaimID             uint64 `json:"claim_entity_id"`
			PlayerID            uint64 `json:"player_entity_id"`
			UserName            string `json:"user_name"`
			InventoryPermission bool   `json:"inventory_permission"`
			BuildPermission     bool   `json:"build_permission"`
			OfficerPermission   bool   `json:"officer_permission"`
			CoOwnerPermission   bool   `json:"co_owner_permission"`
		}
		if err := protocol.DecodeRow(raw, &row); err != nil {
			p.logger.Printf("claims: bad %s row skipped: %v", table, err)
			return false
		}
		if row.PlayerID == 0 {
			return false
		}
		if remove {
			if _, ok := p.members[row.PlayerID]; !ok {
				return false
			}
			delete(p.members, row.PlayerID)
			return true
		}
		p.members[row.PlayerID] = Member{
			PlayerID: row.PlayerID,
			UserName: row.UserName,
			Permissions: Permissions{
				Inventory: row.InventoryPermission,
				Build:     row.BuildPermission,
				Officer:   row.OfficerPermission,
				CoOwner:   row.CoOwnerPermission,
			},
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
		Type:      "claim_info_update",
		Data:      p.Info(),
		Changes:   changes,
		Timestamp: ts,
	})
}

// Info builds the consolidated view with a deterministic member order.
func (p *Processor) Info() Info {
	members := make([]Member, 0, len(p.members))
	for _, m := range p.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserName < members[j].UserName })
	return Info{
		ClaimID:   p.claimID,
		Name:      p.name,
		Treasury:  p.treasury,
		Supplies:  p.supplies,
		TileCount: p.tileCount,
		Members:   members,
	}
}
