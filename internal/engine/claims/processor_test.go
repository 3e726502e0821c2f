package claims

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"craftwatch/internal/engine"
	"craftwatch/internal/protocol"
)

func newTestProcessor(t *testing.T) (*Processor, *engine.Queue) {
	t.Helper()
	queue := engine.NewQueue(64, nil)
	p := New(Config{Logger: log.New(io.Discard, "", 0), Queue: queue, ClaimID: 3})
	return p, queue
}

func change(table string, inserts, deletes []json.RawMessage) protocol.TableUpdate {
	return protocol.TableUpdate{
		TableName: table,
		Updates:   []protocol.RowSet{{Inserts: inserts, Deletes: deletes}},
	}
}

func drain(q *engine.Queue) []engine.Update {
	var out []engine.Update
	for {
		select {
		case u := <-q.Updates():
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestClaimStateScopedToClaim(t *testing.T) {
	p, queue := newTestProcessor(t)

	rows := change(protocol.TableClaimState, []json.RawMessage{
		[]byte(`{"entity_id":3,"name":"Riverside"}`),
		[]byte(`{"entity_id":4,"name":"Other Claim"}`),
	}, nil)
	if err := p.ProcessSubscription(rows, true); err != nil {
		t.Fatalf("subscription: %v", err)
	}
	drain(queue)

	if got := p.Info().Name; got != "Riverside" {
		t.Fatalf("name = %q, want Riverside", got)
	}
}

func TestClaimLocalState(t *testing.T) {
	p, queue := newTestProcessor(t)

	rows := change(protocol.TableClaimLocalState, []json.RawMessage{
		[]byte(`{"entity_id":3,"treasury":1500.5,"supplies":320,"num_tiles":48}`),
	}, nil)
	if err := p.ProcessTransaction(rows, "update_claim", time.Now()); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	updates := drain(queue)
	if len(updates) != 1 || updates[0].Type != "claim_info_update" {
		t.Fatalf("updates = %v", updates)
	}
	info := p.Info()
	if info.Treasury != 1500.5 || info.Supplies != 320 || info.TileCount != 48 {
		t.Fatalf("info = %+v", info)
	}
}

func TestMembersSortedAndRemovable(t *testing.T) {
	p, queue := newTestProcessor(t)

	rows := change(protocol.TableClaimMemberState, []json.RawMessage{
		[]byte(`{"claim_entity_id":3,"player_entity_id":7,"user_name":"carol","officer_permission":true}`),
		[]byte(`{"claim_entity_id":3,"player_entity_id":8,"user_name":"alice","co_owner_permission":true}`),
	}, nil)
	if err := p.ProcessSubscription(rows, true); err != nil {
		t.Fatalf("subscription: %v", err)
	}
	drain(queue)

	members := p.Info().Members
	if len(members) != 2 {
		t.Fatalf("members = %d", len(members))
	}
	if members[0].UserName != "alice" || members[1].UserName != "carol" {
		t.Fatalf("order = %v", members)
	}
	if !members[0].Permissions.CoOwner || !members[1].Permissions.Officer {
		t.Fatalf("permissions = %+v", members)
	}

	del := change(protocol.TableClaimMemberState, nil, []json.RawMessage{
		[]byte(`{"claim_entity_id":3,"player_entity_id":7,"user_name":"carol"}`),
	})
	if err := p.ProcessTransaction(del, "kick_member", time.Now()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if members := p.Info().Members; len(members) != 1 || members[0].UserName != "alice" {
		t.Fatalf("after removal = %v", members)
	}
}

func TestUnknownMemberDeleteIsNoop(t *testing.T) {
	p, queue := newTestProcessor(t)

	del := change(protocol.TableClaimMemberState, nil, []json.RawMessage{
		[]byte(`{"claim_entity_id":3,"player_entity_id":99,"user_name":"ghost"}`),
	})
	if err := p.ProcessTransaction(del, "kick_member", time.Now()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if updates := drain(queue); len(updates) != 0 {
		t.Fatalf("no-op delete pushed updates: %v", updates)
	}
}

func TestSetClaimIDAfterClear(t *testing.T) {
	p, queue := newTestProcessor(t)

	rows := change(protocol.TableClaimState, []json.RawMessage{
		[]byte(`{"entity_id":3,"name":"Riverside"}`),
	}, nil)
	if err := p.ProcessSubscription(rows, true); err != nil {
		t.Fatalf("subscription: %v", err)
	}
	drain(queue)

	p.ClearCache()
	p.SetClaimID(4)

	rows = change(protocol.TableClaimState, []json.RawMessage{
		[]byte(`{"entity_id":4,"name":"Hilltop"}`),
	}, nil)
	if err := p.ProcessSubscription(rows, false); err != nil {
		t.Fatalf("subscription: %v", err)
	}
	info := p.Info()
	if info.ClaimID != 4 || info.Name != "Hilltop" {
		t.Fatalf("after switch = %+v", info)
	}
}
