package spacetime

import (
	"strings"
	"testing"
)

func TestSubscriptionQueriesCoverAllTables(t *testing.T) {
	queries := SubscriptionQueries(7, 3)
	joined := strings.Join(queries, "\n")

	for _, table := range []string{
		"traveler_task_loop_timer",
		"traveler_task_state",
		"traveler_task_desc",
		"building_state",
		"building_nickname_state",
		"claim_member_state",
		"claim_state",
		"claim_local_state",
		"inventory_state",
		"passive_craft_state",
	} {
		if !strings.Contains(joined, table) {
			t.Fatalf("no query for table %s", table)
		}
	}
}

func TestSubscriptionQueriesScopeIDs(t *testing.T) {
	queries := SubscriptionQueries(7, 3)
	joined := strings.Join(queries, "\n")

	if !strings.Contains(joined, "player_entity_id = '7'") {
		t.Fatalf("player scope missing:\n%s", joined)
	}
	if !strings.Contains(joined, "claim_entity_id = '3'") {
		t.Fatalf("claim scope missing:\n%s", joined)
	}

	for _, q := range queries {
		if !strings.HasSuffix(q, ";") {
			t.Fatalf("query missing terminator: %q", q)
		}
	}
}

func TestOneOffQueryBuilders(t *testing.T) {
	if q := ClaimStateQuery(3); !strings.Contains(q, "claim_state") || !strings.Contains(q, "'3'") {
		t.Fatalf("ClaimStateQuery = %q", q)
	}
	if q := UserClaimsQuery(7); !strings.Contains(q, "claim_member_state") || !strings.Contains(q, "'7'") {
		t.Fatalf("UserClaimsQuery = %q", q)
	}
}
