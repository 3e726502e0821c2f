package spacetime

import "fmt"

// SubscriptionQueries builds the full subscription set for one player in one
// claim. The server keeps every matching row live: the initial snapshot
// arrives as an InitialSubscription and every later change as a
// TransactionUpdate or SubscriptionUpdate.
func SubscriptionQueries(userID, claimID uint64) []string {
	return []string{
		"SELECT * FROM traveler_task_loop_timer;",
		fmt.Sprintf("SELECT * FROM traveler_task_state WHERE player_entity_id = '%d';", userID),
		fmt.Sprintf("SELECT * FROM building_state WHERE claim_entity_id = '%d';", claimID),
		fmt.Sprintf("SELECT * FROM claim_member_state WHERE claim_entity_id = '%d';", claimID),
		fmt.Sprintf("SELECT claim_state.* FROM claim_state "+
			"JOIN claim_member_state ON claim_state.entity_id = claim_member_state.claim_entity_id "+
			"WHERE claim_member_state.player_entity_id = '%d';", userID),
		fmt.Sprintf("SELECT claim_local_state.* FROM claim_local_state "+
			"JOIN claim_member_state ON claim_local_state.entity_id = claim_member_state.claim_entity_id "+
			"WHERE claim_member_state.player_entity_id = '%d';", userID),
		fmt.Sprintf("SELECT traveler_task_desc.* FROM traveler_task_desc "+
			"JOIN traveler_task_state ON traveler_task_state.task_id = traveler_task_desc.id "+
			"WHERE traveler_task_state.player_entity_id = '%d';", userID),
		fmt.Sprintf("SELECT building_nickname_state.* FROM building_nickname_state "+
			"JOIN building_state ON building_state.entity_id = building_nickname_state.entity_id "+
			"WHERE building_state.claim_entity_id = '%d';", claimID),
		fmt.Sprintf("SELECT inventory_state.* FROM inventory_state "+
			"JOIN building_state ON inventory_state.owner_entity_id = building_state.entity_id "+
			"WHERE building_state.claim_entity_id = '%d';", claimID),
		fmt.Sprintf("SELECT passive_craft_state.* FROM passive_craft_state "+
			"JOIN building_state ON passive_craft_state.building_entity_id = building_state.entity_id "+
			"WHERE building_state.claim_entity_id = '%d';", claimID),
	}
}

// ClaimStateQuery fetches one claim's metadata row outside the subscription.
func ClaimStateQuery(claimID uint64) string {
	return fmt.Sprintf("SELECT * FROM claim_state WHERE entity_id = '%d';", claimID)
}

// UserClaimsQuery lists every claim membership row for a player.
func UserClaimsQuery(userID uint64) string {
	return fmt.Sprintf("SELECT * FROM claim_member_state WHERE player_entity_id = '%d';", userID)
}
