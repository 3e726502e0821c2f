package protocol

// Table names served by the remote game database that this engine
// subscribes to.
const (
	TablePassiveCraftState     = "passive_craft_state"
	TableBuildingState         = "building_state"
	TableBuildingNicknameState = "building_nickname_state"
	TableClaimMemberState      = "claim_member_state"

	TableInventoryState = "inventory_state"

	TableClaimState      = "claim_state"
	TableClaimLocalState = "claim_local_state"

	TableTravelerTaskState     = "traveler_task_state"
	TableTravelerTaskDesc      = "traveler_task_desc"
	TablePlayerState           = "player_state"
	TableTravelerTaskLoopTimer = "traveler_task_loop_timer"
)
