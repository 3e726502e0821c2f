// Package crafting tracks passive craft operations for the active claim and
// consolidates them into the two-level display hierarchy.
package crafting

import (
	"bytes"
	"encoding/json"
	"fmt"

	"craftwatch/internal/protocol"
)

type Status int

const (
	StatusPreparing  Status = 0
	StatusInProgress Status = 1
	StatusReady      Status = 2
)

// Operation is one live passive craft row. Identity is EntityID; the
// processor keeps at most one instance per id.
type Operation struct {
	EntityID    uint64
	OwnerID     uint64
	RecipeID    int64
	BuildingID  uint64
	StartMicros int64
	Status      Status
	Slot        int
}

type BuildingRecord struct {
	EntityID              uint64
	BuildingDescriptionID int64
	ClaimID               uint64
}

type MemberRecord struct {
	ClaimID  uint64
	PlayerID uint64
	UserName string
}

// DecodeOperation accepts both row encodings: the object form used by
// subscription batches and the positional array form used on the live
// transaction path:
//
//	[entity_id, owner_id, recipe_id, building_id, [start_micros], [status, {}], slot]
func DecodeOperation(raw []byte) (Operation, error) {
	b := bytes.TrimSpace(raw)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return Operation{}, fmt.Errorf("craft row wrapper: %w", err)
		}
		b = bytes.TrimSpace([]byte(s))
	}
	if len(b) > 0 && b[0] == '[' {
		return decodeOperationArray(b)
	}
	return decodeOperationObject(b)
}

func decodeOperationObject(b []byte) (Operation, error) {
	var row struct {
		EntityID   uint64             `json:"entity_id"`
		OwnerID    uint64             `json:"owner_entity_id"`
		RecipeID   int64              `json:"recipe_id"`
		BuildingID uint64             `json:"building_entity_id"`
		Timestamp  protocol.Timestamp `json:"timestamp"`
		Status     statusField        `json:"status"`
		Slot       int                `json:"slot"`
	}
	if err := json.Unmarshal(b, &row); err != nil {
		return Operation{}, fmt.Errorf("craft row object: %w", err)
	}
	if row.EntityID == 0 {
		return Operation{}, fmt.Errorf("craft row object: missing entity_id")
	}
	return Operation{
		EntityID:    row.EntityID,
		OwnerID:     row.OwnerID,
		RecipeID:    row.RecipeID,
		BuildingID:  row.BuildingID,
		StartMicros: row.Timestamp.EpochMicros,
		Status:      Status(row.Status),
		Slot:        row.Slot,
	}, nil
}

func decodeOperationArray(b []byte) (Operation, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return Operation{}, fmt.Errorf("craft row array: %w", err)
	}
	if len(arr) < 7 {
		return Operation{}, fmt.Errorf("craft row array: want 7 elements, got %d", len(arr))
	}
	var op Operation
	if err := json.Unmarshal(arr[0], &op.EntityID); err != nil {
		return Operation{}, fmt.Errorf("craft row entity_id: %w", err)
	}
	if err := json.Unmarshal(arr[1], &op.OwnerID); err != nil {
		return Operation{}, fmt.Errorf("craft row owner_id: %w", err)
	}
	if err := json.Unmarshal(arr[2], &op.RecipeID); err != nil {
		return Operation{}, fmt.Errorf("craft row recipe_id: %w", err)
	}
	if err := json.Unmarshal(arr[3], &op.BuildingID); err != nil {
		return Operation{}, fmt.Errorf("craft row building_id: %w", err)
	}
	micros, err := decodeMicros(arr[4])
	if err != nil {
		return Operation{}, fmt.Errorf("craft row timestamp: %w", err)
	}
	op.StartMicros = micros
	var status statusField
	if err := json.Unmarshal(arr[5], &status); err != nil {
		return Operation{}, fmt.Errorf("craft row status: %w", err)
	}
	op.Status = Status(status)
	if err := json.Unmarshal(arr[6], &op.Slot); err != nil {
		return Operation{}, fmt.Errorf("craft row slot: %w", err)
	}
	return op, nil
}

// statusField decodes the wire status, which is either a bare code or a
// [code, {}] pair.
type statusField int

func (s *statusField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		if len(arr) == 0 {
			*s = statusField(StatusPreparing)
			return nil
		}
		b = arr[0]
	}
	var code int
	if err := json.Unmarshal(b, &code); err != nil {
		return err
	}
	*s = statusField(code)
	return nil
}

// decodeMicros accepts a bare integer, a one-element array, or a timestamp
// object.
func decodeMicros(raw json.RawMessage) (int64, error) {
	b := bytes.TrimSpace(raw)
	switch {
	case len(b) == 0 || string(b) == "null":
		return 0, nil
	case b[0] == '[':
		var arr []int64
		if err := json.Unmarshal(b, &arr); err != nil {
			return 0, err
		}
		if len(arr) == 0 {
			return 0, nil
		}
		return arr[0], nil
	case b[0] == '{':
		var ts protocol.Timestamp
		if err := json.Unmarshal(b, &ts); err != nil {
			return 0, err
		}
		return ts.EpochMicros, nil
	default:
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return 0, err
		}
		return n, nil
	}
}

func decodeBuilding(raw []byte) (BuildingRecord, error) {
	var row struct {
		EntityID              uint64 `json:"entity_id"`
		BuildingDescriptionID int64  `json:"building_description_id"`
		ClaimID               uint64 `json:"claim_entity_id"`
	}
	if err := protocol.DecodeRow(raw, &row); err != nil {
		return BuildingRecord{}, err
	}
	if row.EntityID == 0 {
		return BuildingRecord{}, fmt.Errorf("building row: missing entity_id")
	}
	return BuildingRecord{
		EntityID:              row.EntityID,
		BuildingDescriptionID: row.BuildingDescriptionID,
		ClaimID:               row.ClaimID,
	}, nil
}

func decodeNickname(raw []byte) (uint64, string, error) {
	var row struct {
		EntityID uint64 `json:"entity_id"`
		Nickname string `json:"nickname"`
	}
	if err := protocol.DecodeRow(raw, &row); err != nil {
		return 0, "", err
	}
	if row.EntityID == 0 || row.Nickname == "" {
		return 0, "", fmt.Errorf("nickname row: missing entity_id or nickname")
	}
	return row.EntityID, row.Nickname, nil
}

func decodeMember(raw []byte) (MemberRecord, error) {
	var row struct {
		ClaimID  uint64 `json:"claim_entity_id"`
		PlayerID uint64 `json:"player_entity_id"`
		UserName string `json:"user_name"`
	}
	if err := protocol.DecodeRow(raw, &row); err != nil {
		return MemberRecord{}, err
	}
	if row.PlayerID == 0 {
		return MemberRecord{}, fmt.Errorf("member row: missing player_entity_id")
	}
	return MemberRecord{ClaimID: row.ClaimID, PlayerID: row.PlayerID, UserName: row.UserName}, nil
}
