package crafting

import "testing"

func TestDecodeOperationArray(t *testing.T) {
	raw := []byte(`[101, 7, 55, 201, [1700000000000000], [1, {}], 2]`)
	op, err := DecodeOperation(raw)
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	if op.EntityID != 101 || op.OwnerID != 7 || op.RecipeID != 55 || op.BuildingID != 201 {
		t.Fatalf("ids = %+v", op)
	}
	if op.StartMicros != 1700000000000000 {
		t.Fatalf("start micros = %d", op.StartMicros)
	}
	if op.Status != StatusInProgress {
		t.Fatalf("status = %d, want in progress", op.Status)
	}
	if op.Slot != 2 {
		t.Fatalf("slot = %d", op.Slot)
	}
}

func TestDecodeOperationObject(t *testing.T) {
	raw := []byte(`{"entity_id":101,"owner_entity_id":7,"recipe_id":55,"building_entity_id":201,"timestamp":{"__timestamp_micros_since_unix_epoch__":1700000000000000},"status":[2,{}],"slot":0}`)
	op, err := DecodeOperation(raw)
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	if op.StartMicros != 1700000000000000 {
		t.Fatalf("start micros = %d", op.StartMicros)
	}
	if op.Status != StatusReady {
		t.Fatalf("status = %d, want ready", op.Status)
	}
}

func TestDecodeOperationStringWrapped(t *testing.T) {
	raw := []byte(`"{\"entity_id\":5,\"owner_entity_id\":1,\"recipe_id\":2,\"building_entity_id\":3,\"status\":1,\"slot\":0}"`)
	op, err := DecodeOperation(raw)
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	if op.EntityID != 5 || op.Status != StatusInProgress {
		t.Fatalf("op = %+v", op)
	}
}

func TestDecodeOperationMissingEntityID(t *testing.T) {
	if _, err := DecodeOperation([]byte(`{"owner_entity_id":1}`)); err == nil {
		t.Fatalf("expected error for missing entity_id")
	}
	if _, err := DecodeOperation([]byte(`[1, 2, 3]`)); err == nil {
		t.Fatalf("expected error for short array")
	}
}

func TestDecodeMicrosForms(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{`1700000000000000`, 1700000000000000},
		{`[1700000000000001]`, 1700000000000001},
		{`{"epoch_micros":1700000000000002}`, 1700000000000002},
		{`{"__timestamp_micros_since_unix_epoch__":1700000000000003}`, 1700000000000003},
		{`null`, 0},
		{`[]`, 0},
	}
	for _, tc := range cases {
		got, err := decodeMicros([]byte(tc.raw))
		if err != nil {
			t.Fatalf("decodeMicros(%s): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("decodeMicros(%s) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestDecodeSupportRows(t *testing.T) {
	b, err := decodeBuilding([]byte(`{"entity_id":9,"building_description_id":44,"claim_entity_id":3}`))
	if err != nil {
		t.Fatalf("decodeBuilding: %v", err)
	}
	if b.EntityID != 9 || b.BuildingDescriptionID != 44 || b.ClaimID != 3 {
		t.Fatalf("building = %+v", b)
	}

	id, nickname, err := decodeNickname([]byte(`{"entity_id":9,"nickname":"My Loom"}`))
	if err != nil || id != 9 || nickname != "My Loom" {
		t.Fatalf("decodeNickname = (%d, %q, %v)", id, nickname, err)
	}
	if _, _, err := decodeNickname([]byte(`{"entity_id":9}`)); err == nil {
		t.Fatalf("empty nickname should be rejected")
	}

	m, err := decodeMember([]byte(`{"claim_entity_id":3,"player_entity_id":7,"user_name":"alice"}`))
	if err != nil || m.PlayerID != 7 || m.UserName != "alice" {
		t.Fatalf("decodeMember = (%+v, %v)", m, err)
	}
}
