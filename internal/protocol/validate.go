package protocol

import (
	"log"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Row shapes for the tables we index. Validation is advisory: a failing row
// is counted and logged at most once per table, never rejected.
var tableSchemas = map[string]string{
	TablePassiveCraftState: `{
	  "type": "object",
	  "required": ["entity_id", "owner_entity_id", "recipe_id", "building_entity_id"],
	  "properties": {
	    "entity_id": {"type": "integer"},
	    "owner_entity_id": {"type": "integer"},
	    "recipe_id": {"type": "integer"},
	    "building_entity_id": {"type": "integer"},
	    "slot": {"type": "integer"}
	  }
	}`,
	TableBuildingState: `{
	  "type": "object",
	  "required": ["entity_id", "building_description_id"],
	  "properties": {
	    "entity_id": {"type": "integer"},
	    "building_description_id": {"type": "integer"},
	    "claim_entity_id": {"type": "integer"}
	  }
	}`,
	TableBuildingNicknameState: `{
	  "type": "object",
	  "required": ["entity_id", "nickname"],
	  "properties": {
	    "entity_id": {"type": "integer"},
	    "nickname": {"type": "string"}
	  }
	}`,
	TableClaimMemberState: `{
	  "type": "object",
	  "required": ["claim_entity_id", "player_entity_id", "user_name"],
	  "properties": {
	    "claim_entity_id": {"type": "integer"},
	    "player_entity_id": {"type": "integer"},
	    "user_name": {"type": "string"}
	  }
	}`,
	TableInventoryState: `{
	  "type": "object",
	  "required": ["entity_id", "owner_entity_id"],
	  "properties": {
	    "entity_id": {"type": "integer"},
	    "owner_entity_id": {"type": "integer"},
	    "pockets": {"type": "array"}
	  }
	}`,
}

// Validator checks object rows against the known table shapes and keeps
// pass/fail counters for observability.
type Validator struct {
	schemas map[string]*jsonschema.Schema
	logger  *log.Logger

	passed   atomic.Uint64
	failed   atomic.Uint64
	reported map[string]bool
}

func NewValidator(logger *log.Logger) (*Validator, error) {
	v := &Validator{
		schemas:  make(map[string]*jsonschema.Schema, len(tableSchemas)),
		logger:   logger,
		reported: make(map[string]bool),
	}
	for table, src := range tableSchemas {
		s, err := jsonschema.CompileString(table+".schema.json", src)
		if err != nil {
			return nil, err
		}
		v.schemas[table] = s
	}
	return v, nil
}

// Check validates one row for table. Positional-array rows (the live
// transaction wire form) are not covered by the object schemas and pass
// through uncounted.
func (v *Validator) Check(table string, raw []byte) {
	s, ok := v.schemas[table]
	if !ok {
		return
	}
	var row any
	if err := DecodeRow(raw, &row); err != nil {
		v.failed.Add(1)
		return
	}
	if _, isObj := row.(map[string]any); !isObj {
		return
	}
	if err := s.Validate(row); err != nil {
		v.failed.Add(1)
		if v.logger != nil && !v.reported[table] {
			v.reported[table] = true
			v.logger.Printf("schema: row for %s failed validation (first occurrence): %v", table, err)
		}
		return
	}
	v.passed.Add(1)
}

func (v *Validator) Stats() (passed, failed uint64) {
	return v.passed.Load(), v.failed.Load()
}

// RawRowCount is a helper for logging batch sizes without decoding rows.
func RawRowCount(sets []RowSet) (inserts, deletes int) {
	for _, s := range sets {
		inserts += len(s.Inserts)
		deletes += len(s.Deletes)
	}
	return
}
