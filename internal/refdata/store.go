package refdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// Store holds the loaded reference tables plus the lookup indexes built
// from them. Read-only after construction, so safe for concurrent use.
type Store struct {
	Items     map[string][]ItemDef // keyed by source table name
	Recipes   map[int64]RecipeDef
	Buildings map[int64]BuildingDef

	lookup *itemIndex
}

// Open reads every reference table from the sqlite cache at path. Each
// table stores one JSON document per row in an (id, data) pair. A missing
// table degrades to an empty set with a log entry; the engine still runs
// with partial reference data.
func Open(path string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open reference db: %w", err)
	}
	defer db.Close()

	s := &Store{
		Items:     make(map[string][]ItemDef, 3),
		Recipes:   make(map[int64]RecipeDef),
		Buildings: make(map[int64]BuildingDef),
	}

	for _, source := range []string{SourceResourceDesc, SourceItemDesc, SourceCargoDesc} {
		rows, err := loadTable(db, source)
		if err != nil {
			logger.Printf("refdata: skipping %s: %v", source, err)
			continue
		}
		defs := make([]ItemDef, 0, len(rows))
		for _, raw := range rows {
			var def ItemDef
			if err := json.Unmarshal(raw, &def); err != nil {
				logger.Printf("refdata: bad %s row skipped: %v", source, err)
				continue
			}
			defs = append(defs, def)
		}
		s.Items[source] = defs
	}

	recipeRows, err := loadTable(db, "crafting_recipe_desc")
	if err != nil {
		logger.Printf("refdata: skipping crafting_recipe_desc: %v", err)
	}
	for _, raw := range recipeRows {
		var def RecipeDef
		if err := json.Unmarshal(raw, &def); err != nil {
			logger.Printf("refdata: bad recipe row skipped: %v", err)
			continue
		}
		s.Recipes[def.ID] = def
	}

	buildingRows, err := loadTable(db, "building_desc")
	if err != nil {
		logger.Printf("refdata: skipping building_desc: %v", err)
	}
	for _, raw := range buildingRows {
		var def BuildingDef
		if err := json.Unmarshal(raw, &def); err != nil {
			logger.Printf("refdata: bad building row skipped: %v", err)
			continue
		}
		s.Buildings[def.ID] = def
	}

	s.lookup = buildItemIndex(s.Items)
	logger.Printf("refdata: loaded %d items, %d recipes, %d buildings",
		s.lookup.size(), len(s.Recipes), len(s.Buildings))
	return s, nil
}

// NewStore builds a store from in-memory definitions. Used by tests and by
// callers that source reference data elsewhere.
func NewStore(items map[string][]ItemDef, recipes []RecipeDef, buildings []BuildingDef) *Store {
	s := &Store{
		Items:     make(map[string][]ItemDef, len(items)),
		Recipes:   make(map[int64]RecipeDef, len(recipes)),
		Buildings: make(map[int64]BuildingDef, len(buildings)),
	}
	for source, defs := range items {
		s.Items[source] = append([]ItemDef(nil), defs...)
	}
	for _, r := range recipes {
		s.Recipes[r.ID] = r
	}
	for _, b := range buildings {
		s.Buildings[b.ID] = b
	}
	s.lookup = buildItemIndex(s.Items)
	return s
}

func loadTable(db *sql.DB, table string) ([]json.RawMessage, error) {
	rows, err := db.Query(`SELECT data FROM "` + table + `"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(data))
	}
	return out, rows.Err()
}
