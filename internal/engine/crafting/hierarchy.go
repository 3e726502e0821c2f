package crafting

import (
	"fmt"
	"sort"
	"strings"
)

// Row is one crafted-item line derived from a single operation. Several
// rows collapse into one displayed child when they share a building and a
// remaining time.
type Row struct {
	ItemName         string
	Tier             int
	Quantity         float64
	Tag              string
	Crafter          string
	BuildingName     string
	RemainingTime    string
	RemainingSeconds float64
	EntityID         uint64
}

// Child is a consolidated (building, remaining time) display row.
type Child struct {
	Item          string   `json:"item"`
	Tier          int      `json:"tier"`
	Quantity      float64  `json:"quantity"`
	Tag           string   `json:"tag"`
	RemainingTime string   `json:"time_remaining"`
	Crafter       string   `json:"crafter"`
	BuildingName  string   `json:"building_name"`
	EntityIDs     []uint64 `json:"entity_ids"`
}

// Group is one item+crafter parent row.
type Group struct {
	DisplayKey    string  `json:"display_key"`
	Item          string  `json:"item"`
	Tier          int     `json:"tier"`
	Tag           string  `json:"tag"`
	Crafter       string  `json:"crafter"`
	TotalQuantity float64 `json:"total_quantity"`
	RemainingTime string  `json:"time_remaining"`
	BuildingName  string  `json:"building_name"`
	CompletedJobs int     `json:"completed_jobs"`
	TotalJobs     int     `json:"total_jobs"`
	Children      []Child `json:"operations"`
	Expandable    bool    `json:"is_expandable"`
}

type level2 struct {
	buildingName  string
	remainingTime string
	quantity      float64
	entityIDs     []uint64
}

type level1 struct {
	item      string
	crafter   string
	tier      int
	tag       string
	total     float64
	buildings map[string]bool
	types     map[string]bool
	children  map[string]*level2
	order     []string // child keys in first-seen order
}

// BuildHierarchy folds flat rows into the two-level display hierarchy:
// item+crafter parents over building/time children.
func BuildHierarchy(rows []Row) []Group {
	parents := make(map[string]*level1)
	var parentOrder []string

	for _, row := range rows {
		key := row.ItemName + "|" + row.Crafter
		p, ok := parents[key]
		if !ok {
			p = &level1{
				item:      row.ItemName,
				crafter:   row.Crafter,
				tier:      row.Tier,
				tag:       row.Tag,
				buildings: make(map[string]bool),
				types:     make(map[string]bool),
				children:  make(map[string]*level2),
			}
			parents[key] = p
			parentOrder = append(parentOrder, key)
		}
		p.total += row.Quantity
		p.buildings[row.BuildingName] = true
		p.types[buildingType(row.BuildingName)] = true

		childKey := row.BuildingName + "|" + row.RemainingTime
		c, ok := p.children[childKey]
		if !ok {
			c = &level2{buildingName: row.BuildingName, remainingTime: row.RemainingTime}
			p.children[childKey] = c
			p.order = append(p.order, childKey)
		}
		c.quantity += row.Quantity
		if row.EntityID != 0 {
			c.entityIDs = append(c.entityIDs, row.EntityID)
		}
	}

	crafterCount := make(map[string]int)
	for _, p := range parents {
		crafterCount[p.item]++
	}

	groups := make([]Group, 0, len(parents))
	for _, key := range parentOrder {
		p := parents[key]
		groups = append(groups, formatGroup(p, crafterCount[p.item] > 1))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := strings.ToLower(groups[i].Item), strings.ToLower(groups[j].Item)
		if a != b {
			return a < b
		}
		return groups[i].Crafter < groups[j].Crafter
	})
	return groups
}

func formatGroup(p *level1, multiCrafter bool) Group {
	times := make([]string, 0, len(p.order))
	completed := 0
	for _, key := range p.order {
		t := p.children[key].remainingTime
		times = append(times, t)
		if t == Ready {
			completed++
		}
	}

	parentTime := Ready
	active := 0
	for _, t := range times {
		if t != Ready {
			active++
		}
	}
	if active > 0 {
		parentTime = LongestActive(times)
		if active > 1 {
			// Several jobs still running; the parent value is only the
			// longest of them.
			parentTime = "~" + parentTime
		}
	}

	suffixes := buildingSuffixes(p.buildings)
	children := make([]Child, 0, len(p.order))
	for _, key := range p.order {
		c := p.children[key]
		name := c.buildingName
		if suffix, ok := suffixes[c.buildingName]; ok {
			name = suffix
		}
		children = append(children, Child{
			Item:          p.item,
			Tier:          p.tier,
			Quantity:      c.quantity,
			Tag:           p.tag,
			RemainingTime: c.remainingTime,
			Crafter:       p.crafter,
			BuildingName:  name,
			EntityIDs:     append([]uint64(nil), c.entityIDs...),
		})
	}
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].BuildingName != children[j].BuildingName {
			return children[i].BuildingName < children[j].BuildingName
		}
		si, _ := ParseRemaining(children[i].RemainingTime)
		sj, _ := ParseRemaining(children[j].RemainingTime)
		return si < sj
	})

	displayKey := p.item
	if multiCrafter {
		displayKey = p.item + "|" + p.crafter
	}

	return Group{
		DisplayKey:    displayKey,
		Item:          p.item,
		Tier:          p.tier,
		Tag:           p.tag,
		Crafter:       p.crafter,
		TotalQuantity: p.total,
		RemainingTime: parentTime,
		BuildingName:  buildingSummary(p.buildings, p.types),
		CompletedJobs: completed,
		TotalJobs:     len(p.order),
		Children:      children,
		Expandable:    len(p.order) > 1,
	}
}

// buildingSummary picks the parent row's building label: the lone building
// name, the shared type when all buildings are of one type, or a count.
func buildingSummary(buildings, types map[string]bool) string {
	if len(buildings) == 1 {
		for name := range buildings {
			return name
		}
	}
	if len(types) == 1 {
		for t := range types {
			return t
		}
	}
	return fmt.Sprintf("%d Buildings", len(buildings))
}

// buildingSuffixes assigns stable A, B, C... suffixes by alphabetical order
// of the distinct building names. Single-building parents get no suffix.
func buildingSuffixes(buildings map[string]bool) map[string]string {
	if len(buildings) <= 1 {
		return nil
	}
	names := make([]string, 0, len(buildings))
	for name := range buildings {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string]string, len(names))
	for i, name := range names {
		suffix := string(rune('A' + i))
		base := buildingType(name)
		if base+" "+suffix == name {
			out[name] = name
			continue
		}
		out[name] = base + " " + suffix
	}
	return out
}

// buildingType strips a trailing single-letter suffix: "Fine Smelter B"
// and "Fine Smelter" are the same type.
func buildingType(name string) string {
	idx := strings.LastIndex(name, " ")
	if idx <= 0 || idx != len(name)-2 {
		return name
	}
	last := name[len(name)-1]
	if last >= 'A' && last <= 'Z' {
		return name[:idx]
	}
	return name
}
