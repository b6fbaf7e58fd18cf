// Package catalog resolves opaque entity ids into display labels using a
// static id->name table loaded once at startup. The catalog is allowed to be
// incomplete relative to the planning service's live data; unknown ids simply
// resolve to themselves. Workflow payloads always carry raw ids — resolution
// happens only at presentation time.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Kind selects one of the three entity tables.
type Kind int

const (
	KindPlace Kind = iota
	KindLodging
	KindDining
)

// WireName returns the kind's name on the planning service wire.
func (k Kind) WireName() string {
	switch k {
	case KindPlace:
		return "poi"
	case KindLodging:
		return "hotel"
	case KindDining:
		return "restaurant"
	}
	return "unknown"
}

func (k Kind) String() string {
	switch k {
	case KindPlace:
		return "place"
	case KindLodging:
		return "lodging"
	case KindDining:
		return "dining"
	}
	return "unknown"
}

// Kinds lists all entity kinds in a stable order.
var Kinds = []Kind{KindPlace, KindLodging, KindDining}

// Seeds holds the three id->name tables before they are frozen into a
// Catalog. Callers may overwrite names (e.g. from the remote lookup endpoint)
// between loading and construction; after New the data is immutable.
type Seeds struct {
	Places  map[string]string
	Lodging map[string]string
	Dining  map[string]string
}

// Table returns the map for a kind. The returned map is the live one; only
// use before New.
func (s *Seeds) Table(k Kind) map[string]string {
	switch k {
	case KindPlace:
		return s.Places
	case KindLodging:
		return s.Lodging
	case KindDining:
		return s.Dining
	}
	return nil
}

// IDs returns the sorted ids of a kind's table.
func (s *Seeds) IDs(k Kind) []string {
	t := s.Table(k)
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Catalog is the frozen label table. Read-only after construction, so it is
// safe to share without locking.
type Catalog struct {
	names [3]map[string]string
}

// New freezes seeds into a Catalog. The seed maps are copied.
func New(s Seeds) *Catalog {
	c := &Catalog{}
	for _, k := range Kinds {
		m := make(map[string]string, len(s.Table(k)))
		for id, name := range s.Table(k) {
			m[id] = name
		}
		c.names[k] = m
	}
	return c
}

// LabelFor resolves an id for display. With showNames false it is the
// identity function. With showNames true it returns "<name> (<id>)" for known
// ids and the bare id otherwise — an unknown id is never an error.
func (c *Catalog) LabelFor(k Kind, id string, showNames bool) string {
	if !showNames {
		return id
	}
	name, ok := c.names[k][id]
	if !ok || name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

// Size returns the number of entries for a kind.
func (c *Catalog) Size(k Kind) int {
	return len(c.names[k])
}

type seedEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var seedFiles = map[Kind]string{
	KindPlace:   "pois.json",
	KindLodging: "hotels.json",
	KindDining:  "restaurants.json",
}

//go:embed seeds/*.json
var embeddedSeeds embed.FS

// LoadSeeds reads the three seed files (pois.json, hotels.json,
// restaurants.json) from dir. All three must parse; on any failure the caller
// should fall back to EmbeddedSeeds.
func LoadSeeds(dir string) (Seeds, error) {
	s := Seeds{}
	for _, k := range Kinds {
		data, err := os.ReadFile(filepath.Join(dir, seedFiles[k]))
		if err != nil {
			return Seeds{}, fmt.Errorf("read %s seeds: %w", k, err)
		}
		table, err := parseSeedTable(data)
		if err != nil {
			return Seeds{}, fmt.Errorf("parse %s seeds: %w", k, err)
		}
		setTable(&s, k, table)
	}
	return s, nil
}

// EmbeddedSeeds returns the built-in Pittsburgh seed tables.
func EmbeddedSeeds() Seeds {
	s := Seeds{}
	for _, k := range Kinds {
		data, err := embeddedSeeds.ReadFile("seeds/" + seedFiles[k])
		if err != nil {
			panic(fmt.Sprintf("embedded %s seeds missing: %v", k, err))
		}
		table, err := parseSeedTable(data)
		if err != nil {
			panic(fmt.Sprintf("embedded %s seeds invalid: %v", k, err))
		}
		setTable(&s, k, table)
	}
	return s
}

func parseSeedTable(data []byte) (map[string]string, error) {
	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	table := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		table[e.ID] = e.Name
	}
	return table, nil
}

func setTable(s *Seeds, k Kind, table map[string]string) {
	switch k {
	case KindPlace:
		s.Places = table
	case KindLodging:
		s.Lodging = table
	case KindDining:
		s.Dining = table
	}
}
