package critter

import (
	"errors"
	"fmt"
	"math"

	"github.com/mosspond/wildspawn/pkg/species"
)

// ErrNoSuchSpecies is returned when a spawn request names an unknown species.
var ErrNoSuchSpecies = errors.New("no such species")

// Location is where a record lives in its owner's collection.
type Location int

const (
	// Team is the active roster, capacity-bounded.
	Team Location = iota
	// Box is the unbounded overflow storage.
	Box
)

// Anywhere is a query wildcard accepted by store lookups; records never
// carry it.
const Anywhere Location = -1

// String returns a human-readable location name.
func (l Location) String() string {
	switch l {
	case Team:
		return "team"
	case Box:
		return "box"
	default:
		return "anywhere"
	}
}

// Record is one user-owned creature instance. The zero ID means the record
// has not been inserted into a store yet.
type Record struct {
	ID        uint64
	Owner     string
	SpeciesID int
	Name      string
	Exp       int
	Level     int
	Storage   Location
}

// Spawn creates a fresh record of the given species identity.
func Spawn(cat *species.Catalog, id int) (*Record, error) {
	data, ok := cat.ByID(id)
	if !ok {
		return nil, fmt.Errorf("critter: species #%d: %w", id, ErrNoSuchSpecies)
	}
	return &Record{
		SpeciesID: id,
		Name:      data.Name,
		Exp:       1,
		Level:     1,
		Storage:   Box,
	}, nil
}

// SpawnRandom creates a fresh record of a uniformly chosen species.
func SpawnRandom(cat *species.Catalog) *Record {
	rec, _ := Spawn(cat, cat.RandomID())
	return rec
}

// SpawnByName creates a fresh record by exact display-name match.
func SpawnByName(cat *species.Catalog, name string) (*Record, error) {
	data, ok := cat.ByName(name)
	if !ok {
		return nil, fmt.Errorf("critter: species %q: %w", name, ErrNoSuchSpecies)
	}
	return Spawn(cat, data.ID)
}

// LevelForExp derives a level from accumulated experience.
func LevelForExp(exp int) int {
	return int(math.Cbrt(1.25 * float64(exp)))
}

// AddExperience accumulates experience and recomputes the level. The level
// never decreases. When the new level reaches the species' evolution
// threshold, the record takes the first evolution target's identity and
// name. At most one evolution is applied per call, even when a single jump
// crosses several thresholds. Returns true when the record evolved.
func (r *Record) AddExperience(cat *species.Catalog, amount int) bool {
	if amount <= 0 {
		return false
	}
	r.Exp += amount
	target := LevelForExp(r.Exp)
	if target <= r.Level {
		return false
	}
	r.Level = target

	data, ok := cat.ByID(r.SpeciesID)
	if !ok || target < data.EvoLevel || len(data.EvoTargets) == 0 {
		return false
	}
	next := data.EvoTargets[0]
	evolved, ok := cat.ByID(next)
	if !ok {
		return false
	}
	r.SpeciesID = evolved.ID
	r.Name = evolved.Name
	return true
}
