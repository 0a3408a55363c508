package species

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// NeverEvolves is the evolution level assigned to species with a blank
// evo_level column: no reachable level ever triggers an evolution.
const NeverEvolves = 99999

// NoTarget marks an empty evolution target column.
const NoTarget = -1

// Data is the static description of one species, loaded once at startup.
type Data struct {
	ID         int
	Name       string
	Types      []string
	EvoLevel   int
	EvoTargets []int
}

// Catalog is a read-only species table keyed by numeric identity and by
// display name. It is safe for concurrent use after construction.
type Catalog struct {
	byID   map[int]Data
	byName map[string]int
	ids    []int
}

// New builds a catalog from already-parsed entries. Used by tests and by
// LoadCSV.
func New(entries []Data) *Catalog {
	c := &Catalog{
		byID:   make(map[int]Data, len(entries)),
		byName: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		c.byID[e.ID] = e
		c.byName[e.Name] = e.ID
		c.ids = append(c.ids, e.ID)
	}
	sort.Ints(c.ids)
	return c
}

// LoadCSV reads a species table from a CSV file with rows of the form
//
//	id,name,types,evo_level,evo_targets
//
// where types are space-separated, a blank evo_level means the species never
// evolves, and evo_targets are slash-separated ids (blank entries encode as
// NoTarget).
func LoadCSV(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("species: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("species: parse %s: %w", path, err)
	}

	var entries []Data
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("species: %s row %d: want 5 columns, got %d", path, i+1, len(row))
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("species: %s row %d: bad id %q", path, i+1, row[0])
		}
		evoLevel := NeverEvolves
		if s := strings.TrimSpace(row[3]); s != "" {
			evoLevel, err = strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("species: %s row %d: bad evo_level %q", path, i+1, row[3])
			}
		}
		var targets []int
		for _, t := range strings.Split(row[4], "/") {
			t = strings.TrimSpace(t)
			if t == "" {
				targets = append(targets, NoTarget)
				continue
			}
			n, err := strconv.Atoi(t)
			if err != nil {
				return nil, fmt.Errorf("species: %s row %d: bad evo_target %q", path, i+1, t)
			}
			targets = append(targets, n)
		}
		entries = append(entries, Data{
			ID:         id,
			Name:       strings.TrimSpace(row[1]),
			Types:      strings.Fields(row[2]),
			EvoLevel:   evoLevel,
			EvoTargets: targets,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("species: %s contains no rows", path)
	}
	return New(entries), nil
}

// ByID looks up a species by numeric identity.
func (c *Catalog) ByID(id int) (Data, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// ByName looks up a species by exact display name.
func (c *Catalog) ByName(name string) (Data, bool) {
	id, ok := c.byName[name]
	if !ok {
		return Data{}, false
	}
	return c.byID[id], true
}

// RandomID picks a species identity uniformly among all known species.
func (c *Catalog) RandomID() int {
	return c.ids[rand.Intn(len(c.ids))]
}

// Len returns the number of known species.
func (c *Catalog) Len() int { return len(c.ids) }

// Suggest returns the catalog name closest to the given misspelled name, or
// "" when nothing is within edit distance 3. Used to soften NotFound replies.
func (c *Catalog) Suggest(name string) string {
	best := ""
	bestDist := 4
	for candidate := range c.byName {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(candidate))
		if d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

// ImageURL returns the CDN artwork URL for a species identity.
func ImageURL(id int) string {
	return fmt.Sprintf("https://assets.pokemon.com/assets/cms2/img/pokedex/full/%03d.png", id)
}
