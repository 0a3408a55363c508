// Package inventory layers the capacity and consistency rules on top of the
// record store. Mutations on the same owner are serialized through a
// per-owner mutex; mutations on different owners never contend.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mosspond/wildspawn/pkg/boltstore"
	"github.com/mosspond/wildspawn/pkg/critter"
	"github.com/mosspond/wildspawn/pkg/species"
)

// DefaultTeamCapacity is the active-roster bound.
const DefaultTeamCapacity = 6

var (
	// ErrNotFound aliases the store sentinel so callers match either layer.
	ErrNotFound = boltstore.ErrNotFound
	// ErrTeamFull is returned when a transfer into the team would exceed capacity.
	ErrTeamFull = errors.New("team is full")
	// ErrAborted is returned when trade finalize re-validation fails.
	ErrAborted = errors.New("trade aborted")
)

// Rules applies the inventory mutation rules.
type Rules struct {
	store    *boltstore.Store
	capacity int

	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

// NewRules creates the rules layer. capacity <= 0 selects the default.
func NewRules(store *boltstore.Store, capacity int) *Rules {
	if capacity <= 0 {
		capacity = DefaultTeamCapacity
	}
	return &Rules{
		store:    store,
		capacity: capacity,
		owners:   make(map[string]*sync.Mutex),
	}
}

// Capacity returns the team capacity bound.
func (r *Rules) Capacity() int { return r.capacity }

// ownerMu returns the mutex serializing one owner's mutations.
func (r *Rules) ownerMu(owner string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.owners[owner]
	if !ok {
		m = &sync.Mutex{}
		r.owners[owner] = m
	}
	return m
}

// Catch inserts a freshly caught record for its owner. It lands in the team
// when there is room, otherwise in the box. Returns where it went.
func (r *Rules) Catch(rec *critter.Record) (critter.Location, error) {
	if rec.Owner == "" {
		return critter.Box, fmt.Errorf("inventory: catch: record has no owner")
	}
	mu := r.ownerMu(rec.Owner)
	mu.Lock()
	defer mu.Unlock()

	count, err := r.store.CountByOwner(rec.Owner, critter.Team)
	if err != nil {
		return critter.Box, fmt.Errorf("inventory: catch: %w", err)
	}
	if count < r.capacity {
		rec.Storage = critter.Team
	} else {
		rec.Storage = critter.Box
	}
	if err := r.store.Insert(rec); err != nil {
		return critter.Box, fmt.Errorf("inventory: catch: %w", err)
	}
	return rec.Storage, nil
}

// Deposit moves a team record matching the name into the box.
func (r *Rules) Deposit(owner, name string) (*critter.Record, error) {
	mu := r.ownerMu(owner)
	mu.Lock()
	defer mu.Unlock()

	rec, err := r.store.FindByOwnerAndName(owner, name, critter.Team)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpdateLocation(rec.ID, critter.Box); err != nil {
		return nil, fmt.Errorf("inventory: deposit %s: %w", name, err)
	}
	rec.Storage = critter.Box
	return rec, nil
}

// Withdraw moves a box record matching the name into the team. Fails with
// ErrTeamFull before touching the box when the team is at capacity.
func (r *Rules) Withdraw(owner, name string) (*critter.Record, error) {
	mu := r.ownerMu(owner)
	mu.Lock()
	defer mu.Unlock()

	count, err := r.store.CountByOwner(owner, critter.Team)
	if err != nil {
		return nil, fmt.Errorf("inventory: withdraw %s: %w", name, err)
	}
	if count >= r.capacity {
		return nil, ErrTeamFull
	}
	rec, err := r.store.FindByOwnerAndName(owner, name, critter.Box)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpdateLocation(rec.ID, critter.Team); err != nil {
		return nil, fmt.Errorf("inventory: withdraw %s: %w", name, err)
	}
	rec.Storage = critter.Team
	return rec, nil
}

// Trade finalizes a confirmed trade. Both sides are re-validated under the
// current state: each party must still hold a team record with the agreed
// name. On success both records are reassigned and land in the new owners'
// boxes atomically; on any failure nothing changes and ErrAborted is
// returned.
func (r *Rules) Trade(seller, sellerName, buyer, buyerName string) (*critter.Record, *critter.Record, error) {
	if seller == buyer {
		return nil, nil, fmt.Errorf("inventory: %w: cannot trade with yourself", ErrAborted)
	}
	// Lock both owners in a stable order to avoid deadlock with a
	// concurrent reverse trade.
	locks := []string{seller, buyer}
	sort.Strings(locks)
	for _, owner := range locks {
		mu := r.ownerMu(owner)
		mu.Lock()
		defer mu.Unlock()
	}

	sRec, err := r.store.FindByOwnerAndName(seller, sellerName, critter.Team)
	if err != nil {
		return nil, nil, fmt.Errorf("inventory: %w: %s no longer has %s", ErrAborted, seller, sellerName)
	}
	bRec, err := r.store.FindByOwnerAndName(buyer, buyerName, critter.Team)
	if err != nil {
		return nil, nil, fmt.Errorf("inventory: %w: %s no longer has %s", ErrAborted, buyer, buyerName)
	}
	if err := r.store.ReassignPair(sRec.ID, buyer, bRec.ID, seller); err != nil {
		return nil, nil, fmt.Errorf("inventory: %w: %v", ErrAborted, err)
	}
	sRec.Owner, sRec.Storage = buyer, critter.Box
	bRec.Owner, bRec.Storage = seller, critter.Box
	return sRec, bRec, nil
}

// Team returns the owner's team in insertion order.
func (r *Rules) Team(owner string) ([]*critter.Record, error) {
	return r.store.QueryByOwner(owner, critter.Team)
}

// Box returns the owner's box in insertion order.
func (r *Rules) Box(owner string) ([]*critter.Record, error) {
	return r.store.QueryByOwner(owner, critter.Box)
}

// AwardTeamExperience grants experience to every team member, applying
// level-ups and evolutions record by record. Returns the updated records.
func (r *Rules) AwardTeamExperience(cat *species.Catalog, owner string, amount int) ([]*critter.Record, error) {
	mu := r.ownerMu(owner)
	mu.Lock()
	defer mu.Unlock()

	team, err := r.store.QueryByOwner(owner, critter.Team)
	if err != nil {
		return nil, fmt.Errorf("inventory: award experience: %w", err)
	}
	if amount <= 0 {
		return team, nil
	}
	updated := make([]*critter.Record, 0, len(team))
	for _, rec := range team {
		var after *critter.Record
		err := r.store.Update(rec.ID, func(cur *critter.Record) error {
			cur.AddExperience(cat, amount)
			after = cur
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("inventory: award experience to #%d: %w", rec.ID, err)
		}
		updated = append(updated, after)
	}
	return updated, nil
}
