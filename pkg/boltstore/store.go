package boltstore

import (
	"bytes"
	"errors"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/mosspond/wildspawn/pkg/critter"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Store persists collection records in bbolt. Every operation runs in a
// single bbolt transaction, which gives record-granularity atomicity: a
// mutation is either fully visible to other operations or not at all.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketOwners} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Insert assigns the record a fresh id and persists it together with its
// owner-index entry.
func (s *Store) Insert(rec *critter.Record) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		id, err := records.NextSequence()
		if err != nil {
			return fmt.Errorf("boltstore: next sequence: %w", err)
		}
		rec.ID = id
		data, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("boltstore: encode record #%d: %w", rec.ID, err)
		}
		if err := records.Put(idToKey(id), data); err != nil {
			return err
		}
		return tx.Bucket(bucketOwners).Put(ownerKey(rec.Owner, id), idToKey(id))
	})
}

// Get loads a single record by id.
func (s *Store) Get(id uint64) (*critter.Record, error) {
	var rec *critter.Record
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get(idToKey(id))
		if data == nil {
			return fmt.Errorf("boltstore: record #%d: %w", id, ErrNotFound)
		}
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	return rec, err
}

// QueryByOwner returns one owner's records in insertion order. Pass
// critter.Anywhere to span both locations.
func (s *Store) QueryByOwner(owner string, loc critter.Location) ([]*critter.Record, error) {
	var out []*critter.Record
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return s.scanOwner(tx, owner, func(rec *critter.Record) (bool, error) {
			if loc == critter.Anywhere || rec.Storage == loc {
				out = append(out, rec)
			}
			return true, nil
		})
	})
	return out, err
}

// CountByOwner counts one owner's records at a location.
func (s *Store) CountByOwner(owner string, loc critter.Location) (int, error) {
	count := 0
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return s.scanOwner(tx, owner, func(rec *critter.Record) (bool, error) {
			if loc == critter.Anywhere || rec.Storage == loc {
				count++
			}
			return true, nil
		})
	})
	return count, err
}

// FindByOwnerAndName returns the owner's first record (insertion order) with
// the given display name at the given location, or ErrNotFound.
func (s *Store) FindByOwnerAndName(owner, name string, loc critter.Location) (*critter.Record, error) {
	var found *critter.Record
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return s.scanOwner(tx, owner, func(rec *critter.Record) (bool, error) {
			if rec.Name == name && (loc == critter.Anywhere || rec.Storage == loc) {
				found = rec
				return false, nil
			}
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("boltstore: %s owned by %s in %s: %w", name, owner, loc, ErrNotFound)
	}
	return found, nil
}

// UpdateLocation moves a record between team and box.
func (s *Store) UpdateLocation(id uint64, loc critter.Location) error {
	return s.Update(id, func(rec *critter.Record) error {
		rec.Storage = loc
		return nil
	})
}

// Update applies fn to a record inside a single write transaction
// (read-modify-write). Returning an error from fn aborts the transaction.
func (s *Store) Update(id uint64, fn func(rec *critter.Record) error) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		data := records.Get(idToKey(id))
		if data == nil {
			return fmt.Errorf("boltstore: record #%d: %w", id, ErrNotFound)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return fmt.Errorf("boltstore: decode record #%d: %w", id, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
		out, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("boltstore: encode record #%d: %w", id, err)
		}
		return records.Put(idToKey(id), out)
	})
}

// ReassignPair commits a trade: both records change owner and land in the
// new owner's box, in one transaction. If either record is missing the whole
// transaction aborts with ErrNotFound and neither side changes.
func (s *Store) ReassignPair(aID uint64, aNewOwner string, bID uint64, bNewOwner string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := s.reassign(tx, aID, aNewOwner); err != nil {
			return err
		}
		return s.reassign(tx, bID, bNewOwner)
	})
}

// reassign rewrites one record's owner and owner-index entry within tx.
func (s *Store) reassign(tx *bbolt.Tx, id uint64, newOwner string) error {
	records := tx.Bucket(bucketRecords)
	data := records.Get(idToKey(id))
	if data == nil {
		return fmt.Errorf("boltstore: record #%d: %w", id, ErrNotFound)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return fmt.Errorf("boltstore: decode record #%d: %w", id, err)
	}

	owners := tx.Bucket(bucketOwners)
	if err := owners.Delete(ownerKey(rec.Owner, id)); err != nil {
		return err
	}
	rec.Owner = newOwner
	rec.Storage = critter.Box
	out, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("boltstore: encode record #%d: %w", id, err)
	}
	if err := records.Put(idToKey(id), out); err != nil {
		return err
	}
	return owners.Put(ownerKey(newOwner, id), idToKey(id))
}

// Len returns the total number of stored records.
func (s *Store) Len() int {
	n := 0
	s.bolt.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n
}

// scanOwner walks one owner's index entries in insertion order, decoding
// each record and passing it to fn. fn returns false to stop early.
func (s *Store) scanOwner(tx *bbolt.Tx, owner string, fn func(rec *critter.Record) (bool, error)) error {
	records := tx.Bucket(bucketRecords)
	c := tx.Bucket(bucketOwners).Cursor()
	prefix := ownerPrefix(owner)
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		data := records.Get(v)
		if data == nil {
			continue
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return fmt.Errorf("boltstore: decode record #%d: %w", keyToID(v), err)
		}
		more, err := fn(rec)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}
