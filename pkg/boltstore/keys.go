package boltstore

import "encoding/binary"

// Bucket name constants for bbolt storage.
var (
	bucketRecords = []byte("records")
	bucketOwners  = []byte("owners")
)

// idToKey converts a record id to an 8-byte big-endian key so records sort
// in insertion order.
func idToKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// keyToID converts an 8-byte big-endian key back to a record id.
func keyToID(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// ownerKey builds a secondary-index key "owner\x00<id>" so a cursor prefix
// scan yields one owner's records in insertion order.
func ownerKey(owner string, id uint64) []byte {
	key := make([]byte, 0, len(owner)+9)
	key = append(key, owner...)
	key = append(key, 0)
	return append(key, idToKey(id)...)
}

// ownerPrefix is the cursor prefix covering all of one owner's index keys.
func ownerPrefix(owner string) []byte {
	key := make([]byte, 0, len(owner)+1)
	key = append(key, owner...)
	return append(key, 0)
}
