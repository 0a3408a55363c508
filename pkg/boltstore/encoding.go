package boltstore

import (
	"bytes"
	"encoding/gob"

	"github.com/mosspond/wildspawn/pkg/critter"
)

func init() {
	gob.Register(critter.Record{})
}

// encodeRecord serializes a Record to bytes using gob.
func encodeRecord(rec *critter.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRecord deserializes bytes back into a Record.
func decodeRecord(data []byte) (*critter.Record, error) {
	var rec critter.Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
