package chain

import (
	"github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/crypto"
	"github.com/idsov/recordstore/src/record"
)

// Entry is an immutable serialized payload identified by the hash of its
// bytes. The hash is computed on construction so that a cached Entry can be
// read from several goroutines.
type Entry struct {
	bytes []byte
	hash  []byte
	hex   string
}

// NewEntry wraps serialized bytes. The slice is copied.
func NewEntry(data []byte) *Entry {
	b := make([]byte, len(data))
	copy(b, data)
	return newEntry(b)
}

func newEntry(data []byte) *Entry {
	hash := crypto.EntryHash(data)
	return &Entry{
		bytes: data,
		hash:  hash,
		hex:   common.EncodeToString(hash),
	}
}

// NewEntryFromPayload serializes a payload with the record codec.
func NewEntryFromPayload(payload interface{}) (*Entry, error) {
	data, err := record.Marshal(payload)
	if err != nil {
		return nil, common.NewStoreErrWithCause("Entry", common.Serialization, "", err)
	}
	return newEntry(data), nil
}

// Bytes returns the serialized payload.
func (e *Entry) Bytes() []byte {
	return e.bytes
}

// Hash returns the entry-domain BLAKE3 hash of the bytes.
func (e *Entry) Hash() []byte {
	return e.hash
}

// Hex returns the hex string representation of the Entry's hash.
func (e *Entry) Hex() string {
	return e.hex
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v interface{}) error {
	if err := record.Unmarshal(e.bytes, v); err != nil {
		return common.NewStoreErrWithCause("Entry", common.Serialization, e.Hex(), err)
	}
	return nil
}
