package keys

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Keyspace partitions keys into independently ordered sub-collections
// within one store. Keyspaces are totally ordered and occupy the
// most-significant position of the encoded key.
type Keyspace uint64

const (
	// Queue holds journal entries: one record per live payload.
	Queue Keyspace = iota
	// Chunk holds the co-located chunk collection.
	Chunk
)

// EncodedLen is the exact width of every encoded key.
const EncodedLen = 16

// ErrMalformedKey reports a stored key that does not decode to the
// expected fixed width. It indicates external corruption of the store.
var ErrMalformedKey = errors.New("keys: malformed key")

// Key identifies one record: a keyspace and a 64-bit sequence id
// monotonically increasing within that keyspace.
type Key struct {
	Space Keyspace
	ID    uint64
}

// Encode returns the 16-byte big-endian representation of k.
func (k Key) Encode() []byte {
	b := make([]byte, EncodedLen)
	binary.BigEndian.PutUint64(b[0:8], uint64(k.Space))
	binary.BigEndian.PutUint64(b[8:16], k.ID)
	return b
}

// Decode parses an encoded key, rejecting any input that is not exactly
// EncodedLen bytes with ErrMalformedKey.
func Decode(b []byte) (Key, error) {
	if len(b) != EncodedLen {
		return Key{}, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedKey, len(b), EncodedLen)
	}
	return Key{
		Space: Keyspace(binary.BigEndian.Uint64(b[0:8])),
		ID:    binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// Compare orders keys by keyspace first, then sequence id.
func Compare(a, b Key) int {
	switch {
	case a.Space < b.Space:
		return -1
	case a.Space > b.Space:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// SpaceBounds returns the half-open encoded range [lower, upper) covering
// every possible key in the given keyspace, suitable for iterator bounds.
func SpaceBounds(s Keyspace) (lower, upper []byte) {
	return Key{Space: s}.Encode(), Key{Space: s + 1}.Encode()
}

// comparerName is persisted in the store manifest. Changing it makes
// existing databases unopenable, so it must stay stable.
const comparerName = "journal.keys.v1"

// Comparer returns the Pebble comparer implementing the key total order.
// Every database holding journal keys must be opened with it.
func Comparer() *pebble.Comparer {
	c := *pebble.DefaultComparer
	c.Name = comparerName
	c.Compare = compareEncoded
	c.Equal = func(a, b []byte) bool { return compareEncoded(a, b) == 0 }
	return &c
}

// compareEncoded orders two encoded keys by decoded (keyspace, id). Inputs
// of other widths (iterator bounds, separator output from the default
// comparer) fall back to raw byte order, which agrees with the big-endian
// encoding.
func compareEncoded(a, b []byte) int {
	if len(a) == EncodedLen && len(b) == EncodedLen {
		ka, errA := Decode(a)
		kb, errB := Decode(b)
		if errA == nil && errB == nil {
			return Compare(ka, kb)
		}
	}
	return bytes.Compare(a, b)
}
