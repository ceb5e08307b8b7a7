package chunk

import (
	"fmt"
	"sync"

	"github.com/skade/drossel-journal/internal/keys"
	pebblestore "github.com/skade/drossel-journal/internal/storage/pebble"
)

// Store addresses chunks by sequence id within the Chunk keyspace of an
// already-open database. The caller keeps ownership of the db handle; the
// usual wiring is chunk.Open(journal.Store()).
type Store struct {
	db *pebblestore.DB

	mu     sync.Mutex
	nextID uint64
}

// Open initializes a Store and recovers the next chunk id from the
// largest key already present.
func Open(db *pebblestore.DB) (*Store, error) {
	s := &Store{db: db}

	lower, upper := keys.SpaceBounds(keys.Chunk)
	iter, err := db.NewIter(lower, upper)
	if err != nil {
		return nil, fmt.Errorf("chunk: open scan: %w", err)
	}
	defer iter.Close()

	if iter.Last() {
		k, err := keys.Decode(iter.Key())
		if err != nil {
			return nil, fmt.Errorf("chunk: open scan: %w", err)
		}
		s.nextID = k.ID + 1
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("chunk: open scan: %w", err)
	}
	return s, nil
}

// Put durably stores payload under the next chunk id and returns the id.
func (s *Store) Put(payload []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	if err := s.db.Set(keys.Key{Space: keys.Chunk, ID: id}.Encode(), encodeRecord(payload)); err != nil {
		return 0, fmt.Errorf("chunk: put id %d: %w", id, err)
	}
	s.nextID++
	return id, nil
}

// Get loads and checksum-verifies the chunk with the given id. Missing
// ids map to pebblestore.ErrNotFound, checksum mismatches to ErrCorrupt.
func (s *Store) Get(id uint64) ([]byte, error) {
	raw, err := s.db.Get(keys.Key{Space: keys.Chunk, ID: id}.Encode())
	if err != nil {
		return nil, fmt.Errorf("chunk: get id %d: %w", id, err)
	}
	payload, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("chunk: get id %d: %w", id, err)
	}
	return payload, nil
}

// Delete durably removes the chunk with the given id. Deleting a missing
// id is a no-op, matching the store's delete semantics.
func (s *Store) Delete(id uint64) error {
	if err := s.db.Delete(keys.Key{Space: keys.Chunk, ID: id}.Encode()); err != nil {
		return fmt.Errorf("chunk: delete id %d: %w", id, err)
	}
	return nil
}

// Len counts the live chunks by scanning the keyspace.
func (s *Store) Len() (uint64, error) {
	lower, upper := keys.SpaceBounds(keys.Chunk)
	iter, err := s.db.NewIter(lower, upper)
	if err != nil {
		return 0, fmt.Errorf("chunk: len scan: %w", err)
	}
	defer iter.Close()

	var n uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return n, fmt.Errorf("chunk: len scan: %w", err)
	}
	return n, nil
}
