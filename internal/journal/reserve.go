package journal

import (
	"fmt"

	"github.com/skade/drossel-journal/internal/keys"
)

// Reservation protocol: deliver under a lease, remove on acknowledgement.
//
// tail is the confirmed-removed boundary, reservedTail the leased boundary.
// Reserve hands out the entry at reservedTail and advances it in memory
// only; nothing is written. Ack durably deletes the oldest leased entry
// (the key at tail) and advances tail. Leases are in-memory state: a crash
// or Release rewinds reservedTail to tail and the entries are delivered
// again. The guarantee for this path is at-least-once, never lost work.

// Reserve delivers the next unleased entry without removing it from the
// store. ok is false when every live entry is already reserved (or the
// queue is empty).
func (j *Journal) Reserve() (uint64, []byte, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, nil, false, ErrClosed
	}
	if j.reservedTail >= j.head {
		return 0, nil, false, nil
	}
	id := j.reservedTail
	payload, ok, err := j.readAt(id)
	if err != nil || !ok {
		return 0, nil, false, err
	}
	j.reservedTail++
	return id, payload, true, nil
}

// Ack durably removes the oldest reserved entry and advances tail past
// it. ok is false when no entry is reserved; the call is then a no-op.
func (j *Journal) Ack() (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false, ErrClosed
	}
	if j.tail >= j.reservedTail {
		return false, nil
	}
	if err := j.db.Delete(keys.Key{Space: keys.Queue, ID: j.tail}.Encode()); err != nil {
		return false, fmt.Errorf("journal: ack id %d: %w", j.tail, err)
	}
	j.tail++
	return true, nil
}

// Release abandons all outstanding leases, rewinding reservedTail to
// tail. The affected entries become reservable again in their original
// order. Recovery after a crash has the same effect.
func (j *Journal) Release() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.reservedTail = j.tail
	return nil
}
