// Package journal implements a durable FIFO queue over an ordered
// key-value store.
//
// # Overview
//
// Producers push opaque payloads; consumers remove them in strict
// first-in-first-out order. Each entry lives under a fixed-width key in
// the Queue keyspace (see internal/keys); the live key set is the only
// persisted state. Three in-memory cursors describe the queue's extent:
//
//	tail          oldest entry not yet durably removed
//	reservedTail  boundary of entries delivered under a lease but unacked
//	head          next id to assign on push
//
// The invariant tail <= reservedTail <= head holds after every operation;
// entries exist exactly for ids in [tail, head). Cursors are never
// persisted: Open reconstructs them by scanning the Queue keyspace, so a
// crash can never lose an entry that was durably written. At worst it
// forgets in-memory leases and re-delivers unacked work (at-least-once).
//
// # API surface (internal)
//
//	j, _ := Open(dir, Options{})
//	id, _ := j.Push([]byte("payload"))
//	val, ok, _ := j.Peek()      // read tail, no mutation
//	val, ok, _ = j.Pop()        // deliver and durably remove (auto-ack)
//
//	// Lease-style consumption:
//	id, val, ok, _ := j.Reserve() // deliver without removing
//	_, _ = j.Ack()                // durably remove oldest reserved entry
//	_ = j.Release()               // abandon outstanding leases
//
//	n := j.Len()        // head - tail
//	live, _ := j.Audit() // cross-check Len against an actual scan
//	_ = j.Close()
//
// A journal directory is owned by exactly one process, enforced with a
// file lock; within a process the handle is safe for concurrent use.
package journal
