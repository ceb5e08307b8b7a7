package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/skade/drossel-journal/internal/keys"
	pebblestore "github.com/skade/drossel-journal/internal/storage/pebble"
	"github.com/skade/drossel-journal/pkg/log"
)

const (
	lockFileName = "journal.lock"
	storeDirName = "data"
)

// Options configures a Journal.
type Options struct {
	// Fsync selects the store's durability mode. Defaults to
	// FsyncModeAlways; anything weaker voids the crash guarantee that a
	// popped entry is never re-delivered.
	Fsync pebblestore.FsyncMode
	// FsyncInterval applies when Fsync is FsyncModeInterval.
	FsyncInterval time.Duration
	// Logger receives open/recovery and audit events. Defaults to a nop.
	Logger log.Logger
	// Metrics is handed to the store wrapper. Optional.
	Metrics pebblestore.MetricsHook
}

// Journal is a durable FIFO queue over one ordered store directory.
//
// Exactly one process may own a journal directory at a time (file lock).
// Within that process the handle is safe for concurrent use; an internal
// mutex serializes the cursor set and store calls.
type Journal struct {
	db     *pebblestore.DB
	lock   *flock.Flock
	logger log.Logger

	mu           sync.Mutex
	closed       bool
	head         uint64
	tail         uint64
	reservedTail uint64
}

// Open opens the journal at dir, creating it if absent.
//
// An existing store is opened as-is; "does not exist yet" is the only
// open failure that falls back to creating a fresh store. Permission or
// corruption failures surface to the caller. Cursors are reconstructed by
// scanning the Queue keyspace: the smallest live id becomes tail and
// reservedTail (leases do not survive restarts), the largest plus one
// becomes head.
func Open(dir string, opts Options) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal: dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	if opts.Fsync == pebblestore.FsyncModeUnspecified {
		opts.Fsync = pebblestore.FsyncModeAlways
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("journal: acquire lock: %w", err)
	}
	if !held {
		return nil, ErrLocked
	}

	db, created, err := openStore(filepath.Join(dir, storeDirName), opts)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	j := &Journal{db: db, lock: lock, logger: logger}
	if err := j.recoverCursors(); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	logger.Info("journal opened",
		log.F("dir", dir),
		log.F("created", created),
		log.F("tail", j.tail),
		log.F("head", j.head),
		log.F("len", j.head-j.tail),
	)
	return j, nil
}

// openStore opens the existing store, creating it only when the open
// failure is "does not exist yet".
func openStore(dataDir string, opts Options) (*pebblestore.DB, bool, error) {
	storeOpts := pebblestore.Options{
		DataDir:          dataDir,
		Fsync:            opts.Fsync,
		FsyncInterval:    opts.FsyncInterval,
		Comparer:         keys.Comparer(),
		ErrorIfNotExists: true,
		Metrics:          opts.Metrics,
	}
	db, err := pebblestore.Open(storeOpts)
	if err == nil {
		return db, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("journal: open store: %w", err)
	}
	storeOpts.ErrorIfNotExists = false
	db, err = pebblestore.Open(storeOpts)
	if err != nil {
		return nil, false, fmt.Errorf("journal: create store: %w", err)
	}
	return db, true, nil
}

// recoverCursors rebuilds tail/reservedTail/head from the live Queue keys.
// The key set is ground truth; cursors are only a cached view of it.
func (j *Journal) recoverCursors() error {
	lower, upper := keys.SpaceBounds(keys.Queue)
	iter, err := j.db.NewIter(lower, upper)
	if err != nil {
		return fmt.Errorf("journal: recovery scan: %w", err)
	}
	defer iter.Close()

	var first, last uint64
	found := false
	for ok := iter.First(); ok; ok = iter.Next() {
		k, err := keys.Decode(iter.Key())
		if err != nil {
			return fmt.Errorf("journal: recovery scan: %w", err)
		}
		if !found {
			first = k.ID
			found = true
		}
		last = k.ID
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("journal: recovery scan: %w", err)
	}

	if !found {
		j.head, j.tail, j.reservedTail = 0, 0, 0
		return nil
	}
	// head is the next id to assign, one past the largest live key.
	j.tail = first
	j.reservedTail = first
	j.head = last + 1
	return nil
}

// Push durably writes payload under the head cursor and advances head.
// It returns the assigned sequence id. Cursors are unchanged on error.
func (j *Journal) Push(payload []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}
	id := j.head
	if err := j.db.Set(keys.Key{Space: keys.Queue, ID: id}.Encode(), payload); err != nil {
		return 0, fmt.Errorf("journal: push id %d: %w", id, err)
	}
	j.head++
	return id, nil
}

// Peek returns the payload at the tail cursor without removing it.
// ok is false when the queue is empty. Safe to call repeatedly.
func (j *Journal) Peek() ([]byte, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, false, ErrClosed
	}
	return j.readAt(j.tail)
}

// Pop removes and returns the oldest entry (auto-ack mode: deliver and
// durably delete in one call). ok is false on an empty queue; the call is
// then a no-op.
func (j *Journal) Pop() ([]byte, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, false, ErrClosed
	}
	payload, ok, err := j.readAt(j.tail)
	if err != nil || !ok {
		return nil, ok, err
	}
	if err := j.db.Delete(keys.Key{Space: keys.Queue, ID: j.tail}.Encode()); err != nil {
		return nil, false, fmt.Errorf("journal: pop id %d: %w", j.tail, err)
	}
	j.tail++
	if j.reservedTail < j.tail {
		j.reservedTail = j.tail
	}
	return payload, true, nil
}

// readAt loads the payload for id, reporting ok=false past the head.
// Caller holds j.mu.
func (j *Journal) readAt(id uint64) ([]byte, bool, error) {
	if id >= j.head {
		return nil, false, nil
	}
	payload, err := j.db.Get(keys.Key{Space: keys.Queue, ID: id}.Encode())
	if err != nil {
		// A missing key inside [tail, head) means cursors and store
		// disagree; surface it rather than skipping silently.
		return nil, false, fmt.Errorf("journal: read id %d: %w", id, err)
	}
	return payload, true, nil
}

// Len returns head - tail, the number of entries believed present. It is
// a derived counter; Audit cross-checks it against the store.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.head - j.tail
}

// Reserved returns the number of entries delivered under a lease and not
// yet acknowledged.
func (j *Journal) Reserved() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reservedTail - j.tail
}

// Audit counts the live Queue keys and compares the count with Len,
// returning ErrInconsistent on mismatch. The count is returned either way.
func (j *Journal) Audit() (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	lower, upper := keys.SpaceBounds(keys.Queue)
	iter, err := j.db.NewIter(lower, upper)
	if err != nil {
		return 0, fmt.Errorf("journal: audit scan: %w", err)
	}
	defer iter.Close()

	var live uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		if _, err := keys.Decode(iter.Key()); err != nil {
			return live, fmt.Errorf("journal: audit scan: %w", err)
		}
		live++
	}
	if err := iter.Error(); err != nil {
		return live, fmt.Errorf("journal: audit scan: %w", err)
	}

	if derived := j.head - j.tail; live != derived {
		j.logger.Warn("journal audit mismatch", log.F("len", derived), log.F("live", live))
		return live, fmt.Errorf("%w: len=%d live=%d", ErrInconsistent, derived, live)
	}
	return live, nil
}

// Store exposes the underlying store handle for collections co-located in
// the same database (see internal/chunk). The journal retains ownership;
// callers must not close it.
func (j *Journal) Store() *pebblestore.DB { return j.db }

// Close releases the store handle and the directory lock. The journal is
// unusable afterwards; Close is idempotent.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	err := j.db.Close()
	if unlockErr := j.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
