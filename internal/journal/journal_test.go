package journal

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/skade/drossel-journal/internal/keys"
)

func openAt(t *testing.T, dir string) *Journal {
	t.Helper()
	j, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	return j
}

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j := openAt(t, t.TempDir())
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func mustPush(t *testing.T, j *Journal, payload []byte) uint64 {
	t.Helper()
	id, err := j.Push(payload)
	if err != nil {
		t.Fatalf("push %q: %v", payload, err)
	}
	return id
}

func TestOpenCreatesFreshStore(t *testing.T) {
	// First open of a directory with no database must create one, not
	// surface the store's does-not-exist error.
	dir := filepath.Join(t.TempDir(), "nested", "journal")
	j := openAt(t, dir)
	mustPush(t, j, []byte("first"))
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Second open takes the open-existing path.
	j2 := openAt(t, dir)
	defer j2.Close()
	val, ok, err := j2.Pop()
	if err != nil || !ok || string(val) != "first" {
		t.Fatalf("pop after reopen: got %q ok=%v err=%v", val, ok, err)
	}
}

func TestPopEmpty(t *testing.T) {
	j := newTestJournal(t)

	val, ok, err := j.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if ok || val != nil {
		t.Fatalf("expected none from empty journal, got %q", val)
	}
	if j.Len() != 0 {
		t.Fatalf("pop on empty changed len to %d", j.Len())
	}
}

func TestPushPopScenario(t *testing.T) {
	// open empty -> pop none, len 0; push [1]; push [2]; pop [1]; pop [2]; pop none.
	j := newTestJournal(t)

	if _, ok, _ := j.Pop(); ok {
		t.Fatalf("expected none on empty journal")
	}
	if j.Len() != 0 {
		t.Fatalf("len = %d, want 0", j.Len())
	}

	mustPush(t, j, []byte{1})
	if j.Len() != 1 {
		t.Fatalf("len = %d, want 1", j.Len())
	}
	mustPush(t, j, []byte{2})
	if j.Len() != 2 {
		t.Fatalf("len = %d, want 2", j.Len())
	}

	val, ok, err := j.Pop()
	if err != nil || !ok || !bytes.Equal(val, []byte{1}) {
		t.Fatalf("pop 1: got %q ok=%v err=%v", val, ok, err)
	}
	if j.Len() != 1 {
		t.Fatalf("len = %d, want 1", j.Len())
	}

	val, ok, err = j.Pop()
	if err != nil || !ok || !bytes.Equal(val, []byte{2}) {
		t.Fatalf("pop 2: got %q ok=%v err=%v", val, ok, err)
	}
	if j.Len() != 0 {
		t.Fatalf("len = %d, want 0", j.Len())
	}

	if _, ok, _ := j.Pop(); ok {
		t.Fatalf("expected none after draining")
	}
}

func TestFIFOOrder(t *testing.T) {
	j := newTestJournal(t)

	const n = 100
	for i := 0; i < n; i++ {
		mustPush(t, j, []byte(fmt.Sprintf("payload-%03d", i)))
	}
	for i := 0; i < n; i++ {
		val, ok, err := j.Pop()
		if err != nil || !ok {
			t.Fatalf("pop %d: ok=%v err=%v", i, ok, err)
		}
		want := fmt.Sprintf("payload-%03d", i)
		if string(val) != want {
			t.Fatalf("pop %d: got %q want %q", i, val, want)
		}
	}
	if _, ok, _ := j.Pop(); ok {
		t.Fatalf("expected empty after %d pops", n)
	}
}

func TestPeekDoesNotMutate(t *testing.T) {
	j := newTestJournal(t)
	mustPush(t, j, []byte("only"))

	for i := 0; i < 3; i++ {
		val, ok, err := j.Peek()
		if err != nil || !ok || string(val) != "only" {
			t.Fatalf("peek %d: got %q ok=%v err=%v", i, val, ok, err)
		}
		if j.Len() != 1 {
			t.Fatalf("peek mutated len to %d", j.Len())
		}
	}

	val, ok, err := j.Pop()
	if err != nil || !ok || string(val) != "only" {
		t.Fatalf("pop after peeks: got %q ok=%v err=%v", val, ok, err)
	}
}

func TestPeekEmpty(t *testing.T) {
	j := newTestJournal(t)
	if _, ok, err := j.Peek(); ok || err != nil {
		t.Fatalf("expected none from empty peek, ok=%v err=%v", ok, err)
	}
}

func TestPushAssignsSequentialIDs(t *testing.T) {
	j := newTestJournal(t)
	prev := mustPush(t, j, []byte("a"))
	for i := 0; i < 5; i++ {
		id := mustPush(t, j, []byte("b"))
		if id != prev+1 {
			t.Fatalf("ids not sequential: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestReopenSingleEntry(t *testing.T) {
	// push [9], close, reopen at the same location, pop [9].
	dir := t.TempDir()
	j := openAt(t, dir)
	mustPush(t, j, []byte{9})
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2 := openAt(t, dir)
	defer j2.Close()
	if j2.Len() != 1 {
		t.Fatalf("recovered len = %d, want 1", j2.Len())
	}
	val, ok, err := j2.Pop()
	if err != nil || !ok || !bytes.Equal(val, []byte{9}) {
		t.Fatalf("pop after reopen: got %q ok=%v err=%v", val, ok, err)
	}
}

func TestReopenResumesOrder(t *testing.T) {
	dir := t.TempDir()
	j := openAt(t, dir)
	for i := 0; i < 5; i++ {
		mustPush(t, j, []byte{byte(i)})
	}
	// consume two before closing
	for i := 0; i < 2; i++ {
		if _, ok, err := j.Pop(); !ok || err != nil {
			t.Fatalf("pop %d: ok=%v err=%v", i, ok, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2 := openAt(t, dir)
	defer j2.Close()
	if j2.Len() != 3 {
		t.Fatalf("recovered len = %d, want 3", j2.Len())
	}
	for i := 2; i < 5; i++ {
		val, ok, err := j2.Pop()
		if err != nil || !ok || !bytes.Equal(val, []byte{byte(i)}) {
			t.Fatalf("pop after reopen: got %q ok=%v err=%v, want %d", val, ok, err, i)
		}
	}
}

func TestReopenEmptyAfterDrain(t *testing.T) {
	dir := t.TempDir()
	j := openAt(t, dir)
	mustPush(t, j, []byte("x"))
	if _, ok, err := j.Pop(); !ok || err != nil {
		t.Fatalf("pop: ok=%v err=%v", ok, err)
	}
	_ = j.Close()

	j2 := openAt(t, dir)
	defer j2.Close()
	if j2.Len() != 0 {
		t.Fatalf("recovered len = %d, want 0", j2.Len())
	}
	// ids keep growing from zero again only if the store is empty; a
	// drained journal restarts at id 0, which is fine because no live
	// keys remain to collide with.
	if _, ok, _ := j2.Pop(); ok {
		t.Fatalf("expected empty after reopen")
	}
}

func TestOpenLockedDirectory(t *testing.T) {
	dir := t.TempDir()
	j := openAt(t, dir)
	defer j.Close()

	if _, err := Open(dir, Options{}); !errors.Is(err, ErrLocked) {
		t.Fatalf("second open: got %v, want ErrLocked", err)
	}
}

func TestReopenAfterCloseReleasesLock(t *testing.T) {
	dir := t.TempDir()
	j := openAt(t, dir)
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	j2 := openAt(t, dir)
	_ = j2.Close()
}

func TestOperationsAfterClose(t *testing.T) {
	j := openAt(t, t.TempDir())
	_ = j.Close()

	if _, err := j.Push([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("push after close: %v", err)
	}
	if _, _, err := j.Pop(); !errors.Is(err, ErrClosed) {
		t.Fatalf("pop after close: %v", err)
	}
	if _, _, err := j.Peek(); !errors.Is(err, ErrClosed) {
		t.Fatalf("peek after close: %v", err)
	}
	if err := j.Release(); !errors.Is(err, ErrClosed) {
		t.Fatalf("release after close: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestAuditMatchesLen(t *testing.T) {
	j := newTestJournal(t)
	for i := 0; i < 10; i++ {
		mustPush(t, j, []byte{byte(i)})
	}
	for i := 0; i < 4; i++ {
		if _, ok, err := j.Pop(); !ok || err != nil {
			t.Fatalf("pop: ok=%v err=%v", ok, err)
		}
	}

	live, err := j.Audit()
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if live != 6 || live != j.Len() {
		t.Fatalf("audit live=%d len=%d, want 6", live, j.Len())
	}
}

func TestOpenRejectsMalformedKey(t *testing.T) {
	dir := t.TempDir()
	j := openAt(t, dir)
	mustPush(t, j, []byte("fine"))

	// Plant a wrong-width key inside the Queue keyspace range. A 17-byte
	// key sorts between the queue bounds under the fallback byte order,
	// so the recovery scan must see it and refuse to decode it.
	bad := append(keys.Key{Space: keys.Queue, ID: 5}.Encode(), 0xFF)
	if err := j.Store().Set(bad, nil); err != nil {
		t.Fatalf("plant malformed key: %v", err)
	}
	_ = j.Close()

	if _, err := Open(dir, Options{}); !errors.Is(err, keys.ErrMalformedKey) {
		t.Fatalf("open with malformed key: got %v, want ErrMalformedKey", err)
	}
}

func TestRecoveryIgnoresChunkKeys(t *testing.T) {
	dir := t.TempDir()
	j := openAt(t, dir)
	mustPush(t, j, []byte("queued"))

	// Chunk keys share the store but live in their own keyspace; the
	// queue recovery scan must not see them.
	for id := uint64(0); id < 3; id++ {
		if err := j.Store().Set(keys.Key{Space: keys.Chunk, ID: id}.Encode(), []byte("c")); err != nil {
			t.Fatalf("seed chunk key: %v", err)
		}
	}
	_ = j.Close()

	j2 := openAt(t, dir)
	defer j2.Close()
	if j2.Len() != 1 {
		t.Fatalf("recovered len = %d, want 1 (chunk keys leaked into recovery)", j2.Len())
	}
	val, ok, err := j2.Pop()
	if err != nil || !ok || string(val) != "queued" {
		t.Fatalf("pop: got %q ok=%v err=%v", val, ok, err)
	}
}

func TestCursorInvariantUnderRandomOps(t *testing.T) {
	j := newTestJournal(t)
	rng := rand.New(rand.NewSource(1))

	check := func(op string) {
		t.Helper()
		j.mu.Lock()
		tail, res, head := j.tail, j.reservedTail, j.head
		j.mu.Unlock()
		if !(tail <= res && res <= head) {
			t.Fatalf("%s violated invariant: tail=%d reservedTail=%d head=%d", op, tail, res, head)
		}
	}

	for i := 0; i < 500; i++ {
		switch rng.Intn(5) {
		case 0, 1:
			mustPush(t, j, []byte{byte(i)})
			check("push")
		case 2:
			if _, _, err := j.Pop(); err != nil {
				t.Fatalf("pop: %v", err)
			}
			check("pop")
		case 3:
			if _, _, _, err := j.Reserve(); err != nil {
				t.Fatalf("reserve: %v", err)
			}
			check("reserve")
		case 4:
			if _, err := j.Ack(); err != nil {
				t.Fatalf("ack: %v", err)
			}
			check("ack")
		}
	}
	if err := j.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	check("release")

	if _, err := j.Audit(); err != nil {
		t.Fatalf("audit after random ops: %v", err)
	}
}
