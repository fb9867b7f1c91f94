// Package history records committed render passes for time-travel debugging.
//
// A Recorder observes the engine through the snapshot contract and keeps a
// bounded in-memory log with an undo/redo cursor. It can additionally mirror
// every snapshot to a bbolt database so that a session can be inspected after
// the process has exited. The recorder is strictly read-only with respect to
// the engine; stepping the cursor never feeds back into rendering.
package history

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	bolt "go.etcd.io/bbolt"

	"src.uiwiz.dev/pkg/wizard"
)

const bucketPass = "pass"

// DefaultCapacity is the in-memory log bound used by New.
const DefaultCapacity = 256

// Recorder implements wizard.Observer. Methods are safe for concurrent use;
// PassCommitted arrives on the engine goroutine while queries typically come
// from elsewhere.
type Recorder struct {
	mu      sync.Mutex
	cap     int
	log     []wizard.Snapshot
	cursor  int // index into log of the snapshot Current returns
	db      *bolt.DB
	ownsDB  bool
	persist error // first persistence error, sticky
}

// New returns a Recorder bounded to capacity snapshots. A capacity of zero or
// less means DefaultCapacity.
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{cap: capacity, cursor: -1}
}

// NewPersistent returns a Recorder that also appends every snapshot to the
// bbolt database at fname, creating it if needed. Close releases the
// database.
func NewPersistent(fname string, capacity int) (*Recorder, error) {
	db, err := bolt.Open(fname, 0644, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketPass))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	r := New(capacity)
	r.db = db
	r.ownsDB = true
	return r, nil
}

// Close releases the backing database, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil || !r.ownsDB {
		return nil
	}
	db := r.db
	r.db = nil
	return db.Close()
}

// PassCommitted implements wizard.Observer. It appends the snapshot, evicts
// the oldest entry beyond capacity, and resets the cursor to live.
func (r *Recorder) PassCommitted(s wizard.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, s)
	if len(r.log) > r.cap {
		// Shift instead of reslicing so the evicted head gets collected.
		copy(r.log, r.log[1:])
		r.log = r.log[:len(r.log)-1]
	}
	r.cursor = len(r.log) - 1
	if r.db != nil && r.persist == nil {
		r.persist = r.put(s)
	}
}

func (r *Recorder) put(s wizard.Snapshot) error {
	v, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketPass)).Put(marshalSeq(s.Seq), v)
	})
}

// PersistErr returns the first error hit while mirroring snapshots, if any.
// After an error the recorder keeps working in memory but stops writing.
func (r *Recorder) PersistErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persist
}

// Len returns the number of snapshots held in memory.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// Current returns the snapshot under the cursor. After every committed pass
// the cursor points at the latest snapshot; Undo and Redo move it.
func (r *Recorder) Current() (wizard.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor < 0 || r.cursor >= len(r.log) {
		return wizard.Snapshot{}, false
	}
	return r.log[r.cursor], true
}

// Latest returns the most recently committed snapshot regardless of cursor.
func (r *Recorder) Latest() (wizard.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.log) == 0 {
		return wizard.Snapshot{}, false
	}
	return r.log[len(r.log)-1], true
}

// Undo moves the cursor one snapshot back and returns it. It reports false
// when already at the oldest retained snapshot.
func (r *Recorder) Undo() (wizard.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor <= 0 {
		return wizard.Snapshot{}, false
	}
	r.cursor--
	return r.log[r.cursor], true
}

// Redo moves the cursor one snapshot forward and returns it. It reports false
// when already live.
func (r *Recorder) Redo() (wizard.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor < 0 || r.cursor >= len(r.log)-1 {
		return wizard.Snapshot{}, false
	}
	r.cursor++
	return r.log[r.cursor], true
}

// Snapshots returns a copy of the in-memory log, oldest first.
func (r *Recorder) Snapshots() []wizard.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wizard.Snapshot, len(r.log))
	copy(out, r.log)
	return out
}

// LoadRange reads persisted snapshots with from <= Seq < upto from the
// backing database, calling f for each in sequence order. It is a no-op for
// a purely in-memory recorder.
func (r *Recorder) LoadRange(from, upto uint64, f func(wizard.Snapshot)) error {
	r.mu.Lock()
	db := r.db
	r.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketPass)).Cursor()
		for k, v := c.Seek(marshalSeq(from)); k != nil && unmarshalSeq(k) < upto; k, v = c.Next() {
			var s wizard.Snapshot
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			f(s)
		}
		return nil
	})
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
