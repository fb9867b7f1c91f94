package history

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"src.uiwiz.dev/pkg/wizard"
)

func snap(seq uint64, text string) wizard.Snapshot {
	return wizard.Snapshot{
		Seq:  seq,
		Time: time.Unix(int64(seq), 0).UTC(),
		Tree: wizard.TreeNode{
			Kind:  "label",
			Props: map[string]string{"text": text},
		},
		Patches: []string{"update / changed=[text] removed=[]"},
	}
}

func seqs(ss []wizard.Snapshot) []uint64 {
	out := make([]uint64, len(ss))
	for i, s := range ss {
		out[i] = s.Seq
	}
	return out
}

func TestRecorder_RecordsInOrder(t *testing.T) {
	r := New(8)
	for i := uint64(1); i <= 3; i++ {
		r.PassCommitted(snap(i, "x"))
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	if diff := cmp.Diff([]uint64{1, 2, 3}, seqs(r.Snapshots())); diff != "" {
		t.Errorf("Snapshots (-want +got):\n%s", diff)
	}
	got, ok := r.Latest()
	if !ok || got.Seq != 3 {
		t.Errorf("Latest = %v, %v, want seq 3", got.Seq, ok)
	}
}

func TestRecorder_CapacityEvictsOldest(t *testing.T) {
	r := New(3)
	for i := uint64(1); i <= 5; i++ {
		r.PassCommitted(snap(i, "x"))
	}
	if diff := cmp.Diff([]uint64{3, 4, 5}, seqs(r.Snapshots())); diff != "" {
		t.Errorf("Snapshots (-want +got):\n%s", diff)
	}
}

func TestRecorder_UndoRedoCursor(t *testing.T) {
	r := New(8)
	if _, ok := r.Current(); ok {
		t.Errorf("Current on empty recorder reports ok")
	}
	for i := uint64(1); i <= 3; i++ {
		r.PassCommitted(snap(i, "x"))
	}

	if s, ok := r.Undo(); !ok || s.Seq != 2 {
		t.Errorf("first Undo = %v, %v, want seq 2", s.Seq, ok)
	}
	if s, ok := r.Undo(); !ok || s.Seq != 1 {
		t.Errorf("second Undo = %v, %v, want seq 1", s.Seq, ok)
	}
	if _, ok := r.Undo(); ok {
		t.Errorf("Undo past the oldest snapshot reports ok")
	}
	if s, ok := r.Redo(); !ok || s.Seq != 2 {
		t.Errorf("Redo = %v, %v, want seq 2", s.Seq, ok)
	}

	// A new pass snaps the cursor back to live.
	r.PassCommitted(snap(4, "x"))
	if s, ok := r.Current(); !ok || s.Seq != 4 {
		t.Errorf("Current after commit = %v, %v, want seq 4", s.Seq, ok)
	}
	if _, ok := r.Redo(); ok {
		t.Errorf("Redo at live reports ok")
	}
}

func TestRecorder_PersistRoundTrip(t *testing.T) {
	r, cleanup := MustGetTempRecorder(8)
	defer cleanup()

	want := []wizard.Snapshot{snap(1, "a"), snap(2, "b"), snap(3, "c")}
	for _, s := range want {
		r.PassCommitted(s)
	}
	if err := r.PersistErr(); err != nil {
		t.Fatalf("PersistErr = %v", err)
	}

	var got []wizard.Snapshot
	err := r.LoadRange(0, 100, func(s wizard.Snapshot) { got = append(got, s) })
	if err != nil {
		t.Fatalf("LoadRange -> %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("persisted snapshots (-want +got):\n%s", diff)
	}

	// Half-open range.
	got = nil
	err = r.LoadRange(2, 3, func(s wizard.Snapshot) { got = append(got, s) })
	if err != nil {
		t.Fatalf("LoadRange -> %v", err)
	}
	if diff := cmp.Diff([]uint64{2}, seqs(got)); diff != "" {
		t.Errorf("LoadRange(2, 3) (-want +got):\n%s", diff)
	}
}

func TestRecorder_InMemoryLoadRangeIsNoOp(t *testing.T) {
	r := New(4)
	r.PassCommitted(snap(1, "a"))
	err := r.LoadRange(0, 100, func(wizard.Snapshot) {
		t.Errorf("LoadRange called back without a database")
	})
	if err != nil {
		t.Errorf("LoadRange -> %v", err)
	}
}
