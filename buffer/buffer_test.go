package buffer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/zed-industries/zed-sub044/clock"
)

func TestNewFromTextRoundTrip(t *testing.T) {
	b := NewFromText(1, []byte("hello world"))
	if got := string(b.Text()); got != "hello world" {
		t.Fatalf("Text() = %q, want %q", got, "hello world")
	}
	if b.Len() != len("hello world") {
		t.Fatalf("Len() = %d, want %d", b.Len(), len("hello world"))
	}
}

func TestEditInsertAndDelete(t *testing.T) {
	b := NewFromText(1, []byte("hello world"))

	if _, err := b.Edit([]ByteRange{{5, 5}}, [][]byte{[]byte(",")}); err != nil {
		t.Fatalf("insert edit: %v", err)
	}
	if got := string(b.Text()); got != "hello, world" {
		t.Fatalf("after insert: %q, want %q", got, "hello, world")
	}

	if _, err := b.Edit([]ByteRange{{5, 6}}, [][]byte{nil}); err != nil {
		t.Fatalf("delete edit: %v", err)
	}
	if got := string(b.Text()); got != "hello world" {
		t.Fatalf("after delete: %q, want %q", got, "hello world")
	}
}

func TestEditRejectsUnorderedRanges(t *testing.T) {
	b := NewFromText(1, []byte("abcdef"))
	_, err := b.Edit([]ByteRange{{4, 5}, {1, 2}}, [][]byte{nil, nil})
	if err != ErrInvalidEdit {
		t.Fatalf("err = %v, want ErrInvalidEdit", err)
	}
	if got := string(b.Text()); got != "abcdef" {
		t.Fatalf("rejected edit mutated buffer: %q", got)
	}
}

func TestEditRejectsOverlappingRanges(t *testing.T) {
	b := NewFromText(1, []byte("abcdef"))
	_, err := b.Edit([]ByteRange{{1, 4}, {3, 5}}, [][]byte{nil, nil})
	if err != ErrInvalidEdit {
		t.Fatalf("err = %v, want ErrInvalidEdit", err)
	}
}

func TestTextForRangeTrimsPartialFragments(t *testing.T) {
	b := NewFromText(1, []byte("0123456789"))
	// Split the base insertion into two fragments by editing inside it.
	if _, err := b.Edit([]ByteRange{{5, 5}}, [][]byte{[]byte("X")}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	// Buffer text is now "01234X56789"; request a range straddling the
	// fragment boundaries on both sides.
	got := string(b.TextForRange(2, 9))
	full := string(b.Text())
	expect := full[2:9]
	if got != expect {
		t.Fatalf("TextForRange(2,9) = %q, want %q (full=%q)", got, expect, full)
	}
}

func TestAnchorsSurviveConcurrentEdits(t *testing.T) {
	b := NewFromText(1, []byte("hello world"))
	before := b.AnchorBefore(5)
	after := b.AnchorAfter(5)

	if _, err := b.Edit([]ByteRange{{0, 0}}, [][]byte{[]byte(">>")}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	gotBefore, ok := b.Resolve(before)
	if !ok || gotBefore != 7 {
		t.Fatalf("AnchorBefore resolved to %d (ok=%v), want 7", gotBefore, ok)
	}
	gotAfter, ok := b.Resolve(after)
	if !ok || gotAfter != 7 {
		t.Fatalf("AnchorAfter resolved to %d (ok=%v), want 7", gotAfter, ok)
	}
}

func TestAnchorBiasAtInsertionPoint(t *testing.T) {
	b := NewFromText(1, []byte("ac"))
	before := b.AnchorBefore(1)
	after := b.AnchorAfter(1)

	if _, err := b.Edit([]ByteRange{{1, 1}}, [][]byte{[]byte("b")}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := string(b.Text()); got != "abc" {
		t.Fatalf("Text() = %q, want %q", got, "abc")
	}

	gotBefore, ok := b.Resolve(before)
	if !ok || gotBefore != 1 {
		t.Fatalf("AnchorBefore should stick before the insertion: got %d (ok=%v), want 1", gotBefore, ok)
	}
	gotAfter, ok := b.Resolve(after)
	if !ok || gotAfter != 2 {
		t.Fatalf("AnchorAfter should stick after the insertion: got %d (ok=%v), want 2", gotAfter, ok)
	}
}

func TestUndoIsInvolution(t *testing.T) {
	b := NewFromText(1, []byte("hello world"))
	op, err := b.Edit([]ByteRange{{5, 6}}, [][]byte{nil})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := string(b.Text()); got != "helloworld" {
		t.Fatalf("after delete: %q", got)
	}

	b.Undo(map[clock.Lamport]uint32{op.Timestamp: 1})
	if got := string(b.Text()); got != "hello world" {
		t.Fatalf("after undo: %q, want %q", got, "hello world")
	}

	b.Undo(map[clock.Lamport]uint32{op.Timestamp: 2})
	if got := string(b.Text()); got != "helloworld" {
		t.Fatalf("after redo: %q, want %q", got, "helloworld")
	}
}

func TestUndoCountConvergesUnderConcurrentRequests(t *testing.T) {
	b := NewFromText(1, []byte("hello world"))
	op, err := b.Edit([]ByteRange{{0, 5}}, [][]byte{nil})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := string(b.Text()); got != " world" {
		t.Fatalf("after delete: %q", got)
	}

	// Two identical undo(1) requests, as two replicas might send
	// concurrently, keep the count at the max (1) instead of toggling twice.
	b.Undo(map[clock.Lamport]uint32{op.Timestamp: 1})
	b.Undo(map[clock.Lamport]uint32{op.Timestamp: 1})
	if got := string(b.Text()); got != "hello world" {
		t.Fatalf("after two undo(1)s: %q, want %q (count should stay at 1)", got, "hello world")
	}
}

func TestUndoOfInsertTombstonesTheInsertedFragment(t *testing.T) {
	// spec.md §8 Scenario S3: undoing the insert operation itself (not
	// one of its deletions) must hide the inserted text outright.
	b := NewFromText(1, []byte("hello"))
	op, err := b.Edit([]ByteRange{{5, 5}}, [][]byte{[]byte("X")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := string(b.Text()); got != "helloX" {
		t.Fatalf("after insert: %q, want %q", got, "helloX")
	}

	b.Undo(map[clock.Lamport]uint32{op.Timestamp: 1})
	if got := string(b.Text()); got != "hello" {
		t.Fatalf("after undoing the insert: %q, want %q", got, "hello")
	}

	b.Undo(map[clock.Lamport]uint32{op.Timestamp: 2})
	if got := string(b.Text()); got != "helloX" {
		t.Fatalf("after redoing the insert: %q, want %q", got, "helloX")
	}
}

func TestApplyRemoteIsIdempotent(t *testing.T) {
	a := NewFromText(1, []byte("hello"))
	op, err := a.Edit([]ByteRange{{5, 5}}, [][]byte{[]byte(" world")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	b := NewFromText(2, []byte("hello"))
	b.ApplyRemote(op)
	b.ApplyRemote(op) // duplicate delivery must be a no-op
	if got := string(b.Text()); got != "hello world" {
		t.Fatalf("Text() = %q, want %q", got, "hello world")
	}
}

func TestApplyRemoteDefersUntilDependenciesObserved(t *testing.T) {
	a := NewFromText(1, []byte("hello"))
	op1, err := a.Edit([]ByteRange{{5, 5}}, [][]byte{[]byte(" world")})
	if err != nil {
		t.Fatalf("edit 1: %v", err)
	}
	op2, err := a.Edit([]ByteRange{{11, 11}}, [][]byte{[]byte("!")})
	if err != nil {
		t.Fatalf("edit 2: %v", err)
	}

	b := NewFromText(2, []byte("hello"))
	b.ApplyRemote(op2) // arrives before op1; should defer
	if got := string(b.Text()); got != "hello" {
		t.Fatalf("premature apply: %q, want %q", got, "hello")
	}
	if len(b.deferredOps) != 1 {
		t.Fatalf("deferredOps len = %d, want 1", len(b.deferredOps))
	}

	b.ApplyRemote(op1) // unblocks the deferred op2
	if got := string(b.Text()); got != "hello world!" {
		t.Fatalf("Text() = %q, want %q", got, "hello world!")
	}
	if len(b.deferredOps) != 0 {
		t.Fatalf("deferredOps not drained: %d remain", len(b.deferredOps))
	}
}

func TestConcurrentInsertsConvergeAcrossReplicas(t *testing.T) {
	a := NewFromText(1, []byte("ac"))
	b := NewFromText(2, []byte("ac"))

	opA, err := a.Edit([]ByteRange{{1, 1}}, [][]byte{[]byte("X")})
	if err != nil {
		t.Fatalf("edit on a: %v", err)
	}
	opB, err := b.Edit([]ByteRange{{1, 1}}, [][]byte{[]byte("Y")})
	if err != nil {
		t.Fatalf("edit on b: %v", err)
	}

	// a applies b's op, b applies a's op: whichever order, both must
	// end up with the same text (convergence, spec.md §8 property 1).
	a.ApplyRemote(opB)
	b.ApplyRemote(opA)

	if got := string(a.Text()); got != string(b.Text()) {
		t.Fatalf("replicas diverged: a=%q b=%q", a.Text(), b.Text())
	}
	if len(a.Text()) != 3 {
		t.Fatalf("converged text has wrong length: %q", a.Text())
	}
}

func TestFragmentIDOrderingIsDense(t *testing.T) {
	prev := FragmentID(nil)
	next := FragmentID(nil)
	mid := Between(prev, next, 1)
	if mid.Compare(prev) <= 0 {
		t.Fatalf("Between(nil, nil) did not order after prev")
	}

	// Repeatedly bisecting the same gap must always stay strictly
	// ordered, regardless of how deep ids must grow to find room.
	left, right := prev, mid
	for i := 0; i < 50; i++ {
		m := Between(left, right, clock.ReplicaID(i%3+1))
		if m.Compare(left) <= 0 || m.Compare(right) >= 0 {
			t.Fatalf("iteration %d: Between(%v,%v)=%v not strictly between", i, left, right, m)
		}
		right = m
	}
}

func TestFragmentIDTieBreaksByReplica(t *testing.T) {
	a := Between(nil, nil, 5)
	b := Between(nil, nil, 2)
	if a.Compare(b) == b.Compare(a) {
		t.Fatalf("Compare is not antisymmetric for distinct replicas")
	}
}

func TestRandomizedEditsPreserveLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := NewFromText(1, bytes.Repeat([]byte("a"), 20))
	for i := 0; i < 100; i++ {
		n := b.Len()
		if n == 0 {
			break
		}
		start := rng.Intn(n)
		end := start + rng.Intn(n-start+1)
		if end > n {
			end = n
		}
		var text []byte
		if rng.Intn(2) == 0 {
			text = []byte("b")
		}
		if _, err := b.Edit([]ByteRange{{start, end}}, [][]byte{text}); err != nil {
			t.Fatalf("iteration %d: edit(%d,%d) failed: %v", i, start, end, err)
		}
		if got := b.Len(); got != len(b.Text()) {
			t.Fatalf("iteration %d: Len()=%d but len(Text())=%d", i, got, len(b.Text()))
		}
	}
}
