package clock

import "testing"

func TestLamportOrdering(t *testing.T) {
	cases := []struct {
		a, b Lamport
		less bool
	}{
		{Lamport{1, 1}, Lamport{2, 1}, true},  // tie on counter, replica breaks it
		{Lamport{2, 1}, Lamport{1, 1}, false},
		{Lamport{5, 1}, Lamport{1, 2}, true},  // lower counter always first
		{Lamport{1, 1}, Lamport{1, 1}, false}, // equal
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.less {
			t.Errorf("%v.Less(%v) = %v, want %v", c.a, c.b, got, c.less)
		}
	}
}

func TestClockTickMonotonic(t *testing.T) {
	c := NewClock(3)
	prev := Lamport{}
	for i := 0; i < 10; i++ {
		next := c.Tick()
		if next.Replica != 3 {
			t.Fatalf("tick produced replica %d, want 3", next.Replica)
		}
		if !prev.Less(next) {
			t.Fatalf("tick not monotonic: %v then %v", prev, next)
		}
		prev = next
	}
}

func TestClockObserveAdvancesTicks(t *testing.T) {
	c := NewClock(1)
	c.Observe(Lamport{Replica: 2, Counter: 5})
	c.Observe(Lamport{Replica: 1, Counter: 10})
	next := c.Tick()
	if next.Counter <= 10 {
		t.Fatalf("tick after observe(10) produced counter %d, want >10", next.Counter)
	}
}

func TestGlobalObservedAndIncludes(t *testing.T) {
	g := NewGlobal()
	g.observe(Lamport{Replica: 1, Counter: 3})
	g.observe(Lamport{Replica: 2, Counter: 1})

	if !g.Observed(Lamport{Replica: 1, Counter: 2}) {
		t.Error("expected counter 2 <= 3 to be observed")
	}
	if g.Observed(Lamport{Replica: 1, Counter: 4}) {
		t.Error("expected counter 4 > 3 to not be observed")
	}
	if g.Observed(Lamport{Replica: 5, Counter: 1}) {
		t.Error("unknown replica should report not observed")
	}

	other := NewGlobal()
	other.observe(Lamport{Replica: 1, Counter: 2})
	if !g.Includes(other) {
		t.Error("g should include a strictly smaller vector")
	}
	other.observe(Lamport{Replica: 3, Counter: 1})
	if g.Includes(other) {
		t.Error("g should not include a vector with an unseen replica")
	}
}

func TestGlobalMergeIsPointwiseMax(t *testing.T) {
	a := NewGlobal()
	a.observe(Lamport{Replica: 1, Counter: 5})
	a.observe(Lamport{Replica: 2, Counter: 1})

	b := NewGlobal()
	b.observe(Lamport{Replica: 1, Counter: 2})
	b.observe(Lamport{Replica: 3, Counter: 7})

	m := a.Merge(b)
	if m.Get(1) != 5 || m.Get(2) != 1 || m.Get(3) != 7 {
		t.Fatalf("merge = %+v, want max per replica", m)
	}
}

func TestGlobalIterOrder(t *testing.T) {
	g := NewGlobal()
	g.observe(Lamport{Replica: 5, Counter: 1})
	g.observe(Lamport{Replica: 1, Counter: 1})
	g.observe(Lamport{Replica: 3, Counter: 1})

	var seen []ReplicaID
	g.Iter(func(r ReplicaID, _ uint32) { seen = append(seen, r) })
	want := []ReplicaID{1, 3, 5}
	if len(seen) != len(want) {
		t.Fatalf("len(seen) = %d, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}
