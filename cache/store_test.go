package cache

import "testing"

func TestStore_ComputeLockedInsertsOnAbsent(t *testing.T) {
	s := newStore[int, int](1)
	e := newEntry(1, 1, 10, 1)

	result, present := s.computeLocked(1, 1, func(cur *Entry[int, int], ok bool) (*Entry[int, int], ComputeOp) {
		if ok {
			t.Fatal("expected no entry present for a fresh key")
		}
		return e, ComputeSet
	})

	if !present || result != e {
		t.Fatal("expected computeLocked to install the new entry")
	}
	if got, ok := s.Get(1, 1); !ok || got != e {
		t.Fatal("expected the store to hold the inserted entry")
	}
}

func TestStore_ComputeLockedNoopLeavesMappingUntouched(t *testing.T) {
	s := newStore[int, int](1)
	e := newEntry(1, 1, 10, 1)
	s.Put(1, 1, e)

	s.computeLocked(1, 1, func(cur *Entry[int, int], ok bool) (*Entry[int, int], ComputeOp) {
		if !ok || cur != e {
			t.Fatal("expected the resident entry to be visible to the closure")
		}
		return cur, ComputeNoop
	})

	if got, ok := s.Get(1, 1); !ok || got != e {
		t.Fatal("a ComputeNoop result must not change the map's mapping")
	}
}

func TestStore_Replace(t *testing.T) {
	s := newStore[int, int](1)
	e1 := newEntry(1, 1, 10, 1)
	e2 := newEntry(1, 1, 20, 1)

	if _, replaced := s.Replace(1, 1, e1); replaced {
		t.Fatal("Replace on an absent key must report no replacement")
	}

	s.Put(1, 1, e1)
	old, replaced := s.Replace(1, 1, e2)
	if !replaced || old != e1 {
		t.Fatal("Replace on a live key must swap in the new entry and return the displaced one")
	}
	if got, _ := s.Get(1, 1); got != e2 {
		t.Fatal("expected e2 to be resident after Replace")
	}
}

func TestStore_ReplaceIfSame(t *testing.T) {
	s := newStore[int, int](1)
	e1 := newEntry(1, 1, 10, 1)
	e2 := newEntry(1, 1, 20, 1)
	stale := newEntry(1, 1, 30, 1)
	s.Put(1, 1, e1)

	if s.ReplaceIfSame(1, 1, stale, e2) {
		t.Fatal("ReplaceIfSame must fail when the expected entry is not the resident one")
	}
	if !s.ReplaceIfSame(1, 1, e1, e2) {
		t.Fatal("ReplaceIfSame must succeed when the expected entry matches the resident one")
	}
	if got, _ := s.Get(1, 1); got != e2 {
		t.Fatal("expected e2 to be resident after a successful ReplaceIfSame")
	}
}

func TestStore_RemoveIf(t *testing.T) {
	s := newStore[int, int](1)
	e := newEntry(1, 1, 10, 1)
	s.Put(1, 1, e)

	if _, ok := s.RemoveIf(1, 1, func(v int) bool { return v == 99 }); ok {
		t.Fatal("RemoveIf must not remove when the predicate rejects the current value")
	}
	if _, ok := s.Get(1, 1); !ok {
		t.Fatal("a rejected RemoveIf must leave the mapping intact")
	}

	removed, ok := s.RemoveIf(1, 1, func(v int) bool { return v == 10 })
	if !ok || removed != e {
		t.Fatal("RemoveIf must remove and return the entry when the predicate accepts")
	}
	if _, ok := s.Get(1, 1); ok {
		t.Fatal("expected the key to be gone after a successful RemoveIf")
	}
}

func TestStore_MutateIfSame(t *testing.T) {
	s := newStore[int, int](1)
	e := newEntry(1, 1, 10, 1)
	stale := newEntry(1, 1, 10, 1)
	s.Put(1, 1, e)

	mutated := false
	if s.MutateIfSame(1, 1, stale, func(*Entry[int, int]) { mutated = true }) {
		t.Fatal("MutateIfSame must not run when expected does not match the resident entry")
	}
	if mutated {
		t.Fatal("the mutate closure must not run on a failed identity check")
	}

	if !s.MutateIfSame(1, 1, e, func(cur *Entry[int, int]) { cur.weight.Store(42) }) {
		t.Fatal("MutateIfSame must succeed when expected matches the resident entry")
	}
	if e.weight.Load() != 42 {
		t.Fatal("expected the mutate closure to have run against the resident entry in place")
	}
	if got, _ := s.Get(1, 1); got != e {
		t.Fatal("MutateIfSame must not replace the entry pointer, only mutate it in place")
	}
}
