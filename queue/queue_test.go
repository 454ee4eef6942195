package queue

import "testing"

type testNode struct {
	id         int
	prev, next *testNode
}

func (n *testNode) QueuePrev() *testNode     { return n.prev }
func (n *testNode) QueueNext() *testNode     { return n.next }
func (n *testNode) SetQueuePrev(p *testNode) { n.prev = p }
func (n *testNode) SetQueueNext(p *testNode) { n.next = p }

func collect(l *List[*testNode]) []int {
	var out []int
	l.Each(func(n *testNode) bool {
		out = append(out, n.id)
		return true
	})
	return out
}

func TestList_PushTailOrdersOldestToNewest(t *testing.T) {
	var l List[*testNode]
	a, b, c := &testNode{id: 1}, &testNode{id: 2}, &testNode{id: 3}
	l.PushTail(a, 1)
	l.PushTail(b, 1)
	l.PushTail(c, 1)

	if got := collect(&l); !equal(got, []int{1, 2, 3}) {
		t.Fatalf("got %v", got)
	}
	if l.Head() != a || l.Tail() != c {
		t.Fatalf("head/tail wrong: head=%v tail=%v", l.Head(), l.Tail())
	}
	if l.Len() != 3 || l.Weight() != 3 {
		t.Fatalf("len=%d weight=%d", l.Len(), l.Weight())
	}
}

func TestList_MoveToTailReordersWithoutChangingWeight(t *testing.T) {
	var l List[*testNode]
	a, b, c := &testNode{id: 1}, &testNode{id: 2}, &testNode{id: 3}
	l.PushTail(a, 2)
	l.PushTail(b, 3)
	l.PushTail(c, 4)

	l.MoveToTail(a)
	if got := collect(&l); !equal(got, []int{2, 3, 1}) {
		t.Fatalf("got %v", got)
	}
	if l.Weight() != 9 {
		t.Fatalf("weight changed: %d", l.Weight())
	}

	l.MoveToTail(l.Tail()) // no-op: already tail
	if got := collect(&l); !equal(got, []int{2, 3, 1}) {
		t.Fatalf("no-op MoveToTail reordered: %v", got)
	}
}

func TestList_RemoveFromHeadMiddleTail(t *testing.T) {
	var l List[*testNode]
	a, b, c := &testNode{id: 1}, &testNode{id: 2}, &testNode{id: 3}
	l.PushTail(a, 1)
	l.PushTail(b, 1)
	l.PushTail(c, 1)

	l.Remove(b, 1)
	if got := collect(&l); !equal(got, []int{1, 3}) {
		t.Fatalf("after middle remove: %v", got)
	}

	l.Remove(a, 1)
	if got := collect(&l); !equal(got, []int{3}) {
		t.Fatalf("after head remove: %v", got)
	}
	if l.Head() != c || l.Tail() != c {
		t.Fatalf("single-element head/tail wrong")
	}

	l.Remove(c, 1)
	if l.Len() != 0 || l.Weight() != 0 {
		t.Fatalf("expected empty list, len=%d weight=%d", l.Len(), l.Weight())
	}
	var zero *testNode
	if l.Head() != zero || l.Tail() != zero {
		t.Fatalf("expected nil head/tail on empty list")
	}
}

func TestList_EachReverse(t *testing.T) {
	var l List[*testNode]
	a, b, c := &testNode{id: 1}, &testNode{id: 2}, &testNode{id: 3}
	l.PushTail(a, 1)
	l.PushTail(b, 1)
	l.PushTail(c, 1)

	var out []int
	l.EachReverse(func(n *testNode) bool {
		out = append(out, n.id)
		return true
	})
	if !equal(out, []int{3, 2, 1}) {
		t.Fatalf("got %v", out)
	}
}

func TestList_EachStopsEarly(t *testing.T) {
	var l List[*testNode]
	l.PushTail(&testNode{id: 1}, 1)
	l.PushTail(&testNode{id: 2}, 1)
	l.PushTail(&testNode{id: 3}, 1)

	var seen []int
	l.Each(func(n *testNode) bool {
		seen = append(seen, n.id)
		return n.id != 2
	})
	if !equal(seen, []int{1, 2}) {
		t.Fatalf("got %v", seen)
	}
}

func TestList_AdjustWeightClampsAtZero(t *testing.T) {
	var l List[*testNode]
	l.PushTail(&testNode{id: 1}, 1)
	l.AdjustWeight(-100)
	if l.Weight() != 0 {
		t.Fatalf("weight should clamp at 0, got %d", l.Weight())
	}
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
