// Package queue implements the intrusive, doubly linked FIFO-by-recency
// lists used by the cache's three replacement regions (Window, Probation,
// Protected). All manipulation is expected to happen under a single
// external lock; the lists themselves do no locking.
package queue

// Tag identifies which replacement region an entry currently belongs to.
type Tag uint8

const (
	Window Tag = iota
	Probation
	Protected
	Dead
)

func (t Tag) String() string {
	switch t {
	case Window:
		return "window"
	case Probation:
		return "probation"
	case Protected:
		return "protected"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Node is the intrusive-link contract an element must satisfy to live in a
// List. T is the concrete node pointer type; comparable lets the list use
// == against the zero value in place of a nil check.
type Node[T any] interface {
	comparable
	QueuePrev() T
	QueueNext() T
	SetQueuePrev(T)
	SetQueueNext(T)
}

// List is a FIFO-by-recency doubly linked list. Head is the
// least-recently-used element — the natural eviction candidate; Tail is the
// most-recently-used.
type List[T Node[T]] struct {
	head, tail T
	length     int
	weight     int64
}

// Len returns the number of elements currently linked.
func (l *List[T]) Len() int { return l.length }

// Weight returns the sum of weights passed to PushTail/AdjustWeight minus
// what has been removed via Remove.
func (l *List[T]) Weight() int64 { return l.weight }

// Head returns the least-recently-used element, or the zero value if empty.
func (l *List[T]) Head() T { return l.head }

// Tail returns the most-recently-used element, or the zero value if empty.
func (l *List[T]) Tail() T { return l.tail }

// PushTail appends n as the most-recently-used element.
func (l *List[T]) PushTail(n T, weight int32) {
	l.linkTail(n)
	l.weight += int64(weight)
}

// Remove unlinks n and subtracts its weight from the running total.
func (l *List[T]) Remove(n T, weight int32) {
	l.unlink(n)
	l.weight -= int64(weight)
	if l.weight < 0 {
		l.weight = 0
	}
}

// MoveToTail promotes an already-linked n to most-recently-used in place,
// without touching the tracked weight.
func (l *List[T]) MoveToTail(n T) {
	if n == l.tail {
		return
	}
	l.unlink(n)
	l.linkTail(n)
}

// AdjustWeight applies delta to the running weight total, e.g. after a
// weigher change on an already-linked entry.
func (l *List[T]) AdjustWeight(delta int64) {
	l.weight += delta
	if l.weight < 0 {
		l.weight = 0
	}
}

// Each walks the list from head to tail (oldest to newest), stopping early
// if f returns false.
func (l *List[T]) Each(f func(T) bool) {
	var zero T
	for n := l.head; n != zero; n = n.QueueNext() {
		if !f(n) {
			return
		}
	}
}

// EachReverse walks the list from tail to head (newest to oldest), stopping
// early if f returns false.
func (l *List[T]) EachReverse(f func(T) bool) {
	var zero T
	for n := l.tail; n != zero; n = n.QueuePrev() {
		if !f(n) {
			return
		}
	}
}

func (l *List[T]) linkTail(n T) {
	var zero T
	n.SetQueuePrev(l.tail)
	n.SetQueueNext(zero)
	if l.tail != zero {
		l.tail.SetQueueNext(n)
	}
	l.tail = n
	if l.head == zero {
		l.head = n
	}
	l.length++
}

func (l *List[T]) unlink(n T) {
	var zero T
	prev := n.QueuePrev()
	next := n.QueueNext()

	if prev != zero {
		prev.SetQueueNext(next)
	} else if l.head == n {
		l.head = next
	}
	if next != zero {
		next.SetQueuePrev(prev)
	} else if l.tail == n {
		l.tail = prev
	}

	n.SetQueuePrev(zero)
	n.SetQueueNext(zero)
	l.length--
}
