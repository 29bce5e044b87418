package book

import (
	"container/list"

	"github.com/lightsgoout/exchange-engine/pkg/tradable"
)

// level holds the time-ordered sequence of tradables resting at one price.
// A container/list.List gives O(1) append at the tail (insertion order is
// time priority) and O(1) removal of an arbitrary element given its
// *list.Element, which the teacher's hand-rolled singly-linked list
// (engine.go's orderBookEntry.next chain) cannot do without a linear scan
// — the arena-and-zero-size-sentinel trick the teacher uses instead only
// works because it never truly removes entries, which conflicts with the
// spec's "price levels are never empty in the map" invariant.
type level struct {
	order *list.List // Values are tradable.Tradable
}

func newLevel() *level {
	return &level{order: list.New()}
}

func (l *level) empty() bool {
	return l.order.Len() == 0
}

func (l *level) pushBack(t tradable.Tradable) *list.Element {
	return l.order.PushBack(t)
}

func (l *level) front() (*list.Element, bool) {
	e := l.order.Front()
	if e == nil {
		return nil, false
	}
	return e, true
}

func (l *level) remove(e *list.Element) {
	l.order.Remove(e)
}

func (l *level) sumRemaining() int64 {
	var total int64
	for e := l.order.Front(); e != nil; e = e.Next() {
		total += e.Value.(tradable.Tradable).RemainingVolume()
	}
	return total
}
