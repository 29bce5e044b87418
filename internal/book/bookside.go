package book

import (
	"container/list"
	"errors"

	"github.com/lightsgoout/exchange-engine/pkg/price"
	"github.com/lightsgoout/exchange-engine/pkg/tradable"
)

// ErrInvalidInput is returned by Add when the tradable is nil or has no
// remaining volume.
var ErrInvalidInput = errors.New("book: invalid input")

// ErrNotFound is returned by Cancel when the id is unknown to this side.
var ErrNotFound = errors.New("book: tradable not found")

type locator struct {
	px   price.Price
	elem *list.Element
}

// BookSide is one side (Buy or Sell) of one instrument's book: a mapping
// from Price to a time-ordered level, plus the side tag. Every mutating
// method is only ever called while the owning ProductBook holds its
// exclusive lock (see internal/book/productbook.go); BookSide itself does
// no locking.
type BookSide struct {
	side   tradable.Side
	levels map[price.Price]*level
	index  map[string]locator
}

// NewBookSide constructs an empty side.
func NewBookSide(side tradable.Side) *BookSide {
	return &BookSide{
		side:   side,
		levels: make(map[price.Price]*level),
		index:  make(map[string]locator),
	}
}

// Side returns BUY or SELL.
func (s *BookSide) Side() tradable.Side { return s.side }

// Add appends t to the level at t.Price(), creating the level if absent.
func (s *BookSide) Add(t tradable.Tradable) (TradableDTO, error) {
	if t == nil || t.RemainingVolume() <= 0 {
		return TradableDTO{}, ErrInvalidInput
	}
	lvl, ok := s.levels[t.Price()]
	if !ok {
		lvl = newLevel()
		s.levels[t.Price()] = lvl
	}
	elem := lvl.pushBack(t)
	s.index[t.ID()] = locator{px: t.Price(), elem: elem}
	return snapshot(t), nil
}

// Cancel moves the tradable's entire remaining volume to cancelled,
// removes it from its level, and drops the level if it becomes empty.
func (s *BookSide) Cancel(id string) (TradableDTO, error) {
	loc, ok := s.index[id]
	if !ok {
		return TradableDTO{}, ErrNotFound
	}
	lvl := s.levels[loc.px]
	t := loc.elem.Value.(tradable.Tradable)

	t.Cancel()
	t.SetStatus(tradable.Cancelled)
	lvl.remove(loc.elem)
	delete(s.index, id)
	if lvl.empty() {
		delete(s.levels, loc.px)
	}
	return snapshot(t), nil
}

// CancelWithStatus behaves like Cancel but assigns a caller-chosen
// terminal status (CANCELLED_OCO / CANCELLED_STP) instead of the plain
// CANCELLED used by an explicit user cancel.
func (s *BookSide) CancelWithStatus(id string, status tradable.Status) (TradableDTO, error) {
	loc, ok := s.index[id]
	if !ok {
		return TradableDTO{}, ErrNotFound
	}
	lvl := s.levels[loc.px]
	t := loc.elem.Value.(tradable.Tradable)

	t.Cancel()
	t.SetStatus(status)
	lvl.remove(loc.elem)
	delete(s.index, id)
	if lvl.empty() {
		delete(s.levels, loc.px)
	}
	return snapshot(t), nil
}

// RemoveQuotesForUser removes every tradable belonging to user that this
// side holds. IDs are collected in a first pass and removed in a second to
// avoid mutating the level lists while iterating them.
func (s *BookSide) RemoveQuotesForUser(user string) []TradableDTO {
	var ids []string
	for id, loc := range s.index {
		t := loc.elem.Value.(tradable.Tradable)
		if t.User() == user {
			ids = append(ids, id)
		}
	}

	out := make([]TradableDTO, 0, len(ids))
	for _, id := range ids {
		dto, err := s.Cancel(id)
		if err == nil {
			out = append(out, dto)
		}
	}
	return out
}

// bestPrice returns the best resting price for this side, or false if
// the side is empty. BUY's best is the highest price; SELL's is the
// lowest. No global sorted structure is kept (per spec, it isn't
// required) — this scans the level map, which is acceptable since an
// instrument's distinct resting price count is small relative to its
// order count.
func (s *BookSide) bestPrice() (price.Price, bool) {
	var best price.Price
	found := false
	for p := range s.levels {
		if !found {
			best = p
			found = true
			continue
		}
		if s.side == tradable.Buy {
			if p > best {
				best = p
			}
		} else {
			if p < best {
				best = p
			}
		}
	}
	return best, found
}

// TopOfBookPrice returns the best price, or false if the side is empty.
func (s *BookSide) TopOfBookPrice() (price.Price, bool) {
	return s.bestPrice()
}

// TopOfBookVolume returns the sum of remaining volume at the best price,
// or 0 if the side is empty.
func (s *BookSide) TopOfBookVolume() int64 {
	best, ok := s.bestPrice()
	if !ok {
		return 0
	}
	return s.levels[best].sumRemaining()
}

// PeekHead returns the earliest-arrived tradable at the best price,
// without removing it, or false if the side is empty.
func (s *BookSide) PeekHead() (tradable.Tradable, bool) {
	best, ok := s.bestPrice()
	if !ok {
		return nil, false
	}
	e, ok := s.levels[best].front()
	if !ok {
		return nil, false
	}
	return e.Value.(tradable.Tradable), true
}

// LiquidityAtOrBetter sums RemainingVolume across every resting tradable
// whose price is at or better than limit for this side's crossing
// direction (<=limit for a SELL side being bought into, >=limit for a BUY
// side being sold into), excluding any id present in the skip set. Used
// by the FOK gate (see productbook.go) to compute eligible counter-side
// liquidity net of STP exclusions.
func (s *BookSide) LiquidityAtOrBetter(limit price.Price, crossingSide tradable.Side, skip map[string]bool) int64 {
	var total int64
	for p, lvl := range s.levels {
		if crossingSide == tradable.Buy {
			// Incoming buy crosses resting sells priced <= limit.
			if p > limit {
				continue
			}
		} else {
			// Incoming sell crosses resting buys priced >= limit.
			if p < limit {
				continue
			}
		}
		for e := lvl.order.Front(); e != nil; e = e.Next() {
			t := e.Value.(tradable.Tradable)
			if skip != nil && skip[t.ID()] {
				continue
			}
			total += t.RemainingVolume()
		}
	}
	return total
}

// TradeOut removes volume units at exactly price, consuming tradables in
// time-priority order. The caller guarantees the level holds at least
// volume. Partial consumption updates the head tradable; full consumption
// removes it; the level is deleted once empty.
func (s *BookSide) TradeOut(px price.Price, volume int64) ([]FillRecord, error) {
	lvl, ok := s.levels[px]
	if !ok {
		return nil, errors.New("book: no level at price for trade_out")
	}

	var fills []FillRecord
	remaining := volume
	for remaining > 0 {
		e, ok := lvl.front()
		if !ok {
			return nil, errors.New("book: level exhausted before trade_out volume satisfied")
		}
		t := e.Value.(tradable.Tradable)
		take := t.RemainingVolume()
		if take > remaining {
			take = remaining
		}
		ft := t.Fill(take)
		remaining -= take
		fills = append(fills, FillRecord{Tradable: t, FillType: ft, Quantity: take})

		if ft == tradable.Full {
			lvl.remove(e)
			delete(s.index, t.ID())
		}
	}
	if lvl.empty() {
		delete(s.levels, px)
	}
	return fills, nil
}

// walk calls fn for every tradable resting on this side, in no
// particular order. Used by the FOK gate to find which resting
// tradables would be excluded by self-trade prevention against an
// incoming order (see ProductBook.fokEligibleLocked).
func (s *BookSide) walk(fn func(tradable.Tradable)) {
	for _, lvl := range s.levels {
		for e := lvl.order.Front(); e != nil; e = e.Next() {
			fn(e.Value.(tradable.Tradable))
		}
	}
}

// Has reports whether id currently rests on this side.
func (s *BookSide) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Empty reports whether the side currently holds no resting tradables.
func (s *BookSide) Empty() bool {
	return len(s.levels) == 0
}
