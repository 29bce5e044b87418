// Package tradable models the polymorphic unit of book liquidity: an
// Order or one side of a Quote. Both are represented as a tagged variant
// behind the Tradable interface rather than a class hierarchy (see
// DESIGN.md's "Inheritance of Tradable" note): the common capability
// (id, user, instrument, price, side, volumes, status, created_ts) lives
// on Tradable; Order and QuoteSide add their own fields.
package tradable

import (
	"errors"
	"fmt"
	"time"

	"github.com/lightsgoout/exchange-engine/pkg/price"
)

// ErrInvalidVolume is returned when original volume is outside [1, 9999].
var ErrInvalidVolume = errors.New("tradable: volume out of range [1,9999]")

// Side is BUY or SELL. For BUY, "best price" means highest; for SELL,
// lowest.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Status is the lifecycle state of a Tradable.
type Status int

const (
	Pending Status = iota
	Accepted
	PartiallyFilled
	FullyFilled
	Cancelled
	CancelledOCO
	CancelledSTP
	RejectedFOK
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Accepted:
		return "ACCEPTED"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case FullyFilled:
		return "FULLY_FILLED"
	case Cancelled:
		return "CANCELLED"
	case CancelledOCO:
		return "CANCELLED_OCO"
	case CancelledSTP:
		return "CANCELLED_STP"
	case RejectedFOK:
		return "REJECTED_FOK"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal reports whether the status can never change again.
func (s Status) IsFinal() bool {
	switch s {
	case FullyFilled, Cancelled, CancelledOCO, CancelledSTP, RejectedFOK, Rejected:
		return true
	default:
		return false
	}
}

// IsExecutable reports whether a tradable in this status may still
// participate in a trade.
func (s Status) IsExecutable() bool {
	return s == Accepted || s == PartiallyFilled
}

// OrderType distinguishes resting limit orders from Fill-or-Kill orders.
type OrderType int

const (
	Limit OrderType = iota
	FOK
)

func (t OrderType) String() string {
	if t == FOK {
		return "FOK"
	}
	return "LIMIT"
}

// LinkType describes how an Order is related to another order.
type LinkType int

const (
	Standalone LinkType = iota
	OCO
	OSO
	OTO
)

func (l LinkType) String() string {
	switch l {
	case OCO:
		return "OCO"
	case OSO:
		return "OSO"
	case OTO:
		return "OTO"
	default:
		return "STANDALONE"
	}
}

// Tradable is anything that can rest on, or cross, a BookSide.
type Tradable interface {
	ID() string
	User() string
	Instrument() string
	Price() price.Price
	Side() Side
	OriginalVolume() int64
	RemainingVolume() int64
	FilledVolume() int64
	CancelledVolume() int64
	Status() Status
	CreatedTS() int64

	SetStatus(Status)
	// Fill reduces remaining and increases filled by qty, returning the
	// fill_type ("PARTIAL" or "FULL"). qty must not exceed RemainingVolume.
	Fill(qty int64) FillType
	// Cancel moves all remaining volume into cancelled and returns it.
	Cancel() int64
}

// FillType classifies how much of a tradable's remaining volume a single
// trade consumed.
type FillType int

const (
	Partial FillType = iota
	Full
)

func (f FillType) String() string {
	if f == Full {
		return "FULL"
	}
	return "PARTIAL"
}

// base holds the fields and bookkeeping common to every Tradable.
type base struct {
	id         string
	user       string
	instrument string
	side       Side
	px         price.Price
	original   int64
	remaining  int64
	filled     int64
	cancelled  int64
	status     Status
	createdTS  int64
}

func newBase(id, user, instrument string, side Side, px price.Price, volume int64) (base, error) {
	if volume < 1 || volume > 9999 {
		return base{}, ErrInvalidVolume
	}
	return base{
		id:         id,
		user:       user,
		instrument: instrument,
		side:       side,
		px:         px,
		original:   volume,
		remaining:  volume,
		status:     Pending,
		createdTS:  time.Now().UnixNano(),
	}, nil
}

func (b *base) ID() string              { return b.id }
func (b *base) User() string            { return b.user }
func (b *base) Instrument() string      { return b.instrument }
func (b *base) Price() price.Price      { return b.px }
func (b *base) Side() Side              { return b.side }
func (b *base) OriginalVolume() int64   { return b.original }
func (b *base) RemainingVolume() int64  { return b.remaining }
func (b *base) FilledVolume() int64     { return b.filled }
func (b *base) CancelledVolume() int64  { return b.cancelled }
func (b *base) Status() Status          { return b.status }
func (b *base) CreatedTS() int64        { return b.createdTS }
func (b *base) SetStatus(s Status)      { b.status = s }

func (b *base) Fill(qty int64) FillType {
	if qty < 0 || qty > b.remaining {
		panic(fmt.Sprintf("tradable %s: fill %d exceeds remaining %d", b.id, qty, b.remaining))
	}
	b.remaining -= qty
	b.filled += qty
	if b.remaining == 0 {
		b.status = FullyFilled
		return Full
	}
	b.status = PartiallyFilled
	return Partial
}

func (b *base) Cancel() int64 {
	moved := b.remaining
	b.cancelled += moved
	b.remaining = 0
	return moved
}

// invariant is a sanity check exposed for tests and the fatal-on-defect
// path; it never needs to be called in the hot path because Fill/Cancel
// cannot violate it by construction.
func (b *base) invariant() bool {
	return b.remaining+b.filled+b.cancelled == b.original && b.remaining >= 0
}
