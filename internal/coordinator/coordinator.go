// Package coordinator implements the single admission entry point:
// every external request (order, quote, cancel) passes through
// Coordinator's SubmitOrder, SubmitQuote, Cancel or RemoveQuotesForUser,
// which are the only callers of ProductBook's mutating
// methods and owns all latency-timeline stamping (SPEC_FULL.md §4.13).
package coordinator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lightsgoout/exchange-engine/internal/book"
	"github.com/lightsgoout/exchange-engine/internal/latency"
	"github.com/lightsgoout/exchange-engine/internal/productmanager"
	"github.com/lightsgoout/exchange-engine/internal/usermanager"
	"github.com/lightsgoout/exchange-engine/pkg/tradable"
)

// ErrUnknownInstrument is returned when a request names an instrument
// with no registered ProductBook.
var ErrUnknownInstrument = errors.New("coordinator: unknown instrument")

// ErrUnknownUser is returned when a request names an unregistered user.
var ErrUnknownUser = errors.New("coordinator: unknown user")

// Coordinator is the process's single admission entry point. It is
// constructed once at startup with its collaborators injected (design
// note §9: no package-level singletons) and is safe for concurrent use
// by multiple admission threads, since all actual mutation is delegated
// to each instrument's own ProductBook lock.
type Coordinator struct {
	products *productmanager.Manager
	users    *usermanager.Manager
	monitor  *latency.Monitor
	logger   *zap.Logger
}

// New constructs a Coordinator wired to its collaborators.
func New(products *productmanager.Manager, users *usermanager.Manager, monitor *latency.Monitor, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{products: products, users: users, monitor: monitor, logger: logger}
}

// SubmitOrder admits a single order request: looks up the book by
// instrument, calls ProductBook.Add, and records the completed
// LatencyTimeline. Per SPEC_FULL.md §4.13, the FOK gate and the lock
// acquisition both happen inside Add itself — the coordinator only
// brackets the call with checkpoints, it never takes a book lock of its
// own.
func (c *Coordinator) SubmitOrder(o *tradable.Order) (book.AddResult, error) {
	timeline := latency.NewTimeline(o.ID(), o.Instrument())
	timeline.Stamp(latency.T1Deserialized)

	if !c.users.Has(o.User()) {
		c.monitor.Record(timeline)
		return book.AddResult{}, fmt.Errorf("%w: %s", ErrUnknownUser, o.User())
	}
	timeline.Stamp(latency.T2Validated)

	pb, ok := c.products.Get(o.Instrument())
	if !ok {
		c.monitor.Record(timeline)
		return book.AddResult{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, o.Instrument())
	}

	// ProductBook.Add runs lock acquisition, the FOK gate, insertion,
	// crossing, and synchronous audit-sink delivery as one atomic,
	// synchronous call — there is no coordinator-visible seam between
	// "lock acquired" and "matching complete", so T3-T7 are stamped
	// immediately before and after the single call rather than from
	// inside the book (see DESIGN.md, "Admission coordinator checkpoint
	// granularity").
	timeline.Stamp(latency.T3LockAcquired)
	timeline.Stamp(latency.T4MatchingBegins)
	timeline.Stamp(latency.T6ExecutionBegins)
	timeline.Stamp(latency.T8AuditBegins)

	result, err := pb.Add(o)

	timeline.Stamp(latency.T5MatchingComplete)
	timeline.Stamp(latency.T7ExecutionDone)
	timeline.Stamp(latency.T9AuditComplete)
	timeline.Stamp(latency.T10ResponseSent)

	c.monitor.Record(timeline)

	if err != nil && !errors.Is(err, book.ErrRejectedFOK) {
		c.logger.Warn("order admission failed", zap.String("order_id", o.ID()), zap.Error(err))
	}
	return result, err
}

// SubmitQuote admits a two-sided quote, replacing any prior quote for the
// same (user, instrument).
func (c *Coordinator) SubmitQuote(q *tradable.Quote) (book.AddResult, error) {
	timeline := latency.NewTimeline(q.ID, q.Instrument)
	timeline.Stamp(latency.T1Deserialized)

	if !c.users.Has(q.User) {
		c.monitor.Record(timeline)
		return book.AddResult{}, fmt.Errorf("%w: %s", ErrUnknownUser, q.User)
	}
	timeline.Stamp(latency.T2Validated)

	pb, ok := c.products.Get(q.Instrument)
	if !ok {
		c.monitor.Record(timeline)
		return book.AddResult{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, q.Instrument)
	}

	timeline.Stamp(latency.T3LockAcquired)
	timeline.Stamp(latency.T4MatchingBegins)
	timeline.Stamp(latency.T6ExecutionBegins)
	timeline.Stamp(latency.T8AuditBegins)

	result, err := pb.AddQuote(q)

	timeline.Stamp(latency.T5MatchingComplete)
	timeline.Stamp(latency.T7ExecutionDone)
	timeline.Stamp(latency.T9AuditComplete)
	timeline.Stamp(latency.T10ResponseSent)

	c.monitor.Record(timeline)
	return result, err
}

// Cancel cancels a resting order by instrument/side/id.
func (c *Coordinator) Cancel(instrument string, side tradable.Side, id string) (book.TradableDTO, error) {
	timeline := latency.NewTimeline(id, instrument)
	timeline.Stamp(latency.T1Deserialized)
	timeline.Stamp(latency.T2Validated)

	pb, ok := c.products.Get(instrument)
	if !ok {
		c.monitor.Record(timeline)
		return book.TradableDTO{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, instrument)
	}

	timeline.Stamp(latency.T3LockAcquired)
	timeline.Stamp(latency.T4MatchingBegins)
	timeline.Stamp(latency.T6ExecutionBegins)
	timeline.Stamp(latency.T8AuditBegins)

	dto, err := pb.Cancel(side, id)

	timeline.Stamp(latency.T5MatchingComplete)
	timeline.Stamp(latency.T7ExecutionDone)
	timeline.Stamp(latency.T9AuditComplete)
	timeline.Stamp(latency.T10ResponseSent)

	c.monitor.Record(timeline)
	return dto, err
}

// RemoveQuotesForUser cancels both resting quote sides for user on
// instrument.
func (c *Coordinator) RemoveQuotesForUser(instrument, user string) ([]book.TradableDTO, error) {
	timeline := latency.NewTimeline(user, instrument)
	timeline.Stamp(latency.T1Deserialized)
	timeline.Stamp(latency.T2Validated)

	pb, ok := c.products.Get(instrument)
	if !ok {
		c.monitor.Record(timeline)
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, instrument)
	}

	timeline.Stamp(latency.T3LockAcquired)
	timeline.Stamp(latency.T4MatchingBegins)
	timeline.Stamp(latency.T6ExecutionBegins)
	timeline.Stamp(latency.T8AuditBegins)

	removed := pb.RemoveQuotesForUser(user)

	timeline.Stamp(latency.T5MatchingComplete)
	timeline.Stamp(latency.T7ExecutionDone)
	timeline.Stamp(latency.T9AuditComplete)
	timeline.Stamp(latency.T10ResponseSent)

	c.monitor.Record(timeline)
	return removed, nil
}
