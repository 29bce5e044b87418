package book

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lightsgoout/exchange-engine/internal/audit"
	"github.com/lightsgoout/exchange-engine/internal/relationship"
	"github.com/lightsgoout/exchange-engine/internal/stp"
	"github.com/lightsgoout/exchange-engine/internal/topofbook"
	"github.com/lightsgoout/exchange-engine/pkg/price"
	"github.com/lightsgoout/exchange-engine/pkg/tradable"
)

// ErrRejectedFOK is returned by Add when an FOK order fails the
// eligibility gate; the book is left unmutated.
var ErrRejectedFOK = errors.New("book: FOK order rejected, insufficient eligible liquidity")

// AddResult carries the admitted tradable's final snapshot plus any
// trades it produced, for the coordinator to relay to the caller.
type AddResult struct {
	Tradable TradableDTO
	Trades   []TradeDTO
}

// TradeDTO is an immutable record of one crossing-loop execution.
type TradeDTO struct {
	Instrument string
	Price      price.Price
	Quantity   int64
	BuyID      string
	SellID     string
}

// ProductBook is one instrument's order book: two BookSides under a
// single exclusive lock, wired to the STP policy, the OCO relationship
// registry, the audit hash chain, and the top-of-book publisher. Every
// mutating operation (Add, AddQuote, Cancel, RemoveQuotesForUser) holds
// the same lock for its whole duration, which is what makes the FOK
// gate's eligibility snapshot and the subsequent crossing consistent
// (see SPEC_FULL.md §4.13).
type ProductBook struct {
	instrument string
	logger     *zap.Logger

	mu   sync.Mutex
	buy  *BookSide
	sell *BookSide

	stpMode      stp.Mode
	stpExtractor stp.TraderIDExtractor

	relationships *relationship.Registry
	chain         *audit.HashChain
	publisher     *topofbook.Publisher
}

// NewProductBook constructs an empty book for instrument, wired to the
// given relationship registry, audit chain, and top-of-book publisher.
// stpMode may be changed later via SetSTPMode.
func NewProductBook(
	instrument string,
	stpMode stp.Mode,
	relationships *relationship.Registry,
	chain *audit.HashChain,
	publisher *topofbook.Publisher,
	logger *zap.Logger,
) *ProductBook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductBook{
		instrument:    instrument,
		logger:        logger,
		buy:           NewBookSide(tradable.Buy),
		sell:          NewBookSide(tradable.Sell),
		stpMode:       stpMode,
		stpExtractor:  stp.DefaultExtractor,
		relationships: relationships,
		chain:         chain,
		publisher:     publisher,
	}
}

// SetSTPMode atomically changes the self-trade prevention mode applied
// to future crossings. Per spec.md §4.3, the mode "can be changed at
// runtime atomically" — it takes the book's own lock rather than a
// separate one to guarantee no crossing loop observes a torn read.
func (b *ProductBook) SetSTPMode(mode stp.Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stpMode = mode
}

// Instrument returns the instrument this book matches.
func (b *ProductBook) Instrument() string { return b.instrument }

func (b *ProductBook) sideFor(side tradable.Side) *BookSide {
	if side == tradable.Buy {
		return b.buy
	}
	return b.sell
}

// Add admits t per spec.md §4.2's numbered control flow: validate,
// acquire the exclusive lock, gate FOK orders before mutating anything,
// emit ORDER_PLACED, insert, cross, publish top-of-book, register any OCO
// link once its counterpart also rests on the book, release.
func (b *ProductBook) Add(t tradable.Tradable) (AddResult, error) {
	if t == nil || t.RemainingVolume() <= 0 {
		return AddResult{}, ErrInvalidInput
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if order, ok := t.(*tradable.Order); ok && order.OrderType() == tradable.FOK {
		if !b.fokEligibleLocked(t) {
			t.SetStatus(tradable.RejectedFOK)
			b.emitLocked(audit.OrderRejected, t.User(), t.Instrument(), map[string]any{
				"tradable_id": t.ID(),
				"reason":      "FOK",
			})
			return AddResult{Tradable: snapshot(t)}, ErrRejectedFOK
		}
	}

	t.SetStatus(tradable.Accepted)
	b.emitLocked(audit.OrderPlaced, t.User(), t.Instrument(), map[string]any{
		"tradable_id": t.ID(),
		"side":        t.Side().String(),
		"price":       t.Price().String(),
		"volume":      t.OriginalVolume(),
	})

	if _, err := b.sideFor(t.Side()).Add(t); err != nil {
		return AddResult{}, err
	}

	trades := b.tryTradeLocked()
	b.publishLocked()

	if order, ok := t.(*tradable.Order); ok && order.LinkType() == tradable.OCO && !t.Status().IsFinal() {
		linked := order.LinkedOrderID()
		if b.buy.Has(linked) || b.sell.Has(linked) {
			b.relationships.Link(order.ID(), linked, tradable.OCO.String())
		}
	}

	return AddResult{Tradable: snapshot(t), Trades: trades}, nil
}

// AddQuote atomically replaces any existing quote sides for quote.User on
// this instrument with the two new sides, then crosses.
func (b *ProductBook) AddQuote(quote *tradable.Quote) (AddResult, error) {
	if quote == nil || quote.Buy == nil || quote.Sell == nil {
		return AddResult{}, ErrInvalidInput
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.buy.RemoveQuotesForUser(quote.User)
	b.sell.RemoveQuotesForUser(quote.User)

	quote.Buy.SetStatus(tradable.Accepted)
	quote.Sell.SetStatus(tradable.Accepted)

	b.emitLocked(audit.QuoteSubmitted, quote.User, quote.Instrument, map[string]any{
		"quote_id":   quote.ID,
		"buy_price":  quote.Buy.Price().String(),
		"sell_price": quote.Sell.Price().String(),
	})

	if _, err := b.buy.Add(quote.Buy); err != nil {
		return AddResult{}, err
	}
	if _, err := b.sell.Add(quote.Sell); err != nil {
		return AddResult{}, err
	}

	trades := b.tryTradeLocked()
	b.publishLocked()

	return AddResult{Trades: trades}, nil
}

// Cancel removes id from side, emits ORDER_CANCELLED, publishes the
// updated top-of-book, and deactivates (without cascading) any OCO
// relationship the tradable participated in.
func (b *ProductBook) Cancel(side tradable.Side, id string) (TradableDTO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dto, err := b.sideFor(side).Cancel(id)
	if err != nil {
		return TradableDTO{}, err
	}

	b.emitLocked(audit.OrderCancelled, dto.User, dto.Instrument, map[string]any{
		"tradable_id": id,
		"reason":      "EXPLICIT",
	})
	b.relationships.Deactivate(id)
	b.publishLocked()
	return dto, nil
}

// RemoveQuotesForUser cancels both resting quote sides for user, emitting
// one ORDER_CANCELLED event per side removed.
func (b *ProductBook) RemoveQuotesForUser(user string) []TradableDTO {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []TradableDTO
	for _, dto := range b.buy.RemoveQuotesForUser(user) {
		b.emitLocked(audit.OrderCancelled, dto.User, dto.Instrument, map[string]any{
			"tradable_id": dto.ID, "reason": "QUOTE_REPLACED",
		})
		removed = append(removed, dto)
	}
	for _, dto := range b.sell.RemoveQuotesForUser(user) {
		b.emitLocked(audit.OrderCancelled, dto.User, dto.Instrument, map[string]any{
			"tradable_id": dto.ID, "reason": "QUOTE_REPLACED",
		})
		removed = append(removed, dto)
	}
	b.publishLocked()
	return removed
}

// fokEligibleLocked computes the opposite side's eligible liquidity at or
// better than t's limit price, net of any volume that would be skipped by
// the currently configured STP mode against t, per spec.md §4.4. Must be
// called with b.mu held.
func (b *ProductBook) fokEligibleLocked(t tradable.Tradable) bool {
	opposite := b.sideFor(t.Side().Opposite())

	skip := make(map[string]bool)
	if b.stpMode != stp.Allow {
		opposite.walk(func(resting tradable.Tradable) {
			if stp.IsSelfTrade(b.stpExtractor, t, resting) {
				skip[resting.ID()] = true
			}
		})
	}

	eligible := opposite.LiquidityAtOrBetter(t.Price(), t.Side(), skip)
	return eligible >= t.RemainingVolume()
}

// tryTradeLocked runs the crossing loop of spec.md §4.2.1 until the book
// is no longer crossed or either side empties. Must be called with b.mu
// held.
func (b *ProductBook) tryTradeLocked() []TradeDTO {
	var trades []TradeDTO

	for {
		bidPx, bidOK := b.buy.TopOfBookPrice()
		askPx, askOK := b.sell.TopOfBookPrice()
		if !bidOK || !askOK || bidPx.Less(askPx) {
			return trades
		}

		bidHead, ok := b.buy.PeekHead()
		if !ok {
			return trades
		}
		askHead, ok := b.sell.PeekHead()
		if !ok {
			return trades
		}

		if stp.IsSelfTrade(b.stpExtractor, bidHead, askHead) {
			outcome := stp.Apply(b.stpMode)
			if outcome.CancelIncoming {
				b.stpCancelLocked(&bidHead, &askHead, true)
			}
			if outcome.CancelResting {
				b.stpCancelLocked(&bidHead, &askHead, false)
			}
			if outcome.ExitLoop {
				return trades
			}
			if outcome.CancelIncoming || outcome.CancelResting {
				continue // CANCEL_RESTING: resting head removed, loop again
			}
			// ALLOW: no cancellation, fall through and trade normally.
		}

		tradeVolume := bidHead.RemainingVolume()
		if askHead.RemainingVolume() < tradeVolume {
			tradeVolume = askHead.RemainingVolume()
		}

		restingIsBid := isRestingSide(bidHead, askHead)
		var tradePrice price.Price
		if restingIsBid {
			tradePrice = bidHead.Price()
		} else {
			tradePrice = askHead.Price()
		}

		b.emitLocked(audit.TradeExecuted, "", b.instrument, map[string]any{
			"price":    tradePrice.String(),
			"quantity": tradeVolume,
			"buy_id":   bidHead.ID(),
			"sell_id":  askHead.ID(),
		})

		buyFills, err := b.buy.TradeOut(bidPx, tradeVolume)
		if err != nil {
			panic(fmt.Sprintf("book: invariant violation trading out buy side of %s: %v", b.instrument, err))
		}
		sellFills, err := b.sell.TradeOut(askPx, tradeVolume)
		if err != nil {
			panic(fmt.Sprintf("book: invariant violation trading out sell side of %s: %v", b.instrument, err))
		}

		trades = append(trades, TradeDTO{
			Instrument: b.instrument,
			Price:      tradePrice,
			Quantity:   tradeVolume,
			BuyID:      bidHead.ID(),
			SellID:     askHead.ID(),
		})

		b.emitFillsLocked(buyFills)
		b.emitFillsLocked(sellFills)
		b.cascadeOCOLocked(buyFills)
		b.cascadeOCOLocked(sellFills)
	}
}

// isRestingSide reports whether bid is the resting side: the tradable
// admitted earlier (lower CreatedTS), ties broken by id lexicographically.
func isRestingSide(bid, ask tradable.Tradable) bool {
	if bid.CreatedTS() != ask.CreatedTS() {
		return bid.CreatedTS() < ask.CreatedTS()
	}
	return bid.ID() < ask.ID()
}

// stpCancelLocked cancels the incoming or resting tradable with status
// CANCELLED_STP and emits one ORDER_CANCELLED audit event naming both
// counterparties, per spec.md §4.3.
func (b *ProductBook) stpCancelLocked(bidHead, askHead *tradable.Tradable, cancelIncoming bool) {
	// The "incoming" tradable in a crossing-loop iteration is ambiguous
	// once both heads already rest on the book (both are peeked, neither
	// was "just admitted" mid-loop); spec.md §4.2.1 step 2 treats the
	// most recently admitted side for this Add call as incoming. Since
	// tryTradeLocked is invoked once per Add/AddQuote after insertion,
	// the incoming tradable is whichever head has the later CreatedTS.
	bid, ask := *bidHead, *askHead
	var incoming, resting tradable.Tradable
	if isRestingSide(bid, ask) {
		resting, incoming = bid, ask
	} else {
		resting, incoming = ask, bid
	}

	target := resting
	if cancelIncoming {
		target = incoming
	}

	side := b.sideFor(target.Side())
	dto, err := side.CancelWithStatus(target.ID(), tradable.CancelledSTP)
	if err != nil {
		return // already removed by a prior step in this same iteration
	}

	other := incoming
	if target.ID() == incoming.ID() {
		other = resting
	}
	b.emitLocked(audit.OrderCancelled, dto.User, dto.Instrument, map[string]any{
		"tradable_id":  dto.ID,
		"reason":       "STP",
		"counterparty": other.ID(),
	})
}

// emitFillsLocked emits ORDER_PARTIALLY_FILLED or ORDER_FILLED for each
// fill record, per the fill_type it carries.
func (b *ProductBook) emitFillsLocked(fills []FillRecord) {
	for _, f := range fills {
		eventType := audit.OrderPartiallyFilled
		if f.FillType == tradable.Full {
			eventType = audit.OrderFilled
		}
		b.emitLocked(eventType, f.Tradable.User(), f.Tradable.Instrument(), map[string]any{
			"tradable_id": f.Tradable.ID(),
			"fill_type":   f.FillType.String(),
			"quantity":    f.Quantity,
			"remaining":   f.Tradable.RemainingVolume(),
		})
	}
}

// cascadeOCOLocked implements spec.md §4.2.1 step 7: for every tradable
// that just reached FULLY_FILLED, cancel its still-resting OCO
// counterpart with status CANCELLED_OCO and remove the relationship.
func (b *ProductBook) cascadeOCOLocked(fills []FillRecord) {
	for _, f := range fills {
		if f.Tradable.Status() != tradable.FullyFilled {
			continue
		}
		counterpartyID, ok := b.relationships.CounterpartyIfActive(f.Tradable.ID())
		if !ok {
			continue
		}
		for _, side := range [2]*BookSide{b.buy, b.sell} {
			if !side.Has(counterpartyID) {
				continue
			}
			dto, err := side.CancelWithStatus(counterpartyID, tradable.CancelledOCO)
			if err != nil {
				continue
			}
			b.emitLocked(audit.OrderCancelled, dto.User, dto.Instrument, map[string]any{
				"tradable_id": counterpartyID,
				"reason":      "OCO",
			})
			break
		}
		b.relationships.Remove(f.Tradable.ID())
	}
}

// publishLocked recomputes top-of-book for both sides and publishes the
// snapshot before the caller releases the exclusive lock, so observers
// see at least the post-commit state of every admitted event in causal
// order (spec.md §4.6).
func (b *ProductBook) publishLocked() {
	snap := topofbook.Snapshot{Instrument: b.instrument}
	if px, ok := b.buy.TopOfBookPrice(); ok {
		snap.HasBid = true
		snap.BidPrice = px
		snap.BidVolume = b.buy.TopOfBookVolume()
	}
	if px, ok := b.sell.TopOfBookPrice(); ok {
		snap.HasAsk = true
		snap.AskPrice = px
		snap.AskVolume = b.sell.TopOfBookVolume()
	}
	b.publisher.Publish(snap)
}

// emitLocked appends an audit event to the chain. Each Sink decides its
// own fatal/advisory contract: the advisory database sink swallows its
// failures and returns nil, so an error reaching here comes from the
// primary file sink (or from an event that cannot be hashed) and is
// fatal — logger.Fatal writes the log line and exits the process.
func (b *ProductBook) emitLocked(eventType audit.EventType, user, instrument string, data map[string]any) {
	event := audit.Event{
		EventID:    audit.NewEventID(),
		Type:       eventType,
		Timestamp:  time.Now(),
		User:       user,
		Instrument: instrument,
		Data:       data,
	}
	if _, err := b.chain.Append(event); err != nil {
		b.logger.Fatal("audit sink delivery failed",
			zap.String("event_type", string(eventType)),
			zap.String("instrument", instrument),
			zap.Error(err))
	}
}
