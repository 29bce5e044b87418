package tradable

import "github.com/lightsgoout/exchange-engine/pkg/price"

// QuoteSide is one side (buy or sell) of a two-sided Quote submitted
// atomically by one user for one instrument.
type QuoteSide struct {
	base

	quoteID string // shared by both sides of the same Quote submission
}

// NewQuoteSide constructs one side of a quote in status PENDING.
func NewQuoteSide(id, quoteID, user, instrument string, side Side, px price.Price, volume int64) (*QuoteSide, error) {
	b, err := newBase(id, user, instrument, side, px, volume)
	if err != nil {
		return nil, err
	}
	return &QuoteSide{base: b, quoteID: quoteID}, nil
}

// QuoteID returns the id shared by both sides of the originating Quote.
func (q *QuoteSide) QuoteID() string { return q.quoteID }

// Quote is a pair of tradables (buy side + sell side) submitted
// atomically under one user for one instrument. A user has at most one
// active quote per instrument; admitting a new one removes the prior
// quote's sides from the book.
type Quote struct {
	ID         string
	User       string
	Instrument string
	Buy        *QuoteSide
	Sell       *QuoteSide
}
