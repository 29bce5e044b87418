package book

import "github.com/lightsgoout/exchange-engine/pkg/tradable"

// TradableDTO is an immutable point-in-time copy of a tradable's
// observable state, returned from BookSide/ProductBook operations so
// callers cannot accidentally mutate book-owned state through an
// aliased pointer.
type TradableDTO struct {
	ID               string
	User             string
	Instrument       string
	Side             tradable.Side
	Price            string // decimal string, see pkg/price.Price.String
	OriginalVolume   int64
	RemainingVolume  int64
	FilledVolume     int64
	CancelledVolume  int64
	Status           tradable.Status
	CreatedTS        int64
}

func snapshot(t tradable.Tradable) TradableDTO {
	return TradableDTO{
		ID:              t.ID(),
		User:            t.User(),
		Instrument:      t.Instrument(),
		Side:            t.Side(),
		Price:           t.Price().String(),
		OriginalVolume:  t.OriginalVolume(),
		RemainingVolume: t.RemainingVolume(),
		FilledVolume:    t.FilledVolume(),
		CancelledVolume: t.CancelledVolume(),
		Status:          t.Status(),
		CreatedTS:       t.CreatedTS(),
	}
}

// FillRecord describes one tradable's participation in a single trade_out
// call, used by ProductBook to emit ORDER_FILLED audit events.
type FillRecord struct {
	Tradable tradable.Tradable
	FillType tradable.FillType
	Quantity int64
}
