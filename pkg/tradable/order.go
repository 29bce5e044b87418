package tradable

import "github.com/lightsgoout/exchange-engine/pkg/price"

// Order is a single-sided resting limit or fill-or-kill order.
type Order struct {
	base

	orderType     OrderType
	linkType      LinkType
	linkedOrderID string
}

// NewOrder constructs an Order in status PENDING. Callers must transition
// it to Accepted once admitted to a BookSide.
func NewOrder(id, user, instrument string, side Side, px price.Price, volume int64, orderType OrderType) (*Order, error) {
	b, err := newBase(id, user, instrument, side, px, volume)
	if err != nil {
		return nil, err
	}
	return &Order{base: b, orderType: orderType, linkType: Standalone}, nil
}

// WithLink sets OCO/OSO/OTO linkage on a not-yet-admitted order.
func (o *Order) WithLink(linkType LinkType, linkedOrderID string) *Order {
	o.linkType = linkType
	o.linkedOrderID = linkedOrderID
	return o
}

// OrderType returns LIMIT or FOK.
func (o *Order) OrderType() OrderType { return o.orderType }

// LinkType returns the order's linkage kind.
func (o *Order) LinkType() LinkType { return o.linkType }

// LinkedOrderID returns the counterpart id for linked orders, or "".
func (o *Order) LinkedOrderID() string { return o.linkedOrderID }
