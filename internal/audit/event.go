// Package audit implements the tamper-evident, hash-chained audit trail:
// every admission, cancellation, fill, and trade is recorded as an
// immutable AuditEvent and chained via a running SHA-256 digest.
package audit

import "time"

// EventType is one of the fixed set of audit event kinds.
type EventType string

const (
	OrderPlaced         EventType = "ORDER_PLACED"
	OrderCancelled      EventType = "ORDER_CANCELLED"
	OrderFilled         EventType = "ORDER_FILLED"
	OrderPartiallyFilled EventType = "ORDER_PARTIALLY_FILLED"
	OrderRejected       EventType = "ORDER_REJECTED"
	QuoteSubmitted      EventType = "QUOTE_SUBMITTED"
	TradeExecuted       EventType = "TRADE_EXECUTED"
	MarketUpdate        EventType = "MARKET_UPDATE"
	SystemStart         EventType = "SYSTEM_START"
	SystemShutdown      EventType = "SYSTEM_SHUTDOWN"
)

// Event is an immutable audit record. Once hashed and published by
// HashChain.Append, none of its fields may be mutated.
type Event struct {
	EventID      string
	Type         EventType
	Timestamp    time.Time
	User         string // may be empty for system-scoped events
	Instrument   string // may be empty for system-scoped events
	Data         map[string]any
	Hash         string
	PreviousHash string
}
