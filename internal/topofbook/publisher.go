// Package topofbook delivers per-instrument top-of-book snapshots to
// subscribed observers whenever either side's best price or volume
// changes. Publication happens inside the admission coordinator's
// critical section (see internal/book.ProductBook) but delivery to each
// observer is non-blocking by contract: a slow or dead observer must
// never stall an admission.
package topofbook

import (
	"sync"

	"github.com/lightsgoout/exchange-engine/pkg/price"
)

// Snapshot is the observable top-of-book state for one instrument.
type Snapshot struct {
	Instrument string
	BidPrice   price.Price
	HasBid     bool
	BidVolume  int64
	AskPrice   price.Price
	HasAsk     bool
	AskVolume  int64
}

// Observer receives snapshots for the instrument(s) it subscribed to.
type Observer interface {
	// Notify is called with the latest snapshot. Implementations must
	// return quickly; Publisher never waits on a slow Notify beyond its
	// own buffered channel depth (see NewBufferedObserver).
	Notify(Snapshot)
}

// Publisher fans out snapshots to registered observers in the order they
// were produced, per instrument, and never propagates an observer's
// panic/error back into the caller's critical section. One Publisher is
// shared by every ProductBook, so its maps are guarded by mu.
type Publisher struct {
	mu        sync.Mutex
	observers map[string][]Observer // instrument -> observers
	last      map[string]Snapshot
}

// NewPublisher returns an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		observers: make(map[string][]Observer),
		last:      make(map[string]Snapshot),
	}
}

// Subscribe registers obs to receive snapshots for instrument. Safe to
// call while admissions are publishing (the websocket hub subscribes each
// new connection at runtime).
func (p *Publisher) Subscribe(instrument string, obs Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers[instrument] = append(p.observers[instrument], obs)
}

// Publish delivers snap to every observer of its instrument, but only if
// it differs from the last snapshot published for that instrument (spec:
// "whenever either top-of-book field changes"). Delivery is wrapped in a
// recover so a misbehaving observer can never unwind into the matching
// critical section.
func (p *Publisher) Publish(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.last[snap.Instrument]
	if ok && prev == snap {
		return
	}
	p.last[snap.Instrument] = snap

	for _, obs := range p.observers[snap.Instrument] {
		deliver(obs, snap)
	}
}

func deliver(obs Observer, snap Snapshot) {
	defer func() {
		_ = recover() // an observer's panic is its own problem, not ours
	}()
	obs.Notify(snap)
}
