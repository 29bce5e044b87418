package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// GenesisHash is the literal previous_hash carried by the first event in
// any chain.
const GenesisHash = "0"

// Sink receives a fully hashed, frozen event. Implementations must not
// block the chain's Append call for long; see internal/auditsink for the
// advisory-database wrapper and sink_file.go for the file sink.
type Sink interface {
	Deliver(Event) error
}

// HashChain holds the single running previous_hash and serializes all
// Append calls on a dedicated lock, independent of any ProductBook lock,
// so the chain is total-ordered across every instrument. Per design note
// §9 this is an owned object created once at system start and passed
// explicitly — never mutable package-level global state.
type HashChain struct {
	mu           sync.Mutex
	previousHash string
	sinks        []Sink
}

// NewHashChain returns a chain seeded at the genesis hash.
func NewHashChain(sinks ...Sink) *HashChain {
	return &HashChain{previousHash: GenesisHash, sinks: sinks}
}

// AddSink registers an additional delivery target.
func (c *HashChain) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// NewEventID mints a v4-style unique event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// Append assigns previous_hash, computes the event's hash over
// previous_hash || canonical_json(event_without_hashes), advances the
// chain's running hash, and delivers the now-frozen event to every
// registered sink. It returns the frozen event (with Hash/PreviousHash
// populated) and the first sink delivery error encountered, if any.
// HashChain itself has no opinion on sink policy: an advisory sink
// reports success after swallowing its own failure, so any error
// returned here is one the sink wants treated as fatal.
func (c *HashChain) Append(e Event) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.PreviousHash = c.previousHash

	canon, err := canonicalJSON(e)
	if err != nil {
		return Event{}, err
	}

	e.Hash = hashOf(e.PreviousHash, canon)
	c.previousHash = e.Hash

	var firstErr error
	for _, sink := range c.sinks {
		if err := sink.Deliver(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return e, firstErr
}

// PreviousHash returns the chain's current running hash (the hash that
// would become the previous_hash of the next appended event).
func (c *HashChain) PreviousHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previousHash
}

func hashOf(previousHash string, canonicalEvent []byte) string {
	sum := sha256.Sum256(append([]byte(previousHash), canonicalEvent...))
	return hex.EncodeToString(sum[:])
}
