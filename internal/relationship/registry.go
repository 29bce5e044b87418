// Package relationship maintains the bijective One-Cancels-Other linkage
// between orders and its active/inactive state. Stored twice per link (once
// per order id) so lookup is O(1) from either side; both entries are always
// added, deactivated, and removed together.
package relationship

import (
	"sync"
	"time"
)

// Relationship is a single OCO link between two orders.
type Relationship struct {
	PrimaryID string
	LinkedID  string
	LinkType  string
	Active    bool
	CreatedTS int64
}

// Registry is a thread-safe, double-keyed store of active relationships.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Relationship
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Relationship)}
}

// Link creates an OCO relationship between a and b, visible from either
// id. Both orders must already be accepted on the book by the caller's
// contract (the registry itself does not validate book membership;
// ProductBook.Add links a leg only once its counterpart rests).
func (r *Registry) Link(a, b, linkType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel := &Relationship{
		PrimaryID: a,
		LinkedID:  b,
		LinkType:  linkType,
		Active:    true,
		CreatedTS: time.Now().UnixNano(),
	}
	r.byID[a] = rel
	r.byID[b] = rel
}

// CounterpartyIfActive returns the linked order id for id, if an active
// relationship exists.
func (r *Registry) CounterpartyIfActive(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.byID[id]
	if !ok || !rel.Active {
		return "", false
	}
	if rel.PrimaryID == id {
		return rel.LinkedID, true
	}
	return rel.PrimaryID, true
}

// Deactivate marks the relationship involving id inactive (used on an
// explicit cancel, which per spec must not cascade) without removing it.
func (r *Registry) Deactivate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.byID[id]
	if !ok {
		return
	}
	rel.Active = false
}

// Remove deletes the relationship entirely from both of its keys (used
// once an OCO cascade has completed; an explicit cancel only calls
// Deactivate).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, rel.PrimaryID)
	delete(r.byID, rel.LinkedID)
}

// Has reports whether id currently participates in any relationship
// (active or not).
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}
