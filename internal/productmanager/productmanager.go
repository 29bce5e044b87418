// Package productmanager owns the instrument -> ProductBook registry.
// Instruments are registered once at process startup (per SPEC_FULL.md
// §2's component table); there is no runtime add/remove of instruments,
// mirroring the teacher's fixed-universe assumption while replacing its
// package-level singleton with an explicitly constructed, injectable
// collaborator (design note §9, "Singletons -> dependency injection").
package productmanager

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lightsgoout/exchange-engine/internal/audit"
	"github.com/lightsgoout/exchange-engine/internal/book"
	"github.com/lightsgoout/exchange-engine/internal/relationship"
	"github.com/lightsgoout/exchange-engine/internal/stp"
	"github.com/lightsgoout/exchange-engine/internal/topofbook"
)

// Manager is a read-mostly registry of instrument -> *book.ProductBook.
// The map itself is built once at startup under Register and never
// mutated afterward, so Get only ever takes the read lock; the write
// lock guards Register to make startup-time ordering explicit and to
// fail loudly on accidental double-registration.
type Manager struct {
	mu     sync.RWMutex
	books  map[string]*book.ProductBook
	logger *zap.Logger
}

// New returns an empty Manager.
func New(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{books: make(map[string]*book.ProductBook), logger: logger}
}

// Register constructs and adds a ProductBook for instrument. Returns an
// error if instrument is already registered.
func (m *Manager) Register(
	instrument string,
	stpMode stp.Mode,
	relationships *relationship.Registry,
	chain *audit.HashChain,
	publisher *topofbook.Publisher,
) (*book.ProductBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.books[instrument]; exists {
		return nil, fmt.Errorf("productmanager: instrument %q already registered", instrument)
	}

	pb := book.NewProductBook(instrument, stpMode, relationships, chain, publisher, m.logger.With(zap.String("instrument", instrument)))
	m.books[instrument] = pb
	m.logger.Info("product book registered", zap.String("instrument", instrument), zap.String("stp_mode", stpMode.String()))
	return pb, nil
}

// Get returns the ProductBook for instrument, or false if unregistered.
func (m *Manager) Get(instrument string) (*book.ProductBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pb, ok := m.books[instrument]
	return pb, ok
}

// Instruments returns the registered instrument symbols in no particular
// order; callers needing a stable order should sort the result.
func (m *Manager) Instruments() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.books))
	for k := range m.books {
		out = append(out, k)
	}
	return out
}
