// Package stp implements Self-Trade Prevention: suppressing matches
// between two tradables that belong to the same trader.
package stp

import "github.com/lightsgoout/exchange-engine/pkg/tradable"

// Mode selects how the crossing loop treats a detected self-trade.
type Mode int

const (
	// Allow proceeds to trade. An escape hatch; not recommended.
	Allow Mode = iota
	// CancelIncoming cancels the incoming tradable and exits the loop.
	CancelIncoming
	// CancelResting cancels the resting head and continues the loop.
	CancelResting
	// CancelBoth cancels both and exits the loop.
	CancelBoth
)

func (m Mode) String() string {
	switch m {
	case Allow:
		return "ALLOW"
	case CancelIncoming:
		return "CANCEL_INCOMING"
	case CancelResting:
		return "CANCEL_RESTING"
	case CancelBoth:
		return "CANCEL_BOTH"
	default:
		return "UNKNOWN"
	}
}

// ParseMode parses the four enumerated STP modes from their wire/config
// spelling; unknown values default to CancelResting per spec.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "ALLOW":
		return Allow, true
	case "CANCEL_INCOMING":
		return CancelIncoming, true
	case "CANCEL_RESTING":
		return CancelResting, true
	case "CANCEL_BOTH":
		return CancelBoth, true
	default:
		return CancelResting, false
	}
}

// Default is the spec-mandated default mode.
const Default = CancelResting

// TraderIDExtractor extracts the owning trader's identity from a
// tradable. The core requires this to be pluggable so it is not coupled
// to a particular id scheme; DefaultExtractor returns the tradable's user
// field directly.
type TraderIDExtractor func(t tradable.Tradable) string

// DefaultExtractor returns tradable.User() unmodified.
func DefaultExtractor(t tradable.Tradable) string {
	return t.User()
}

// IsSelfTrade reports whether two tradables belong to the same trader
// under the given extractor.
func IsSelfTrade(extractor TraderIDExtractor, a, b tradable.Tradable) bool {
	if extractor == nil {
		extractor = DefaultExtractor
	}
	return extractor(a) == extractor(b)
}

// Outcome describes which side(s) a mode instructs the crossing loop to
// cancel, and whether the loop should exit immediately afterward.
type Outcome struct {
	CancelIncoming bool
	CancelResting  bool
	ExitLoop       bool
}

// Apply returns the Outcome for a given mode when a self-trade has been
// detected. ALLOW proceeds to trade (both fields false, loop continues to
// the normal crossing path — callers must check for this and not treat it
// as a cancellation).
func Apply(mode Mode) Outcome {
	switch mode {
	case CancelIncoming:
		return Outcome{CancelIncoming: true, ExitLoop: true}
	case CancelResting:
		return Outcome{CancelResting: true, ExitLoop: false}
	case CancelBoth:
		return Outcome{CancelIncoming: true, CancelResting: true, ExitLoop: true}
	default: // Allow
		return Outcome{}
	}
}
