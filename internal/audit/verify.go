package audit

import "fmt"

// VerificationError describes one failed check discovered while walking a
// chain of events.
type VerificationError struct {
	Offset       int
	ExpectedHash string
	ObservedHash string
	Reason       string
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("audit: verification failed at offset %d: %s (expected %s, observed %s)",
		e.Offset, e.Reason, e.ExpectedHash, e.ObservedHash)
}

// VerificationReport is the result of walking an append-ordered event
// sequence. It accumulates every failure found (it does not short-circuit
// on the first one) to aid forensics, per spec.md §4.5.
type VerificationReport struct {
	Valid  bool
	Errors []VerificationError
}

// Verify walks events in append order, recomputing each hash from
// (previous_hash || canonical_json) and comparing it to the stored hash,
// and checking that each event's previous_hash matches the prior event's
// recomputed hash (GenesisHash for the first event), so tampering with
// one event's fields also flags the event after it.
func Verify(events []Event) VerificationReport {
	report := VerificationReport{Valid: true}

	expectedPrev := GenesisHash
	for i, e := range events {
		if e.PreviousHash != expectedPrev {
			report.Valid = false
			report.Errors = append(report.Errors, VerificationError{
				Offset:       i,
				ExpectedHash: expectedPrev,
				ObservedHash: e.PreviousHash,
				Reason:       "previous_hash does not match prior event's hash",
			})
		}

		recomputed, err := recomputeHash(e)
		if err != nil {
			report.Valid = false
			report.Errors = append(report.Errors, VerificationError{
				Offset: i,
				Reason: fmt.Sprintf("failed to recompute hash: %v", err),
			})
			expectedPrev = e.Hash
			continue
		}
		if recomputed != e.Hash {
			report.Valid = false
			report.Errors = append(report.Errors, VerificationError{
				Offset:       i,
				ExpectedHash: recomputed,
				ObservedHash: e.Hash,
				Reason:       "stored hash does not match recomputed hash",
			})
		}

		expectedPrev = recomputed
	}

	return report
}

func recomputeHash(e Event) (string, error) {
	canon, err := canonicalJSON(e)
	if err != nil {
		return "", err
	}
	return hashOf(e.PreviousHash, canon), nil
}
