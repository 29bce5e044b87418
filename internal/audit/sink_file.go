package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// wireEvent is the JSON-on-the-wire shape from spec.md §6, one line per
// event for file sinks.
type wireEvent struct {
	EventID      string         `json:"eventId"`
	EventType    string         `json:"eventType"`
	Timestamp    string         `json:"timestamp"`
	UserID       *string        `json:"userId"`
	Product      *string        `json:"product"`
	Data         map[string]any `json:"data"`
	Hash         string         `json:"hash"`
	PreviousHash string         `json:"previousHash"`
}

func toWire(e Event) wireEvent {
	w := wireEvent{
		EventID:      e.EventID,
		EventType:    string(e.Type),
		Timestamp:    e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		Data:         e.Data,
		Hash:         e.Hash,
		PreviousHash: e.PreviousHash,
	}
	if e.User != "" {
		u := e.User
		w.UserID = &u
	}
	if e.Instrument != "" {
		p := e.Instrument
		w.Product = &p
	}
	return w
}

// FileSink appends one JSON line per event to a file, fsyncing after
// every write. Per spec.md §7 this sink is primary: a Deliver failure is
// a SinkFailure and callers must treat it as fatal (the chain's integrity
// can no longer be guaranteed to be replayable).
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (creating if necessary) path for append.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open file sink %q: %w", path, err)
	}
	return &FileSink{file: f}, nil
}

// Deliver writes one JSON line and fsyncs before returning.
func (s *FileSink) Deliver(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(toWire(e))
	if err != nil {
		return fmt.Errorf("audit: marshal event %s: %w", e.EventID, err)
	}
	line = append(line, '\n')

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("audit: write event %s: %w", e.EventID, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("audit: fsync after event %s: %w", e.EventID, err)
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
