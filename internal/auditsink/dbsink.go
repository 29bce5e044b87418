// Package auditsink provides the advisory, circuit-breaker-protected
// database sink for audit events: a persistence layer whose failure must
// never add unbounded latency to, or abort, the matching critical
// section (see spec.md §7's SinkFailure policy — the file+hash-chain log
// is the source of truth and this sink can always be replayed from it
// later).
package auditsink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/lightsgoout/exchange-engine/internal/audit"
)

const insertRowSQL = `
	INSERT INTO audit_events
		(event_id, event_type, "timestamp", user_id, product, data, hash, prev_hash)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (event_id) DO NOTHING
`

const schemaDDL = `
	CREATE TABLE IF NOT EXISTS audit_events (
		event_id   text PRIMARY KEY,
		event_type text NOT NULL,
		"timestamp" timestamptz NOT NULL,
		user_id    text,
		product    text,
		data       jsonb NOT NULL,
		hash       text NOT NULL,
		prev_hash  text NOT NULL
	)
`

// DBSink is an audit.Sink backed by Postgres via database/sql + lib/pq,
// wrapped in a circuit breaker so repeated failures stop hammering a down
// database. It never returns an error that would be treated as fatal by
// the chain — Deliver always returns nil and logs failures instead,
// because this sink's failures are advisory by contract.
type DBSink struct {
	db      *sql.DB
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *zap.Logger
}

// NewDBSink opens dsn, ensures the schema exists, and wraps inserts in a
// circuit breaker that trips after 3 consecutive failures and stays open
// for the breaker's configured cooldown before probing again.
func NewDBSink(dsn string, logger *zap.Logger) (*DBSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditsink: open db: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("auditsink: ensure schema: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        "audit-db-sink",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("audit db sink breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &DBSink{
		db:      db,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  logger,
	}, nil
}

// Deliver inserts one audit row through the circuit breaker. Failures
// (including a tripped breaker) are logged at Warn and swallowed: the
// database sink is advisory and must never block or fail the critical
// section.
func (s *DBSink) Deliver(e audit.Event) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		dataJSON, err := marshalData(e.Data)
		if err != nil {
			return struct{}{}, err
		}
		_, err = s.db.Exec(insertRowSQL,
			e.EventID, string(e.Type), e.Timestamp, nullableString(e.User),
			nullableString(e.Instrument), dataJSON, e.Hash, e.PreviousHash,
		)
		return struct{}{}, err
	})
	if err != nil {
		s.logger.Warn("audit db sink delivery failed, continuing (advisory sink)",
			zap.String("eventId", e.EventID),
			zap.Error(err),
		)
	}
	return nil
}

// batchBackfillSize mirrors the teacher's batchPersistSize constant
// (engine.go): the chunk size used to fan persistence work out across
// goroutines joined by a WaitGroup.
const batchBackfillSize = 2000

// BackfillBatch bulk-loads a slice of already-verified historical events
// (e.g. replaying a file sink into a freshly provisioned database) using
// pq.CopyIn, chunked and fanned out over goroutines exactly as the
// teacher's Engine.Persist batches deal rows. Unlike Deliver, a
// BackfillBatch failure is returned to the caller: a deliberate replay is
// not subject to the advisory-sink-never-blocks contract, since there is
// no matching critical section on the line.
func (s *DBSink) BackfillBatch(events []audit.Event) error {
	var wg sync.WaitGroup
	errs := make([]error, (len(events)+batchBackfillSize-1)/batchBackfillSize)

	for i, chunkIdx := 0, 0; i < len(events); i, chunkIdx = i+batchBackfillSize, chunkIdx+1 {
		end := i + batchBackfillSize
		if end > len(events) {
			end = len(events)
		}
		wg.Add(1)
		go func(chunk []audit.Event, slot int) {
			defer wg.Done()
			errs[slot] = s.copyInChunk(chunk)
		}(events[i:end], chunkIdx)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *DBSink) copyInChunk(chunk []audit.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("auditsink: begin backfill tx: %w", err)
	}
	stmt, err := tx.Prepare(pq.CopyIn("audit_events",
		"event_id", "event_type", "timestamp", "user_id", "product", "data", "hash", "prev_hash"))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("auditsink: prepare copy-in: %w", err)
	}

	for _, e := range chunk {
		dataJSON, err := marshalData(e.Data)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(e.EventID, string(e.Type), e.Timestamp,
			nullableString(e.User), nullableString(e.Instrument), dataJSON, e.Hash, e.PreviousHash); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("auditsink: copy-in row %s: %w", e.EventID, err)
		}
	}

	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("auditsink: flush copy-in: %w", err)
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("auditsink: close copy-in stmt: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *DBSink) Close() error {
	return s.db.Close()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalData(data map[string]any) ([]byte, error) {
	return json.Marshal(data)
}
