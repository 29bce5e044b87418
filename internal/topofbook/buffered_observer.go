package topofbook

import "sync/atomic"

// bufferSize is the per-connection channel depth after which the oldest
// buffered snapshot is dropped rather than blocking the publisher.
const bufferSize = 64

// BufferedObserver decouples a slow downstream consumer from the
// publisher: Notify never blocks. When the buffer is full, the oldest
// queued snapshot is dropped and Dropped is incremented, matching spec's
// "drops or buffers per its own policy" contract for non-blocking
// delivery.
type BufferedObserver struct {
	ch      chan Snapshot
	Dropped int64
}

// NewBufferedObserver returns an observer whose Notify never blocks the
// caller; drain C to consume snapshots in order.
func NewBufferedObserver() *BufferedObserver {
	return &BufferedObserver{ch: make(chan Snapshot, bufferSize)}
}

// C is the channel snapshots are delivered on.
func (b *BufferedObserver) C() <-chan Snapshot { return b.ch }

// Notify enqueues snap, dropping the oldest queued snapshot if full.
func (b *BufferedObserver) Notify(snap Snapshot) {
	select {
	case b.ch <- snap:
	default:
		select {
		case <-b.ch:
			atomic.AddInt64(&b.Dropped, 1)
		default:
		}
		select {
		case b.ch <- snap:
		default:
		}
	}
}

// Close closes the delivery channel; further Notify calls panic, so
// callers must stop publishing to an observer before closing it.
func (b *BufferedObserver) Close() {
	close(b.ch)
}
