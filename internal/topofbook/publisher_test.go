package topofbook

import (
	"testing"

	"github.com/lightsgoout/exchange-engine/pkg/price"
	"github.com/stretchr/testify/assert"
)

type recordingObserver struct {
	snaps []Snapshot
}

func (r *recordingObserver) Notify(s Snapshot) {
	r.snaps = append(r.snaps, s)
}

func TestPublishOnlyOnChange(t *testing.T) {
	pub := NewPublisher()
	obs := &recordingObserver{}
	pub.Subscribe("AAPL", obs)

	snap := Snapshot{Instrument: "AAPL", BidPrice: price.MustFromCents(100), HasBid: true, BidVolume: 10}
	pub.Publish(snap)
	pub.Publish(snap) // identical, should not redeliver

	assert.Len(t, obs.snaps, 1)

	snap.BidVolume = 20
	pub.Publish(snap)
	assert.Len(t, obs.snaps, 2)
}

func TestBufferedObserverDropsOldestWhenFull(t *testing.T) {
	obs := NewBufferedObserver()
	for i := 0; i < bufferSize+5; i++ {
		obs.Notify(Snapshot{Instrument: "AAPL", BidVolume: int64(i)})
	}
	assert.Greater(t, obs.Dropped, int64(0))

	// Drain and confirm the channel never exceeds its capacity.
	count := 0
	for {
		select {
		case <-obs.C():
			count++
		default:
			assert.LessOrEqual(t, count, bufferSize)
			return
		}
	}
}
