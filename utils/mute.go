package utils

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// BatchMute limits how many events are logged per interval.
// A zero max or interval disables muting.
type BatchMute struct {
	lock          sync.Mutex
	batchTime     time.Time
	resetInterval time.Duration
	ctr           int
	max           int
}

func (b *BatchMute) increment(val int, t time.Time) (muted bool, skipped int) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.max == 0 || b.resetInterval == 0 {
		return false, 0
	}
	if b.ctr >= b.max {
		skipped = b.ctr - b.max
	}
	if t.Sub(b.batchTime) > b.resetInterval {
		b.ctr = 0
		b.batchTime = t
	}
	b.ctr += val

	return b.ctr > b.max, skipped
}

// Increment records an event. skipped is the number of events muted during the
// previous interval, reported on the first event of a new one.
func (b *BatchMute) Increment() (muted bool, skipped int) {
	return b.increment(1, time.Now().UTC())
}

// Report records an event and runs logEvent unless the event is muted.
// Entering and leaving the muted state is logged on entry.
func (b *BatchMute) Report(entry *log.Entry, what string, logEvent func()) {
	muted, skipped := b.Increment()
	switch {
	case muted && skipped == 0:
		entry.Warnf("too many %s, muting", what)
	case muted:
	case skipped > 0:
		entry.WithField("count", skipped).Warnf("skipped %s", what)
		logEvent()
	default:
		logEvent()
	}
}

// NewBatchMute creates a BatchMute with a reset interval and max count.
func NewBatchMute(resetInterval time.Duration, max int) *BatchMute {
	return &BatchMute{
		batchTime:     time.Now().UTC(),
		resetInterval: resetInterval,
		max:           max,
	}
}
