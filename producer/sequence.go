package producer

import (
	"fmt"
	"sync"
)

// SequenceStore keeps the next expected sequence number of each report source.
// Get fails for a source that was never seen.
type SequenceStore interface {
	Get(key string) (int64, error)
	Add(key string, value int64) error
}

type mapStore map[string]int64

func (m mapStore) Get(key string) (int64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%s not found", key)
	}
	return v, nil
}

func (m mapStore) Add(key string, value int64) error {
	m[key] = value
	return nil
}

// SequenceTracker counts telemetry reports lost between switches and the collector,
// based on the report header sequence numbers.
type SequenceTracker struct {
	counters   SequenceStore // expected sequence number per switch id and hardware id
	countersMu *sync.Mutex

	maxNegativeSequenceDifference int
}

func NewSequenceTracker(maxNegativeSequenceDifference int) *SequenceTracker {
	return NewSequenceTrackerStore(make(mapStore), maxNegativeSequenceDifference)
}

// NewSequenceTrackerStore tracks sequences in store, which may be shared with other collectors.
func NewSequenceTrackerStore(store SequenceStore, maxNegativeSequenceDifference int) *SequenceTracker {
	return &SequenceTracker{
		counters:                      store,
		countersMu:                    &sync.Mutex{},
		maxNegativeSequenceDifference: maxNegativeSequenceDifference,
	}
}

// SequenceKey identifies a report source.
func SequenceKey(switchID uint32, hardwareID uint8) string {
	return fmt.Sprintf("%d|%d", switchID, hardwareID)
}

// Missing records a report and returns the number of reports missing
// since the source was first seen.
func (s *SequenceTracker) Missing(key string, seqnum uint32) (missing int64, reset bool, err error) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()

	expected, getErr := s.counters.Get(key)
	if getErr != nil {
		expected = int64(seqnum)
	} else {
		expected++
	}
	missing = int64(seqnum) - expected

	// A large negative difference means the switch restarted its sequence.
	if missing <= -int64(s.maxNegativeSequenceDifference) {
		expected, missing, reset = int64(seqnum), 0, true
	}
	return missing, reset, s.counters.Add(key, expected)
}
