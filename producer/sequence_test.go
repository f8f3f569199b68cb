package producer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceTracker(t *testing.T) {
	tests := []struct {
		name            string
		saved           map[string]int64
		seqnum          uint32
		expectedMissing int64
		expectedReset   bool
		expectedSaved   int64
	}{
		{
			name:            "first report",
			saved:           map[string]int64{},
			seqnum:          100,
			expectedMissing: 0,
			expectedSaved:   100,
		},
		{
			name:            "next report",
			saved:           map[string]int64{"5|1": 100},
			seqnum:          101,
			expectedMissing: 0,
			expectedSaved:   101,
		},
		{
			name:            "reports lost",
			saved:           map[string]int64{"5|1": 100},
			seqnum:          111,
			expectedMissing: 10,
			expectedSaved:   101,
		},
		{
			name:            "out of order",
			saved:           map[string]int64{"5|1": 100},
			seqnum:          99,
			expectedMissing: -2,
			expectedSaved:   101,
		},
		{
			name:            "sequence reset",
			saved:           map[string]int64{"5|1": 5000},
			seqnum:          1,
			expectedMissing: 0,
			expectedReset:   true,
			expectedSaved:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mapStore(tt.saved)
			s := NewSequenceTrackerStore(store, 1000)
			key := SequenceKey(5, 1)
			missing, reset, err := s.Missing(key, tt.seqnum)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedMissing, missing)
			assert.Equal(t, tt.expectedReset, reset)
			assert.Equal(t, tt.expectedSaved, store[key])
		})
	}
}

type failingStore struct {
	mapStore
}

func (f failingStore) Add(key string, value int64) error {
	return errors.New("store unavailable")
}

func TestSequenceTrackerStoreError(t *testing.T) {
	s := NewSequenceTrackerStore(failingStore{mapStore{}}, 1000)
	missing, reset, err := s.Missing(SequenceKey(5, 1), 10)
	assert.Error(t, err)
	assert.Zero(t, missing)
	assert.False(t, reset)
}
