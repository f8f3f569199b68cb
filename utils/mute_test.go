package utils

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestBatchMute(t *testing.T) {
	tm := time.Date(2023, time.November, 10, 23, 0, 0, 0, time.UTC)
	bm := &BatchMute{
		batchTime:     tm,
		resetInterval: time.Second * 10,
		max:           5,
	}

	var mutedCount int
	for i := 0; i < 9; i++ {
		tm = tm.Add(time.Second)
		muted, _ := bm.increment(1, tm)
		if muted {
			mutedCount++
		}
	}
	assert.Equal(t, 4, mutedCount)

	// the interval elapsed: the skipped count is reported once and muting stops
	tm = tm.Add(time.Second * 11)
	muted, skipped := bm.increment(1, tm)
	assert.False(t, muted)
	assert.Equal(t, 4, skipped)
}

func TestBatchMuteZero(t *testing.T) {
	tm := time.Date(2023, time.November, 10, 23, 0, 0, 0, time.UTC)
	bm := &BatchMute{
		batchTime:     tm,
		resetInterval: time.Second * 10,
		max:           0,
	}

	for i := 0; i < 20; i++ {
		tm = tm.Add(time.Second)
		muted, skipped := bm.increment(1, tm)
		assert.False(t, muted)
		assert.Zero(t, skipped)
	}
}

func TestBatchMuteInterval(t *testing.T) {
	tm := time.Date(2023, time.November, 10, 23, 0, 0, 0, time.UTC)
	bm := &BatchMute{
		batchTime:     tm,
		resetInterval: 0,
		max:           5,
	}

	for i := 0; i < 20; i++ {
		tm = tm.Add(time.Second)
		muted, _ := bm.increment(1, tm)
		assert.False(t, muted)
	}
}

func TestBatchMuteReport(t *testing.T) {
	logger, hook := test.NewNullLogger()
	entry := log.NewEntry(logger)
	bm := NewBatchMute(time.Hour, 2)

	var logged int
	for i := 0; i < 5; i++ {
		bm.Report(entry, "errors", func() { logged++ })
	}
	assert.Equal(t, 2, logged)
	// a single muting warning for the three muted events
	assert.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "too many errors, muting", hook.LastEntry().Message)
}
