package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryState(t *testing.T) {
	s, err := NewState[string, int64]("memory://")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("5|1")
	assert.ErrorIs(t, err, ErrorKeyNotFound)

	require.NoError(t, s.Add("5|1", 42))
	v, err := s.Get("5|1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestBadgerStateReload(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSequenceState("badger://" + dir)
	require.NoError(t, err)
	require.NoError(t, s.Add("5|1", 101))
	require.NoError(t, s.Add("6|1", 7))
	require.NoError(t, s.Close())

	s, err = NewSequenceState("badger://" + dir)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get("5|1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), v)
	v, err = s.Get("6|1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestRedisState(t *testing.T) {
	addr := os.Getenv("INTFLOW_TEST_REDIS")
	if addr == "" {
		t.Skip("INTFLOW_TEST_REDIS not set")
	}
	a, err := NewSequenceState("redis://" + addr + "/0?prefix=intflow:test:")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Add("5|1", 3))

	b, err := NewSequenceState("redis://" + addr + "/0?prefix=intflow:test:")
	require.NoError(t, err)
	defer b.Close()
	v, err := b.Get("5|1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestNewStateErrors(t *testing.T) {
	_, err := NewState[string, int64]("etcd://localhost")
	assert.Error(t, err)
	_, err = NewState[string, int64]("redis://localhost:6379/0")
	assert.Error(t, err)
}
