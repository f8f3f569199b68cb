package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.txt")
	d := &FileDriver{
		fileDestination: path,
		lineSeparator:   "\n",
	}
	require.NoError(t, d.Init())
	require.NoError(t, d.Send(nil, []byte("int_hop_latency latency=1i")))

	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, d.reopen())
	require.NoError(t, d.Send(nil, []byte("int_hop_latency latency=2i")))
	require.NoError(t, d.Close())

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "int_hop_latency latency=1i\n", string(rotated))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "int_hop_latency latency=2i\n", string(current))
}

func TestFileDriverSizeRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.txt")
	d := &FileDriver{
		fileDestination: path,
		lineSeparator:   "\n",
		maxSize:         1,
		maxBackups:      2,
	}
	require.NoError(t, d.Init())
	require.NoError(t, d.Send(nil, []byte("int_hop_latency latency=1i")))
	require.NoError(t, d.reopen())
	require.NoError(t, d.Send(nil, []byte("int_hop_latency latency=2i")))
	require.NoError(t, d.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "int_hop_latency latency=2i\n", string(current))
}
