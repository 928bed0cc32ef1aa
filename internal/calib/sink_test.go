package calib

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dunedaq/cib-bridge/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestSinkDisabledIsNoOp(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Minute, false)
	s.Open("run1")
	s.Write(wire.TriggerWord{Timestamp: 1})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSinkWritesRawBytesInOrder(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour, true)
	s.Open("run7")
	defer s.Close()

	words := []wire.TriggerWord{
		{Timestamp: 1, Additional: 0},
		{Timestamp: 2, Additional: 0},
		{Timestamp: 3, Additional: 0},
	}
	for _, w := range words {
		s.Write(w)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, s.Enabled())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Len(t, data, len(words)*wire.TriggerWordSize)

	for i, w := range words {
		got, err := wire.DecodeTriggerWord(bytes.NewReader(data[i*wire.TriggerWordSize : (i+1)*wire.TriggerWordSize]))
		require.NoError(t, err)
		require.Equal(t, w, got)
	}
}

func TestSinkRotates(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 20*time.Millisecond, true)
	s.Open("run9")
	defer s.Close()

	s.Write(wire.TriggerWord{Timestamp: 1})
	time.Sleep(30 * time.Millisecond)
	s.Write(wire.TriggerWord{Timestamp: 2})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "rotation should have produced a second file")
	require.NotEqual(t, entries[0].Name(), entries[1].Name())
}

func TestSinkDisablesOnOpenFailure(t *testing.T) {
	// Point the directory at a path that cannot be created to force an
	// open failure, exercising the advisory disable-on-error path.
	s := New("/nonexistent-parent-dir-for-test/sub/", time.Minute, true)
	s.Open("run1")
	require.False(t, s.Enabled())

	// Subsequent writes must not panic even though the sink is disabled.
	s.Write(wire.TriggerWord{Timestamp: 42})
}
