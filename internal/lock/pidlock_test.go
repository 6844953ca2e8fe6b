package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run", "signbridge.pid")
	l, err := Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	pid, err := Holder(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, path, l.Path())
}

func TestAcquireTwiceReportsHolder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "signbridge.pid")
	first, err := Acquire(path)
	require.NoError(t, err)

	_, err = Acquire(path)
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "pid ")

	require.NoError(t, first.Release())
	second, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestAcquireOverwritesStalePID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "signbridge.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	l, err := Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	pid, err := Holder(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReleaseNil(t *testing.T) {
	var l *PIDLock
	assert.NoError(t, l.Release())
}
