// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPIDFileWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "infra.pid")
	pf := newPIDFile(path)

	require.False(t, pf.exists())
	require.NoError(t, pf.write(1234))
	require.True(t, pf.exists())

	pid, err := pf.read()
	require.NoError(t, err)
	require.Equal(t, 1234, pid)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestPIDFileWriteOverwritesStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infra.pid")
	pf := newPIDFile(path)

	require.NoError(t, pf.write(111))
	require.NoError(t, pf.write(222))

	pid, err := pf.read()
	require.NoError(t, err)
	require.Equal(t, 222, pid)
}

func TestPIDFileReadMissing(t *testing.T) {
	pf := newPIDFile(filepath.Join(t.TempDir(), "missing.pid"))
	_, err := pf.read()
	require.True(t, os.IsNotExist(err))
}

func TestPIDFileReadInvalidContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0600))

	pf := newPIDFile(path)
	_, err := pf.read()
	require.Error(t, err)
}

func TestPIDFileRemoveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infra.pid")
	pf := newPIDFile(path)
	require.NoError(t, pf.write(1))
	require.NoError(t, pf.remove())
	require.NoError(t, pf.remove())
	require.False(t, pf.exists())
}

func TestVerifyDirectorySafetyRejectsWorldWritable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0777))
	err := verifyDirectorySafety(dir)
	require.ErrorIs(t, err, ErrUnsafeDirectory)
}

func TestVerifyDirectorySafetyAllowsMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet-created")
	require.NoError(t, verifyDirectorySafety(dir))
}
