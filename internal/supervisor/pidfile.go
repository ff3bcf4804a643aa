// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnsafeDirectory is returned when a PID file's parent directory
// is world-writable, the classic precondition for a symlink attack
// against a predictable PID file path.
var ErrUnsafeDirectory = errors.New("pid file directory is world-writable")

// pidFile manages one service's PID file: a single decimal integer
// followed by a newline, as required by §4.F.
type pidFile struct {
	path string
}

func newPIDFile(path string) *pidFile {
	return &pidFile{path: path}
}

// write atomically (re)creates the PID file with the given PID. Any
// stale file at path is replaced: by the time write is called the
// caller has already established through isAlive that no live
// process owns it.
func (f *pidFile) write(pid int) error {
	dir := filepath.Dir(f.path)
	if err := verifyDirectorySafety(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// read returns the PID recorded in the file. It returns
// os.ErrNotExist (wrapped) if the file is absent.
func (f *pidFile) read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.New("pid file contains no valid pid: " + f.path)
	}
	return pid, nil
}

func (f *pidFile) remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *pidFile) exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// verifyDirectorySafety rejects a world-writable parent directory.
// A directory that doesn't exist yet is safe: it will be created
// with 0700 immediately after.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&0002 != 0 {
		return ErrUnsafeDirectory
	}
	return nil
}
