// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"bufio"
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

// signalTerm sends SIGTERM to proc.
func signalTerm(proc *process.Process) error {
	return proc.SendSignal(syscall.SIGTERM)
}

// tailLines returns up to n of the last lines of the file at path,
// or nil if it can't be read. Used to fill SpawnError.LogTail; a
// logging helper, not a load-bearing read path, so failures are
// swallowed.
func tailLines(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines
}

func newLineReader(lines []string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
