// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// isAlive reports whether pid identifies a live process whose
// command line still refers to the given service binary, per the
// liveness discipline in §4.F: a PID file existing is not enough, nor
// is a live PID alone, since PIDs recycle.
func isAlive(ctx context.Context, pid int, svc Service) (bool, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		// No such process.
		return false, nil
	}

	cmdline, err := proc.CmdlineWithContext(ctx)
	if err != nil {
		// The process exited between NewProcessWithContext and here, or we lack
		// permission to read its command line; either way we can't
		// confirm identity, so treat it as not ours.
		return false, nil
	}

	return strings.Contains(cmdline, svc.binaryName()), nil
}

// uptime returns how long the process identified by pid has been
// running.
func uptime(ctx context.Context, pid int) (time.Duration, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, err
	}
	createdMS, err := proc.CreateTimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	started := time.UnixMilli(createdMS)
	return time.Since(started), nil
}
