// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hostmetrics samples the local machine's CPU, memory, disk,
// and load for the local host's `resources` blob and for
// GET /hosts/{id}/metrics (§4.C), using github.com/shirou/gopsutil/v4.
package hostmetrics

import (
	"context"
	"encoding/json"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is the CPU/memory/disk/load sample returned by
// GET /hosts/{id}/metrics, and the shape persisted as the Host's
// `resources` JSON blob.
type Snapshot struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemoryUsed   uint64  `json:"memory_used"`
	MemoryTotal  uint64  `json:"memory_total"`
	DiskUsed     uint64  `json:"disk_used"`
	DiskTotal    uint64  `json:"disk_total"`
	LoadAverage1 float64 `json:"load_average_1"`
}

// Sample takes a live reading of the local machine.
func Sample(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuPercents) > 0 {
		snap.CPUPercent = cpuPercents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryUsed = vm.Used
		snap.MemoryTotal = vm.Total
	}

	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		snap.DiskUsed = du.Used
		snap.DiskTotal = du.Total
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.LoadAverage1 = avg.Load1
	}

	return snap, nil
}

// Encode serializes a Snapshot for storage in Host.Resources.
func Encode(s *Snapshot) string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Decode reads a previously-encoded Snapshot, returning a zero value
// if the blob is empty or malformed.
func Decode(raw string) *Snapshot {
	s := &Snapshot{}
	if raw == "" {
		return s
	}
	_ = json.Unmarshal([]byte(raw), s)
	return s
}
