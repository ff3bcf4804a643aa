// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package hostmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := &Snapshot{CPUPercent: 12.5, MemoryUsed: 100, MemoryTotal: 200, DiskUsed: 1, DiskTotal: 2, LoadAverage1: 0.5}
	got := Decode(Encode(s))
	assert.Equal(t, s, got)
}

func TestDecodeEmpty(t *testing.T) {
	got := Decode("")
	assert.Equal(t, &Snapshot{}, got)
}

func TestDecodeMalformed(t *testing.T) {
	got := Decode("{not json")
	assert.Equal(t, &Snapshot{}, got)
}
