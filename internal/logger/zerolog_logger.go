// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the global Manager formats and filters log
// output. Anvyl services never rotate or manage log files themselves
// (log rotation is explicitly out of scope): each service writes to
// stderr, and the Service Supervisor owns the append-only file on
// disk by redirecting the child's stderr at spawn time.
type Config struct {
	// Level is the minimum level written, one of
	// trace|debug|info|warn|error|fatal|panic.
	Level string
	// Pretty selects a human-readable console writer instead of
	// newline-delimited JSON. Anvyl services run with Pretty=false in
	// production (the supervisor's log files are meant to be grepped
	// and tailed); Pretty=true is for interactive local runs, and none
	// of the service entrypoints set it.
	Pretty bool
}

// Manager manages one logger per package, all sharing a single
// output writer and global level.
type Manager struct {
	config         Config
	globalLogger   zerolog.Logger
	packageLoggers map[string]zerolog.Logger
	mu             sync.RWMutex
}

// NewManager creates a new logger manager writing to stderr.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		config:         cfg,
		packageLoggers: make(map[string]zerolog.Logger),
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	m.globalLogger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return m
}

// GetLogger returns the logger for a specific package, creating it on
// first use.
func (m *Manager) GetLogger(pkg string) zerolog.Logger {
	m.mu.RLock()
	if l, ok := m.packageLoggers[pkg]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.packageLoggers[pkg]; ok {
		return l
	}
	l := m.globalLogger.With().Str("pkg", pkg).Logger()
	m.packageLoggers[pkg] = l
	return l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

var (
	globalManager *Manager
	once          sync.Once
)

// Initialize sets up the global logger manager. Safe to call more
// than once; only the first call takes effect.
func Initialize(cfg Config) {
	once.Do(func() {
		globalManager = NewManager(cfg)
	})
}

// GetLogger returns the named package logger from the global manager,
// or a discard logger if Initialize was never called (e.g. in tests).
func GetLogger(pkg string) zerolog.Logger {
	if globalManager == nil {
		return zerolog.New(io.Discard)
	}
	return globalManager.GetLogger(pkg)
}

// CloseGlobal is a no-op kept for symmetry with the startup sequence
// (`defer logger.CloseGlobal()`); stderr is never closed by the
// process that owns it.
func CloseGlobal() {}
