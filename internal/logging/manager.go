package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Manager owns the single project logger.
type Manager struct {
	mu     sync.Mutex
	opts   *Options
	result *Result
}

// NewManager returns an uninitialised manager.
func NewManager() *Manager {
	return &Manager{}
}

var defaultManager = NewManager()

// Default returns the process-wide manager.
func Default() *Manager {
	return defaultManager
}

// Init builds the logger from opts and installs it as slog's default.
// Calling Init again while a logger is active returns the existing logger.
func (m *Manager) Init(opts Options) (*slog.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.result != nil {
		return m.result.Logger, nil
	}
	return m.initLocked(opts)
}

func (m *Manager) initLocked(opts Options) (*slog.Logger, error) {
	res, err := Setup(opts)
	if err != nil {
		return nil, err
	}
	stored := opts
	m.opts = &stored
	m.result = res
	slog.SetDefault(res.Logger)
	return res.Logger, nil
}

// Logger returns the active logger, initialising one with DefaultOptions
// when none exists.
func (m *Manager) Logger() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.result != nil {
		return m.result.Logger
	}

	_, _ = fmt.Fprintln(os.Stderr, "[LOGGER INFO] Logger not initialized. Auto-initializing with default settings.")
	logger, err := m.initLocked(DefaultOptions())
	if err != nil {
		return slog.Default()
	}
	return logger
}

// Reinit closes the current sinks and rebuilds the logger from the options
// of the first Init. A fresh log file is created.
func (m *Manager) Reinit() (*slog.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts == nil {
		return nil, serrors.New(serrors.ErrCodeLoggerState,
			"logger was never initialized, cannot reinitialize", nil)
	}
	if m.result != nil {
		_ = m.result.Close()
		m.result = nil
	}
	return m.initLocked(*m.opts)
}

// Shutdown closes every sink. The stored options survive so Reinit still works.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.result == nil {
		return nil
	}
	err := m.result.Close()
	m.result = nil
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	return err
}

// ActiveFile returns the current log file path, or "" when there is none.
func (m *Manager) ActiveFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.result == nil {
		return ""
	}
	return m.result.File
}

// Initialized reports whether a logger is active.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result != nil
}
