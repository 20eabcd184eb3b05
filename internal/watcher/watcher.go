package watcher

import (
	"context"
	"time"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/ignore"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed away. The new name
	// arrives as a separate OpCreate.
	OpRename
	// OpConfigChange indicates .synapsense.yaml or .synapseignore in the
	// watched root changed.
	OpConfigChange
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpConfigChange:
		return "CONFIG_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is relative to the watched root, slash separated.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory. Always false for
	// deletions, since the path no longer exists to be inspected.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher watches a directory tree and delivers debounced event batches.
type Watcher interface {
	// Start watches path recursively and blocks until Stop is called or
	// ctx is cancelled.
	Start(ctx context.Context, path string) error

	// Stop releases resources and closes both channels. Safe to call
	// multiple times.
	Stop() error

	// Events returns batches of coalesced file events.
	Events() <-chan []FileEvent

	// Errors returns non-fatal watcher errors.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before coalesced events are
	// emitted. Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode. Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the batch channel buffer. Default: 100
	EventBufferSize int

	// IgnorePatterns are extra exclusion patterns in scanner syntax.
	IgnorePatterns []string

	// Ignore holds .synapseignore rules of the watched root.
	Ignore *ignore.Matcher

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
	}
}

// Validate rejects negative durations and sizes.
func (o Options) Validate() error {
	if o.DebounceWindow < 0 || o.PollInterval < 0 || o.EventBufferSize < 0 {
		return serrors.New(serrors.ErrCodeInvalidInput, "watcher options must not be negative", nil)
	}
	return nil
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
