package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Mode selects console verbosity, backup retention and the log sub-directory.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeDebug       Mode = "debug"
	ModeExperiment  Mode = "experiment"
	ModeBenchmark   Mode = "benchmark"
	ModeTest        Mode = "test"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeDevelopment, ModeDebug, ModeExperiment, ModeBenchmark, ModeTest}

const (
	// DefaultMaxSizeMB is the rotation threshold when none is configured.
	DefaultMaxSizeMB = 10
	// DefaultBackupCount applies to modes missing from the backup table.
	DefaultBackupCount = 5
)

var defaultBackupCounts = map[Mode]int{
	ModeDevelopment: 3,
	ModeDebug:       7,
	ModeExperiment:  10,
	ModeBenchmark:   5,
	ModeTest:        2,
}

// ParseMode validates a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	names := make([]string, len(Modes))
	for i, known := range Modes {
		names[i] = string(known)
	}
	return "", serrors.New(serrors.ErrCodeInvalidMode,
		fmt.Sprintf("invalid logging mode %q, supported modes: %s", s, strings.Join(names, ", ")), nil)
}

// ConsoleLevel is the console threshold for a mode.
func (m Mode) ConsoleLevel() slog.Level {
	switch m {
	case ModeDebug:
		return slog.LevelDebug
	case ModeTest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// BackupCount returns the rotated file count for m, consulting overrides first.
func (m Mode) BackupCount(overrides map[string]int) int {
	if n, ok := overrides[string(m)]; ok {
		return n
	}
	if n, ok := defaultBackupCounts[m]; ok {
		return n
	}
	return DefaultBackupCount
}

// Dir returns the directory holding logs for m. Development logs live at the root.
func (m Mode) Dir(root string) string {
	if m == ModeDevelopment || m == "" {
		return root
	}
	return filepath.Join(root, string(m))
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// SanitizeFilename trims s, turns spaces into underscores and drops every
// character outside [A-Za-z0-9_.-].
func SanitizeFilename(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	return unsafeFilenameChars.ReplaceAllString(s, "")
}

// FileName builds <name>_<experiment>_<mode>_<YYYYmmdd_HHMMSS>_<salt>.log.
func FileName(name, experiment string, mode Mode, now time.Time, salt string) string {
	if experiment == "" {
		experiment = "general"
	}
	return fmt.Sprintf("%s_%s_%s_%s_%s.log",
		SanitizeFilename(name), SanitizeFilename(experiment), mode, now.Format("20060102_150405"), salt)
}

// newSalt returns six hex characters taken from a random UUID.
func newSalt(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:6]
}

// Options configures Setup.
type Options struct {
	Name       string
	Experiment string
	Mode       string
	// Level is the floor for every sink; the console additionally applies the
	// mode threshold.
	Level      string
	LogsRoot   string
	FileName   string
	StreamOnly bool
	MaxSizeMB  int
	// BackupCounts overrides the per-mode rotated file count.
	BackupCounts map[string]int
	// Console receives text output. Nil means os.Stderr.
	Console io.Writer
}

// DefaultOptions mirrors the default logging section of the configuration.
func DefaultOptions() Options {
	return Options{
		Name:       "Project SynapSense",
		Experiment: "generic run",
		Mode:       string(ModeDebug),
		Level:      "debug",
		LogsRoot:   "logs",
		MaxSizeMB:  DefaultMaxSizeMB,
	}
}

// Result is a configured logger and the resources behind it.
type Result struct {
	Logger *slog.Logger
	// File is the active log file, empty when logging to the console only.
	File  string
	RunID string
	close func() error
}

// Close flushes and closes the file sink.
func (r *Result) Close() error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close()
}

// Setup builds a logger from opts. A file sink that cannot be opened is
// reported as a warning on the console and logging continues console-only.
func Setup(opts Options) (*Result, error) {
	mode, err := ParseMode(opts.Mode)
	if err != nil {
		return nil, err
	}

	floor := LevelFromString(opts.Level)
	if opts.Level == "" {
		floor = slog.LevelDebug
	}
	consoleLevel := mode.ConsoleLevel()
	if floor > consoleLevel {
		consoleLevel = floor
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	runID := uuid.New()
	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel}),
	}

	res := &Result{RunID: runID.String()}
	var fileErr error

	if !opts.StreamOnly {
		name := opts.FileName
		if name != "" {
			name = SanitizeFilename(name)
		} else {
			name = FileName(opts.Name, opts.Experiment, mode, time.Now(), newSalt(runID))
		}
		path := filepath.Join(mode.Dir(opts.LogsRoot), name)

		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = DefaultMaxSizeMB
		}

		writer, err := NewRotatingWriter(path, maxSize, mode.BackupCount(opts.BackupCounts))
		if err != nil {
			fileErr = err
		} else {
			handlers = append(handlers, slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: floor}))
			res.File = path
			res.close = func() error {
				_ = writer.Sync()
				return writer.Close()
			}
		}
	}

	res.Logger = slog.New(newFanoutHandler(handlers...)).With(
		slog.String("logger", opts.Name),
		slog.String("run_id", res.RunID),
	)

	if fileErr != nil {
		res.Logger.Warn("failed to initialize file handler, logging to console only",
			slog.String("error", fileErr.Error()))
	}

	return res, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts string level to slog.Level.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
