package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Manifest records the files of a dataset with their modality, size and
// modification time. Safe for concurrent use; WAL mode lets a watcher and a
// reader in another process share the file.
type Manifest struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// PathFor returns the manifest location for a dataset root.
func PathFor(datasetRoot string) string {
	return filepath.Join(datasetRoot, ManifestDir, ManifestFile)
}

func manifestErr(msg string, err error) error {
	return serrors.New(serrors.ErrCodeManifestFailed, msg, err)
}

// validateIntegrity checks an existing manifest before opening. A missing
// file is valid.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens or creates the manifest at path. An empty path opens an
// in-memory manifest. A corrupted file is removed and recreated empty.
func Open(path string) (*Manifest, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, manifestErr("failed to create manifest directory", err)
		}
		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("Manifest corrupted, recreating",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, manifestErr("manifest corrupted and cannot be removed: "+path, err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, manifestErr("failed to open manifest", err)
	}
	// single writer; also keeps one shared :memory: database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN parameters are not honoured by modernc.org/sqlite; use statements.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, manifestErr("failed to set pragma", err)
		}
	}

	m := &Manifest{db: db, path: path}
	if err := m.initSchema(); err != nil {
		_ = db.Close()
		return nil, manifestErr("failed to initialize schema", err)
	}
	return m, nil
}

func (m *Manifest) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS files (
		path       TEXT PRIMARY KEY,
		modality   TEXT NOT NULL,
		extension  TEXT NOT NULL,
		size       INTEGER NOT NULL,
		mod_time   INTEGER NOT NULL,
		indexed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_modality ON files(modality);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := m.db.Exec(schema)
	return err
}

// Path returns the manifest file path ("" for in-memory).
func (m *Manifest) Path() string {
	return m.path
}

func (m *Manifest) check() error {
	if m.closed {
		return manifestErr("manifest is closed", nil)
	}
	return nil
}

// Upsert inserts or replaces entries in one transaction. A zero IndexedAt is
// set to now.
func (m *Manifest) Upsert(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return manifestErr("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (path, modality, extension, size, mod_time, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			modality = excluded.modality,
			extension = excluded.extension,
			size = excluded.size,
			mod_time = excluded.mod_time,
			indexed_at = excluded.indexed_at`)
	if err != nil {
		return manifestErr("failed to prepare upsert", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		indexed := e.IndexedAt
		if indexed.IsZero() {
			indexed = now
		}
		if _, err := stmt.ExecContext(ctx, e.Path, e.Modality, e.Extension, e.Size,
			e.ModTime.UnixNano(), indexed.UnixNano()); err != nil {
			return manifestErr("failed to upsert "+e.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return manifestErr("failed to commit upsert", err)
	}
	return nil
}

// Delete removes path. Deleting an absent path is not an error.
func (m *Manifest) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
		return manifestErr("failed to delete "+path, err)
	}
	return nil
}

// DeletePrefix removes every entry under the directory dir.
func (m *Manifest) DeletePrefix(ctx context.Context, dir string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	res, err := m.db.ExecContext(ctx,
		"DELETE FROM files WHERE substr(path, 1, ?) = ?", len(dir)+1, dir+"/")
	if err != nil {
		return 0, manifestErr("failed to delete under "+dir, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const selectEntry = "SELECT path, modality, extension, size, mod_time, indexed_at FROM files"

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var mod, indexed int64
	if err := s.Scan(&e.Path, &e.Modality, &e.Extension, &e.Size, &mod, &indexed); err != nil {
		return Entry{}, err
	}
	e.ModTime = time.Unix(0, mod)
	e.IndexedAt = time.Unix(0, indexed)
	return e, nil
}

// Get returns the entry for path, or nil when absent.
func (m *Manifest) Get(ctx context.Context, path string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	e, err := scanEntry(m.db.QueryRowContext(ctx, selectEntry+" WHERE path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, manifestErr("failed to get "+path, err)
	}
	return &e, nil
}

// List returns entries ordered by path. An empty modality lists everything.
func (m *Manifest) List(ctx context.Context, modality string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	var rows *sql.Rows
	var err error
	if modality == "" {
		rows, err = m.db.QueryContext(ctx, selectEntry+" ORDER BY path")
	} else {
		rows, err = m.db.QueryContext(ctx, selectEntry+" WHERE modality = ? ORDER BY path", modality)
	}
	if err != nil {
		return nil, manifestErr("failed to list entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, manifestErr("failed to scan entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, manifestErr("failed to list entries", err)
	}
	return out, nil
}

// Stats returns totals and per-modality counts.
func (m *Manifest) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT modality, COUNT(*), COALESCE(SUM(size), 0), COALESCE(MAX(indexed_at), 0)
		FROM files GROUP BY modality ORDER BY modality`)
	if err != nil {
		return nil, manifestErr("failed to compute stats", err)
	}
	defer rows.Close()

	st := &Stats{}
	var last int64
	for rows.Next() {
		var ms ModalityStats
		var indexed int64
		if err := rows.Scan(&ms.Modality, &ms.Files, &ms.Bytes, &indexed); err != nil {
			return nil, manifestErr("failed to scan stats", err)
		}
		st.Files += ms.Files
		st.Bytes += ms.Bytes
		last = max(last, indexed)
		st.ByModality = append(st.ByModality, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, manifestErr("failed to compute stats", err)
	}
	if last > 0 {
		st.LastIndexed = time.Unix(0, last)
	}
	return st, nil
}

// Prune deletes entries whose path is not in seen and returns how many were
// removed.
func (m *Manifest) Prune(ctx context.Context, seen map[string]struct{}) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}

	rows, err := m.db.QueryContext(ctx, "SELECT path FROM files")
	if err != nil {
		return 0, manifestErr("failed to list paths", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return 0, manifestErr("failed to scan path", err)
		}
		if _, ok := seen[p]; !ok {
			stale = append(stale, p)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, manifestErr("failed to list paths", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, manifestErr("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, p := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", p); err != nil {
			return 0, manifestErr("failed to prune "+p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, manifestErr("failed to commit prune", err)
	}
	return len(stale), nil
}

// SetState stores a state value.
func (m *Manifest) SetState(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return manifestErr("failed to set state "+key, err)
	}
	return nil
}

// GetState returns a state value, or "" when unset.
func (m *Manifest) GetState(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return "", err
	}
	var v string
	err := m.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", manifestErr("failed to get state "+key, err)
	}
	return v, nil
}

// Close checkpoints the WAL and closes the database. Closing twice is a no-op.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	_, _ = m.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return m.db.Close()
}
