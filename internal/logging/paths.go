package logging

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListLogFiles returns every *.log file under root, newest first.
// Rotated backups (name.log.N) are excluded.
func ListLogFiles(root string) ([]string, error) {
	type logFile struct {
		path string
		mod  int64
	}
	var found []logFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".log") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		found = append(found, logFile{path: path, mod: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].mod != found[j].mod {
			return found[i].mod > found[j].mod
		}
		return found[i].path > found[j].path
	})

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// FindLogFile resolves the log file to view.
// Priority:
// 1. Explicit path (if provided)
// 2. Newest *.log under <logsRoot>/<mode> (when mode is set)
// 3. Newest *.log anywhere under logsRoot
func FindLogFile(explicit, logsRoot, mode string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	searchRoot := logsRoot
	if mode != "" {
		m, err := ParseMode(mode)
		if err != nil {
			return "", err
		}
		searchRoot = m.Dir(logsRoot)
	}

	files, err := ListLogFiles(searchRoot)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no log files found under %s.\nRun any synapsense command without --stream-only to create one", searchRoot)
	}
	return files[0], nil
}
