package dataset

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/ui"
)

// previewCount is how many file names each extension group shows.
const previewCount = 3

// ExtGroup is the files of one directory sharing an extension.
type ExtGroup struct {
	// Ext is the lower-cased extension including the dot, or "" for none.
	Ext   string
	Files []string
}

// Preview returns up to three names joined by ", ", followed by ", ..." when
// the group holds more.
func (g ExtGroup) Preview() string {
	if len(g.Files) <= previewCount {
		return strings.Join(g.Files, ", ")
	}
	return strings.Join(g.Files[:previewCount], ", ") + ", ..."
}

// Tree is a directory listing: sub-directories first, then files grouped by
// extension in the order the extensions first appear.
type Tree struct {
	Name   string
	Path   string
	Dirs   []*Tree
	Groups []ExtGroup
	// HasFiles is true when the directory or any descendant holds a file.
	HasFiles bool
}

// ListFiles builds the tree of the dataset (or modality) directory.
func (c *Catalog) ListFiles(name, modality string) (*Tree, error) {
	path, err := c.Path(name, modality)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, serrors.New(serrors.ErrCodeFileNotFound, "dataset path does not exist: "+path, err).
			WithSuggestion("run 'synapsense dataset download " + name + "' or check paths.data_root")
	}
	c.logger.Info("Listing dataset files", "path", path)
	return BuildTree(path)
}

// BuildTree lists dir recursively. Entries are ordered case-insensitively.
func BuildTree(dir string) (*Tree, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeReadFailed, "cannot list "+dir, err)
	}

	type entry struct {
		name  string
		isDir bool
	}
	var list []entry
	for _, e := range entries {
		isDir, isFile := kindOf(dir, e)
		if !isDir && !isFile {
			continue
		}
		list = append(list, entry{name: e.Name(), isDir: isDir})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].isDir != list[j].isDir {
			return list[i].isDir
		}
		return strings.ToLower(list[i].name) < strings.ToLower(list[j].name)
	})

	t := &Tree{Name: filepath.Base(dir), Path: dir}
	groupIdx := make(map[string]int)
	for _, e := range list {
		if e.isDir {
			sub, err := BuildTree(filepath.Join(dir, e.name))
			if err != nil {
				return nil, err
			}
			t.Dirs = append(t.Dirs, sub)
			t.HasFiles = t.HasFiles || sub.HasFiles
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.name))
		i, ok := groupIdx[ext]
		if !ok {
			i = len(t.Groups)
			groupIdx[ext] = i
			t.Groups = append(t.Groups, ExtGroup{Ext: ext})
		}
		t.Groups[i].Files = append(t.Groups[i].Files, e.name)
		t.HasFiles = true
	}
	return t, nil
}

// kindOf classifies e, following symlinks.
func kindOf(dir string, e fs.DirEntry) (isDir, isFile bool) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir(), e.Type().IsRegular()
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	if err != nil {
		return false, false
	}
	return info.IsDir(), info.Mode().IsRegular()
}

// Render writes the tree with four-space indentation per level.
func (t *Tree) Render(w io.Writer, styles ui.Styles) error {
	if _, err := fmt.Fprintf(w, "Listing files in: %s\n\n", t.Path); err != nil {
		return err
	}
	if err := t.render(w, styles, 0); err != nil {
		return err
	}
	if !t.HasFiles {
		_, err := fmt.Fprintln(w, styles.Dim.Render("(No files found in this dataset)"))
		return err
	}
	return nil
}

func (t *Tree) render(w io.Writer, styles ui.Styles, depth int) error {
	indent := strings.Repeat("    ", depth)
	for _, d := range t.Dirs {
		if _, err := fmt.Fprintf(w, "%s%s\n", indent, styles.Dir.Render(d.Name+"/")); err != nil {
			return err
		}
		if err := d.render(w, styles, depth+1); err != nil {
			return err
		}
		if !d.HasFiles {
			if _, err := fmt.Fprintf(w, "%s    %s\n", indent, styles.Dim.Render("(No files available)")); err != nil {
				return err
			}
		}
	}
	for _, g := range t.Groups {
		ext := g.Ext
		if ext == "" {
			ext = "[No Extension]"
		}
		if _, err := fmt.Fprintf(w, "%s%d *%s - %s\n", indent, len(g.Files), ext, g.Preview()); err != nil {
			return err
		}
	}
	return nil
}
