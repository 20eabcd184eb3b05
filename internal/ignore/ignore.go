// Package ignore reads .synapseignore files. A dataset root may hold one to
// keep raw dumps, calibration scratch or partial downloads out of its
// manifest. The syntax is that of .gitignore: globs, "**", rooted "/x",
// directory-only "x/" and "!" negation, with the last matching line winning.
package ignore

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// FileName is the ignore file looked up in a dataset root.
const FileName = ".synapseignore"

// Matcher holds compiled ignore rules. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// New returns a Matcher with the given patterns.
func New(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.Add(p)
	}
	return m
}

// Load reads <root>/.synapseignore. A missing file yields an empty Matcher.
func Load(root string) (*Matcher, error) {
	path := filepath.Join(root, FileName)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeReadFailed, "cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	m := New()
	if err := m.read(f); err != nil {
		return nil, serrors.New(serrors.ErrCodeReadFailed, "cannot read "+path, err)
	}
	return m, nil
}

func (m *Matcher) read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m.Add(sc.Text())
	}
	return sc.Err()
}

// Add compiles one line. Blank lines and comments are skipped.
func (m *Matcher) Add(line string) {
	r, ok := compile(line)
	if !ok {
		return
	}
	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Match reports whether relPath (relative to the root holding the ignore
// file) is ignored. A nil Matcher ignores nothing.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	parts := strings.Split(relPath, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, parts, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func compile(line string) (rule, bool) {
	// "\ " keeps one trailing space
	keepSpace := strings.HasSuffix(line, `\ `)
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false
	}

	var r rule
	switch {
	case strings.HasPrefix(p, `\#`), strings.HasPrefix(p, `\!`):
		p = p[1:]
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	}
	if keepSpace && strings.HasSuffix(p, `\`) {
		p = strings.TrimSuffix(p, `\`) + " "
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = p[1:]
	} else if strings.Contains(p, "/") && !strings.HasPrefix(p, "**/") && !strings.HasPrefix(p, "*") {
		// "calib/raw" means "/calib/raw"
		r.anchored = true
	}
	if p == "" {
		return rule{}, false
	}

	re, err := regexp.Compile("^" + globToRegexp(p) + "$")
	if err != nil {
		return rule{}, false
	}
	r.re = re
	return r, true
}

func (r rule) matches(path string, parts []string, isDir bool) bool {
	if r.anchored {
		if r.re.MatchString(path) {
			return !r.dirOnly || isDir
		}
		if !r.dirOnly {
			return false
		}
		// files below an ignored directory
		for i := 1; i < len(parts); i++ {
			if r.re.MatchString(strings.Join(parts[:i], "/")) {
				return true
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.re.MatchString(part) {
				return i < len(parts)-1 || isDir
			}
		}
		return false
	}

	if r.re.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.re.MatchString(part) {
			return true
		}
	}
	return false
}

// globToRegexp translates glob syntax; other regexp metacharacters are quoted.
func globToRegexp(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				if i+2 < len(glob) && glob[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				if i == 0 || glob[i-1] == '/' {
					b.WriteString(".*")
					i++
					continue
				}
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(glob[i : i+end+2])
			i += end + 1
		case '\\':
			if i+1 < len(glob) {
				i++
				b.WriteString(regexp.QuoteMeta(string(glob[i])))
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
