package modality

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/synapsense/synapsense/internal/config"
	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Extensions lists what a modality reads and writes. Entries are lower case
// with a leading dot.
type Extensions struct {
	Read  []string
	Write []string
}

func (e Extensions) forOp(op Op) []string {
	if op == OpWrite {
		return e.Write
	}
	return e.Read
}

// ExtensionsFromConfig converts the configuration table, normalising case.
// Unknown modality names are ignored.
func ExtensionsFromConfig(sets map[string]config.ExtensionSet) map[Modality]Extensions {
	out := make(map[Modality]Extensions, len(sets))
	for name, set := range sets {
		m, err := Parse(name)
		if err != nil {
			continue
		}
		out[m] = Extensions{Read: lowerAll(set.Read), Write: lowerAll(set.Write)}
	}
	return out
}

// DefaultExtensions returns the built-in extension table.
func DefaultExtensions() map[Modality]Extensions {
	return ExtensionsFromConfig(config.DefaultModalities())
}

func lowerAll(exts []string) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = strings.ToLower(e)
	}
	return out
}

// Registry maps modalities to codecs and extensions.
type Registry struct {
	mu      sync.RWMutex
	readers map[Modality]Reader
	writers map[Modality]Writer
	exts    map[Modality]Extensions
}

// NewRegistry creates an empty registry using exts for extension lookups.
func NewRegistry(exts map[Modality]Extensions) *Registry {
	return &Registry{
		readers: make(map[Modality]Reader),
		writers: make(map[Modality]Writer),
		exts:    exts,
	}
}

// Default is populated by codec packages from their init functions.
var Default = NewRegistry(DefaultExtensions())

// RegisterReader installs the reader for m, replacing any previous one.
func (r *Registry) RegisterReader(m Modality, rd Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[m] = rd
}

// RegisterWriter installs the writer for m, replacing any previous one.
func (r *Registry) RegisterWriter(m Modality, w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[m] = w
}

// Register installs c as both reader and writer for m.
func (r *Registry) Register(m Modality, c Codec) {
	r.RegisterReader(m, c)
	r.RegisterWriter(m, c)
}

// Reader returns the reader registered for m.
func (r *Registry) Reader(m Modality) (Reader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.readers[m]
	return rd, ok
}

// Writer returns the writer registered for m.
func (r *Registry) Writer(m Modality) (Writer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.writers[m]
	return w, ok
}

// SetExtensions replaces the extension table.
func (r *Registry) SetExtensions(exts map[Modality]Extensions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exts = exts
}

// SupportedExtensions returns the extensions m supports for op.
func (r *Registry) SupportedExtensions(m Modality, op Op) ([]string, error) {
	if _, err := ParseOp(string(op)); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.exts[m]
	if !ok {
		return nil, serrors.New(serrors.ErrCodeUnknownModality,
			fmt.Sprintf("modality %q is not configured", m), nil)
	}
	return append([]string(nil), set.forOp(op)...), nil
}

// ResolveModality returns the first modality, in All order, whose op list
// contains the extension of path. ok is false when none does.
func (r *Registry) ResolveModality(path string, op Op) (m Modality, ok bool) {
	ext := FileExtension(path)
	if ext == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, candidate := range r.orderedLocked() {
		if ValidateExtension(path, r.exts[candidate].forOp(op)) {
			return candidate, true
		}
	}
	return "", false
}

// orderedLocked returns configured modalities: All order first, then any
// others alphabetically.
func (r *Registry) orderedLocked() []Modality {
	out := make([]Modality, 0, len(r.exts))
	seen := make(map[Modality]bool, len(r.exts))
	for _, m := range All {
		if _, ok := r.exts[m]; ok {
			out = append(out, m)
			seen[m] = true
		}
	}
	var extra []Modality
	for m := range r.exts {
		if !seen[m] {
			extra = append(extra, m)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// ListSupportedFiles lists files under dir that m supports for op.
func (r *Registry) ListSupportedFiles(dir string, m Modality, op Op) ([]string, error) {
	exts, err := r.SupportedExtensions(m, op)
	if err != nil {
		return nil, err
	}
	return ListFilesWithExtensions(dir, exts)
}

// IsSupportedFile reports whether path exists and m supports it for op.
func (r *Registry) IsSupportedFile(path string, m Modality, op Op) (bool, error) {
	exts, err := r.SupportedExtensions(m, op)
	if err != nil {
		return false, err
	}
	return IsValidFile(path, exts), nil
}

// GlobalSupportedExtensions returns the sorted union of op extensions.
func (r *Registry) GlobalSupportedExtensions(op Op) ([]string, error) {
	if _, err := ParseOp(string(op)); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, e := range r.exts {
		for _, ext := range e.forOp(op) {
			set[ext] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for ext := range set {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out, nil
}
