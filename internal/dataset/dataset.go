// Package dataset manages the catalog of sensor datasets under the data
// root: path resolution, validation, file listings and downloads.
package dataset

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/synapsense/synapsense/internal/config"
	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/ui"
)

// Catalog resolves dataset names to directories under a data root.
type Catalog struct {
	dataRoot string
	defs     map[string]config.DatasetConfig
	client   *http.Client
	retry    serrors.RetryConfig
	logger   *slog.Logger
	// spaceCheck guards downloads; nil disables it.
	spaceCheck func(dir string, need uint64) error
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithHTTPClient sets the client used by Download.
func WithHTTPClient(c *http.Client) Option {
	return func(cat *Catalog) { cat.client = c }
}

// WithRetry sets the download retry policy.
func WithRetry(cfg serrors.RetryConfig) Option {
	return func(cat *Catalog) { cat.retry = cfg }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cat *Catalog) { cat.logger = l }
}

// WithSpaceCheck sets the free-space guard run before writing a download of
// known size.
func WithSpaceCheck(fn func(dir string, need uint64) error) Option {
	return func(cat *Catalog) { cat.spaceCheck = fn }
}

// New builds a catalog from the datasets section of cfg rooted at
// cfg.Paths.DataRoot.
func New(cfg *config.Config, opts ...Option) *Catalog {
	return NewCatalog(cfg.Paths.DataRoot, cfg.Datasets, opts...)
}

// NewCatalog builds a catalog from explicit definitions.
func NewCatalog(dataRoot string, defs map[string]config.DatasetConfig, opts ...Option) *Catalog {
	c := &Catalog{
		dataRoot: dataRoot,
		defs:     make(map[string]config.DatasetConfig, len(defs)),
		client:   &http.Client{Timeout: 30 * time.Minute},
		retry:    serrors.DefaultRetryConfig(),
	}
	for name, def := range defs {
		c.defs[name] = def
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// DataRoot returns the directory datasets live under.
func (c *Catalog) DataRoot() string {
	return c.dataRoot
}

// Names returns the dataset names sorted case-insensitively.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// Get returns the definition of name.
func (c *Catalog) Get(name string) (config.DatasetConfig, error) {
	def, ok := c.defs[name]
	if !ok {
		return config.DatasetConfig{}, serrors.New(serrors.ErrCodeUnknownDataset,
			fmt.Sprintf("dataset '%s' not found in configured datasets", name), nil).
			WithSuggestion("available: " + strings.Join(c.Names(), ", "))
	}
	return def, nil
}

// Path returns <data_root>/<root> for name, or the modality sub-directory when
// modality is non-empty.
func (c *Catalog) Path(name, modality string) (string, error) {
	def, err := c.Get(name)
	if err != nil {
		return "", err
	}
	root := filepath.Join(c.dataRoot, def.Root)
	if modality == "" {
		return root, nil
	}
	sub, ok := def.Dirs[modality]
	if !ok {
		keys := make([]string, 0, len(def.Dirs))
		for k := range def.Dirs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e := serrors.New(serrors.ErrCodeUnknownModality,
			fmt.Sprintf("modality '%s' not found for dataset '%s'", modality, name), nil)
		if len(keys) > 0 {
			e = e.WithSuggestion("available: " + strings.Join(keys, ", "))
		}
		return "", e
	}
	return filepath.Join(root, sub), nil
}

// Validate reports whether the dataset (or modality) directory exists.
// Unknown names are logged and reported as invalid.
func (c *Catalog) Validate(name, modality string) bool {
	path, err := c.Path(name, modality)
	if err != nil {
		c.logger.Error("Dataset validation failed", slog.String("error", err.Error()))
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		c.logger.Info("[ERROR] Dataset path does not exist", slog.String("path", path))
		return false
	}
	c.logger.Info("[OK] Dataset path exists", slog.String("path", path))
	return true
}

// Show writes the catalog: name, description and modalities per dataset.
func (c *Catalog) Show(w io.Writer, styles ui.Styles) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", styles.Header.Render("Available Datasets:")); err != nil {
		return err
	}
	for _, name := range c.Names() {
		def := c.defs[name]
		_, err := fmt.Fprintf(w, "%s\n  %s %s\n  %s %s\n\n",
			styles.Title.Render(name+":"),
			styles.Label.Render("Description:"), def.Description,
			styles.Label.Render("Modalities:"), def.Modalities)
		if err != nil {
			return err
		}
	}
	return nil
}
