// Package config loads SynapSense configuration.
//
// Configuration is layered, in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/synapsense/config.yaml)
//  3. Project config (.synapsense.yaml / .synapsense.yml in the project root)
//  4. Environment variables (SYNAPSENSE_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ProjectConfigNames are the project config file names, in lookup order.
var ProjectConfigNames = []string{".synapsense.yaml", ".synapsense.yml"}

// Config represents the complete SynapSense configuration.
type Config struct {
	Version         int                      `yaml:"version" json:"version"`
	Paths           PathsConfig              `yaml:"paths" json:"paths"`
	Logging         LoggingConfig            `yaml:"logging" json:"logging"`
	Modalities      map[string]ExtensionSet  `yaml:"modalities" json:"modalities"`
	DVS             DVSConfig                `yaml:"dvs" json:"dvs"`
	RGB             RGBConfig                `yaml:"rgb" json:"rgb"`
	LiDARProcessing LiDARProcessingConfig    `yaml:"lidar_processing" json:"lidar_processing"`
	Datasets        map[string]DatasetConfig `yaml:"datasets" json:"datasets"`
	Cleanup         CleanupConfig            `yaml:"cleanup" json:"cleanup"`
	Performance     PerformanceConfig        `yaml:"performance" json:"performance"`
}

// PathsConfig locates data and logs. Relative paths are resolved against the
// project root by Resolve.
type PathsConfig struct {
	DataRoot string `yaml:"data_root" json:"data_root"`
	LogsRoot string `yaml:"logs_root" json:"logs_root"`
}

// LoggingConfig configures the project logger.
type LoggingConfig struct {
	// Name labels the logger and prefixes generated log file names.
	Name string `yaml:"name" json:"name"`
	// Experiment is the experiment identifier embedded in log file names.
	Experiment string `yaml:"experiment" json:"experiment"`
	// Mode is one of development, debug, experiment, benchmark, test.
	Mode string `yaml:"mode" json:"mode"`
	// Level is the minimum level written anywhere (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`
	// StreamOnly disables the file sink.
	StreamOnly bool `yaml:"stream_only" json:"stream_only"`
	// FileName overrides the generated log file name.
	FileName string `yaml:"file_name" json:"file_name"`
	// MaxSizeMB is the rotation threshold.
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`
	// BackupCounts maps mode to the number of rotated files kept.
	BackupCounts map[string]int `yaml:"backup_counts" json:"backup_counts"`
}

// ExtensionSet lists the file extensions a modality can read and write.
type ExtensionSet struct {
	Read  []string `yaml:"read" json:"read"`
	Write []string `yaml:"write" json:"write"`
}

// DVSConfig configures event-camera output.
type DVSConfig struct {
	// Compression for AEDAT4 packets: none, lz4, zstd.
	Compression string `yaml:"compression" json:"compression"`
	// PacketSize is the number of events per AEDAT4 packet.
	PacketSize int `yaml:"packet_size" json:"packet_size"`
}

// RGBConfig configures image output.
type RGBConfig struct {
	JPEGQuality int `yaml:"jpeg_quality" json:"jpeg_quality"`
}

// LiDARProcessingConfig holds point-cloud processing defaults.
type LiDARProcessingConfig struct {
	Downsampling   DownsamplingConfig   `yaml:"downsampling" json:"downsampling"`
	OutlierRemoval OutlierRemovalConfig `yaml:"outlier_removal" json:"outlier_removal"`
	Resampling     ResamplingConfig     `yaml:"resampling" json:"resampling"`
}

// DownsamplingConfig: method is voxel, uniform or none.
type DownsamplingConfig struct {
	Method        string  `yaml:"method" json:"method"`
	VoxelSize     float64 `yaml:"voxel_size" json:"voxel_size"`
	UniformEveryK int     `yaml:"uniform_every_k" json:"uniform_every_k"`
}

// OutlierRemovalConfig: method is statistical, radius or none.
type OutlierRemovalConfig struct {
	Method                 string  `yaml:"method" json:"method"`
	StatisticalNbNeighbors int     `yaml:"statistical_nb_neighbors" json:"statistical_nb_neighbors"`
	StatisticalStdRatio    float64 `yaml:"statistical_std_ratio" json:"statistical_std_ratio"`
	RadiusNbPoints         int     `yaml:"radius_nb_points" json:"radius_nb_points"`
	RadiusRadius           float64 `yaml:"radius_radius" json:"radius_radius"`
}

// ResamplingConfig: method is random, distance or none.
type ResamplingConfig struct {
	Method           string  `yaml:"method" json:"method"`
	RandomSampleSize int     `yaml:"random_sample_size" json:"random_sample_size"`
	MaxDistance      float64 `yaml:"max_distance" json:"max_distance"`
}

// DatasetConfig describes one dataset in the catalog.
type DatasetConfig struct {
	Description string `yaml:"description" json:"description"`
	Modalities  string `yaml:"modalities" json:"modalities"`
	// Root is the directory under data_root holding the dataset.
	Root string `yaml:"root" json:"root"`
	// Dirs maps a modality key to a sub-directory of Root.
	Dirs map[string]string `yaml:"dirs,omitempty" json:"dirs,omitempty"`
	// URL is the default download location, if any.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}

// CleanupConfig holds defaults for `synapsense logs clean`.
type CleanupConfig struct {
	Mode                   string   `yaml:"mode" json:"mode"`
	RetainLastN            int      `yaml:"retain_last_n" json:"retain_last_n"`
	FilePattern            string   `yaml:"file_pattern" json:"file_pattern"`
	FilterKeywords         []string `yaml:"filter_keywords" json:"filter_keywords"`
	Compress               bool     `yaml:"compress" json:"compress"`
	RequiresLoggerShutdown bool     `yaml:"requires_logger_shutdown" json:"requires_logger_shutdown"`
}

// PerformanceConfig tunes concurrency and caching.
type PerformanceConfig struct {
	// Workers bounds concurrent file conversions and scans (0 = NumCPU).
	Workers int `yaml:"workers" json:"workers"`
	// CacheSize is the number of decoded bundles kept in memory.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// WatchDebounce coalesces manifest watcher events (Go duration).
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// Valid enum values.
var (
	ValidLogModes         = []string{"development", "debug", "experiment", "benchmark", "test"}
	validLevels           = []string{"debug", "info", "warn", "error"}
	validCompressions     = []string{"none", "lz4", "lz4_high", "zstd", "zstd_high"}
	validDownsampling     = []string{"voxel", "uniform", "none"}
	validOutlierMethods   = []string{"statistical", "radius", "none"}
	validResamplingMethod = []string{"random", "distance", "none"}
	ValidCleanupModes     = []string{"full", "files_only", "retain_last_n"}
)

// DefaultModalities returns the built-in extension table.
func DefaultModalities() map[string]ExtensionSet {
	return map[string]ExtensionSet{
		"dvs": {
			Read:  []string{".aedat4", ".txt", ".csv"},
			Write: []string{".aedat4", ".csv", ".txt"},
		},
		"lidar": {
			Read:  []string{".pcd", ".ply", ".las", ".laz", ".bin"},
			Write: []string{".pcd", ".ply", ".las", ".laz", ".bin"},
		},
		"imu": {
			Read:  []string{".csv", ".txt"},
			Write: []string{".csv"},
		},
		"rgb": {
			Read:  []string{".png", ".jpg", ".jpeg", ".bmp"},
			Write: []string{".png", ".jpg", ".jpeg"},
		},
	}
}

// DefaultDatasets returns the built-in dataset catalog.
func DefaultDatasets() map[string]DatasetConfig {
	return map[string]DatasetConfig{
		"DSEC": {
			Description: "A Stereo Event Camera Dataset for Driving Scenarios",
			Modalities:  "2x monochrome event cameras, 2x global shutter color cameras, 1x LiDAR data, and 1x RTK GPS measurements",
			Root:        "DSEC",
		},
		"KITTI": {
			Description: "A comprehensive dataset from Karlsruhe Institute of Technology (KIT) for novel challenging real-world computer vision benchmarks",
			Modalities:  "1x Inertial Navigation System (GPS/IMU), 1x Laser scanner, 2x Grayscale cameras, 2x Color cameras and 4x Varifocal lenses",
			Root:        "KITTI",
		},
		"nuScenes": {
			Description: "nuScenes is a public large-scale dataset for autonomous driving using the full sensor suite of a real self-driving car.",
			Modalities:  "1x LiDAR, 5x RADAR, 6x camera, 1x IMU and 1x GPS",
			Root:        "nuScenes",
		},
		"MVSEC": {
			Description: "The Multi Vehicle Stereo Event Camera dataset for 3D perception algorithms for event-based cameras.",
			Modalities:  "2x Event Camera (DAVIS), 1x LiDAR, 1x GPS, 1x VI Sensor and 2x Motion Capture",
			Root:        "MVSEC",
		},
		"IODataset": {
			Description: "Sample dataset to check IO capability. With single image from each format.",
			Modalities:  "Image, LiDAR, IMU, DVS",
			Root:        "IODataset",
			Dirs: map[string]string{
				"image": "image",
				"lidar": "lidar",
				"imu":   "imu",
				"event": "dvs",
			},
		},
	}
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataRoot: "data",
			LogsRoot: "logs",
		},
		Logging: LoggingConfig{
			Name:       "Project SynapSense",
			Experiment: "generic run",
			Mode:       "debug",
			Level:      "debug",
			StreamOnly: false,
			MaxSizeMB:  10,
			BackupCounts: map[string]int{
				"development": 3,
				"debug":       7,
				"experiment":  10,
				"benchmark":   5,
				"test":        2,
			},
		},
		Modalities: DefaultModalities(),
		DVS: DVSConfig{
			Compression: "lz4",
			PacketSize:  4096,
		},
		RGB: RGBConfig{
			JPEGQuality: 95,
		},
		LiDARProcessing: LiDARProcessingConfig{
			Downsampling: DownsamplingConfig{
				Method:        "voxel",
				VoxelSize:     0.1,
				UniformEveryK: 5,
			},
			OutlierRemoval: OutlierRemovalConfig{
				Method:                 "statistical",
				StatisticalNbNeighbors: 20,
				StatisticalStdRatio:    2.0,
				RadiusNbPoints:         16,
				RadiusRadius:           0.5,
			},
			Resampling: ResamplingConfig{
				Method:           "random",
				RandomSampleSize: 2048,
				MaxDistance:      50.0,
			},
		},
		Datasets: DefaultDatasets(),
		Cleanup: CleanupConfig{
			Mode:        "retain_last_n",
			RetainLastN: 3,
			FilePattern: "*.log",
		},
		Performance: PerformanceConfig{
			Workers:       runtime.NumCPU(),
			CacheSize:     64,
			WatchDebounce: "500ms",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
//   - $XDG_CONFIG_HOME/synapsense/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/synapsense/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "synapsense", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "synapsense", "config.yaml")
	}
	return filepath.Join(home, ".config", "synapsense", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(path, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return &parsed, nil
}

// Load loads configuration for the project rooted at dir, then resolves
// relative paths against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if path := FindProjectConfig(dir); path != "" {
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return nil, err
		}
		cfg.mergeWith(&parsed)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Resolve(dir)
	return cfg, nil
}

// FindProjectConfig returns the project config path in dir, or "".
func FindProjectConfig(dir string) string {
	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func readYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Resolve makes relative data and log roots absolute against root.
func (c *Config) Resolve(root string) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	if c.Paths.DataRoot != "" && !filepath.IsAbs(c.Paths.DataRoot) {
		c.Paths.DataRoot = filepath.Join(absRoot, c.Paths.DataRoot)
	}
	if c.Paths.LogsRoot != "" && !filepath.IsAbs(c.Paths.LogsRoot) {
		c.Paths.LogsRoot = filepath.Join(absRoot, c.Paths.LogsRoot)
	}
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataRoot != "" {
		c.Paths.DataRoot = other.Paths.DataRoot
	}
	if other.Paths.LogsRoot != "" {
		c.Paths.LogsRoot = other.Paths.LogsRoot
	}

	l := other.Logging
	if l.Name != "" {
		c.Logging.Name = l.Name
	}
	if l.Experiment != "" {
		c.Logging.Experiment = l.Experiment
	}
	if l.Mode != "" {
		c.Logging.Mode = l.Mode
	}
	if l.Level != "" {
		c.Logging.Level = l.Level
	}
	// stream_only can only be switched on from a file; the env var can clear it.
	if l.StreamOnly {
		c.Logging.StreamOnly = true
	}
	if l.FileName != "" {
		c.Logging.FileName = l.FileName
	}
	if l.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = l.MaxSizeMB
	}
	for mode, n := range l.BackupCounts {
		c.Logging.BackupCounts[mode] = n
	}

	// Modality and dataset entries replace defaults key by key.
	for name, set := range other.Modalities {
		c.Modalities[name] = set
	}
	for name, ds := range other.Datasets {
		c.Datasets[name] = ds
	}

	if other.DVS.Compression != "" {
		c.DVS.Compression = other.DVS.Compression
	}
	if other.DVS.PacketSize != 0 {
		c.DVS.PacketSize = other.DVS.PacketSize
	}
	if other.RGB.JPEGQuality != 0 {
		c.RGB.JPEGQuality = other.RGB.JPEGQuality
	}

	d := other.LiDARProcessing.Downsampling
	if d.Method != "" {
		c.LiDARProcessing.Downsampling.Method = d.Method
	}
	if d.VoxelSize != 0 {
		c.LiDARProcessing.Downsampling.VoxelSize = d.VoxelSize
	}
	if d.UniformEveryK != 0 {
		c.LiDARProcessing.Downsampling.UniformEveryK = d.UniformEveryK
	}
	o := other.LiDARProcessing.OutlierRemoval
	if o.Method != "" {
		c.LiDARProcessing.OutlierRemoval.Method = o.Method
	}
	if o.StatisticalNbNeighbors != 0 {
		c.LiDARProcessing.OutlierRemoval.StatisticalNbNeighbors = o.StatisticalNbNeighbors
	}
	if o.StatisticalStdRatio != 0 {
		c.LiDARProcessing.OutlierRemoval.StatisticalStdRatio = o.StatisticalStdRatio
	}
	if o.RadiusNbPoints != 0 {
		c.LiDARProcessing.OutlierRemoval.RadiusNbPoints = o.RadiusNbPoints
	}
	if o.RadiusRadius != 0 {
		c.LiDARProcessing.OutlierRemoval.RadiusRadius = o.RadiusRadius
	}
	r := other.LiDARProcessing.Resampling
	if r.Method != "" {
		c.LiDARProcessing.Resampling.Method = r.Method
	}
	if r.RandomSampleSize != 0 {
		c.LiDARProcessing.Resampling.RandomSampleSize = r.RandomSampleSize
	}
	if r.MaxDistance != 0 {
		c.LiDARProcessing.Resampling.MaxDistance = r.MaxDistance
	}

	cl := other.Cleanup
	if cl.Mode != "" {
		c.Cleanup.Mode = cl.Mode
	}
	if cl.RetainLastN != 0 {
		c.Cleanup.RetainLastN = cl.RetainLastN
	}
	if cl.FilePattern != "" {
		c.Cleanup.FilePattern = cl.FilePattern
	}
	if len(cl.FilterKeywords) > 0 {
		c.Cleanup.FilterKeywords = cl.FilterKeywords
	}
	if cl.Compress {
		c.Cleanup.Compress = true
	}
	if cl.RequiresLoggerShutdown {
		c.Cleanup.RequiresLoggerShutdown = true
	}

	if other.Performance.Workers != 0 {
		c.Performance.Workers = other.Performance.Workers
	}
	if other.Performance.CacheSize != 0 {
		c.Performance.CacheSize = other.Performance.CacheSize
	}
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}
}

// envOverrides are the SYNAPSENSE_* variables understood by Load.
type envOverrides struct {
	DataRoot       string `env:"SYNAPSENSE_DATA_ROOT"`
	LogsRoot       string `env:"SYNAPSENSE_LOGS_ROOT"`
	LogMode        string `env:"SYNAPSENSE_LOG_MODE"`
	LogLevel       string `env:"SYNAPSENSE_LOG_LEVEL"`
	Experiment     string `env:"SYNAPSENSE_EXPERIMENT"`
	StreamOnly     string `env:"SYNAPSENSE_STREAM_ONLY"`
	DVSCompression string `env:"SYNAPSENSE_DVS_COMPRESSION"`
	Workers        int    `env:"SYNAPSENSE_WORKERS"`
	CacheSize      int    `env:"SYNAPSENSE_CACHE_SIZE"`
}

// applyEnvOverrides applies SYNAPSENSE_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if o.DataRoot != "" {
		c.Paths.DataRoot = o.DataRoot
	}
	if o.LogsRoot != "" {
		c.Paths.LogsRoot = o.LogsRoot
	}
	if o.LogMode != "" {
		c.Logging.Mode = strings.ToLower(o.LogMode)
	}
	if o.LogLevel != "" {
		c.Logging.Level = strings.ToLower(o.LogLevel)
	}
	if o.Experiment != "" {
		c.Logging.Experiment = o.Experiment
	}
	if o.StreamOnly != "" {
		b, err := strconv.ParseBool(o.StreamOnly)
		if err != nil {
			return fmt.Errorf("SYNAPSENSE_STREAM_ONLY: %w", err)
		}
		c.Logging.StreamOnly = b
	}
	if o.DVSCompression != "" {
		c.DVS.Compression = strings.ToLower(o.DVSCompression)
	}
	if o.Workers > 0 {
		c.Performance.Workers = o.Workers
	}
	if o.CacheSize > 0 {
		c.Performance.CacheSize = o.CacheSize
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := oneOf("logging.mode", strings.ToLower(c.Logging.Mode), ValidLogModes); err != nil {
		return err
	}
	if err := oneOf("logging.level", strings.ToLower(c.Logging.Level), validLevels); err != nil {
		return err
	}
	if c.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.max_size_mb must be positive, got %d", c.Logging.MaxSizeMB)
	}
	for mode, n := range c.Logging.BackupCounts {
		if n < 0 {
			return fmt.Errorf("logging.backup_counts.%s must be non-negative, got %d", mode, n)
		}
	}

	for name, set := range c.Modalities {
		for _, ext := range append(append([]string{}, set.Read...), set.Write...) {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("modalities.%s: extension %q must start with '.'", name, ext)
			}
		}
	}

	if err := oneOf("dvs.compression", c.DVS.Compression, validCompressions); err != nil {
		return err
	}
	if c.DVS.PacketSize <= 0 {
		return fmt.Errorf("dvs.packet_size must be positive, got %d", c.DVS.PacketSize)
	}
	if c.RGB.JPEGQuality < 1 || c.RGB.JPEGQuality > 100 {
		return fmt.Errorf("rgb.jpeg_quality must be between 1 and 100, got %d", c.RGB.JPEGQuality)
	}

	lp := c.LiDARProcessing
	if err := oneOf("lidar_processing.downsampling.method", lp.Downsampling.Method, validDownsampling); err != nil {
		return err
	}
	if err := oneOf("lidar_processing.outlier_removal.method", lp.OutlierRemoval.Method, validOutlierMethods); err != nil {
		return err
	}
	if err := oneOf("lidar_processing.resampling.method", lp.Resampling.Method, validResamplingMethod); err != nil {
		return err
	}
	if lp.Downsampling.VoxelSize <= 0 {
		return fmt.Errorf("lidar_processing.downsampling.voxel_size must be positive, got %g", lp.Downsampling.VoxelSize)
	}
	if lp.Downsampling.UniformEveryK <= 0 {
		return fmt.Errorf("lidar_processing.downsampling.uniform_every_k must be positive, got %d", lp.Downsampling.UniformEveryK)
	}
	if lp.OutlierRemoval.RadiusRadius <= 0 || lp.OutlierRemoval.StatisticalStdRatio <= 0 {
		return fmt.Errorf("lidar_processing.outlier_removal radius and std_ratio must be positive")
	}

	for name, ds := range c.Datasets {
		if ds.Root == "" {
			return fmt.Errorf("datasets.%s.root must not be empty", name)
		}
	}

	if err := oneOf("cleanup.mode", c.Cleanup.Mode, ValidCleanupModes); err != nil {
		return err
	}
	if c.Cleanup.RetainLastN < 0 {
		return fmt.Errorf("cleanup.retain_last_n must be non-negative, got %d", c.Cleanup.RetainLastN)
	}

	if c.Performance.Workers < 0 || c.Performance.CacheSize < 0 {
		return fmt.Errorf("performance.workers and performance.cache_size must be non-negative")
	}

	return nil
}

// DatasetNames returns the catalog names in sorted order.
func (c *Config) DatasetNames() []string {
	names := make([]string, 0, len(c.Datasets))
	for name := range c.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a project config file
// or a .git directory. It returns startDir (absolute) when neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if FindProjectConfig(current) != "" || dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
