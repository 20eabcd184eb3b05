// Package lidar implements point-cloud downsampling, outlier removal and
// resampling. Points are rows of x, y, z and optional extra columns such as
// intensity; extra columns travel with their point.
package lidar

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/synapsense/synapsense/internal/config"
	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Processor applies point-cloud operations, substituting its configured
// defaults for zero-valued parameters.
type Processor struct {
	cfg    config.LiDARProcessingConfig
	rng    *rand.Rand
	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithRand sets the random source used by RandomSampling.
func WithRand(r *rand.Rand) Option {
	return func(p *Processor) { p.rng = r }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New creates a Processor. Zero fields of cfg take the built-in defaults.
func New(cfg config.LiDARProcessingConfig, opts ...Option) *Processor {
	def := config.NewConfig().LiDARProcessing
	if cfg.Downsampling.VoxelSize <= 0 {
		cfg.Downsampling.VoxelSize = def.Downsampling.VoxelSize
	}
	if cfg.Downsampling.UniformEveryK <= 0 {
		cfg.Downsampling.UniformEveryK = def.Downsampling.UniformEveryK
	}
	if cfg.OutlierRemoval.StatisticalNbNeighbors <= 0 {
		cfg.OutlierRemoval.StatisticalNbNeighbors = def.OutlierRemoval.StatisticalNbNeighbors
	}
	if cfg.OutlierRemoval.StatisticalStdRatio <= 0 {
		cfg.OutlierRemoval.StatisticalStdRatio = def.OutlierRemoval.StatisticalStdRatio
	}
	if cfg.OutlierRemoval.RadiusNbPoints <= 0 {
		cfg.OutlierRemoval.RadiusNbPoints = def.OutlierRemoval.RadiusNbPoints
	}
	if cfg.OutlierRemoval.RadiusRadius <= 0 {
		cfg.OutlierRemoval.RadiusRadius = def.OutlierRemoval.RadiusRadius
	}
	if cfg.Resampling.RandomSampleSize <= 0 {
		cfg.Resampling.RandomSampleSize = def.Resampling.RandomSampleSize
	}
	if cfg.Resampling.MaxDistance <= 0 {
		cfg.Resampling.MaxDistance = def.Resampling.MaxDistance
	}

	p := &Processor{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Config returns the effective configuration.
func (p *Processor) Config() config.LiDARProcessingConfig {
	return p.cfg
}

func checkPoints(points [][]float64) error {
	for i, pt := range points {
		if len(pt) < 3 {
			return serrors.Newf(serrors.ErrCodeShapeMismatch, "point %d has %d columns, need at least x, y, z", i, len(pt))
		}
		if len(pt) != len(points[0]) {
			return serrors.Newf(serrors.ErrCodeShapeMismatch, "point %d has %d columns, expected %d", i, len(pt), len(points[0]))
		}
	}
	return nil
}

type voxelKey [3]int64

func keyLess(a, b voxelKey) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func minBound(points [][]float64) [3]float64 {
	var lo [3]float64
	for i, pt := range points {
		for j := range 3 {
			if i == 0 || pt[j] < lo[j] {
				lo[j] = pt[j]
			}
		}
	}
	return lo
}

func voxelOf(pt []float64, origin [3]float64, size float64) voxelKey {
	var k voxelKey
	for j := range 3 {
		k[j] = int64(math.Floor((pt[j] - origin[j]) / size))
	}
	return k
}

// VoxelDownsample replaces the points of each occupied voxel with their
// centroid. Every column is averaged; output is ordered by voxel index.
func (p *Processor) VoxelDownsample(points [][]float64, voxelSize float64) ([][]float64, error) {
	if voxelSize <= 0 {
		voxelSize = p.cfg.Downsampling.VoxelSize
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return [][]float64{}, nil
	}

	type acc struct {
		sum []float64
		n   int
	}
	origin := minBound(points)
	cells := make(map[voxelKey]*acc)
	for _, pt := range points {
		k := voxelOf(pt, origin, voxelSize)
		a, ok := cells[k]
		if !ok {
			a = &acc{sum: make([]float64, len(pt))}
			cells[k] = a
		}
		for j, v := range pt {
			a.sum[j] += v
		}
		a.n++
	}

	keys := make([]voxelKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, keyLess)

	out := make([][]float64, len(keys))
	for i, k := range keys {
		a := cells[k]
		for j := range a.sum {
			a.sum[j] /= float64(a.n)
		}
		out[i] = a.sum
	}
	p.logger.Info("Voxel downsampling applied",
		slog.Float64("voxel_size", voxelSize),
		slog.Int("points", len(out)))
	return out, nil
}

// UniformDownsample keeps every k-th point starting with the first.
func (p *Processor) UniformDownsample(points [][]float64, k int) ([][]float64, error) {
	if k <= 0 {
		k = p.cfg.Downsampling.UniformEveryK
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}
	out := make([][]float64, 0, (len(points)+k-1)/k)
	for i := 0; i < len(points); i += k {
		out = append(out, points[i])
	}
	p.logger.Info("Uniform downsampling applied", slog.Int("every_k", k), slog.Int("points", len(out)))
	return out, nil
}

// RandomSampling draws n points without replacement. Clouds with at most n
// points are returned unchanged.
func (p *Processor) RandomSampling(points [][]float64, n int) ([][]float64, error) {
	if n <= 0 {
		n = p.cfg.Resampling.RandomSampleSize
	}
	if len(points) <= n {
		p.logger.Info("Random sampling skipped: cloud already smaller than requested sample size",
			slog.Int("points", len(points)), slog.Int("sample_size", n))
		return points, nil
	}
	idx := p.rng.Perm(len(points))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = points[j]
	}
	p.logger.Info("Random sampling applied", slog.Int("sample_size", n))
	return out, nil
}

// DistanceClipping keeps points whose distance from the origin is at most maxDistance.
func (p *Processor) DistanceClipping(points [][]float64, maxDistance float64) ([][]float64, error) {
	if maxDistance <= 0 {
		maxDistance = p.cfg.Resampling.MaxDistance
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}
	out := make([][]float64, 0, len(points))
	for _, pt := range points {
		if math.Sqrt(pt[0]*pt[0]+pt[1]*pt[1]+pt[2]*pt[2]) <= maxDistance {
			out = append(out, pt)
		}
	}
	p.logger.Info("Distance clipping applied",
		slog.Float64("max_distance", maxDistance),
		slog.Int("points", len(out)))
	return out, nil
}

// Voxel is one occupied cell of a VoxelGrid.
type Voxel struct {
	Index [3]int64
	Count int
}

// VoxelGrid is the set of occupied voxels of a cloud.
type VoxelGrid struct {
	Size   float64
	Origin [3]float64
	Voxels []Voxel
}

// Center returns the world coordinates of the centre of v.
func (g *VoxelGrid) Center(v Voxel) [3]float64 {
	var c [3]float64
	for j := range 3 {
		c[j] = g.Origin[j] + (float64(v.Index[j])+0.5)*g.Size
	}
	return c
}

// NewVoxelGrid builds the occupied voxels of points, ordered by index.
func (p *Processor) NewVoxelGrid(points [][]float64, voxelSize float64) (*VoxelGrid, error) {
	if voxelSize <= 0 {
		voxelSize = p.cfg.Downsampling.VoxelSize
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}
	g := &VoxelGrid{Size: voxelSize}
	if len(points) == 0 {
		return g, nil
	}
	g.Origin = minBound(points)
	counts := make(map[voxelKey]int)
	for _, pt := range points {
		counts[voxelOf(pt, g.Origin, voxelSize)]++
	}
	for k, n := range counts {
		g.Voxels = append(g.Voxels, Voxel{Index: k, Count: n})
	}
	slices.SortFunc(g.Voxels, func(a, b Voxel) int { return keyLess(a.Index, b.Index) })
	p.logger.Info("Voxel grid created",
		slog.Float64("voxel_size", voxelSize),
		slog.Int("voxels", len(g.Voxels)))
	return g, nil
}

// Pipeline runs the configured downsampling, outlier removal and resampling
// stages in that order. A stage whose method is "none" or empty is skipped.
func (p *Processor) Pipeline(ctx context.Context, points [][]float64) ([][]float64, error) {
	stages := []struct {
		name   string
		method string
		run    map[string]func([][]float64) ([][]float64, error)
	}{
		{"downsampling", p.cfg.Downsampling.Method, map[string]func([][]float64) ([][]float64, error){
			"voxel":   func(pts [][]float64) ([][]float64, error) { return p.VoxelDownsample(pts, 0) },
			"uniform": func(pts [][]float64) ([][]float64, error) { return p.UniformDownsample(pts, 0) },
		}},
		{"outlier_removal", p.cfg.OutlierRemoval.Method, map[string]func([][]float64) ([][]float64, error){
			"statistical": func(pts [][]float64) ([][]float64, error) {
				return p.StatisticalOutlierRemoval(ctx, pts, 0, 0)
			},
			"radius": func(pts [][]float64) ([][]float64, error) { return p.RadiusOutlierRemoval(pts, 0, 0) },
		}},
		{"resampling", p.cfg.Resampling.Method, map[string]func([][]float64) ([][]float64, error){
			"random":   func(pts [][]float64) ([][]float64, error) { return p.RandomSampling(pts, 0) },
			"distance": func(pts [][]float64) ([][]float64, error) { return p.DistanceClipping(pts, 0) },
		}},
	}

	out := points
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if st.method == "" || st.method == "none" {
			continue
		}
		run, ok := st.run[st.method]
		if !ok {
			return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "unknown %s method %q", st.name, st.method)
		}
		var err error
		if out, err = run(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
