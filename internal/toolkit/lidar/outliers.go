package lidar

import (
	"context"
	"log/slog"
	"math"

	"github.com/coder/hnsw"
)

// StatisticalOutlierRemoval drops points whose mean distance to their
// nbNeighbors nearest neighbours exceeds the cloud-wide mean of that value by
// more than stdRatio standard deviations. As in Open3D, a point counts as one
// of its own neighbours.
func (p *Processor) StatisticalOutlierRemoval(ctx context.Context, points [][]float64, nbNeighbors int, stdRatio float64) ([][]float64, error) {
	if nbNeighbors <= 0 {
		nbNeighbors = p.cfg.OutlierRemoval.StatisticalNbNeighbors
	}
	if stdRatio <= 0 {
		stdRatio = p.cfg.OutlierRemoval.StatisticalStdRatio
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return points, nil
	}

	means, err := neighborMeans(ctx, points, nbNeighbors)
	if err != nil {
		return nil, err
	}

	var avg float64
	for _, m := range means {
		avg += m
	}
	avg /= float64(len(means))
	var variance float64
	for _, m := range means {
		variance += (m - avg) * (m - avg)
	}
	std := math.Sqrt(variance / float64(len(means)-1))
	threshold := avg + stdRatio*std

	out := make([][]float64, 0, len(points))
	for i, pt := range points {
		if means[i] <= threshold {
			out = append(out, pt)
		}
	}
	p.logger.Info("Statistical outlier removal applied",
		slog.Int("nb_neighbors", nbNeighbors),
		slog.Float64("std_ratio", stdRatio),
		slog.Int("points", len(out)))
	return out, nil
}

// neighborMeans returns, per point, the mean distance to its k nearest
// points including itself. Neighbours come from an HNSW graph.
func neighborMeans(ctx context.Context, points [][]float64, k int) ([]float64, error) {
	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.EuclideanDistance
	graph.M = 16
	// a wide beam keeps recall high for the small k used here
	graph.EfSearch = max(k+1, 64)
	vecs := make([]hnsw.Vector, len(points))
	for i, pt := range points {
		vecs[i] = hnsw.Vector{float32(pt[0]), float32(pt[1]), float32(pt[2])}
		graph.Add(hnsw.MakeNode(i, vecs[i]))
	}

	k = min(k, len(points))
	means := make([]float64, len(points))
	for i, v := range vecs {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		// self contributes a zero distance; take the k-1 closest others
		var sum float64
		others := 0
		for _, n := range graph.Search(v, k) {
			if n.Key == i || others == k-1 {
				continue
			}
			sum += float64(graph.Distance(v, n.Value))
			others++
		}
		means[i] = sum / float64(k)
	}
	return means, nil
}

// RadiusOutlierRemoval keeps points with at least nbPoints other points
// within radius. Candidates are found through a hash grid of radius-sized cells.
func (p *Processor) RadiusOutlierRemoval(points [][]float64, nbPoints int, radius float64) ([][]float64, error) {
	if nbPoints <= 0 {
		nbPoints = p.cfg.OutlierRemoval.RadiusNbPoints
	}
	if radius <= 0 {
		radius = p.cfg.OutlierRemoval.RadiusRadius
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}

	var origin [3]float64
	grid := make(map[voxelKey][]int)
	for i, pt := range points {
		k := voxelOf(pt, origin, radius)
		grid[k] = append(grid[k], i)
	}

	r2 := radius * radius
	out := make([][]float64, 0, len(points))
	for i, pt := range points {
		c := voxelOf(pt, origin, radius)
		count := 0
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range grid[voxelKey{c[0] + dx, c[1] + dy, c[2] + dz}] {
						if j == i {
							continue
						}
						q := points[j]
						d0, d1, d2 := q[0]-pt[0], q[1]-pt[1], q[2]-pt[2]
						if d0*d0+d1*d1+d2*d2 <= r2 {
							count++
							if count >= nbPoints {
								break search
							}
						}
					}
				}
			}
		}
		if count >= nbPoints {
			out = append(out, pt)
		}
	}
	p.logger.Info("Radius outlier removal applied",
		slog.Int("nb_points", nbPoints),
		slog.Float64("radius", radius),
		slog.Int("points", len(out)))
	return out, nil
}
