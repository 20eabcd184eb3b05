package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
	imutk "github.com/synapsense/synapsense/internal/toolkit/imu"
	lidartk "github.com/synapsense/synapsense/internal/toolkit/lidar"
	rgbtk "github.com/synapsense/synapsense/internal/toolkit/rgb"
)

func newProcessCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Apply processing operations to IMU, LiDAR or RGB files",
		Long: `Read a file, apply one processing operation and write the result.

The output format follows the extension of the output path and must be
writable by the same modality.`,
	}

	cmd.AddCommand(newProcessIMUCmd(a))
	cmd.AddCommand(newProcessLiDARCmd(a))
	cmd.AddCommand(newProcessRGBCmd(a))

	return cmd
}

// processIO reads in as m and writes the bundle returned by fn to out.
func (a *app) processIO(ctx context.Context, m modality.Modality, in, out string, fn func(*modality.Bundle) (*modality.Bundle, error)) (*modality.Bundle, error) {
	b, err := a.io.ReadWithModality(ctx, m, in)
	if err != nil {
		return nil, err
	}
	res, err := fn(b)
	if err != nil {
		return nil, err
	}
	if err := a.io.Write(ctx, m, res, out); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *app) reportProcessed(cmd *cobra.Command, op, in, out string, before, after *modality.Bundle) {
	rb, cb := before.Shape()
	ra, ca := after.Shape()
	a.logger().Info("Processed file",
		slog.String("op", op),
		slog.String("input", in),
		slog.String("output", out))
	w := a.output(cmd)
	w.Successf("%s: %s -> %s", op, in, out)
	w.KeyValue("Before", fmt.Sprintf("%d x %d", rb, cb))
	w.KeyValue("After", fmt.Sprintf("%d x %d", ra, ca))
}

func newProcessIMUCmd(a *app) *cobra.Command {
	var (
		op       string
		window   int
		cutoff   float64
		sampleHz float64
		order    int
		targetHz float64
	)

	cmd := &cobra.Command{
		Use:   "imu <input> <output>",
		Short: "Filter, resample or normalise IMU data",
		Long: `Apply one IMU operation:

  moving-average  centred moving average (--window)
  lowpass         zero-phase Butterworth low-pass (--cutoff, --sample-rate, --order)
  resample        bin to a fixed rate and interpolate gaps (--target-hz)
  normalize       per-column z-score
  extract         drop the timestamp column`,
		Example: `  synapsense process imu --op lowpass --cutoff 5 --sample-rate 100 walk.csv walk_lp.csv`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var before *modality.Bundle
			after, err := a.processIO(cmd.Context(), modality.IMU, args[0], args[1], func(b *modality.Bundle) (*modality.Bundle, error) {
				before = b
				return processIMU(b, op, window, cutoff, sampleHz, order, targetHz)
			})
			if err != nil {
				return err
			}
			a.reportProcessed(cmd, op, args[0], args[1], before, after)
			return nil
		},
	}

	cmd.Flags().StringVar(&op, "op", "moving-average", "Operation: moving-average, lowpass, resample, normalize, extract")
	cmd.Flags().IntVar(&window, "window", 5, "Moving average window size")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 5, "Low-pass cutoff frequency in Hz")
	cmd.Flags().Float64Var(&sampleHz, "sample-rate", 100, "Sampling frequency in Hz")
	cmd.Flags().IntVar(&order, "order", 4, "Butterworth filter order")
	cmd.Flags().Float64Var(&targetHz, "target-hz", 50, "Resampling frequency in Hz")

	return cmd
}

// processIMU applies op to b. The timestamp column, when present, is column 0
// of Data and is carried through every operation except extract.
func processIMU(b *modality.Bundle, op string, window int, cutoff, sampleHz float64, order int, targetHz float64) (*modality.Bundle, error) {
	withTime := b.Timestamps != nil
	var (
		data [][]float64
		err  error
	)
	switch op {
	case "moving-average":
		data, err = imutk.MovingAverage(b.Data, window, withTime)
	case "lowpass":
		data, err = imutk.LowPass(b.Data, cutoff, sampleHz, order, withTime)
	case "resample":
		if !withTime {
			return nil, serrors.New(serrors.ErrCodeMissingColumns, "resampling requires a timestamp column", nil)
		}
		data, err = imutk.Resample(b.Data, targetHz)
	case "normalize":
		data, err = imutk.Normalize(b.Data, withTime)
	case "extract":
		data, err = imutk.ExtractSensorData(b.Data, withTime)
		if err != nil {
			return nil, err
		}
		out := &modality.Bundle{Modality: modality.IMU, Data: data, Columns: b.Columns}
		if withTime && len(b.Columns) > 0 {
			out.Columns = b.Columns[1:]
		}
		return out, nil
	default:
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "unknown IMU operation %q", op)
	}
	if err != nil {
		return nil, err
	}

	out := &modality.Bundle{Modality: modality.IMU, Data: data, Columns: b.Columns}
	if withTime {
		out.Timestamps = out.Column(0)
	}
	return out, nil
}

func newProcessLiDARCmd(a *app) *cobra.Command {
	var (
		op        string
		voxelSize float64
		everyK    int
		neighbors int
		stdRatio  float64
		nbPoints  int
		radius    float64
		samples   int
		maxDist   float64
		seed      uint64
	)

	cmd := &cobra.Command{
		Use:   "lidar <input> <output>",
		Short: "Downsample, denoise or clip point clouds",
		Long: `Apply one point cloud operation:

  pipeline     the configured lidar_processing stages in order
  voxel        voxel grid downsampling (--voxel-size)
  uniform      keep every k-th point (--every-k)
  statistical  statistical outlier removal (--neighbors, --std-ratio)
  radius       radius outlier removal (--nb-points, --radius)
  random       random sampling without replacement (--samples)
  clip         distance clipping (--max-distance)

Zero parameters fall back to the lidar_processing configuration.`,
		Example: `  synapsense process lidar --op voxel --voxel-size 0.05 scan.pcd scan_small.ply`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var popts []lidartk.Option
			popts = append(popts, lidartk.WithLogger(a.logger()))
			if cmd.Flags().Changed("seed") {
				popts = append(popts, lidartk.WithRand(rand.New(rand.NewPCG(seed, seed))))
			}
			p := lidartk.New(a.cfg.LiDARProcessing, popts...)

			var before *modality.Bundle
			after, err := a.processIO(cmd.Context(), modality.LiDAR, args[0], args[1], func(b *modality.Bundle) (*modality.Bundle, error) {
				before = b
				var (
					pts [][]float64
					err error
				)
				switch op {
				case "pipeline":
					pts, err = p.Pipeline(cmd.Context(), b.Data)
				case "voxel":
					pts, err = p.VoxelDownsample(b.Data, voxelSize)
				case "uniform":
					pts, err = p.UniformDownsample(b.Data, everyK)
				case "statistical":
					pts, err = p.StatisticalOutlierRemoval(cmd.Context(), b.Data, neighbors, stdRatio)
				case "radius":
					pts, err = p.RadiusOutlierRemoval(b.Data, nbPoints, radius)
				case "random":
					pts, err = p.RandomSampling(b.Data, samples)
				case "clip":
					pts, err = p.DistanceClipping(b.Data, maxDist)
				default:
					return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "unknown LiDAR operation %q", op)
				}
				if err != nil {
					return nil, err
				}
				return &modality.Bundle{Modality: modality.LiDAR, Data: pts, Columns: b.Columns}, nil
			})
			if err != nil {
				return err
			}
			a.reportProcessed(cmd, op, args[0], args[1], before, after)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&op, "op", "pipeline", "Operation: pipeline, voxel, uniform, statistical, radius, random, clip")
	f.Float64Var(&voxelSize, "voxel-size", 0, "Voxel edge length")
	f.IntVar(&everyK, "every-k", 0, "Keep every k-th point")
	f.IntVar(&neighbors, "neighbors", 0, "Neighbours for statistical outlier removal")
	f.Float64Var(&stdRatio, "std-ratio", 0, "Standard deviation multiplier")
	f.IntVar(&nbPoints, "nb-points", 0, "Minimum neighbours within the radius")
	f.Float64Var(&radius, "radius", 0, "Neighbourhood radius")
	f.IntVar(&samples, "samples", 0, "Number of points kept by random sampling")
	f.Float64Var(&maxDist, "max-distance", 0, "Maximum distance from the origin")
	f.Uint64Var(&seed, "seed", 0, "Seed for random sampling")

	return cmd
}

func newProcessRGBCmd(a *app) *cobra.Command {
	var (
		op     string
		width  int
		height int
		box    []int
		angle  float64
	)

	cmd := &cobra.Command{
		Use:   "rgb <input> <output>",
		Short: "Resize, crop, rotate or flip images",
		Long: `Apply one image operation:

  resize  bilinear resize (--width, --height)
  crop    crop to --box xmin,ymin,xmax,ymax
  rotate  rotate counter-clockwise by --angle degrees about the centre
  flip-h  mirror left to right
  flip-v  mirror top to bottom`,
		Example: `  synapsense process rgb --op resize --width 640 --height 480 frame.png small.jpg`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var before *modality.Bundle
			after, err := a.processIO(cmd.Context(), modality.RGB, args[0], args[1], func(b *modality.Bundle) (*modality.Bundle, error) {
				before = b
				img, err := processRGB(b.Image, op, width, height, box, angle)
				if err != nil {
					return nil, err
				}
				return &modality.Bundle{Modality: modality.RGB, Image: img, Columns: b.Columns}, nil
			})
			if err != nil {
				return err
			}
			a.reportProcessed(cmd, op, args[0], args[1], before, after)
			return nil
		},
	}

	cmd.Flags().StringVar(&op, "op", "resize", "Operation: resize, crop, rotate, flip-h, flip-v")
	cmd.Flags().IntVar(&width, "width", 0, "Target width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Target height in pixels")
	cmd.Flags().IntSliceVar(&box, "box", nil, "Crop box xmin,ymin,xmax,ymax")
	cmd.Flags().Float64Var(&angle, "angle", 0, "Rotation angle in degrees")

	return cmd
}

func processRGB(img *image.NRGBA, op string, width, height int, box []int, angle float64) (*image.NRGBA, error) {
	if img == nil {
		return nil, serrors.New(serrors.ErrCodeInvalidInput, "bundle holds no image", nil)
	}
	switch strings.ToLower(op) {
	case "resize":
		return rgbtk.Resize(img, width, height)
	case "crop":
		if len(box) != 4 {
			return nil, serrors.New(serrors.ErrCodeInvalidInput, "--box needs xmin,ymin,xmax,ymax", nil)
		}
		return rgbtk.Crop(img, box[0], box[1], box[2], box[3])
	case "rotate":
		return rgbtk.Rotate(img, angle)
	case "flip-h":
		return rgbtk.FlipHorizontal(img)
	case "flip-v":
		return rgbtk.FlipVertical(img)
	default:
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "unknown RGB operation %q", op)
	}
}
