// Package imu provides filtering, resampling and normalisation for IMU
// sample matrices laid out as [time, sensors...] or [sensors...].
package imu

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

const normalizeEpsilon = 1e-8

// ExtractSensorData returns a copy of the sensor columns of data. With
// withTime the first column is dropped.
func ExtractSensorData(data [][]float64, withTime bool) ([][]float64, error) {
	if err := checkColumns(data, 3, "IMU data must have at least 3 columns (gyro/accel data)"); err != nil {
		return nil, err
	}
	start := 0
	if withTime {
		start = 1
	}
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = append([]float64(nil), row[start:]...)
	}
	return out, nil
}

func checkColumns(data [][]float64, minCols int, msg string) error {
	if len(data) == 0 {
		return serrors.New(serrors.ErrCodeInvalidInput, "IMU data is empty", nil)
	}
	for i, row := range data {
		if len(row) < minCols {
			return serrors.New(serrors.ErrCodeShapeMismatch, msg, nil).
				WithDetail("row", strconv.Itoa(i)).
				WithDetail("columns", strconv.Itoa(len(row)))
		}
		if len(row) != len(data[0]) {
			return serrors.Newf(serrors.ErrCodeShapeMismatch, "row %d has %d columns, expected %d", i, len(row), len(data[0]))
		}
	}
	return nil
}

// withTimeColumn prefixes each filtered row with the matching time value.
func withTimeColumn(src, filtered [][]float64, withTime bool) [][]float64 {
	if !withTime {
		return filtered
	}
	out := make([][]float64, len(filtered))
	for i, row := range filtered {
		out[i] = append([]float64{src[i][0]}, row...)
	}
	return out
}

func columnOf(data [][]float64, j int) []float64 {
	col := make([]float64, len(data))
	for i, row := range data {
		col[i] = row[j]
	}
	return col
}

func setColumn(data [][]float64, j int, col []float64) {
	for i := range data {
		data[i][j] = col[i]
	}
}

// MovingAverage smooths every sensor column with a centred box filter of
// window samples. Edges are zero padded so the output keeps the input length.
func MovingAverage(data [][]float64, window int, withTime bool) ([][]float64, error) {
	if window < 1 {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "window size must be positive, got %d", window)
	}
	sensors, err := ExtractSensorData(data, withTime)
	if err != nil {
		return nil, err
	}
	for j := range sensors[0] {
		setColumn(sensors, j, convolveSame(columnOf(sensors, j), window))
	}
	slog.Info("Moving average filter applied", slog.Int("window", window))
	return withTimeColumn(data, sensors, withTime), nil
}

// convolveSame convolves x with ones(w)/w and returns the len(x) centre samples.
func convolveSame(x []float64, w int) []float64 {
	n := len(x)
	shift := (w - 1) / 2
	out := make([]float64, n)
	for i := range out {
		k := i + shift
		sum := 0.0
		for j := range w {
			if idx := k - j; idx >= 0 && idx < n {
				sum += x[idx]
			}
		}
		out[i] = sum / float64(w)
	}
	return out
}

// LowPass applies a zero-phase Butterworth low-pass filter of the given order.
// cutoffHz must lie strictly between zero and the Nyquist frequency.
func LowPass(data [][]float64, cutoffHz, sampleHz float64, order int, withTime bool) ([][]float64, error) {
	if sampleHz <= 0 {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "sampling rate must be positive, got %g", sampleHz)
	}
	nyquist := 0.5 * sampleHz
	if cutoffHz <= 0 || cutoffHz >= nyquist {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput,
			"cutoff frequency %gHz must lie in (0, %g)Hz", cutoffHz, nyquist)
	}
	if order < 1 {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "filter order must be positive, got %d", order)
	}
	sensors, err := ExtractSensorData(data, withTime)
	if err != nil {
		return nil, err
	}

	b, a := Butterworth(order, cutoffHz/nyquist)
	for j := range sensors[0] {
		col, err := FiltFilt(b, a, columnOf(sensors, j))
		if err != nil {
			return nil, err
		}
		setColumn(sensors, j, col)
	}
	slog.Info("Low-pass filter applied",
		slog.Float64("cutoff_hz", cutoffHz),
		slog.Float64("sampling_hz", sampleHz),
		slog.Int("order", order))
	return withTimeColumn(data, sensors, withTime), nil
}

// Resample averages samples into fixed bins of int(1000/targetHz)
// milliseconds and linearly fills bins without samples. Column 0 must hold
// unix seconds; the output time column holds each bin's start.
func Resample(data [][]float64, targetHz float64) ([][]float64, error) {
	if err := checkColumns(data, 2, "IMU data must have at least 2 columns (time + sensor data) for resampling"); err != nil {
		return nil, err
	}
	if targetHz <= 0 {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput, "target frequency must be positive, got %g", targetHz)
	}
	binMs := int64(1e3 / targetHz)
	if binMs < 1 {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput,
			"target frequency %gHz exceeds the 1000Hz millisecond resolution", targetHz)
	}
	binNs := binMs * int64(time.Millisecond)

	ts := make([]int64, len(data))
	first, last := int64(math.MaxInt64), int64(math.MinInt64)
	for i, row := range data {
		ts[i] = int64(math.Round(row[0] * 1e9))
		first = min(first, ts[i])
		last = max(last, ts[i])
	}
	// bins are anchored at midnight UTC of the first sample's day
	day := int64(86400) * 1e9
	origin := floorDiv(first, day) * day
	start := origin + floorDiv(first-origin, binNs)*binNs
	nbins := int((last-start)/binNs) + 1

	cols := len(data[0]) - 1
	sums := make([][]float64, nbins)
	counts := make([]int, nbins)
	for i, row := range data {
		bin := int((ts[i] - start) / binNs)
		if sums[bin] == nil {
			sums[bin] = make([]float64, cols)
		}
		for j := range cols {
			sums[bin][j] += row[j+1]
		}
		counts[bin]++
	}

	out := make([][]float64, nbins)
	prev := -1
	for bin := range out {
		out[bin] = make([]float64, cols+1)
		out[bin][0] = float64(start+int64(bin)*binNs) / 1e9
		if counts[bin] == 0 {
			continue
		}
		for j := range cols {
			out[bin][j+1] = sums[bin][j] / float64(counts[bin])
		}
		// interpolate the gap since the previous filled bin
		if prev >= 0 && bin-prev > 1 {
			for gap := prev + 1; gap < bin; gap++ {
				frac := float64(gap-prev) / float64(bin-prev)
				for j := 1; j <= cols; j++ {
					out[gap][j] = out[prev][j] + frac*(out[bin][j]-out[prev][j])
				}
			}
		}
		prev = bin
	}

	slog.Info("Resampling applied",
		slog.Float64("target_hz", targetHz),
		slog.Int("rows", len(out)),
		slog.Int("columns", cols+1))
	return out, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Normalize scales each sensor column to zero mean and unit population
// standard deviation.
func Normalize(data [][]float64, withTime bool) ([][]float64, error) {
	sensors, err := ExtractSensorData(data, withTime)
	if err != nil {
		return nil, err
	}
	n := float64(len(sensors))
	for j := range sensors[0] {
		var mean float64
		for _, row := range sensors {
			mean += row[j]
		}
		mean /= n
		var variance float64
		for _, row := range sensors {
			d := row[j] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / n)
		for _, row := range sensors {
			row[j] = (row[j] - mean) / (std + normalizeEpsilon)
		}
	}
	slog.Info("Normalization applied")
	return withTimeColumn(data, sensors, withTime), nil
}
