package imu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

func series(n int, f func(i int) []float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestExtractSensorData(t *testing.T) {
	data := [][]float64{{0, 1, 2, 3}, {1, 4, 5, 6}}

	got, err := ExtractSensorData(data, true)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, got)

	got[0][0] = 99
	assert.Equal(t, 1.0, data[0][1], "input must not be modified")

	got, err = ExtractSensorData(data, false)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = ExtractSensorData([][]float64{{1, 2}}, false)
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeShapeMismatch))
}

func TestExtractSensorData_ShortRowDetails(t *testing.T) {
	// Given: the second row is too narrow
	data := [][]float64{{1, 2, 3}, {4, 5}}

	// When: extracting
	_, err := ExtractSensorData(data, false)

	// Then: the error names the offending row and its width
	var se *serrors.SenseError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "1", se.Details["row"])
	assert.Equal(t, "2", se.Details["columns"])
}

func TestMovingAverage_SameModeEdges(t *testing.T) {
	// Given: a constant signal with a time column
	data := series(5, func(i int) []float64 { return []float64{float64(i), 3, 3, 3} })

	// When: smoothing with a window of 3
	got, err := MovingAverage(data, 3, true)

	// Then: interior samples are unchanged, edges see zero padding
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 2, 2}, got[0])
	assert.Equal(t, []float64{2, 3, 3, 3}, got[2])
	assert.Equal(t, []float64{4, 2, 2, 2}, got[4])
}

func TestConvolveSame_EvenWindow(t *testing.T) {
	// numpy.convolve([1,2,3,4], ones(2)/2, 'same') == [0.5, 1.5, 2.5, 3.5]
	assert.Equal(t, []float64{0.5, 1.5, 2.5, 3.5}, convolveSame([]float64{1, 2, 3, 4}, 2))
}

func TestMovingAverage_BadWindow(t *testing.T) {
	_, err := MovingAverage([][]float64{{1, 2, 3}}, 0, false)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
}

func TestButterworth_KnownCoefficients(t *testing.T) {
	tests := []struct {
		order int
		wn    float64
		b, a  []float64
	}{
		{1, 0.5, []float64{0.5, 0.5}, []float64{1, 0}},
		{2, 0.5, []float64{0.29289322, 0.58578644, 0.29289322}, []float64{1, 0, 0.17157288}},
	}
	for _, tt := range tests {
		b, a := Butterworth(tt.order, tt.wn)
		require.Len(t, b, len(tt.b))
		require.Len(t, a, len(tt.a))
		for i := range b {
			assert.InDelta(t, tt.b[i], b[i], 1e-7)
			assert.InDelta(t, tt.a[i], a[i], 1e-7)
		}
	}
}

func TestButterworth_UnitDCGain(t *testing.T) {
	b, a := Butterworth(4, 0.1)
	var sb, sa float64
	for i := range b {
		sb += b[i]
		sa += a[i]
	}
	assert.InDelta(t, 1.0, sb/sa, 1e-9)
}

func TestLFilterZI_StepHasNoTransient(t *testing.T) {
	b, a := Butterworth(3, 0.2)
	step := make([]float64, 20)
	for i := range step {
		step[i] = 1
	}

	y, _ := LFilter(b, a, step, LFilterZI(b, a))

	for _, v := range y {
		assert.InDelta(t, 1.0, v, 1e-9)
	}
}

func TestLowPass_ConstantPreservedAndNoiseRemoved(t *testing.T) {
	// Given: 100Hz samples of a 1Hz sine plus a 40Hz ripple
	data := series(400, func(i int) []float64 {
		ts := float64(i) / 100
		slow := math.Sin(2 * math.Pi * ts)
		return []float64{ts, 5, slow + 0.5*math.Sin(2*math.Pi*40*ts), slow}
	})

	// When: filtering at 5Hz
	got, err := LowPass(data, 5, 100, 3, true)

	// Then: time is untouched, the constant stays, the ripple is gone
	require.NoError(t, err)
	require.Len(t, got, len(data))
	for i := 50; i < 350; i++ {
		assert.Equal(t, data[i][0], got[i][0])
		assert.InDelta(t, 5.0, got[i][1], 1e-6)
		assert.InDelta(t, data[i][3], got[i][2], 0.02)
	}
}

func TestLowPass_Validation(t *testing.T) {
	data := series(50, func(i int) []float64 { return []float64{1, 2, 3} })

	tests := []struct {
		name         string
		cutoff, rate float64
		order        int
	}{
		{"cutoff at nyquist", 50, 100, 3},
		{"zero cutoff", 0, 100, 3},
		{"negative rate", 5, -1, 3},
		{"zero order", 5, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LowPass(data, tt.cutoff, tt.rate, tt.order, false)
			assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
		})
	}

	_, err := LowPass(data[:5], 5, 100, 3, false)
	assert.Error(t, err, "too short for padding")
}

func TestResample_BinsAndInterpolates(t *testing.T) {
	// Given: samples at 0, 10ms, 40ms; 10ms bins leave 20ms and 30ms empty
	data := [][]float64{
		{100.000, 0, 10},
		{100.001, 2, 10},
		{100.010, 4, 20},
		{100.040, 10, 50},
	}

	// When: resampling to 100Hz
	got, err := Resample(data, 100)

	// Then: first bin averages, empty bins are linear between neighbours
	require.NoError(t, err)
	require.Len(t, got, 5)
	want := [][]float64{
		{100.00, 1, 10},
		{100.01, 4, 20},
		{100.02, 6, 30},
		{100.03, 8, 40},
		{100.04, 10, 50},
	}
	for i := range want {
		for j := range want[i] {
			assert.InDelta(t, want[i][j], got[i][j], 1e-6, "row %d col %d", i, j)
		}
	}
}

func TestResample_Validation(t *testing.T) {
	_, err := Resample([][]float64{{1}}, 10)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeShapeMismatch))

	_, err = Resample([][]float64{{1, 2}}, 0)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))

	_, err = Resample([][]float64{{1, 2}}, 2000)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
}

func TestNormalize(t *testing.T) {
	data := [][]float64{{0, 1, 2, 5}, {1, 3, 2, 5}}

	got, err := Normalize(data, true)

	require.NoError(t, err)
	assert.Equal(t, 0.0, got[0][0])
	assert.InDelta(t, -1.0, got[0][1], 1e-6)
	assert.InDelta(t, 1.0, got[1][1], 1e-6)
	// constant columns become zero rather than NaN
	assert.Equal(t, 0.0, got[0][2])
	assert.Equal(t, 0.0, got[1][3])
}
