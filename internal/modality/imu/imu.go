// Package imu reads and writes inertial measurement tables.
package imu

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
)

var (
	readExtensions  = []string{".csv", ".txt"}
	writeExtensions = []string{".csv"}

	gyroFields  = map[string]bool{"gyro_x": true, "gyro_y": true, "gyro_z": true}
	accelFields = map[string]bool{"accel_x": true, "accel_y": true, "accel_z": true, "x": true, "y": true, "z": true}
	timeFields  = map[string]bool{"timestamp": true, "time": true, "datetime": true}

	timeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
)

// Codec implements modality.Codec for IMU data.
type Codec struct{}

// New creates an IMU codec.
func New() *Codec {
	return &Codec{}
}

func init() {
	modality.Default.Register(modality.IMU, New())
}

// Layout describes which header columns hold sensor and time data.
type Layout struct {
	Time    int   // -1 when there is no time column
	Sensors []int // gyro columns first, then accelerometer/axis columns
}

// DetectLayout finds the time and sensor columns of header, ignoring case.
func DetectLayout(header []string) (Layout, error) {
	l := Layout{Time: -1}
	var gyro, accel []int
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case gyroFields[name]:
			gyro = append(gyro, i)
		case accelFields[name]:
			accel = append(accel, i)
		case timeFields[name] && l.Time < 0:
			l.Time = i
		}
	}
	l.Sensors = append(gyro, accel...)
	if len(l.Sensors) == 0 {
		return l, serrors.New(serrors.ErrCodeMissingColumns, "no valid IMU sensor data found in the file", nil).
			WithDetail("header", strings.Join(header, ","))
	}
	return l, nil
}

// ParseTime accepts seconds as a number or a datetime, returning unix seconds.
func ParseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixNano()) / 1e9, nil
		}
	}
	return 0, serrors.Newf(serrors.ErrCodeFileCorrupt, "unparseable timestamp %q", s)
}

// Read decodes a .csv or whitespace separated .txt file. With a time column
// the data is [time, sensors...] and Timestamps is set.
func (c *Codec) Read(ctx context.Context, path string) (*modality.Bundle, error) {
	if err := modality.CheckExtension(path, readExtensions); err != nil {
		return nil, err
	}

	b, err := c.read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IMU file %s: %w", path, err)
	}
	slog.Info("IMU file read",
		slog.String("path", path),
		slog.Int("rows", len(b.Data)),
		slog.String("columns", strings.Join(b.Columns, ",")))
	return b, nil
}

func (c *Codec) read(ctx context.Context, path string) (*modality.Bundle, error) {
	t, err := modality.ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	layout, err := DetectLayout(t.Header)
	if err != nil {
		return nil, err
	}

	b := &modality.Bundle{Modality: modality.IMU}
	if layout.Time >= 0 {
		b.Columns = append(b.Columns, t.Header[layout.Time])
		b.Timestamps = make([]float64, len(t.Rows))
	}
	for _, col := range layout.Sensors {
		b.Columns = append(b.Columns, t.Header[col])
	}

	b.Data = make([][]float64, len(t.Rows))
	for r := range t.Rows {
		row := make([]float64, 0, len(b.Columns))
		if layout.Time >= 0 {
			if layout.Time >= len(t.Rows[r]) {
				return nil, serrors.Newf(serrors.ErrCodeFileCorrupt, "row %d has no time value", r+1)
			}
			ts, err := ParseTime(t.Rows[r][layout.Time])
			if err != nil {
				return nil, err
			}
			b.Timestamps[r] = ts
			row = append(row, ts)
		}
		for _, col := range layout.Sensors {
			v, err := t.Float(r, col)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		b.Data[r] = row
	}
	return b, nil
}

// Write encodes the bundle as CSV. Missing column names become col_0..col_{C-1}.
func (c *Codec) Write(ctx context.Context, b *modality.Bundle, path string) error {
	if err := modality.CheckExtension(path, writeExtensions); err != nil {
		return err
	}
	if b == nil || b.Data == nil {
		return serrors.New(serrors.ErrCodeInvalidInput, "data bundle must contain IMU data", nil)
	}
	_, cols := b.Shape()
	for i, row := range b.Data {
		if len(row) != cols {
			return serrors.Newf(serrors.ErrCodeShapeMismatch, "row %d has %d columns, expected %d", i, len(row), cols)
		}
	}

	header := b.Columns
	if len(header) == 0 {
		header = make([]string, cols)
		for i := range header {
			header[i] = fmt.Sprintf("col_%d", i)
		}
	} else if len(b.Data) > 0 && len(header) != cols {
		return serrors.Newf(serrors.ErrCodeShapeMismatch,
			"%d column names for %d IMU columns", len(header), cols)
	}

	if err := modality.WriteTable(ctx, path, header, b.Data, ','); err != nil {
		return fmt.Errorf("failed to write IMU file %s: %w", path, err)
	}
	slog.Info("IMU file saved", slog.String("path", path), slog.Int("rows", len(b.Data)))
	return nil
}
