package modality

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Table is a delimited text file split into a header and string cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the first header equal to name, ignoring
// case, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Float parses cell (row, col) as a float64.
func (t *Table) Float(row, col int) (float64, error) {
	if col >= len(t.Rows[row]) {
		return 0, serrors.Newf(serrors.ErrCodeFileCorrupt, "row %d has no column %d", row+1, col)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(t.Rows[row][col]), 64)
	if err != nil {
		return 0, serrors.New(serrors.ErrCodeFileCorrupt,
			"non-numeric value "+strconv.Quote(t.Rows[row][col])+" in column "+t.Header[col], err)
	}
	return v, nil
}

// ReadTable reads a comma separated (.csv) or whitespace separated (any other
// extension) file whose first line is a header.
func ReadTable(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.New(serrors.ErrCodeFileNotFound, "file not found: "+path, err)
		}
		return nil, serrors.IOError("cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	if FileExtension(path) == ".csv" {
		return readCSV(ctx, f, path)
	}
	return readWhitespace(ctx, f, path)
}

func readCSV(ctx context.Context, r io.Reader, path string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "empty file: "+path, nil)
	}
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "malformed header in "+path, err)
	}

	t := &Table{Header: header}
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, serrors.New(serrors.ErrCodeFileCorrupt, "malformed row in "+path, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func readWhitespace(ctx context.Context, r io.Reader, path string) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var t *Table
	for n := 0; sc.Scan(); n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if t == nil {
			t = &Table{Header: fields}
			continue
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, serrors.IOError("cannot read "+path, err)
	}
	if t == nil {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "empty file: "+path, nil)
	}
	return t, nil
}

// WriteTable writes header and data with sep between cells. Values use the
// shortest representation that round-trips.
func WriteTable(ctx context.Context, path string, header []string, data [][]float64, sep rune) error {
	if err := EnsureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = sep
	writeErr := func() error {
		if err := w.Write(header); err != nil {
			return err
		}
		rec := make([]string, len(header))
		for i, row := range data {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if len(row) < len(rec) {
				return serrors.Newf(serrors.ErrCodeShapeMismatch, "row %d has %d values, expected %d", i, len(row), len(rec))
			}
			for j := range rec {
				rec[j] = strconv.FormatFloat(row[j], 'g', -1, 64)
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}()

	closeErr := f.Close()
	if writeErr != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot write "+path, writeErr)
	}
	if closeErr != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot close "+path, closeErr)
	}
	return nil
}
