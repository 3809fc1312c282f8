package frame

import (
	"fmt"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// Frame is an ordered collection of equally long, uniquely named columns,
// stored as an arrow record. A Frame is read-only once constructed.
type Frame struct {
	record  arrow.Record
	columns []*Column
	index   map[string]int
}

// New builds a Frame from columns in the given order.
func New(columns ...*Column) (*Frame, error) {
	if len(columns) == 0 {
		return nil, errors.NewModelError("frame.New", "no columns", errors.ErrEmptyData)
	}
	for j, c := range columns {
		if c == nil {
			return nil, errors.NewValueError("frame.New", fmt.Sprintf("column %d is nil", j))
		}
	}

	nRows := columns[0].Len()
	fields := make([]arrow.Field, len(columns))
	arrays := make([]arrow.Array, len(columns))
	for j, c := range columns {
		if c.Len() != nRows {
			return nil, errors.NewDimensionError("frame.New["+c.Name()+"]", nRows, c.Len(), 0)
		}
		fields[j] = c.field
		arrays[j] = c.data
	}
	return build(array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(nRows)), columns)
}

// FromRecord wraps an arrow record. Supported field types are float64,
// int64, utf8, timestamp and int32 with CategoriesKey metadata; null values
// are rejected. The record is retained.
func FromRecord(rec arrow.Record) (*Frame, error) {
	if rec == nil || rec.NumCols() == 0 {
		return nil, errors.NewModelError("frame.FromRecord", "no columns", errors.ErrEmptyData)
	}
	schema := rec.Schema()
	columns := make([]*Column, rec.NumCols())
	for j := range columns {
		c, err := newColumn("frame.FromRecord", schema.Field(j), rec.Column(j))
		if err != nil {
			return nil, err
		}
		columns[j] = c
	}
	f, err := build(rec, columns)
	if err != nil {
		return nil, err
	}
	rec.Retain()
	return f, nil
}

func build(rec arrow.Record, columns []*Column) (*Frame, error) {
	f := &Frame{
		record:  rec,
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for j, field := range rec.Schema().Fields() {
		if _, dup := f.index[field.Name]; dup {
			return nil, errors.NewValueError("frame.New", fmt.Sprintf("duplicate column name %q", field.Name))
		}
		f.index[field.Name] = j
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for tests and examples.
func MustNew(columns ...*Column) *Frame {
	f, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// FromMatrix builds a Float64 frame from the columns of X.
func FromMatrix(X mat.Matrix, names []string) (*Frame, error) {
	r, c := X.Dims()
	if len(names) != c {
		return nil, errors.NewDimensionError("frame.FromMatrix", c, len(names), 1)
	}
	cols := make([]*Column, c)
	for j := 0; j < c; j++ {
		cols[j] = NewFloatColumn(names[j], mat.Col(make([]float64, r), j, X))
	}
	return New(cols...)
}

// Record returns the underlying arrow record.
func (f *Frame) Record() arrow.Record { return f.record }

// Schema returns the arrow schema of the frame.
func (f *Frame) Schema() *arrow.Schema { return f.record.Schema() }

// NRows returns the row count.
func (f *Frame) NRows() int { return int(f.record.NumRows()) }

// NCols returns the column count.
func (f *Frame) NCols() int { return len(f.columns) }

// Column returns the j-th column.
func (f *Frame) Column(j int) *Column { return f.columns[j] }

// Columns returns the columns in order. The slice must not be modified.
func (f *Frame) Columns() []*Column { return f.columns }

// ColumnByName looks a column up by name.
func (f *Frame) ColumnByName(name string) (*Column, bool) {
	j, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[j], true
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	fields := f.record.Schema().Fields()
	names := make([]string, len(fields))
	for j, field := range fields {
		names[j] = field.Name
	}
	return names
}

// Fingerprint hashes the ordered schema fields: name, arrow type and
// metadata (so a category vocabulary is part of the schema). Two frames
// with the same fingerprint have the same schema.
func (f *Frame) Fingerprint() uint64 {
	h := xxhash.New()
	for _, field := range f.record.Schema().Fields() {
		_, _ = h.WriteString(field.Name)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(field.Type.Name())
		keys, values := field.Metadata.Keys(), field.Metadata.Values()
		for i := range keys {
			_, _ = h.WriteString("\x00")
			_, _ = h.WriteString(keys[i])
			_, _ = h.WriteString("=")
			_, _ = h.WriteString(values[i])
		}
		_, _ = h.WriteString("\x1f")
	}
	return h.Sum64()
}

// Numeric returns a rows×cols matrix of the numeric view of every column
// (category columns contribute their codes).
func (f *Frame) Numeric() (*mat.Dense, error) {
	n := f.NRows()
	out := mat.NewDense(n, len(f.columns), nil)
	for j, c := range f.columns {
		if !c.dtype.IsNumeric() && c.dtype != Category {
			return nil, errors.NewTypeError("Frame.Numeric", c.Name(), c.dtype.String())
		}
		for i := 0; i < n; i++ {
			out.Set(i, j, c.Float(i))
		}
	}
	return out, nil
}
