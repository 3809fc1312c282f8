package transformer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/tabsynth/frame"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// ColumnKind is the statistical type of a column.
type ColumnKind int

const (
	// Continuous columns hold real-valued observations.
	Continuous ColumnKind = iota
	// Categorical columns draw from a fixed vocabulary.
	Categorical
)

// String returns "continuous" or "categorical".
func (k ColumnKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// ColumnMeta describes one fitted column. Min and Max are set for continuous
// columns, Size and Categories for categorical ones.
type ColumnMeta struct {
	Name string
	Kind ColumnKind

	Min float64
	Max float64

	Size       int
	Categories []string
}

// GetMetadata returns one descriptor per column of df, in column order.
// Float64 and Int64 columns are continuous, Category columns categorical;
// any other dtype is a TypeError.
func GetMetadata(df *frame.Frame) ([]ColumnMeta, error) {
	if df == nil || df.NRows() == 0 {
		return nil, errors.NewModelError("GetMetadata", "empty data", errors.ErrEmptyData)
	}

	meta := make([]ColumnMeta, df.NCols())
	for j, col := range df.Columns() {
		m, err := columnMeta("GetMetadata", col)
		if err != nil {
			return nil, err
		}
		meta[j] = m
	}
	return meta, nil
}

func columnMeta(op string, col *frame.Column) (ColumnMeta, error) {
	switch {
	case col.DType() == frame.Category:
		return ColumnMeta{
			Name:       col.Name(),
			Kind:       Categorical,
			Size:       len(col.Categories()),
			Categories: append([]string(nil), col.Categories()...),
		}, nil
	case col.DType().IsNumeric():
		return ColumnMeta{
			Name: col.Name(),
			Kind: Continuous,
			Min:  floats.Min(col.Values()),
			Max:  floats.Max(col.Values()),
		}, nil
	default:
		return ColumnMeta{}, errors.NewTypeError(op, col.Name(), col.DType().String())
	}
}

func copyMeta(meta []ColumnMeta) []ColumnMeta {
	out := make([]ColumnMeta, len(meta))
	for j, m := range meta {
		out[j] = m
		out[j].Categories = append([]string(nil), m.Categories...)
	}
	return out
}
