package transformer

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/core/model"
	"github.com/YuminosukeSato/tabsynth/frame"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
	"github.com/YuminosukeSato/tabsynth/pkg/log"
)

// Fitted is a fitted transformer.
type Fitted interface {
	// Transform encodes df, whose columns must match the fitted columns.
	Transform(df *frame.Frame) (*mat.Dense, error)
	// InverseTransform reconstructs a table from an encoded matrix.
	InverseTransform(X mat.Matrix) (*frame.Frame, error)
	// OutputInfo returns the block layout of the encoded matrix.
	OutputInfo() []OutputBlock
	// OutputDim returns the width of the encoded matrix.
	OutputDim() int
	// Meta returns the fitted column descriptors.
	Meta() []ColumnMeta
}

var (
	_ Fitted = (*DiscretizeModel)(nil)
	_ Fitted = (*GeneralModel)(nil)
	_ Fitted = (*MixtureModel)(nil)
	_ Fitted = (*TableganModel)(nil)

	_ model.ParameterGetter = (*DiscretizeTransformer)(nil)
	_ model.ParameterGetter = (*GeneralTransformer)(nil)
	_ model.ParameterGetter = (*GMMTransformer)(nil)
	_ model.ParameterGetter = (*BGMTransformer)(nil)
	_ model.ParameterGetter = (*TableganTransformer)(nil)
)

// checkFrame validates that df has the fitted columns in the fitted order
// and that every column can be read as its fitted kind.
func checkFrame(op string, meta []ColumnMeta, df *frame.Frame) error {
	if df == nil || df.NRows() == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if df.NCols() != len(meta) {
		return errors.NewDimensionError(op, len(meta), df.NCols(), 1)
	}
	for j, m := range meta {
		col := df.Column(j)
		if col.Name() != m.Name {
			return errors.NewValueError(op,
				fmt.Sprintf("column %d is '%s', fitted column is '%s'", j, col.Name(), m.Name))
		}
		switch m.Kind {
		case Continuous:
			if !col.DType().IsNumeric() {
				return errors.NewTypeError(op, col.Name(), col.DType().String())
			}
		case Categorical:
			if col.DType() != frame.Category {
				return errors.NewTypeError(op, col.Name(), col.DType().String())
			}
		}
	}
	return nil
}

// checkWidth validates the width of an encoded matrix.
func checkWidth(op string, X mat.Matrix, width int) (int, error) {
	if X == nil {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	if r == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if c != width {
		return 0, errors.NewDimensionError(op, width, c, 1)
	}
	return r, nil
}

// categoryCodes maps the labels of col onto the fitted vocabulary.
func categoryCodes(op string, m ColumnMeta, col *frame.Column) ([]int, error) {
	if equalStrings(col.Categories(), m.Categories) {
		return col.Codes(), nil
	}
	index := make(map[string]int, len(m.Categories))
	for i, c := range m.Categories {
		index[c] = i
	}
	codes := make([]int, col.Len())
	for i := range codes {
		label := col.Label(i)
		code, ok := index[label]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownCategory, "%s: column '%s': label %q", op, m.Name, label)
		}
		codes[i] = code
	}
	return codes, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// decodedColumn builds the reconstructed column for m.
func decodedColumn(m ColumnMeta, values []float64, codes []int) (*frame.Column, error) {
	if m.Kind == Categorical {
		return frame.NewCategoricalColumnFromCodes(m.Name, codes, append([]string(nil), m.Categories...))
	}
	return frame.NewFloatColumn(m.Name, values), nil
}

// clampCode rounds v to the nearest valid category code.
func clampCode(v float64, size int) int {
	return int(math.Round(errors.ClipValue(v, 0, float64(size-1))))
}

// component names this package for log.GetLoggerWithName.
const component = "transformer"

func loggerOr(l log.Logger) log.Logger {
	if l != nil {
		return l
	}
	return log.GetLoggerWithName(component)
}

func logDone(l log.Logger, name, op string, rows, cols, dim int, start time.Time) {
	emit := l.Debug
	if op == log.OperationFit {
		emit = l.Info
	}
	emit(name+" "+op+" done",
		log.ModelNameKey, name,
		log.OperationKey, op,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.OutputDimKey, dim,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
}
