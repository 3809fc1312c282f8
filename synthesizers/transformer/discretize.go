package transformer

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/core/model"
	"github.com/YuminosukeSato/tabsynth/frame"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
	"github.com/YuminosukeSato/tabsynth/pkg/log"
	"github.com/YuminosukeSato/tabsynth/preprocessing"
)

// DiscretizeTransformer bins continuous columns into NBins uniform-width
// ordinal buckets. Categorical columns pass through as their category code.
type DiscretizeTransformer struct {
	NBins int

	logger log.Logger
}

// DiscretizeOption configures a DiscretizeTransformer.
type DiscretizeOption func(*DiscretizeTransformer)

// WithDiscretizeLogger sets the logger used by Fit and the fitted model.
func WithDiscretizeLogger(l log.Logger) DiscretizeOption {
	return func(t *DiscretizeTransformer) {
		t.logger = l
	}
}

// NewDiscretizeTransformer creates a DiscretizeTransformer; nBins must be at
// least 2.
func NewDiscretizeTransformer(nBins int, opts ...DiscretizeOption) (*DiscretizeTransformer, error) {
	if nBins < 2 {
		return nil, errors.NewValidationError("n_bins", "must be at least 2", nBins)
	}
	t := &DiscretizeTransformer{NBins: nBins}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// DiscretizeModel is a fitted DiscretizeTransformer.
type DiscretizeModel struct {
	model.BaseEstimator

	NBins       int
	Columns     []string
	ColumnIndex []int
	Metadata    []ColumnMeta

	// Quantizers holds one single-feature quantizer per column; entries of
	// categorical columns are unused zero values.
	Quantizers []preprocessing.KBinsDiscretizer

	logger log.Logger
}

// Fit records the column layout and fits a quantizer per continuous column.
func (t *DiscretizeTransformer) Fit(df *frame.Frame) (*DiscretizeModel, error) {
	start := time.Now()
	meta, err := GetMetadata(df)
	if err != nil {
		return nil, err
	}

	n := df.NRows()
	m := &DiscretizeModel{
		NBins:       t.NBins,
		Columns:     df.Names(),
		ColumnIndex: make([]int, len(meta)),
		Metadata:    meta,
		Quantizers:  make([]preprocessing.KBinsDiscretizer, len(meta)),
		logger:      t.logger,
	}
	for j, cm := range meta {
		m.ColumnIndex[j] = j
		if cm.Kind != Continuous {
			continue
		}
		q := &m.Quantizers[j]
		q.NBins = t.NBins
		values := append([]float64(nil), df.Column(j).Values()...)
		if err := q.Fit(mat.NewDense(n, 1, values)); err != nil {
			return nil, errors.Wrapf(err, "column '%s'", cm.Name)
		}
	}
	m.SetFitted()

	logDone(loggerOr(t.logger), "DiscretizeTransformer", log.OperationFit, n, len(meta), m.OutputDim(), start)
	return m, nil
}

// Meta returns a copy of the fitted column descriptors.
func (m *DiscretizeModel) Meta() []ColumnMeta { return copyMeta(m.Metadata) }

// OutputInfo returns one ordinal block per column.
func (m *DiscretizeModel) OutputInfo() []OutputBlock {
	blocks := make([]OutputBlock, len(m.Metadata))
	for j, cm := range m.Metadata {
		blocks[j] = OutputBlock{Column: cm.Name, Width: 1, Activation: Ordinal}
	}
	return blocks
}

// OutputDim returns the number of columns.
func (m *DiscretizeModel) OutputDim() int { return len(m.Metadata) }

// Transform maps every value to its bin index in [0, NBins-1].
func (m *DiscretizeModel) Transform(df *frame.Frame) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("DiscretizeModel", "Transform")
	}
	start := time.Now()
	if err := checkFrame("DiscretizeModel.Transform", m.Metadata, df); err != nil {
		return nil, err
	}

	n := df.NRows()
	out := mat.NewDense(n, len(m.Metadata), nil)
	for j, cm := range m.Metadata {
		col := df.Column(m.ColumnIndex[j])
		if cm.Kind == Categorical {
			codes, err := categoryCodes("DiscretizeModel.Transform", cm, col)
			if err != nil {
				return nil, err
			}
			for i, c := range codes {
				out.Set(i, j, float64(c))
			}
			continue
		}
		q := &m.Quantizers[j]
		for i, v := range col.Values() {
			out.Set(i, j, float64(q.BinIndex(0, v)))
		}
	}

	logDone(loggerOr(m.logger), "DiscretizeModel", log.OperationTransform, n, len(m.Metadata), m.OutputDim(), start)
	return out, nil
}

// InverseTransform maps bin indices back to bin centres. Indices outside
// [0, NBins-1] are clipped; categorical codes are rounded and clipped.
func (m *DiscretizeModel) InverseTransform(X mat.Matrix) (*frame.Frame, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("DiscretizeModel", "InverseTransform")
	}
	n, err := checkWidth("DiscretizeModel.InverseTransform", X, len(m.Metadata))
	if err != nil {
		return nil, err
	}

	cols := make([]*frame.Column, len(m.Metadata))
	for j, cm := range m.Metadata {
		if cm.Kind == Categorical {
			codes := make([]int, n)
			for i := range codes {
				codes[i] = clampCode(X.At(i, j), cm.Size)
			}
			if cols[j], err = decodedColumn(cm, nil, codes); err != nil {
				return nil, err
			}
			continue
		}

		centres, err := m.Quantizers[j].InverseTransform(colView(X, j))
		if err != nil {
			return nil, errors.Wrapf(err, "column '%s'", cm.Name)
		}
		if cols[j], err = decodedColumn(cm, mat.Col(nil, 0, centres), nil); err != nil {
			return nil, err
		}
	}
	return frame.New(cols...)
}

// colView returns column j of X as an n×1 matrix.
func colView(X mat.Matrix, j int) mat.Matrix {
	return mat.NewDense(rowsOf(X), 1, mat.Col(nil, j, X))
}

func rowsOf(X mat.Matrix) int {
	r, _ := X.Dims()
	return r
}

// GetParams returns the transformer configuration.
func (t *DiscretizeTransformer) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_bins": t.NBins}
}

// String returns a string representation of the transformer.
func (t *DiscretizeTransformer) String() string {
	return fmt.Sprintf("DiscretizeTransformer(n_bins=%d)", t.NBins)
}
