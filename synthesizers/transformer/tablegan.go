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
	"github.com/YuminosukeSato/tabsynth/preprocessing"
)

// tableganSides are the square image sides tried in order.
var tableganSides = []int{4, 8, 16, 24, 32}

// TableganTransformer rescales every column to [-1, 1] and lays each row
// out as a zero-padded side×side square for convolutional models.
type TableganTransformer struct {
	logger log.Logger
}

// TableganOption configures a TableganTransformer.
type TableganOption func(*TableganTransformer)

// WithTableganLogger sets the logger used by Fit and the fitted model.
func WithTableganLogger(l log.Logger) TableganOption {
	return func(t *TableganTransformer) {
		t.logger = l
	}
}

// NewTableganTransformer creates a TableganTransformer.
func NewTableganTransformer(opts ...TableganOption) *TableganTransformer {
	t := &TableganTransformer{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TableganModel is a fitted TableganTransformer.
type TableganModel struct {
	model.BaseEstimator

	Metadata []ColumnMeta
	SideLen  int
	// Scaler maps every column (categorical ones by code over
	// [0, size-1]) to [-1, 1].
	Scaler *preprocessing.MinMaxScaler

	logger log.Logger
}

// squareSide returns the smallest preset side whose square holds n values,
// growing past the presets when needed.
func squareSide(n int) int {
	for _, s := range tableganSides {
		if s*s >= n {
			return s
		}
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Fit computes metadata, the per-column ranges and the square side.
func (t *TableganTransformer) Fit(df *frame.Frame) (*TableganModel, error) {
	start := time.Now()
	meta, err := GetMetadata(df)
	if err != nil {
		return nil, err
	}

	m := &TableganModel{
		Metadata: meta,
		SideLen:  squareSide(len(meta)),
		Scaler:   preprocessing.NewMinMaxScaler([2]float64{-1, 1}),
		logger:   t.logger,
	}
	m.Scaler.Clip = true
	X, err := m.numeric("TableganTransformer.Fit", df)
	if err != nil {
		return nil, err
	}
	if err := m.Scaler.Fit(X); err != nil {
		return nil, err
	}
	for j, cm := range meta {
		if cm.Kind != Categorical {
			continue
		}
		m.Scaler.DataMin[j] = 0
		m.Scaler.DataMax[j] = float64(cm.Size - 1)
		m.Scaler.Scale[j] = math.Max(float64(cm.Size-1), 1)
	}
	m.SetFitted()

	logDone(loggerOr(t.logger), "TableganTransformer", log.OperationFit, df.NRows(), len(meta), m.OutputDim(), start)
	return m, nil
}

// numeric reads df as an n×ncols matrix; categories become fitted codes.
func (m *TableganModel) numeric(op string, df *frame.Frame) (*mat.Dense, error) {
	X := mat.NewDense(df.NRows(), len(m.Metadata), nil)
	for j, cm := range m.Metadata {
		col := df.Column(j)
		if cm.Kind == Continuous {
			X.SetCol(j, col.Values())
			continue
		}
		codes, err := categoryCodes(op, cm, col)
		if err != nil {
			return nil, err
		}
		for i, c := range codes {
			X.Set(i, j, float64(c))
		}
	}
	return X, nil
}

// Side returns the side of the square layout.
func (m *TableganModel) Side() int { return m.SideLen }

// Meta returns a copy of the fitted column descriptors.
func (m *TableganModel) Meta() []ColumnMeta { return copyMeta(m.Metadata) }

// OutputInfo returns a single Tanh block covering the whole square.
func (m *TableganModel) OutputInfo() []OutputBlock {
	return []OutputBlock{{Column: "tablegan", Width: m.OutputDim(), Activation: Tanh}}
}

// OutputDim returns side*side.
func (m *TableganModel) OutputDim() int { return m.SideLen * m.SideLen }

// Transform scales every column to [-1, 1] and zero pads each row to
// side*side values.
func (m *TableganModel) Transform(df *frame.Frame) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("TableganModel", "Transform")
	}
	start := time.Now()
	op := "TableganModel.Transform"
	if err := checkFrame(op, m.Metadata, df); err != nil {
		return nil, err
	}
	X, err := m.numeric(op, df)
	if err != nil {
		return nil, err
	}
	scaled, err := m.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}

	n := df.NRows()
	out := mat.NewDense(n, m.OutputDim(), nil)
	out.Slice(0, n, 0, len(m.Metadata)).(*mat.Dense).Copy(scaled)

	logDone(loggerOr(m.logger), "TableganModel", log.OperationTransform, n, len(m.Metadata), m.OutputDim(), start)
	return out, nil
}

// InverseTransform rescales the leading values of every row back to the
// column ranges; categorical codes are rounded and clipped.
func (m *TableganModel) InverseTransform(X mat.Matrix) (*frame.Frame, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("TableganModel", "InverseTransform")
	}
	n, err := checkWidth("TableganModel.InverseTransform", X, m.OutputDim())
	if err != nil {
		return nil, err
	}

	lead := mat.NewDense(n, len(m.Metadata), nil)
	for j := range m.Metadata {
		lead.SetCol(j, mat.Col(nil, j, X))
	}
	original, err := m.Scaler.InverseTransform(lead)
	if err != nil {
		return nil, err
	}

	cols := make([]*frame.Column, len(m.Metadata))
	for j, cm := range m.Metadata {
		values := mat.Col(nil, j, original)
		if cm.Kind == Continuous {
			if cols[j], err = decodedColumn(cm, values, nil); err != nil {
				return nil, err
			}
			continue
		}
		codes := make([]int, n)
		for i, v := range values {
			codes[i] = clampCode(v, cm.Size)
		}
		if cols[j], err = decodedColumn(cm, nil, codes); err != nil {
			return nil, err
		}
	}
	return frame.New(cols...)
}

// GetParams returns the transformer configuration.
func (t *TableganTransformer) GetParams() map[string]interface{} {
	return map[string]interface{}{"sides": append([]int(nil), tableganSides...)}
}

// String returns a string representation of the transformer.
func (t *TableganTransformer) String() string {
	return fmt.Sprintf("TableganTransformer(sides=%v)", tableganSides)
}
