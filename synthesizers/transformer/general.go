package transformer

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/core/model"
	"github.com/YuminosukeSato/tabsynth/frame"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
	"github.com/YuminosukeSato/tabsynth/pkg/log"
	"github.com/YuminosukeSato/tabsynth/preprocessing"
)

// GeneralTransformer rescales continuous columns linearly to FeatureRange
// and one-hot encodes categorical columns.
type GeneralTransformer struct {
	FeatureRange [2]float64

	logger log.Logger
}

// GeneralOption configures a GeneralTransformer.
type GeneralOption func(*GeneralTransformer)

// WithFeatureRange sets the target range of continuous columns.
func WithFeatureRange(lo, hi float64) GeneralOption {
	return func(t *GeneralTransformer) {
		t.FeatureRange = [2]float64{lo, hi}
	}
}

// WithGeneralLogger sets the logger used by Fit and the fitted model.
func WithGeneralLogger(l log.Logger) GeneralOption {
	return func(t *GeneralTransformer) {
		t.logger = l
	}
}

// NewGeneralTransformer creates a GeneralTransformer with range [-1, 1]
// unless WithFeatureRange says otherwise.
func NewGeneralTransformer(opts ...GeneralOption) (*GeneralTransformer, error) {
	t := &GeneralTransformer{FeatureRange: [2]float64{-1, 1}}
	for _, opt := range opts {
		opt(t)
	}
	if !(t.FeatureRange[0] < t.FeatureRange[1]) {
		return nil, errors.NewValidationError("feature_range", "minimum must be smaller than maximum", t.FeatureRange)
	}
	return t, nil
}

// GeneralModel is a fitted GeneralTransformer.
type GeneralModel struct {
	model.BaseEstimator

	Metadata []ColumnMeta
	// Continuous lists the positions of continuous columns; Scaler feature
	// i belongs to column Continuous[i].
	Continuous []int
	Scaler     *preprocessing.MinMaxScaler
	Blocks     []OutputBlock

	logger log.Logger
}

// Fit computes metadata and fits the scaler over all continuous columns.
func (t *GeneralTransformer) Fit(df *frame.Frame) (*GeneralModel, error) {
	start := time.Now()
	meta, err := GetMetadata(df)
	if err != nil {
		return nil, err
	}

	m := &GeneralModel{Metadata: meta, logger: t.logger}
	act := Tanh
	if t.FeatureRange[0] >= 0 {
		act = Sigmoid
	}
	for j, cm := range meta {
		switch cm.Kind {
		case Continuous:
			m.Continuous = append(m.Continuous, j)
			m.Blocks = append(m.Blocks, OutputBlock{Column: cm.Name, Width: 1, Activation: act})
		case Categorical:
			m.Blocks = append(m.Blocks, OutputBlock{Column: cm.Name, Width: cm.Size, Activation: Softmax})
		}
	}

	if len(m.Continuous) > 0 {
		m.Scaler = preprocessing.NewMinMaxScaler(t.FeatureRange)
		m.Scaler.Clip = true
		if err := m.Scaler.Fit(continuousMatrix(df, m.Continuous)); err != nil {
			return nil, err
		}
	}
	m.SetFitted()

	logDone(loggerOr(t.logger), "GeneralTransformer", log.OperationFit, df.NRows(), len(meta), m.OutputDim(), start)
	return m, nil
}

// continuousMatrix gathers the given numeric columns into an n×len(idx) matrix.
func continuousMatrix(df *frame.Frame, idx []int) *mat.Dense {
	X := mat.NewDense(df.NRows(), len(idx), nil)
	for c, j := range idx {
		X.SetCol(c, df.Column(j).Values())
	}
	return X
}

// Meta returns a copy of the fitted column descriptors.
func (m *GeneralModel) Meta() []ColumnMeta { return copyMeta(m.Metadata) }

// OutputInfo returns the block layout of the encoded matrix.
func (m *GeneralModel) OutputInfo() []OutputBlock { return append([]OutputBlock(nil), m.Blocks...) }

// OutputDim returns the number of continuous columns plus the sum of
// categorical cardinalities.
func (m *GeneralModel) OutputDim() int { return outputDim(m.Blocks) }

// Transform rescales continuous values and one-hot encodes categories.
func (m *GeneralModel) Transform(df *frame.Frame) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("GeneralModel", "Transform")
	}
	start := time.Now()
	if err := checkFrame("GeneralModel.Transform", m.Metadata, df); err != nil {
		return nil, err
	}

	n := df.NRows()
	out := mat.NewDense(n, m.OutputDim(), nil)

	var scaled mat.Matrix
	if m.Scaler != nil {
		var err error
		if scaled, err = m.Scaler.Transform(continuousMatrix(df, m.Continuous)); err != nil {
			return nil, err
		}
	}

	pos, c := 0, 0
	for j, cm := range m.Metadata {
		switch cm.Kind {
		case Continuous:
			for i := 0; i < n; i++ {
				out.Set(i, pos, scaled.At(i, c))
			}
			c++
			pos++
		case Categorical:
			codes, err := categoryCodes("GeneralModel.Transform", cm, df.Column(j))
			if err != nil {
				return nil, err
			}
			for i, code := range codes {
				out.Set(i, pos+code, 1)
			}
			pos += cm.Size
		}
	}

	logDone(loggerOr(m.logger), "GeneralModel", log.OperationTransform, n, len(m.Metadata), m.OutputDim(), start)
	return out, nil
}

// InverseTransform undoes the rescale (clipping to the feature range) and
// picks the arg-max category of every one-hot block. Ties go to the lowest
// category index, so soft blocks are accepted too.
func (m *GeneralModel) InverseTransform(X mat.Matrix) (*frame.Frame, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("GeneralModel", "InverseTransform")
	}
	n, err := checkWidth("GeneralModel.InverseTransform", X, m.OutputDim())
	if err != nil {
		return nil, err
	}

	var original mat.Matrix
	if m.Scaler != nil {
		scaled := mat.NewDense(n, len(m.Continuous), nil)
		pos, c := 0, 0
		for _, cm := range m.Metadata {
			if cm.Kind == Continuous {
				scaled.SetCol(c, mat.Col(nil, pos, X))
				c++
				pos++
				continue
			}
			pos += cm.Size
		}
		if original, err = m.Scaler.InverseTransform(scaled); err != nil {
			return nil, err
		}
	}

	cols := make([]*frame.Column, len(m.Metadata))
	pos, c := 0, 0
	for j, cm := range m.Metadata {
		switch cm.Kind {
		case Continuous:
			if cols[j], err = decodedColumn(cm, mat.Col(nil, c, original), nil); err != nil {
				return nil, err
			}
			c++
			pos++
		case Categorical:
			codes := argmaxBlock(X, n, pos, cm.Size)
			if cols[j], err = decodedColumn(cm, nil, codes); err != nil {
				return nil, err
			}
			pos += cm.Size
		}
	}
	return frame.New(cols...)
}

// argmaxBlock returns the arg-max position of columns [pos, pos+width) for
// every row; the first maximum wins.
func argmaxBlock(X mat.Matrix, n, pos, width int) []int {
	idx := make([]int, n)
	row := make([]float64, width)
	for i := 0; i < n; i++ {
		for k := 0; k < width; k++ {
			row[k] = X.At(i, pos+k)
		}
		idx[i] = floats.MaxIdx(row)
	}
	return idx
}

// GetParams returns the transformer configuration.
func (t *GeneralTransformer) GetParams() map[string]interface{} {
	return map[string]interface{}{"feature_range": t.FeatureRange}
}

// String returns a string representation of the transformer.
func (t *GeneralTransformer) String() string {
	return fmt.Sprintf("GeneralTransformer(feature_range=[%g, %g])", t.FeatureRange[0], t.FeatureRange[1])
}
