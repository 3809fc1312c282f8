package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

func column(values ...float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}

func TestMinMaxScalerSymmetricRange(t *testing.T) {
	scaler := NewMinMaxScaler([2]float64{-1, 1})
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})

	Xt, err := scaler.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1}, mat.Col(nil, 0, Xt))
	assert.Equal(t, []float64{-1, -1, -1}, mat.Col(nil, 1, Xt), "constant feature maps to the lower bound")

	back, err := scaler.InverseTransform(Xt)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestMinMaxScalerClip(t *testing.T) {
	scaler := NewMinMaxScaler([2]float64{-1, 1})
	scaler.Clip = true
	require.NoError(t, scaler.Fit(column(0, 10)))

	back, err := scaler.InverseTransform(column(3, -7))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0}, mat.Col(nil, 0, back))
}

func TestMinMaxScalerErrors(t *testing.T) {
	scaler := NewMinMaxScalerDefault()
	_, err := scaler.Transform(column(1))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, scaler.Fit(column(1, 2)))
	_, err = scaler.Transform(mat.NewDense(1, 2, nil))
	assert.True(t, errors.IsValueError(err))

	bad := NewMinMaxScaler([2]float64{1, 1})
	assert.True(t, errors.IsValueError(bad.Fit(column(1, 2))))
	assert.Contains(t, scaler.String(), "n_features=1")
}

func TestKBinsDiscretizerRejectsSmallNBins(t *testing.T) {
	_, err := NewKBinsDiscretizer(1)
	assert.True(t, errors.IsValueError(err))
}

func TestKBinsDiscretizerUniformEdges(t *testing.T) {
	kb, err := NewKBinsDiscretizer(2)
	require.NoError(t, err)

	values := make([]float64, 10)
	for i := range values {
		values[i] = 1 / float64(i+1)
	}
	require.NoError(t, kb.Fit(column(values...)))

	edges := kb.BinEdges[0]
	require.Len(t, edges, 3)
	assert.InDelta(t, 0.1, edges[0], 1e-12)
	assert.InDelta(t, 0.55, edges[1], 1e-12)
	assert.Equal(t, 1.0, edges[2])

	Xt, err := kb.Transform(column(values...))
	require.NoError(t, err)
	assert.Equal(t, 1.0, Xt.At(0, 0), "maximum falls into the closed rightmost bin")
	for i := 1; i < 10; i++ {
		assert.Equal(t, 0.0, Xt.At(i, 0))
	}

	back, err := kb.InverseTransform(Xt)
	require.NoError(t, err)
	assert.InDelta(t, 0.775, back.At(0, 0), 1e-12)
	assert.InDelta(t, 0.325, back.At(1, 0), 1e-12)
}

func TestKBinsDiscretizerBounds(t *testing.T) {
	kb, err := NewKBinsDiscretizer(4)
	require.NoError(t, err)
	require.NoError(t, kb.Fit(column(0, 8)))

	assert.Equal(t, 0, kb.BinIndex(0, -100))
	assert.Equal(t, 3, kb.BinIndex(0, 100))
	assert.Equal(t, 1, kb.BinIndex(0, 2), "left edge belongs to its bin")
	assert.Equal(t, 3, kb.BinIndex(0, 8))

	back, err := kb.InverseTransform(column(-2, 9))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 7}, mat.Col(nil, 0, back), "out of range indices are clipped")
}

func TestKBinsDiscretizerConstantFeature(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })

	kb, err := NewKBinsDiscretizer(3)
	require.NoError(t, err)

	Xt, err := kb.FitTransform(column(4, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 0, Xt))

	back, err := kb.InverseTransform(Xt)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4, 4}, mat.Col(nil, 0, back))

	require.Len(t, warnings, 1)
	var dw *errors.DataConversionWarning
	assert.True(t, errors.As(warnings[0], &dw))
}
