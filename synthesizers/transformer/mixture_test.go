package transformer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/frame"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
	"github.com/YuminosukeSato/tabsynth/pkg/log"
	"github.com/YuminosukeSato/tabsynth/sklearn/mixture"
)

// bimodalFrame has a two-cluster continuous column, a categorical column and
// a second continuous column.
func bimodalFrame(n int) *frame.Frame {
	rng := rand.New(rand.NewSource(3))
	x := make([]float64, n)
	y := make([]float64, n)
	labels := make([]string, n)
	for i := range x {
		if i%2 == 0 {
			x[i] = -5 + 2*rng.Float64() - 1
		} else {
			x[i] = 5 + 2*rng.Float64() - 1
		}
		y[i] = 100 + 10*rng.Float64()
		labels[i] = []string{"red", "green", "blue"}[i%3]
	}
	return frame.MustNew(
		frame.NewFloatColumn("x", x),
		frame.NewCategoricalColumn("color", labels),
		frame.NewFloatColumn("y", y),
	)
}

type mixtureFitter interface {
	Fit(df *frame.Frame) (*MixtureModel, error)
}

func mixtureTransformers(t *testing.T, opts ...MixtureOption) map[string]mixtureFitter {
	gmm, err := NewGMMTransformer(opts...)
	require.NoError(t, err)
	bgm, err := NewBGMTransformer(opts...)
	require.NoError(t, err)
	return map[string]mixtureFitter{"gmm": gmm, "bgm": bgm}
}

// assertEncoding checks that every mode indicator is one-hot and every
// residual lies in [-1, 1].
func assertEncoding(t *testing.T, m *MixtureModel, X *mat.Dense) {
	t.Helper()
	rows, cols := X.Dims()
	require.Equal(t, m.OutputDim(), cols)

	blocks := m.OutputInfo()
	for i := 0; i < rows; i++ {
		pos := 0
		for _, b := range blocks {
			switch b.Activation {
			case Tanh:
				r := X.At(i, pos)
				assert.True(t, r >= -1 && r <= 1, "residual %v out of range", r)
			case Softmax:
				ones, zeros := 0, 0
				for k := 0; k < b.Width; k++ {
					switch X.At(i, pos+k) {
					case 1:
						ones++
					case 0:
						zeros++
					}
				}
				assert.Equal(t, 1, ones, "row %d block %s", i, b.Column)
				assert.Equal(t, b.Width-1, zeros, "row %d block %s", i, b.Column)
			}
			pos += b.Width
		}
	}
}

func TestMixtureEncoding(t *testing.T) {
	captureWarnings(t)
	df := bimodalFrame(200)
	for name, tr := range mixtureTransformers(t) {
		t.Run(name, func(t *testing.T) {
			m, err := tr.Fit(df)
			require.NoError(t, err)

			X, err := m.Transform(df)
			require.NoError(t, err)
			assertEncoding(t, m, X)

			report, err := RoundTrip(m, df)
			require.NoError(t, err)
			require.Len(t, report, 3)
			assert.Less(t, report[0].MAE, 0.01)
			assert.Less(t, report[2].MAE, 0.01)
			assert.Equal(t, 1.0, report[1].Accuracy)
		})
	}
}

func TestMixtureLayout(t *testing.T) {
	captureWarnings(t)
	gmm, err := NewGMMTransformer(WithNComponents(3))
	require.NoError(t, err)
	m, err := gmm.Fit(bimodalFrame(60))
	require.NoError(t, err)

	assert.Equal(t, []OutputBlock{
		{Column: "x", Width: 1, Activation: Tanh},
		{Column: "x", Width: 3, Activation: Softmax},
		{Column: "color", Width: 3, Activation: Softmax},
		{Column: "y", Width: 1, Activation: Tanh},
		{Column: "y", Width: 3, Activation: Softmax},
	}, m.OutputInfo())
	assert.Equal(t, 11, m.OutputDim())
	assert.Len(t, m.Components(0), 3)
	assert.Empty(t, m.Components(1))
	assert.Nil(t, m.Components(-1))
	assert.Nil(t, m.Components(3), "out of range column")
	assert.Nil(t, (&MixtureModel{}).Components(0), "unfitted model")
}

func TestBGMPrunesComponents(t *testing.T) {
	captureWarnings(t)
	bgm, err := NewBGMTransformer()
	require.NoError(t, err)
	m, err := bgm.Fit(bimodalFrame(200))
	require.NoError(t, err)

	for _, j := range []int{0, 2} {
		comps := m.Components(j)
		require.NotEmpty(t, comps)
		assert.LessOrEqual(t, len(comps), 10)
		total := 0.0
		for _, c := range comps {
			assert.Greater(t, c.Weight, 0.005)
			total += c.Weight
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
}

func TestMixtureConstantColumn(t *testing.T) {
	captureWarnings(t)
	df := frame.MustNew(
		frame.NewFloatColumn("k", []float64{3.5, 3.5, 3.5, 3.5}),
		frame.NewFloatColumn("v", []float64{1, 2, 3, 4}),
	)
	for name, tr := range mixtureTransformers(t) {
		t.Run(name, func(t *testing.T) {
			m, err := tr.Fit(df)
			require.NoError(t, err)

			comps := m.Components(0)
			require.Len(t, comps, 1)
			assert.Equal(t, 3.5, comps[0].Mean)
			assert.Equal(t, 0.0, comps[0].Std)

			X, err := m.Transform(df)
			require.NoError(t, err)
			for i := 0; i < 4; i++ {
				assert.Equal(t, 0.0, X.At(i, 0))
				assert.Equal(t, 1.0, X.At(i, 1))
			}

			// any residual decodes to the constant
			X.Set(0, 0, 0.9)
			X.Set(1, 0, -3)
			back, err := m.InverseTransform(X)
			require.NoError(t, err)
			assert.Equal(t, []float64{3.5, 3.5, 3.5, 3.5}, back.Column(0).Values())
		})
	}
}

func TestMixtureInverseClip(t *testing.T) {
	captureWarnings(t)
	df := bimodalFrame(100)
	decodeRow0 := func(clip bool) (float64, float64) {
		gmm, err := NewGMMTransformer(WithNComponents(2), WithInverseClip(clip))
		require.NoError(t, err)
		m, err := gmm.Fit(df)
		require.NoError(t, err)
		X, err := m.Transform(df)
		require.NoError(t, err)

		mode := 0
		if X.At(0, 2) == 1 {
			mode = 1
		}
		c := m.Components(0)[mode]
		X.Set(0, 0, 2)
		back, err := m.InverseTransform(X)
		require.NoError(t, err)
		return back.Column(0).Values()[0], c.Mean + 2*4*c.Std
	}

	clipped, unclippedWant := decodeRow0(true)
	assert.Less(t, clipped, unclippedWant)

	unclipped, want := decodeRow0(false)
	assert.InDelta(t, want, unclipped, 1e-9)
}

func TestMixtureDeterministic(t *testing.T) {
	captureWarnings(t)
	df := bimodalFrame(150)
	for name := range mixtureTransformers(t) {
		t.Run(name, func(t *testing.T) {
			a := mixtureTransformers(t, WithRandomState(9))[name]
			b := mixtureTransformers(t, WithRandomState(9))[name]
			ma, err := a.Fit(df)
			require.NoError(t, err)
			mb, err := b.Fit(df)
			require.NoError(t, err)
			assert.Equal(t, ma.Modes, mb.Modes)

			x1, err := ma.Transform(df)
			require.NoError(t, err)
			x2, err := ma.Transform(df)
			require.NoError(t, err)
			assert.True(t, mat.Equal(x1, x2))
		})
	}
}

func TestMixtureOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  MixtureOption
	}{
		{"zero components", WithNComponents(0)},
		{"negative scale", WithResidualScale(-1)},
		{"zero iterations", WithMaxIter(0)},
		{"negative tol", WithTol(-0.1)},
		{"threshold too large", WithWeightThreshold(1)},
		{"zero concentration", WithWeightConcentrationPrior(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGMMTransformer(tt.opt)
			assert.True(t, errors.IsValueError(err))
			_, err = NewBGMTransformer(tt.opt)
			assert.True(t, errors.IsValueError(err))
		})
	}
}

func TestMixtureParams(t *testing.T) {
	gmm, _ := NewGMMTransformer()
	assert.Equal(t, 5, gmm.GetParams()["n_components"])
	assert.Equal(t, 4.0, gmm.GetParams()["residual_scale"])
	assert.NotContains(t, gmm.GetParams(), "weight_threshold")

	bgm, _ := NewBGMTransformer()
	params := bgm.GetParams()
	assert.Equal(t, 10, params["n_components"])
	assert.Equal(t, 0.005, params["weight_threshold"])
	assert.Equal(t, 0.001, params["weight_concentration_prior"])
	assert.Contains(t, bgm.String(), "BGMTransformer")
}

func TestMixtureErrors(t *testing.T) {
	captureWarnings(t)
	var zero MixtureModel
	_, err := zero.Transform(bimodalFrame(10))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = zero.InverseTransform(mat.NewDense(1, 1, nil))
	assert.True(t, errors.As(err, &nf))

	gmm, _ := NewGMMTransformer(WithNComponents(2))
	m, err := gmm.Fit(bimodalFrame(40))
	require.NoError(t, err)
	_, err = m.InverseTransform(mat.NewDense(2, m.OutputDim()+1, nil))
	assert.True(t, errors.IsValueError(err))

	_, err = gmm.Fit(frame.MustNew(frame.NewStringColumn("s", []string{"a"})))
	var typeErr *errors.TypeError
	assert.True(t, errors.As(err, &typeErr))
}

func TestMixtureLogging(t *testing.T) {
	captureWarnings(t)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	bgm, err := NewBGMTransformer(WithMixtureLogger(logger))
	require.NoError(t, err)
	_, err = bgm.Fit(bimodalFrame(80))
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("BGMTransformer fit done"))
	assert.True(t, logger.ContainsMessage("mixture fitted"))
	assert.True(t, logger.ContainsField(log.ColumnKey, "x"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "BGMTransformer"))
}

func TestPruneComponents(t *testing.T) {
	kept := pruneComponents([]mixture.Component{
		{Mean: 0, Std: 1, Weight: 0.6},
		{Mean: 1, Std: 1, Weight: 0.004},
		{Mean: 2, Std: 1, Weight: 0.396},
	}, 0.005)
	require.Len(t, kept, 2)
	assert.Equal(t, 0.0, kept[0].Mean)
	assert.Equal(t, 2.0, kept[1].Mean)
	assert.InDelta(t, 0.6/0.996, kept[0].Weight, 1e-12)

	kept = pruneComponents([]mixture.Component{
		{Mean: 0, Std: 1, Weight: 0.001},
		{Mean: 1, Std: 1, Weight: 0.003},
		{Mean: 2, Std: 1, Weight: 0.002},
	}, 0.005)
	require.Len(t, kept, 1, "the heaviest component always survives")
	assert.Equal(t, 1.0, kept[0].Mean)
	assert.InDelta(t, 1.0, kept[0].Weight, 1e-12)
}

func TestResidual(t *testing.T) {
	m := &MixtureModel{ResidualScale: 4}
	assert.Equal(t, 0.0, m.residual(mixture.Component{Mean: 1, Std: 0, Weight: 1}, 5))
	assert.Equal(t, 1.0, m.residual(mixture.Component{Mean: 0, Std: 1, Weight: 1}, 100))
	assert.Equal(t, -1.0, m.residual(mixture.Component{Mean: 0, Std: 1, Weight: 1}, math.Inf(-1)))
	assert.InDelta(t, 0.25, m.residual(mixture.Component{Mean: 0, Std: 1, Weight: 1}, 1), 1e-12)
}
