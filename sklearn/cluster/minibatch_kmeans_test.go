package cluster

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

func twoBlobs() *mat.Dense {
	values := make([]float64, 0, 40)
	for i := 0; i < 20; i++ {
		values = append(values, -10+float64(i%5)*0.1)
		values = append(values, 10+float64(i%5)*0.1)
	}
	return mat.NewDense(len(values), 1, values)
}

func TestMiniBatchKMeansSeparatesBlobs(t *testing.T) {
	km := NewMiniBatchKMeans(WithKMeansNClusters(2), WithKMeansRandomState(42))
	X := twoBlobs()
	require.NoError(t, km.Fit(X))

	centers := km.ClusterCenters()
	require.Len(t, centers, 2)
	got := []float64{centers[0][0], centers[1][0]}
	sort.Float64s(got)
	assert.InDelta(t, -9.8, got[0], 0.2)
	assert.InDelta(t, 10.2, got[1], 0.2)

	labels := km.Labels()
	assert.NotEqual(t, labels[0], labels[1], "alternating rows belong to different blobs")
	assert.Greater(t, km.NIterations(), 0)
	assert.Less(t, km.Inertia(), 10.0)

	pred, err := km.Predict(mat.NewDense(2, 1, []float64{-9, 11}))
	require.NoError(t, err)
	assert.Equal(t, labels[0], pred[0])
	assert.Equal(t, labels[1], pred[1])
}

func TestMiniBatchKMeansDeterministic(t *testing.T) {
	X := twoBlobs()
	a := NewMiniBatchKMeans(WithKMeansNClusters(3), WithKMeansRandomState(7))
	b := NewMiniBatchKMeans(WithKMeansNClusters(3), WithKMeansRandomState(7))
	require.NoError(t, a.Fit(X))
	require.NoError(t, b.Fit(X))
	assert.Equal(t, a.ClusterCenters(), b.ClusterCenters())
}

func TestMiniBatchKMeansErrors(t *testing.T) {
	km := NewMiniBatchKMeans(WithKMeansNClusters(5))
	assert.True(t, errors.IsValueError(km.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}))))

	_, err := NewMiniBatchKMeans().Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	km = NewMiniBatchKMeans(WithKMeansNClusters(1), WithKMeansInit("random"), WithKMeansBatchSize(2), WithKMeansMaxIter(3), WithKMeansNInit(1))
	require.NoError(t, km.Fit(mat.NewDense(3, 1, []float64{1, 2, 3})))
	_, err = km.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.IsValueError(err))
}
