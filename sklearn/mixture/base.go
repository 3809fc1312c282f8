package mixture

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/tabsynth/core/model"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
	"github.com/YuminosukeSato/tabsynth/sklearn/cluster"
)

// Component is one fitted Gaussian mode.
type Component struct {
	Mean   float64
	Std    float64
	Weight float64
}

// Density is a fitted one-dimensional mixture.
type Density interface {
	// Components returns the fitted components in index order.
	Components() []Component
	// ScoreSamples returns the log density of every value.
	ScoreSamples(x []float64) ([]float64, error)
	// PredictProba returns the n×k posterior component probabilities.
	PredictProba(x []float64) (*mat.Dense, error)
	// Predict returns the most probable component of every value.
	Predict(x []float64) ([]int, error)
	// Converged reports whether the last Fit met the tolerance.
	Converged() bool
	// NIter returns the number of iterations run by the last Fit.
	NIter() int
}

var (
	_ Density               = (*GaussianMixture)(nil)
	_ Density               = (*BayesianGaussianMixture)(nil)
	_ model.ParameterGetter = (*GaussianMixture)(nil)
	_ model.ParameterGetter = (*BayesianGaussianMixture)(nil)
)

// ComponentLogProb returns log(w) + log N(x | mean, std²). A zero-std
// component is a point mass: 0 at its mean, -Inf elsewhere.
func ComponentLogProb(c Component, x float64) float64 {
	logW := errors.StabilizeLog(c.Weight)
	if c.Std == 0 {
		if x == c.Mean {
			return logW
		}
		return math.Inf(-1)
	}
	return logW + distuv.Normal{Mu: c.Mean, Sigma: c.Std}.LogProb(x)
}

// MostProbable returns the index of the component with the largest weighted
// log density at x. Ties go to the lowest index.
func MostProbable(components []Component, x float64) int {
	logp := make([]float64, len(components))
	for k, c := range components {
		logp[k] = ComponentLogProb(c, x)
	}
	return floats.MaxIdx(logp)
}

// fitted holds the state shared by both mixture models after Fit.
type fitted struct {
	model.BaseEstimator

	name       string
	components []Component
	converged  bool
	nIter      int
	lowerBound float64
}

// Components implements Density.
func (f *fitted) Components() []Component {
	return append([]Component(nil), f.components...)
}

// Converged implements Density.
func (f *fitted) Converged() bool { return f.converged }

// NIter implements Density.
func (f *fitted) NIter() int { return f.nIter }

// LowerBound returns the final value of the convergence objective.
func (f *fitted) LowerBound() float64 { return f.lowerBound }

// ScoreSamples implements Density.
func (f *fitted) ScoreSamples(x []float64) ([]float64, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError(f.name, "ScoreSamples")
	}
	out := make([]float64, len(x))
	logp := make([]float64, len(f.components))
	for i, v := range x {
		for k, c := range f.components {
			logp[k] = ComponentLogProb(c, v)
		}
		out[i] = errors.LogSumExp(logp)
	}
	return out, nil
}

// PredictProba implements Density.
func (f *fitted) PredictProba(x []float64) (*mat.Dense, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError(f.name, "PredictProba")
	}
	k := len(f.components)
	proba := mat.NewDense(len(x), k, nil)
	logp := make([]float64, k)
	for i, v := range x {
		for j, c := range f.components {
			logp[j] = ComponentLogProb(c, v)
		}
		norm := errors.LogSumExp(logp)
		for j := range logp {
			proba.Set(i, j, math.Exp(logp[j]-norm))
		}
	}
	return proba, nil
}

// Predict implements Density.
func (f *fitted) Predict(x []float64) ([]int, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError(f.name, "Predict")
	}
	labels := make([]int, len(x))
	for i, v := range x {
		labels[i] = MostProbable(f.components, v)
	}
	return labels, nil
}

// initResponsibilities assigns every sample to its k-means cluster.
func initResponsibilities(x []float64, k int, seed int64) (*mat.Dense, error) {
	n := len(x)
	resp := mat.NewDense(n, k, nil)
	if k == 1 {
		for i := 0; i < n; i++ {
			resp.Set(i, 0, 1)
		}
		return resp, nil
	}

	km := cluster.NewMiniBatchKMeans(
		cluster.WithKMeansNClusters(k),
		cluster.WithKMeansRandomState(seed),
		cluster.WithKMeansNInit(1),
	)
	if err := km.Fit(mat.NewDense(n, 1, append([]float64(nil), x...))); err != nil {
		return nil, errors.Wrap(err, "k-means initialisation")
	}
	for i, label := range km.Labels() {
		resp.Set(i, label, 1)
	}
	return resp, nil
}

// sufficientStats computes per-component soft counts, means and variances.
// Empty components keep a tiny count so divisions stay finite.
func sufficientStats(x []float64, resp *mat.Dense, regCovar float64) (nk, xk, sk []float64) {
	n, k := resp.Dims()
	nk = make([]float64, k)
	xk = make([]float64, k)
	sk = make([]float64, k)
	const eps = 10 * 2.220446049250313e-16
	for j := 0; j < k; j++ {
		var sum, wsum float64
		for i := 0; i < n; i++ {
			r := resp.At(i, j)
			sum += r
			wsum += r * x[i]
		}
		nk[j] = sum + eps
		xk[j] = wsum / nk[j]
		var ss float64
		for i := 0; i < n; i++ {
			d := x[i] - xk[j]
			ss += resp.At(i, j) * d * d
		}
		sk[j] = ss/nk[j] + regCovar
	}
	return nk, xk, sk
}

// normalizeLogProb turns weighted log probabilities into responsibilities in
// place and returns the mean log normaliser.
func normalizeLogProb(weighted *mat.Dense) float64 {
	n, k := weighted.Dims()
	row := make([]float64, k)
	total := 0.0
	for i := 0; i < n; i++ {
		mat.Row(row, i, weighted)
		norm := errors.LogSumExp(row)
		total += norm
		for j := 0; j < k; j++ {
			weighted.Set(i, j, math.Exp(row[j]-norm))
		}
	}
	return total / float64(n)
}

func validateInput(op string, x []float64) error {
	if len(x) == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return errors.CheckNumericalStability(op+" input", x, 0)
}
