package mixture

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// GaussianMixture は期待値最大化法で学習する1次元ガウス混合モデル
type GaussianMixture struct {
	fitted
	params
}

// NewGaussianMixture は新しいGaussianMixtureを作成
func NewGaussianMixture(options ...Option) *GaussianMixture {
	gm := &GaussianMixture{params: defaultParams(1)}
	gm.name = "GaussianMixture"
	for _, opt := range options {
		opt(&gm.params)
	}
	return gm
}

// Fit はEMアルゴリズムでモデルを学習
func (gm *GaussianMixture) Fit(x []float64) (err error) {
	defer errors.Recover(&err, "GaussianMixture.Fit")

	if err := gm.validate(); err != nil {
		return err
	}
	if err := validateInput("GaussianMixture.Fit", x); err != nil {
		return err
	}

	k := gm.nComponents
	if k > len(x) {
		k = len(x)
	}

	resp, err := initResponsibilities(x, k, gm.randomState)
	if err != nil {
		return err
	}
	weights, means, variances := gm.mStep(x, resp)

	lowerBound := math.Inf(-1)
	converged := false
	nIter := 0
	weighted := mat.NewDense(len(x), k, nil)
	for iter := 1; iter <= gm.maxIter; iter++ {
		nIter = iter
		prev := lowerBound

		// E-step
		for i, v := range x {
			for j := 0; j < k; j++ {
				lp := distuv.Normal{Mu: means[j], Sigma: math.Sqrt(variances[j])}.LogProb(v)
				weighted.Set(i, j, errors.StabilizeLog(weights[j])+lp)
			}
		}
		lowerBound = normalizeLogProb(weighted)
		if err := errors.CheckScalar("GaussianMixture lower bound", lowerBound, iter); err != nil {
			return err
		}

		// M-step
		weights, means, variances = gm.mStep(x, weighted)

		if math.Abs(lowerBound-prev) < gm.tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("GaussianMixture", nIter,
			"try different init parameters, increase max_iter or tol"))
	}

	components := make([]Component, k)
	for j := range components {
		components[j] = Component{Mean: means[j], Std: math.Sqrt(variances[j]), Weight: weights[j]}
	}
	gm.components = components
	gm.converged = converged
	gm.nIter = nIter
	gm.lowerBound = lowerBound
	gm.SetFitted()
	return nil
}

func (gm *GaussianMixture) mStep(x []float64, resp *mat.Dense) (weights, means, variances []float64) {
	nk, xk, sk := sufficientStats(x, resp, gm.regCovar)
	total := 0.0
	for _, v := range nk {
		total += v
	}
	weights = make([]float64, len(nk))
	for j, v := range nk {
		weights[j] = v / total
	}
	return weights, xk, sk
}

// GetParams returns the model hyperparameters.
func (gm *GaussianMixture) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_components": gm.nComponents,
		"tol":          gm.tol,
		"max_iter":     gm.maxIter,
		"reg_covar":    gm.regCovar,
		"random_state": gm.randomState,
	}
}

// String returns a string representation of the model.
func (gm *GaussianMixture) String() string {
	return fmt.Sprintf("GaussianMixture(n_components=%d, tol=%g, max_iter=%d)", gm.nComponents, gm.tol, gm.maxIter)
}
