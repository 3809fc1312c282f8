package mixture

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// BayesianGaussianMixture は変分推論で学習する1次元ベイズガウス混合モデル
//
// 重みには Dirichlet process (stick-breaking) 事前分布、平均と分散には
// Normal-Gamma 事前分布を用いる。データに支持されない成分の重みは0に近づく。
type BayesianGaussianMixture struct {
	fitted
	params

	// 変分パラメータ
	weightConcentration [2][]float64 // stick-breaking Beta(a_k, b_k)
	meanPrecision       []float64
	means               []float64
	degreesOfFreedom    []float64
	covariances         []float64
}

// priors はデータから決まる事前分布のハイパーパラメータ
type priors struct {
	meanPrecision float64
	mean          float64
	dof           float64
	covariance    float64
}

// NewBayesianGaussianMixture は新しいBayesianGaussianMixtureを作成
func NewBayesianGaussianMixture(options ...Option) *BayesianGaussianMixture {
	bgm := &BayesianGaussianMixture{params: defaultParams(1)}
	bgm.name = "BayesianGaussianMixture"
	for _, opt := range options {
		opt(&bgm.params)
	}
	return bgm
}

// Fit は変分EMでモデルを学習
func (bgm *BayesianGaussianMixture) Fit(x []float64) (err error) {
	defer errors.Recover(&err, "BayesianGaussianMixture.Fit")

	if err := bgm.validate(); err != nil {
		return err
	}
	if err := validateInput("BayesianGaussianMixture.Fit", x); err != nil {
		return err
	}
	gamma := bgm.concentration()
	if gamma <= 0 {
		return errors.NewValidationError("weight_concentration_prior", "must be positive", gamma)
	}

	k := bgm.nComponents
	if k > len(x) {
		k = len(x)
	}
	pr := bgm.dataPriors(x)

	resp, err := initResponsibilities(x, k, bgm.randomState)
	if err != nil {
		return err
	}
	bgm.mStep(x, resp, pr)

	lowerBound := math.Inf(-1)
	converged := false
	nIter := 0
	weighted := mat.NewDense(len(x), k, nil)
	for iter := 1; iter <= bgm.maxIter; iter++ {
		nIter = iter
		prev := lowerBound

		bgm.estimateWeightedLogProb(x, weighted)
		lowerBound = normalizeLogProb(weighted)
		if err := errors.CheckScalar("BayesianGaussianMixture lower bound", lowerBound, iter); err != nil {
			return err
		}

		bgm.mStep(x, weighted, pr)

		if math.Abs(lowerBound-prev) < bgm.tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("BayesianGaussianMixture", nIter,
			"try different init parameters, increase max_iter or tol"))
	}

	weights := bgm.expectedWeights()
	components := make([]Component, k)
	for j := range components {
		components[j] = Component{
			Mean:   bgm.means[j],
			Std:    math.Sqrt(bgm.covariances[j]),
			Weight: weights[j],
		}
	}
	bgm.components = components
	bgm.converged = converged
	bgm.nIter = nIter
	bgm.lowerBound = lowerBound
	bgm.SetFitted()
	return nil
}

func (bgm *BayesianGaussianMixture) concentration() float64 {
	if bgm.weightConcentrationPrior == 0 {
		return 1 / float64(bgm.nComponents)
	}
	return bgm.weightConcentrationPrior
}

func (bgm *BayesianGaussianMixture) dataPriors(x []float64) priors {
	covariance := bgm.regCovar
	if len(x) > 1 {
		if v := stat.Variance(x, nil); v > covariance {
			covariance = v
		}
	}
	if covariance <= 0 {
		covariance = 1e-6
	}
	return priors{
		meanPrecision: 1,
		mean:          stat.Mean(x, nil),
		dof:           1,
		covariance:    covariance,
	}
}

// mStep updates the variational posterior from responsibilities.
func (bgm *BayesianGaussianMixture) mStep(x []float64, resp *mat.Dense, pr priors) {
	nk, xk, sk := sufficientStats(x, resp, bgm.regCovar)
	k := len(nk)
	gamma := bgm.concentration()

	a := make([]float64, k)
	b := make([]float64, k)
	tail := 0.0
	for j := k - 1; j >= 0; j-- {
		a[j] = 1 + nk[j]
		b[j] = gamma + tail
		tail += nk[j]
	}
	bgm.weightConcentration = [2][]float64{a, b}

	bgm.meanPrecision = make([]float64, k)
	bgm.means = make([]float64, k)
	bgm.degreesOfFreedom = make([]float64, k)
	bgm.covariances = make([]float64, k)
	for j := 0; j < k; j++ {
		bgm.meanPrecision[j] = pr.meanPrecision + nk[j]
		bgm.means[j] = (pr.meanPrecision*pr.mean + nk[j]*xk[j]) / bgm.meanPrecision[j]
		bgm.degreesOfFreedom[j] = pr.dof + nk[j]

		diff := xk[j] - pr.mean
		cov := pr.covariance + nk[j]*sk[j] +
			nk[j]*pr.meanPrecision/bgm.meanPrecision[j]*diff*diff
		bgm.covariances[j] = cov / bgm.degreesOfFreedom[j]
	}
}

// estimateWeightedLogProb fills out with E[log p(x|k)] + E[log π_k].
func (bgm *BayesianGaussianMixture) estimateWeightedLogProb(x []float64, out *mat.Dense) {
	a, b := bgm.weightConcentration[0], bgm.weightConcentration[1]
	k := len(a)

	logWeights := make([]float64, k)
	cum := 0.0
	for j := 0; j < k; j++ {
		digammaSum := mathext.Digamma(a[j] + b[j])
		logWeights[j] = mathext.Digamma(a[j]) - digammaSum + cum
		cum += mathext.Digamma(b[j]) - digammaSum
	}

	const log2Pi = 1.8378770664093453
	correction := make([]float64, k)
	logPrecChol := make([]float64, k)
	for j := 0; j < k; j++ {
		logLambda := math.Ln2 + mathext.Digamma(0.5*bgm.degreesOfFreedom[j])
		correction[j] = -0.5*math.Log(bgm.degreesOfFreedom[j]) +
			0.5*(logLambda-1/bgm.meanPrecision[j])
		logPrecChol[j] = -0.5 * math.Log(bgm.covariances[j])
	}

	for i, v := range x {
		for j := 0; j < k; j++ {
			d := v - bgm.means[j]
			logGauss := -0.5*(log2Pi+d*d/bgm.covariances[j]) + logPrecChol[j]
			out.Set(i, j, logGauss+correction[j]+logWeights[j])
		}
	}
}

// expectedWeights returns the normalised stick-breaking posterior means.
func (bgm *BayesianGaussianMixture) expectedWeights() []float64 {
	a, b := bgm.weightConcentration[0], bgm.weightConcentration[1]
	weights := make([]float64, len(a))
	remaining := 1.0
	total := 0.0
	for j := range a {
		weights[j] = a[j] / (a[j] + b[j]) * remaining
		remaining *= b[j] / (a[j] + b[j])
		total += weights[j]
	}
	for j := range weights {
		weights[j] /= total
	}
	return weights
}

// GetParams returns the model hyperparameters.
func (bgm *BayesianGaussianMixture) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_components":               bgm.nComponents,
		"tol":                        bgm.tol,
		"max_iter":                   bgm.maxIter,
		"reg_covar":                  bgm.regCovar,
		"random_state":               bgm.randomState,
		"weight_concentration_prior": bgm.concentration(),
	}
}

// String returns a string representation of the model.
func (bgm *BayesianGaussianMixture) String() string {
	return fmt.Sprintf("BayesianGaussianMixture(n_components=%d, weight_concentration_prior=%g, max_iter=%d)",
		bgm.nComponents, bgm.concentration(), bgm.maxIter)
}
