package mixture

import "github.com/YuminosukeSato/tabsynth/pkg/errors"

// params holds the configuration shared by both mixture models.
type params struct {
	nComponents              int
	tol                      float64
	maxIter                  int
	regCovar                 float64
	randomState              int64
	weightConcentrationPrior float64
}

// Option configures a GaussianMixture or BayesianGaussianMixture.
type Option func(*params)

// WithNComponents sets the (maximum) number of mixture components.
func WithNComponents(n int) Option {
	return func(p *params) {
		p.nComponents = n
	}
}

// WithTol sets the convergence threshold on the per-sample objective.
func WithTol(tol float64) Option {
	return func(p *params) {
		p.tol = tol
	}
}

// WithMaxIter sets the maximum number of EM / VB iterations.
func WithMaxIter(maxIter int) Option {
	return func(p *params) {
		p.maxIter = maxIter
	}
}

// WithRegCovar sets the non-negative regularisation added to every variance.
func WithRegCovar(reg float64) Option {
	return func(p *params) {
		p.regCovar = reg
	}
}

// WithRandomState sets the seed of the k-means initialisation.
func WithRandomState(seed int64) Option {
	return func(p *params) {
		p.randomState = seed
	}
}

// WithWeightConcentrationPrior sets the Dirichlet-process concentration
// (gamma). Smaller values put more mass on fewer components. Ignored by
// GaussianMixture.
func WithWeightConcentrationPrior(gamma float64) Option {
	return func(p *params) {
		p.weightConcentrationPrior = gamma
	}
}

func defaultParams(nComponents int) params {
	return params{
		nComponents: nComponents,
		tol:         1e-3,
		maxIter:     100,
		regCovar:    1e-6,
	}
}

func (p params) validate() error {
	if p.nComponents < 1 {
		return errors.NewValidationError("n_components", "must be at least 1", p.nComponents)
	}
	if p.tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", p.tol)
	}
	if p.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", p.maxIter)
	}
	if p.regCovar < 0 {
		return errors.NewValidationError("reg_covar", "must be non-negative", p.regCovar)
	}
	return nil
}
