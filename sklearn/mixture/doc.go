// Package mixture implements one-dimensional Gaussian mixture models.
//
// GaussianMixture fits a fixed number of components by expectation
// maximization. BayesianGaussianMixture fits a variational mixture with a
// Dirichlet-process (stick-breaking) weight prior, which drives the weights
// of unsupported components towards zero so callers can prune them.
//
// Both are initialised from k-means labels and stop when the change of the
// per-sample objective drops below tol or after maxIter iterations; in the
// latter case a ConvergenceWarning is emitted through errors.Warn.
//
//	gm := mixture.NewGaussianMixture(mixture.WithNComponents(5))
//	if err := gm.Fit(values); err != nil {
//	    return err
//	}
//	for _, c := range gm.Components() {
//	    fmt.Println(c.Mean, c.Std, c.Weight)
//	}
package mixture
