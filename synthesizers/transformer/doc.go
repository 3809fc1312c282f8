// Package transformer converts mixed-type tables into fixed-width numeric
// matrices for generative models and reconstructs tables from such matrices.
//
// Every transformer is split into a configuration type and a fitted model.
// Fit on the configuration type inspects a frame.Frame and returns the fitted
// model; only the fitted model can Transform and InverseTransform, and it is
// never mutated afterwards, so it is safe for concurrent use.
//
//	cfg, err := transformer.NewDiscretizeTransformer(5)
//	m, err := cfg.Fit(df)
//	X, err := m.Transform(df)
//	back, err := m.InverseTransform(X)
//
// Available encodings:
//
//   - DiscretizeTransformer: uniform-width ordinal bins.
//   - GeneralTransformer: min-max rescale and one-hot categories.
//   - GMMTransformer / BGMTransformer: mode-specific normalization with a
//     per-column Gaussian mixture (one-hot mode indicator plus residual).
//   - TableganTransformer: every column rescaled to [-1, 1] and laid out as
//     a zero-padded square.
//
// OutputInfo on every fitted model describes the contiguous column blocks of
// the encoded matrix so downstream models can apply the right activation.
package transformer
