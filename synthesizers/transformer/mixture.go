package transformer

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/core/model"
	"github.com/YuminosukeSato/tabsynth/core/parallel"
	"github.com/YuminosukeSato/tabsynth/frame"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
	"github.com/YuminosukeSato/tabsynth/pkg/log"
	"github.com/YuminosukeSato/tabsynth/sklearn/mixture"
)

const (
	defaultResidualScale   = 4.0
	defaultGMMComponents   = 5
	defaultBGMComponents   = 10
	defaultWeightThreshold = 0.005
	defaultConcentration   = 0.001

	// columns fitted concurrently once a table has more than this many
	parallelColumnThreshold = 1
)

type mixtureKind int

const (
	gmmKind mixtureKind = iota
	bgmKind
)

func (k mixtureKind) String() string {
	if k == bgmKind {
		return "BGMTransformer"
	}
	return "GMMTransformer"
}

// mixtureConfig is shared by GMMTransformer and BGMTransformer.
type mixtureConfig struct {
	kind            mixtureKind
	nComponents     int
	residualScale   float64
	maxIter         int
	tol             float64
	randomState     int64
	weightThreshold float64
	concentration   float64
	inverseClip     bool
	logger          log.Logger
}

// MixtureOption configures a GMMTransformer or BGMTransformer.
type MixtureOption func(*mixtureConfig)

// WithNComponents sets the number of mixture components per column (the
// upper bound for BGMTransformer).
func WithNComponents(n int) MixtureOption {
	return func(c *mixtureConfig) {
		c.nComponents = n
	}
}

// WithResidualScale sets k in residual = (x - μ) / (k·σ).
func WithResidualScale(k float64) MixtureOption {
	return func(c *mixtureConfig) {
		c.residualScale = k
	}
}

// WithMaxIter caps the EM / variational iterations per column.
func WithMaxIter(n int) MixtureOption {
	return func(c *mixtureConfig) {
		c.maxIter = n
	}
}

// WithTol sets the mixture convergence threshold.
func WithTol(tol float64) MixtureOption {
	return func(c *mixtureConfig) {
		c.tol = tol
	}
}

// WithRandomState sets the base seed; column j is fitted with seed+j.
func WithRandomState(seed int64) MixtureOption {
	return func(c *mixtureConfig) {
		c.randomState = seed
	}
}

// WithWeightThreshold sets the weight at or below which BGMTransformer
// drops a component.
func WithWeightThreshold(w float64) MixtureOption {
	return func(c *mixtureConfig) {
		c.weightThreshold = w
	}
}

// WithWeightConcentrationPrior sets the Dirichlet-process concentration of
// BGMTransformer.
func WithWeightConcentrationPrior(gamma float64) MixtureOption {
	return func(c *mixtureConfig) {
		c.concentration = gamma
	}
}

// WithInverseClip controls whether InverseTransform clips residuals to
// [-1, 1] before decoding. Enabled by default.
func WithInverseClip(clip bool) MixtureOption {
	return func(c *mixtureConfig) {
		c.inverseClip = clip
	}
}

// WithMixtureLogger sets the logger used by Fit and the fitted model.
func WithMixtureLogger(l log.Logger) MixtureOption {
	return func(c *mixtureConfig) {
		c.logger = l
	}
}

func newMixtureConfig(kind mixtureKind, nComponents int, opts []MixtureOption) (mixtureConfig, error) {
	c := mixtureConfig{
		kind:            kind,
		nComponents:     nComponents,
		residualScale:   defaultResidualScale,
		maxIter:         100,
		tol:             1e-3,
		weightThreshold: defaultWeightThreshold,
		concentration:   defaultConcentration,
		inverseClip:     true,
	}
	for _, opt := range opts {
		opt(&c)
	}

	switch {
	case c.nComponents < 1:
		return c, errors.NewValidationError("n_components", "must be at least 1", c.nComponents)
	case !(c.residualScale > 0):
		return c, errors.NewValidationError("residual_scale", "must be positive", c.residualScale)
	case c.maxIter < 1:
		return c, errors.NewValidationError("max_iter", "must be at least 1", c.maxIter)
	case c.tol < 0:
		return c, errors.NewValidationError("tol", "must be non-negative", c.tol)
	case c.weightThreshold < 0 || c.weightThreshold >= 1:
		return c, errors.NewValidationError("weight_threshold", "must be in [0, 1)", c.weightThreshold)
	case !(c.concentration > 0):
		return c, errors.NewValidationError("weight_concentration_prior", "must be positive", c.concentration)
	}
	return c, nil
}

// GMMTransformer encodes continuous columns with a fixed-size Gaussian
// mixture fitted by expectation maximization.
type GMMTransformer struct {
	mixtureConfig
}

// NewGMMTransformer creates a GMMTransformer with 5 components by default.
func NewGMMTransformer(opts ...MixtureOption) (*GMMTransformer, error) {
	c, err := newMixtureConfig(gmmKind, defaultGMMComponents, opts)
	if err != nil {
		return nil, err
	}
	return &GMMTransformer{mixtureConfig: c}, nil
}

// Fit fits one mixture per continuous column.
func (t *GMMTransformer) Fit(df *frame.Frame) (*MixtureModel, error) {
	return t.fit(df)
}

// BGMTransformer encodes continuous columns with a variational Bayesian
// Gaussian mixture and keeps only components whose weight exceeds the
// threshold.
type BGMTransformer struct {
	mixtureConfig
}

// NewBGMTransformer creates a BGMTransformer with at most 10 components,
// concentration prior 0.001 and pruning threshold 0.005 by default.
func NewBGMTransformer(opts ...MixtureOption) (*BGMTransformer, error) {
	c, err := newMixtureConfig(bgmKind, defaultBGMComponents, opts)
	if err != nil {
		return nil, err
	}
	return &BGMTransformer{mixtureConfig: c}, nil
}

// Fit fits one pruned Bayesian mixture per continuous column.
func (t *BGMTransformer) Fit(df *frame.Frame) (*MixtureModel, error) {
	return t.fit(df)
}

// MixtureModel is a fitted GMMTransformer or BGMTransformer.
type MixtureModel struct {
	model.BaseEstimator

	Name     string
	Metadata []ColumnMeta
	// Modes holds the surviving components of every continuous column;
	// entries of categorical columns are empty.
	Modes         [][]mixture.Component
	ResidualScale float64
	InverseClip   bool
	Blocks        []OutputBlock

	logger log.Logger
}

func (c *mixtureConfig) fit(df *frame.Frame) (*MixtureModel, error) {
	start := time.Now()
	name := c.kind.String()
	meta, err := GetMetadata(df)
	if err != nil {
		return nil, err
	}
	logger := loggerOr(c.logger).With(log.ModelNameKey, name)

	modes := make([][]mixture.Component, len(meta))
	err = parallel.ForEach(len(meta), parallelColumnThreshold, func(j int) error {
		if meta[j].Kind != Continuous {
			return nil
		}
		return errors.SafeExecute(name+".Fit", func() error {
			comps, err := c.fitColumn(df.Column(j).Values(), c.randomState+int64(j), logger.With(log.ColumnKey, meta[j].Name))
			if err != nil {
				return errors.Wrapf(err, "column '%s'", meta[j].Name)
			}
			modes[j] = comps
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m := &MixtureModel{
		Name:          name,
		Metadata:      meta,
		Modes:         modes,
		ResidualScale: c.residualScale,
		InverseClip:   c.inverseClip,
		logger:        c.logger,
	}
	for j, cm := range meta {
		switch cm.Kind {
		case Continuous:
			m.Blocks = append(m.Blocks,
				OutputBlock{Column: cm.Name, Width: 1, Activation: Tanh},
				OutputBlock{Column: cm.Name, Width: len(modes[j]), Activation: Softmax},
			)
		case Categorical:
			m.Blocks = append(m.Blocks, OutputBlock{Column: cm.Name, Width: cm.Size, Activation: Softmax})
		}
	}
	m.SetFitted()

	logDone(loggerOr(c.logger), name, log.OperationFit, df.NRows(), len(meta), m.OutputDim(), start)
	return m, nil
}

// fitColumn fits the mixture of one continuous column. A constant column
// becomes a single zero-width component at the constant.
func (c *mixtureConfig) fitColumn(x []float64, seed int64, logger log.Logger) ([]mixture.Component, error) {
	if floats.Min(x) == floats.Max(x) {
		logger.Debug("constant column, using a single degenerate mode", log.ComponentsKey, 1)
		return []mixture.Component{{Mean: x[0], Std: 0, Weight: 1}}, nil
	}

	opts := []mixture.Option{
		mixture.WithNComponents(c.nComponents),
		mixture.WithMaxIter(c.maxIter),
		mixture.WithTol(c.tol),
		mixture.WithRandomState(seed),
	}

	var (
		density interface {
			mixture.Density
			Fit(x []float64) error
		}
		comps []mixture.Component
	)
	if c.kind == bgmKind {
		density = mixture.NewBayesianGaussianMixture(append(opts, mixture.WithWeightConcentrationPrior(c.concentration))...)
	} else {
		density = mixture.NewGaussianMixture(opts...)
	}
	if err := density.Fit(x); err != nil {
		return nil, err
	}

	comps = density.Components()
	if c.kind == bgmKind {
		comps = pruneComponents(comps, c.weightThreshold)
	}

	logger.Debug("mixture fitted",
		log.ComponentsKey, len(comps),
		log.ConvergedKey, density.Converged(),
		log.IterationKey, density.NIter(),
	)
	return comps, nil
}

// pruneComponents keeps the components whose weight exceeds threshold, or
// the heaviest one if none does, and renormalises the kept weights.
func pruneComponents(comps []mixture.Component, threshold float64) []mixture.Component {
	kept := make([]mixture.Component, 0, len(comps))
	for _, c := range comps {
		if c.Weight > threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		weights := make([]float64, len(comps))
		for k, c := range comps {
			weights[k] = c.Weight
		}
		kept = append(kept, comps[floats.MaxIdx(weights)])
	}

	total := 0.0
	for _, c := range kept {
		total += c.Weight
	}
	for k := range kept {
		kept[k].Weight /= total
	}
	return kept
}

// Meta returns a copy of the fitted column descriptors.
func (m *MixtureModel) Meta() []ColumnMeta { return copyMeta(m.Metadata) }

// OutputInfo returns the block layout: a Tanh residual followed by a
// Softmax mode indicator for continuous columns, a Softmax block for
// categorical ones.
func (m *MixtureModel) OutputInfo() []OutputBlock { return append([]OutputBlock(nil), m.Blocks...) }

// OutputDim returns the width of the encoded matrix.
func (m *MixtureModel) OutputDim() int { return outputDim(m.Blocks) }

// Components returns the surviving components of column j, nil when the
// model is not fitted or j is not a continuous column.
func (m *MixtureModel) Components(j int) []mixture.Component {
	if !m.IsFitted() || j < 0 || j >= len(m.Modes) || len(m.Modes[j]) == 0 {
		return nil
	}
	return append([]mixture.Component(nil), m.Modes[j]...)
}

// Transform encodes every continuous value as a residual plus a one-hot
// indicator of its most probable mode.
func (m *MixtureModel) Transform(df *frame.Frame) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MixtureModel", "Transform")
	}
	start := time.Now()
	op := m.Name + ".Transform"
	if err := checkFrame(op, m.Metadata, df); err != nil {
		return nil, err
	}

	n := df.NRows()
	out := mat.NewDense(n, m.OutputDim(), nil)
	pos := 0
	for j, cm := range m.Metadata {
		col := df.Column(j)
		switch cm.Kind {
		case Continuous:
			comps := m.Modes[j]
			for i, v := range col.Values() {
				k := mixture.MostProbable(comps, v)
				out.Set(i, pos, m.residual(comps[k], v))
				out.Set(i, pos+1+k, 1)
			}
			pos += 1 + len(comps)
		case Categorical:
			codes, err := categoryCodes(op, cm, col)
			if err != nil {
				return nil, err
			}
			for i, code := range codes {
				out.Set(i, pos+code, 1)
			}
			pos += cm.Size
		}
	}

	logDone(loggerOr(m.logger), m.Name, log.OperationTransform, n, len(m.Metadata), m.OutputDim(), start)
	return out, nil
}

func (m *MixtureModel) residual(c mixture.Component, v float64) float64 {
	if c.Std == 0 {
		return 0
	}
	return errors.ClipValue((v-c.Mean)/(m.ResidualScale*c.Std), -1, 1)
}

// InverseTransform decodes value = μ + r·k·σ using the arg-max mode of each
// indicator block; categorical blocks decode as in GeneralModel.
func (m *MixtureModel) InverseTransform(X mat.Matrix) (*frame.Frame, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MixtureModel", "InverseTransform")
	}
	n, err := checkWidth(m.Name+".InverseTransform", X, m.OutputDim())
	if err != nil {
		return nil, err
	}

	cols := make([]*frame.Column, len(m.Metadata))
	pos := 0
	for j, cm := range m.Metadata {
		switch cm.Kind {
		case Continuous:
			comps := m.Modes[j]
			modes := argmaxBlock(X, n, pos+1, len(comps))
			values := make([]float64, n)
			for i, k := range modes {
				values[i] = m.decode(comps[k], X.At(i, pos))
			}
			if cols[j], err = decodedColumn(cm, values, nil); err != nil {
				return nil, err
			}
			pos += 1 + len(comps)
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

func (m *MixtureModel) decode(c mixture.Component, r float64) float64 {
	if c.Std == 0 {
		return c.Mean
	}
	if m.InverseClip || math.IsNaN(r) {
		r = errors.ClipValue(r, -1, 1)
	}
	return c.Mean + r*m.ResidualScale*c.Std
}

func (c *mixtureConfig) params() map[string]interface{} {
	p := map[string]interface{}{
		"n_components":   c.nComponents,
		"residual_scale": c.residualScale,
		"max_iter":       c.maxIter,
		"tol":            c.tol,
		"random_state":   c.randomState,
		"inverse_clip":   c.inverseClip,
	}
	if c.kind == bgmKind {
		p["weight_threshold"] = c.weightThreshold
		p["weight_concentration_prior"] = c.concentration
	}
	return p
}

// GetParams returns the transformer configuration.
func (t *GMMTransformer) GetParams() map[string]interface{} { return t.params() }

// String returns a string representation of the transformer.
func (t *GMMTransformer) String() string {
	return fmt.Sprintf("GMMTransformer(n_components=%d, residual_scale=%g)", t.nComponents, t.residualScale)
}

// GetParams returns the transformer configuration.
func (t *BGMTransformer) GetParams() map[string]interface{} { return t.params() }

// String returns a string representation of the transformer.
func (t *BGMTransformer) String() string {
	return fmt.Sprintf("BGMTransformer(n_components=%d, weight_threshold=%g, residual_scale=%g)",
		t.nComponents, t.weightThreshold, t.residualScale)
}
