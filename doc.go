// Package tabsynth provides the column transformation layer used by tabular
// data synthesizers: it turns a mixed continuous/categorical table into a
// dense numeric matrix suited for a generative network, and turns generated
// matrices back into tables of the original shape.
//
// Every transformer follows the same two-phase API. A configuration value is
// fitted against a frame and returns an immutable fitted model that can
// Transform and InverseTransform any number of tables with the same columns.
//
// # Installation
//
//	go get github.com/YuminosukeSato/tabsynth
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/tabsynth/frame"
//	    "github.com/YuminosukeSato/tabsynth/synthesizers/transformer"
//	)
//
//	func main() {
//	    df := frame.MustNew(
//	        frame.NewFloatColumn("income", []float64{31000, 29500, 88000, 92000}),
//	        frame.NewCategoricalColumn("sex", []string{"f", "m", "m", "f"}),
//	    )
//
//	    gmm, err := transformer.NewGMMTransformer(transformer.WithNComponents(2))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fitted, err := gmm.Fit(df)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    X, _ := fitted.Transform(df)
//	    back, _ := fitted.InverseTransform(X)
//	    fmt.Println(fitted.OutputInfo(), back.NRows())
//	}
//
// # Packages
//
//   - synthesizers/transformer: metadata extraction and the Discretize,
//     General, GMM, BGM and Tablegan transformers
//   - sklearn/mixture: one-dimensional Gaussian and Bayesian Gaussian mixtures
//   - sklearn/cluster: mini-batch k-means used to initialise the mixtures
//   - preprocessing: MinMaxScaler and KBinsDiscretizer
//   - frame: typed columnar tables
//   - metrics: round-trip error metrics
//   - core/model: fitted state and gob persistence with zstd/lz4 compression
//   - core/parallel: per-column parallel execution
//   - pkg/errors, pkg/log: structured errors, warnings and logging
//
// # License
//
// tabsynth is released under the MIT License.
package tabsynth
