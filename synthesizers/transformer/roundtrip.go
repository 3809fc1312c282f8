package transformer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/frame"
	"github.com/YuminosukeSato/tabsynth/metrics"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// ColumnError is the reconstruction error of one column after a
// Transform / InverseTransform round trip. Continuous columns report MAE,
// RMSE and MaxError; categorical columns report Accuracy.
type ColumnError struct {
	Column   string
	Kind     ColumnKind
	MAE      float64
	RMSE     float64
	MaxError float64
	Accuracy float64
}

// RoundTrip encodes df with m, decodes the result and measures the error of
// every column.
func RoundTrip(m Fitted, df *frame.Frame) ([]ColumnError, error) {
	X, err := m.Transform(df)
	if err != nil {
		return nil, err
	}
	back, err := m.InverseTransform(X)
	if err != nil {
		return nil, err
	}

	meta := m.Meta()
	report := make([]ColumnError, len(meta))
	for j, cm := range meta {
		orig, rec := df.Column(j), back.Column(j)
		n := orig.Len()
		truth := mat.NewVecDense(n, nil)
		pred := mat.NewVecDense(n, nil)
		ce := ColumnError{Column: cm.Name, Kind: cm.Kind}

		if cm.Kind == Categorical {
			codes, err := categoryCodes("RoundTrip", cm, orig)
			if err != nil {
				return nil, err
			}
			recCodes := rec.Codes()
			for i := 0; i < n; i++ {
				truth.SetVec(i, float64(codes[i]))
				pred.SetVec(i, float64(recCodes[i]))
			}
			if ce.Accuracy, err = metrics.Accuracy(truth, pred); err != nil {
				return nil, errors.Wrapf(err, "column '%s'", cm.Name)
			}
			report[j] = ce
			continue
		}

		origValues, recValues := orig.Values(), rec.Values()
		for i := 0; i < n; i++ {
			truth.SetVec(i, origValues[i])
			pred.SetVec(i, recValues[i])
		}
		if ce.MAE, err = metrics.MAE(truth, pred); err != nil {
			return nil, errors.Wrapf(err, "column '%s'", cm.Name)
		}
		if ce.RMSE, err = metrics.RMSE(truth, pred); err != nil {
			return nil, errors.Wrapf(err, "column '%s'", cm.Name)
		}
		if ce.MaxError, err = metrics.MaxError(truth, pred); err != nil {
			return nil, errors.Wrapf(err, "column '%s'", cm.Name)
		}
		report[j] = ce
	}
	return report, nil
}
