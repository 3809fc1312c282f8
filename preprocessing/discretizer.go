package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/core/model"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

var _ model.InverseTransformer = (*KBinsDiscretizer)(nil)

// digitize の許容誤差 (scikit-learn の KBinsDiscretizer と同じ値)
const (
	binRelTol = 1e-5
	binAbsTol = 1e-8
)

// KBinsDiscretizer は連続値を等幅ビンの序数に変換する
// scikit-learn の KBinsDiscretizer(encode="ordinal", strategy="uniform") 互換
type KBinsDiscretizer struct {
	model.BaseEstimator

	// NBins はビン数 (2以上)
	NBins int

	// BinEdges は特徴量ごとのビン境界 (長さ NBins+1)
	BinEdges [][]float64

	// NFeatures は特徴量の数
	NFeatures int
}

// NewKBinsDiscretizer は新しいKBinsDiscretizerを作成する
//
// 使用例:
//
//	kb, err := preprocessing.NewKBinsDiscretizer(5)
//	err = kb.Fit(X)
//	Xt, err := kb.Transform(X)
func NewKBinsDiscretizer(nBins int) (*KBinsDiscretizer, error) {
	if nBins < 2 {
		return nil, errors.NewValidationError("n_bins", "must be at least 2", nBins)
	}
	return &KBinsDiscretizer{NBins: nBins}, nil
}

// Fit は特徴量ごとに [min, max] を NBins 等分した境界を計算する
// 境界は min + i*(max-min)/NBins で、最後の境界は max に一致させる
func (k *KBinsDiscretizer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("KBinsDiscretizer.Fit", "empty data", errors.ErrEmptyData)
	}
	if k.NBins < 2 {
		return errors.NewValidationError("n_bins", "must be at least 2", k.NBins)
	}

	k.NFeatures = c
	k.BinEdges = make([][]float64, c)
	for j := 0; j < c; j++ {
		min, max := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			min = math.Min(min, v)
			max = math.Max(max, v)
		}

		edges := make([]float64, k.NBins+1)
		width := (max - min) / float64(k.NBins)
		for b := 0; b < k.NBins; b++ {
			edges[b] = min + float64(b)*width
		}
		edges[k.NBins] = max
		k.BinEdges[j] = edges

		if max == min {
			errors.Warn(errors.NewDataConversionWarning("continuous", "single bin",
				fmt.Sprintf("feature %d is constant", j)))
		}
	}

	k.SetFitted()
	return nil
}

// Transform は各値をビン番号 (0..NBins-1) に変換する
// 最右ビンは両端閉区間なので最大値は NBins-1 になる
func (k *KBinsDiscretizer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !k.IsFitted() {
		return nil, errors.NewNotFittedError("KBinsDiscretizer", "Transform")
	}
	r, c := X.Dims()
	if c != k.NFeatures {
		return nil, errors.NewDimensionError("KBinsDiscretizer.Transform", k.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			result.Set(i, j, float64(k.BinIndex(j, X.At(i, j))))
		}
	}
	return result, nil
}

// BinIndex は特徴量 j の値 v が属するビン番号を返す
func (k *KBinsDiscretizer) BinIndex(j int, v float64) int {
	edges := k.BinEdges[j]
	if edges[0] == edges[k.NBins] {
		return 0
	}
	inner := edges[1:]
	x := v + binAbsTol + binRelTol*math.Abs(v)
	idx := sort.Search(len(inner), func(b int) bool { return inner[b] > x })
	if idx > k.NBins-1 {
		idx = k.NBins - 1
	}
	return idx
}

// FitTransform は学習と変換を同時に行う
func (k *KBinsDiscretizer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := k.Fit(X); err != nil {
		return nil, err
	}
	return k.Transform(X)
}

// InverseTransform はビン番号をビン中心値に戻す
// 範囲外の番号は [0, NBins-1] に切り詰める
func (k *KBinsDiscretizer) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !k.IsFitted() {
		return nil, errors.NewNotFittedError("KBinsDiscretizer", "InverseTransform")
	}
	r, c := X.Dims()
	if c != k.NFeatures {
		return nil, errors.NewDimensionError("KBinsDiscretizer.InverseTransform", k.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		edges := k.BinEdges[j]
		for i := 0; i < r; i++ {
			b := int(math.Round(errors.ClipValue(X.At(i, j), 0, float64(k.NBins-1))))
			result.Set(i, j, (edges[b]+edges[b+1])/2)
		}
	}
	return result, nil
}

// GetParams はパラメータを取得する
func (k *KBinsDiscretizer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_bins":   k.NBins,
		"encode":   "ordinal",
		"strategy": "uniform",
	}
}

// String は文字列表現を返す
func (k *KBinsDiscretizer) String() string {
	return fmt.Sprintf("KBinsDiscretizer(n_bins=%d, encode='ordinal', strategy='uniform')", k.NBins)
}
