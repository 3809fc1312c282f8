package metrics

import (
	"gonum.org/v1/gonum/mat"
)

// Accuracy は正解率を計算する
// カテゴリ列の復元ではカテゴリコードをそのまま比較する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}
