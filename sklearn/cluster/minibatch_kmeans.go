package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsynth/core/model"
	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// MiniBatchKMeans はミニバッチK-meansクラスタリング
// scikit-learnのMiniBatchKMeansと互換性を持つ。混合分布の初期責務の計算に使う
type MiniBatchKMeans struct {
	model.BaseEstimator

	// ハイパーパラメータ
	nClusters        int     // クラスタ数
	init             string  // 初期化方法: "k-means++", "random"
	maxIter          int     // 最大イテレーション数
	batchSize        int     // ミニバッチサイズ
	randomState      int64   // 乱数シード
	tol              float64 // 収束判定の許容誤差
	maxNoImprovement int     // 改善なしの最大イテレーション数
	nInit            int     // 異なる初期化での実行回数

	// 学習パラメータ
	clusterCenters_ [][]float64 // クラスタ中心（nClusters x nFeatures）
	labels_         []int       // 各サンプルのクラスタラベル
	inertia_        float64     // クラスタ内平方和誤差
	nIter_          int         // 実行されたイテレーション数

	mu         sync.RWMutex
	rng        *rand.Rand
	nFeatures_ int
}

// KMeansOption はMiniBatchKMeansの設定オプション
type KMeansOption func(*MiniBatchKMeans)

// NewMiniBatchKMeans は新しいMiniBatchKMeansを作成
// 乱数シードの既定値は0で、同じ入力に対して常に同じ結果を返す
func NewMiniBatchKMeans(options ...KMeansOption) *MiniBatchKMeans {
	kmeans := &MiniBatchKMeans{
		nClusters:        8,
		init:             "k-means++",
		maxIter:          100,
		batchSize:        1024,
		randomState:      0,
		tol:              0.0,
		maxNoImprovement: 10,
		nInit:            3,
	}

	for _, opt := range options {
		opt(kmeans)
	}

	kmeans.rng = rand.New(rand.NewSource(kmeans.randomState))
	return kmeans
}

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.nClusters = n
	}
}

// WithKMeansInit は初期化方法を設定
func WithKMeansInit(init string) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.init = init
	}
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.maxIter = maxIter
	}
}

// WithKMeansBatchSize はミニバッチサイズを設定
func WithKMeansBatchSize(batchSize int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.batchSize = batchSize
	}
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.randomState = seed
	}
}

// WithKMeansNInit は初期化の試行回数を設定
func WithKMeansNInit(nInit int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.nInit = nInit
	}
}

// Fit はバッチ学習でモデルを訓練
func (kmeans *MiniBatchKMeans) Fit(X mat.Matrix) error {
	kmeans.mu.Lock()
	defer kmeans.mu.Unlock()

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("MiniBatchKMeans.Fit", "empty data", errors.ErrEmptyData)
	}
	if kmeans.nClusters < 1 {
		return errors.NewValidationError("n_clusters", "must be at least 1", kmeans.nClusters)
	}
	if rows < kmeans.nClusters {
		return errors.NewValueError("MiniBatchKMeans.Fit",
			fmt.Sprintf("n_samples=%d should be >= n_clusters=%d", rows, kmeans.nClusters))
	}
	kmeans.nFeatures_ = cols

	// 複数回実行して最良の結果を選択
	bestInertia := math.Inf(1)
	for run := 0; run < kmeans.nInit; run++ {
		centers, nIter := kmeans.fitSingleRun(X)
		inertia := computeInertia(X, centers)
		if inertia < bestInertia {
			bestInertia = inertia
			kmeans.clusterCenters_ = centers
			kmeans.nIter_ = nIter
		}
	}

	kmeans.inertia_ = bestInertia
	kmeans.labels_ = make([]int, rows)
	for i := 0; i < rows; i++ {
		kmeans.labels_[i] = findNearestCluster(mat.Row(nil, i, X), kmeans.clusterCenters_)
	}

	kmeans.SetFitted()
	return nil
}

// fitSingleRun は単一回の学習を実行
func (kmeans *MiniBatchKMeans) fitSingleRun(X mat.Matrix) ([][]float64, int) {
	rows, cols := X.Dims()

	centers := kmeans.initializeCenters(X)
	counts := make([]int, kmeans.nClusters)

	prevInertia := math.Inf(1)
	noImprovementCount := 0
	nIter := 0

	for iter := 0; iter < kmeans.maxIter; iter++ {
		nIter = iter + 1
		for _, idx := range kmeans.selectMiniBatch(rows) {
			sample := mat.Row(nil, idx, X)
			nearest := findNearestCluster(sample, centers)

			// クラスタ中心の更新（学習率は割り当て回数の逆数）
			counts[nearest]++
			eta := 1.0 / float64(counts[nearest])
			for j := 0; j < cols; j++ {
				centers[nearest][j] = (1-eta)*centers[nearest][j] + eta*sample[j]
			}
		}

		// 収束判定
		inertia := computeInertia(X, centers)
		if prevInertia-inertia <= kmeans.tol {
			noImprovementCount++
			if noImprovementCount >= kmeans.maxNoImprovement {
				break
			}
		} else {
			noImprovementCount = 0
		}
		prevInertia = inertia
	}

	return centers, nIter
}

// Predict は各サンプルの最近傍クラスタ番号を返す
func (kmeans *MiniBatchKMeans) Predict(X mat.Matrix) ([]int, error) {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if !kmeans.IsFitted() {
		return nil, errors.NewNotFittedError("MiniBatchKMeans", "Predict")
	}
	rows, cols := X.Dims()
	if cols != kmeans.nFeatures_ {
		return nil, errors.NewDimensionError("MiniBatchKMeans.Predict", kmeans.nFeatures_, cols, 1)
	}

	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		labels[i] = findNearestCluster(mat.Row(nil, i, X), kmeans.clusterCenters_)
	}
	return labels, nil
}

// ClusterCenters は学習されたクラスタ中心のコピーを返す
func (kmeans *MiniBatchKMeans) ClusterCenters() [][]float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	centers := make([][]float64, len(kmeans.clusterCenters_))
	for i := range kmeans.clusterCenters_ {
		centers[i] = append([]float64(nil), kmeans.clusterCenters_[i]...)
	}
	return centers
}

// Labels は学習データのクラスタラベルを返す
func (kmeans *MiniBatchKMeans) Labels() []int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return append([]int(nil), kmeans.labels_...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (kmeans *MiniBatchKMeans) Inertia() float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.inertia_
}

// NIterations は最良の試行で実行されたイテレーション数を返す
func (kmeans *MiniBatchKMeans) NIterations() int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.nIter_
}

// initializeCenters はクラスタ中心を初期化
func (kmeans *MiniBatchKMeans) initializeCenters(X mat.Matrix) [][]float64 {
	if kmeans.init == "random" {
		rows, _ := X.Dims()
		centers := make([][]float64, kmeans.nClusters)
		for i := range centers {
			centers[i] = mat.Row(nil, kmeans.rng.Intn(rows), X)
		}
		return centers
	}
	return kmeans.initKMeansPlusPlus(X)
}

// initKMeansPlusPlus はk-means++初期化を実行
func (kmeans *MiniBatchKMeans) initKMeansPlusPlus(X mat.Matrix) [][]float64 {
	rows, _ := X.Dims()
	centers := make([][]float64, kmeans.nClusters)
	centers[0] = mat.Row(nil, kmeans.rng.Intn(rows), X)

	distances := make([]float64, rows)
	for c := 1; c < kmeans.nClusters; c++ {
		// 各サンプルから最近傍クラスタ中心までの距離の二乗
		totalDistance := 0.0
		for i := 0; i < rows; i++ {
			sample := mat.Row(nil, i, X)
			minDist := math.Inf(1)
			for j := 0; j < c; j++ {
				minDist = math.Min(minDist, euclideanDistance(sample, centers[j]))
			}
			distances[i] = minDist * minDist
			totalDistance += distances[i]
		}

		// 距離の二乗に比例した確率でサンプルを選択
		target := kmeans.rng.Float64() * totalDistance
		cumSum := 0.0
		selectedIdx := rows - 1
		for i := 0; i < rows; i++ {
			cumSum += distances[i]
			if cumSum > target {
				selectedIdx = i
				break
			}
		}
		centers[c] = mat.Row(nil, selectedIdx, X)
	}

	return centers
}

// selectMiniBatch はミニバッチのサンプルインデックスを選択
func (kmeans *MiniBatchKMeans) selectMiniBatch(nSamples int) []int {
	batchSize := kmeans.batchSize
	if batchSize > nSamples {
		batchSize = nSamples
	}
	return kmeans.rng.Perm(nSamples)[:batchSize]
}

func findNearestCluster(sample []float64, centers [][]float64) int {
	minDist := math.Inf(1)
	nearest := 0
	for c, center := range centers {
		if dist := euclideanDistance(sample, center); dist < minDist {
			minDist = dist
			nearest = c
		}
	}
	return nearest
}

func computeInertia(X mat.Matrix, centers [][]float64) float64 {
	rows, _ := X.Dims()
	inertia := 0.0
	for i := 0; i < rows; i++ {
		sample := mat.Row(nil, i, X)
		dist := euclideanDistance(sample, centers[findNearestCluster(sample, centers)])
		inertia += dist * dist
	}
	return inertia
}

func euclideanDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
