package model

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は学習済みモデル型に埋め込む状態マーカー
//
// 学習済みモデルは Fit の戻り値としてのみ生成されるため、ゼロ値のまま使われた
// 場合にだけ NotFitted となる。State はgobで永続化できるよう公開フィールドにしている。
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}
