package model

// ParameterGetter はハイパーパラメータを公開する設定型のインターフェース
//
// キーは scikit-learn と同じ snake_case を使う。
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
