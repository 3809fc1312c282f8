package transformer

import "fmt"

// Activation tells a downstream model how to produce an output block.
type Activation int

const (
	// Tanh marks a scalar in [-1, 1].
	Tanh Activation = iota
	// Sigmoid marks a scalar in [0, 1].
	Sigmoid
	// Softmax marks a one-hot (or soft) block.
	Softmax
	// Ordinal marks an integer bin index.
	Ordinal
)

// String returns the lower-case activation name.
func (a Activation) String() string {
	switch a {
	case Tanh:
		return "tanh"
	case Sigmoid:
		return "sigmoid"
	case Softmax:
		return "softmax"
	case Ordinal:
		return "ordinal"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// OutputBlock is a contiguous range of encoded columns.
type OutputBlock struct {
	Column     string
	Width      int
	Activation Activation
}

func outputDim(blocks []OutputBlock) int {
	dim := 0
	for _, b := range blocks {
		dim += b.Width
	}
	return dim
}
