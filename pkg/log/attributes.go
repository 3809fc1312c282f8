// Package log defines standard attribute keys for transformer operations.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so logs can be filtered by category.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the transformer type.
	// Examples: "DiscretizeTransformer", "BGMTransformer"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "transform", "inverse_transform"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// ColumnKey names the table column being processed.
	ColumnKey = "data.column"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows in the table.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of columns in the table.
	FeaturesKey = "data.features"

	// OutputDimKey indicates the width of the encoded matrix.
	OutputDimKey = "data.output_dim"
)

// Fitting progress
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the number of EM / variational iterations run.
	IterationKey = "training.iteration"

	// ComponentsKey records the number of surviving mixture components.
	ComponentsKey = "mixture.components"

	// ConvergedKey records whether an iterative fit converged.
	ConvergedKey = "training.converged"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit              = "fit"
	OperationTransform        = "transform"
	OperationInverseTransform = "inverse_transform"
)
