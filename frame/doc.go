// Package frame provides a minimal column-oriented table used as the input
// and output of the tabular transformers.
//
// A Frame is a thin adapter over an Apache Arrow record: every Column wraps
// an immutable arrow array and its schema field. Numeric columns (Float64,
// Int64) are float64 / int64 arrays; categorical columns are int32 codes
// into a category vocabulary stored in the field metadata, like a pandas
// Categorical. String and Datetime columns can be stored but are rejected by
// metadata extraction. Records produced elsewhere can be adopted with
// FromRecord.
//
//	df, err := frame.New(
//	    frame.NewFloatColumn("age", []float64{23, 41, 37}),
//	    frame.NewCategoricalColumn("color", []string{"red", "blue", "red"}),
//	)
package frame
