package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "empty data",
			err:      fmt.Errorf("test error"),
			wantMsg:  "tabsynth: Fit: empty data: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Transform",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "tabsynth: Transform: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Transform", 3, 2, 1)

	want := "tabsynth: Transform: dimension mismatch on axis 1 (features). Expected 3, got 2"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("DiscretizeModel", "Transform")

	want := "tabsynth: DiscretizeModel: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewTypeError(t *testing.T) {
	err := NewTypeError("GetMetadata", "comment", "string")

	want := "tabsynth: GetMetadata: column 'comment' has unsupported type string (expected numeric or category)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var typeErr *TypeError
	if !As(err, &typeErr) {
		t.Error("Error should be castable to *TypeError")
	}
	if IsValueError(err) {
		t.Error("TypeError must not be classified as a value error")
	}
}

func TestNewValueError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		param   string
		value   interface{}
		message string
		wantMsg string
	}{
		{
			name:    "with message",
			op:      "NewDiscretizeTransformer",
			param:   "n_bins",
			value:   1,
			message: "must be at least 2",
			wantMsg: "tabsynth: NewDiscretizeTransformer: n_bins: 1 (must be at least 2)",
		},
		{
			name:    "without message",
			op:      "Transform",
			param:   "column",
			value:   "age",
			message: "",
			wantMsg: "tabsynth: Transform: column: age",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.message != "" {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v (%s)", tt.param, tt.value, tt.message))
			} else {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v", tt.param, tt.value))
			}

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			var valErr *ValueError
			if !As(err, &valErr) {
				t.Error("Error should be castable to *ValueError")
			}
		})
	}
}

func TestIsValueError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"value error", NewValueError("op", "bad"), true},
		{"validation error", NewValidationError("n_bins", "must be at least 2", 1), true},
		{"dimension error", NewDimensionError("op", 2, 3, 1), true},
		{"wrapped dimension error", Wrap(NewDimensionError("op", 2, 3, 1), "context"), true},
		{"not fitted", NewNotFittedError("m", "Transform"), false},
		{"plain", New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValueError(tt.err); got != tt.want {
				t.Errorf("IsValueError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("GaussianMixture", 100, "lower bound still changing")

	want := "GaussianMixture failed to converge after 100 iterations: lower bound still changing"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	var convWarn *ConvergenceWarning
	if !As(warn, &convWarn) {
		t.Error("Warning should be castable to *ConvergenceWarning")
	}
}

func TestWarnRouting(t *testing.T) {
	var handled, zerologged []error
	SetWarningHandler(func(w error) { handled = append(handled, w) })
	t.Cleanup(func() {
		SetWarningHandler(func(w error) {})
		SetZerologWarnFunc(nil)
	})

	Warn(NewDataConversionWarning("float64", "constant", "zero variance"))
	if len(handled) != 1 {
		t.Fatalf("expected fallback handler to receive 1 warning, got %d", len(handled))
	}

	SetZerologWarnFunc(func(w error) { zerologged = append(zerologged, w) })
	Warn(NewConvergenceWarning("EM", 10, ""))
	if len(zerologged) != 1 || len(handled) != 1 {
		t.Errorf("zerolog hook should take precedence: zerolog=%d handler=%d", len(zerologged), len(handled))
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "in GMMTransformer.Fit")

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in GMMTransformer.Fit") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrUnknownCategory, "column %s: label %q", "color", "purple")

	if !Is(wrapped, ErrUnknownCategory) {
		t.Error("Expected Is(wrapped, ErrUnknownCategory) to be true")
	}
	expectedMsg := `column color: label "purple"`
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestNumericalHelpers(t *testing.T) {
	if got := ClipValue(1.7, -1, 1); got != 1 {
		t.Errorf("ClipValue(1.7) = %v, want 1", got)
	}
	if got := ClipValue(-3, -1, 1); got != -1 {
		t.Errorf("ClipValue(-3) = %v, want -1", got)
	}
	if got := ClipValue(math.NaN(), -1, 1); got != -1 {
		t.Errorf("ClipValue(NaN) = %v, want -1", got)
	}

	lse := LogSumExp([]float64{math.Log(1), math.Log(2), math.Log(3)})
	if math.Abs(lse-math.Log(6)) > 1e-12 {
		t.Errorf("LogSumExp = %v, want %v", lse, math.Log(6))
	}
	if !math.IsInf(LogSumExp([]float64{math.Inf(-1), math.Inf(-1)}), -1) {
		t.Error("LogSumExp of -Inf values should be -Inf")
	}
	if math.IsInf(StabilizeLog(0), 0) {
		t.Error("StabilizeLog(0) should be finite")
	}

	if err := CheckScalar("lower_bound", math.NaN(), 3); err == nil {
		t.Error("CheckScalar should reject NaN")
	}
	if err := CheckNumericalStability("means", []float64{1, 2, math.Inf(1)}, 0); err == nil {
		t.Error("CheckNumericalStability should reject Inf")
	}
}
