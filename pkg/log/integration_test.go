package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorTypeKey, "TEST_ERROR")

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField("error", "test error") {
		t.Error("Expected leading error to be recorded")
	}
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "GMMTransformer",
		ComponentKey, "transformer",
	)
	contextLogger.Info("contextual message", OperationKey, OperationFit)

	if !testLogger.ContainsField(ModelNameKey, "GMMTransformer") {
		t.Error("Model name context not found")
	}
	if !testLogger.ContainsField(OperationKey, OperationFit) {
		t.Error("Operation field not found")
	}
}

func TestLoggerEnabled(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelWarn)

	ctx := context.Background()
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !testLogger.Enabled(ctx, LevelError) {
		t.Error("error should be enabled at warn level")
	}

	testLogger.Info("dropped")
	if buffer.Len() != 0 {
		t.Error("info record should not be written at warn level")
	}
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			testLogger.With(ColumnKey, fmt.Sprintf("c%d", i)).Debug("column fitted")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("log output is not valid JSON lines: %v", err)
	}
	if len(entries) != 16 {
		t.Errorf("expected 16 entries, got %d", len(entries))
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("hidden")
	logger.With(ModelNameKey, "DiscretizeTransformer").Info("fit done", SamplesKey, 10, "dangling")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered at info level")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
	if entry["message"] != "fit done" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ModelNameKey] != "DiscretizeTransformer" {
		t.Errorf("%s = %v", ModelNameKey, entry[ModelNameKey])
	}
	if entry[SamplesKey] != 10.0 {
		t.Errorf("%s = %v", SamplesKey, entry[SamplesKey])
	}
	if !logger.Enabled(context.Background(), LevelWarn) || logger.Enabled(context.Background(), LevelDebug) {
		t.Error("Enabled does not match configured level")
	}
}

func TestZerologWarningHook(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)
	logger.InstallWarningHook()
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })

	errors.Warn(errors.NewConvergenceWarning("GaussianMixture", 100, ""))

	out := buf.String()
	if !strings.Contains(out, `"algorithm":"GaussianMixture"`) {
		t.Errorf("expected structured warning fields, got %q", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn level, got %q", out)
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	testLogger, _ := NewTestLogger(LevelDebug)
	SetLogger(testLogger)
	GetLogger().Info("via global")

	if !testLogger.ContainsMessage("via global") {
		t.Error("global logger was not replaced")
	}
}

func TestGlobalLoggerProvider(t *testing.T) {
	t.Cleanup(func() { SetLoggerProvider(nil) })

	provider, buffer := NewTestLoggerProvider(LevelDebug)
	SetLoggerProvider(provider)
	GetLoggerWithName("transformer").Debug("named")
	if !strings.Contains(buffer.String(), `"ml.component":"transformer"`) {
		t.Errorf("component field missing: %q", buffer.String())
	}

	provider.SetLevel(LevelError)
	buffer.Reset()
	GetLoggerWithName("transformer").Info("dropped")
	provider.GetLogger().Warn("dropped too")
	if buffer.Len() != 0 {
		t.Errorf("records below the provider level were written: %q", buffer.String())
	}

	SetLoggerProvider(nil)
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })
	fallback, _ := NewTestLogger(LevelDebug)
	SetLogger(fallback)
	GetLoggerWithName("frame").Info("fallback")
	if !fallback.ContainsField(ComponentKey, "frame") {
		t.Error("without a provider the global logger should be used")
	}
}

func TestErrFmtHandlerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Error("transform failed", ErrAttr(errors.NewValueError("Transform", "column mismatch")))

	if !strings.Contains(buf.String(), `"`+StacktraceAttrKey+`"`) {
		t.Errorf("expected stacktrace attribute, got %s", buf.String())
	}
}

func TestToLogLevel(t *testing.T) {
	if lvl, err := ToLogLevel("debug"); err != nil || lvl != slog.LevelDebug {
		t.Errorf("ToLogLevel(debug) = %v, %v", lvl, err)
	}
	if _, err := ToLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
