package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"invalid level", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.level, "")
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if log == nil {
				t.Error("New() returned nil")
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	ctx := context.Background()
	log, err := New("info", "")
	if err != nil {
		t.Fatal(err)
	}

	// These should not panic
	log.Debug(ctx, "debug message")
	log.Info(ctx, "info message")
	log.Warn(ctx, "warn message")
	log.Error(ctx, "error message")

	// Test with formatting
	log.Info(ctx, "formatted message: %s %d", "test", 123)
}

func TestRunLogTee(t *testing.T) {
	ctx := context.Background()
	runLog := filepath.Join(t.TempDir(), "run.log")

	log, err := New("info", runLog)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info(ctx, "batch finished: %d item(s)", 3)
	log.Debug(ctx, "should be filtered at info level")
	_ = log.Sync()

	data, err := os.ReadFile(runLog)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(string(data), "batch finished: 3 item(s)") {
		t.Errorf("run log missing info line, got: %q", string(data))
	}
	if strings.Contains(string(data), "should be filtered") {
		t.Errorf("run log contains debug line at info level")
	}
}

func TestRunLogAppends(t *testing.T) {
	ctx := context.Background()
	runLog := filepath.Join(t.TempDir(), "run.log")

	for i := 0; i < 2; i++ {
		log, err := New("info", runLog)
		if err != nil {
			t.Fatal(err)
		}
		log.Info(ctx, "run %d", i)
		_ = log.Sync()
	}

	data, err := os.ReadFile(runLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "run 0") || !strings.Contains(string(data), "run 1") {
		t.Errorf("run log should accumulate across instances, got: %q", string(data))
	}
}
