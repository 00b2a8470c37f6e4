package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNoopBeforeInit(t *testing.T) {
	// The package default must accept calls without Init.
	Log = zap.NewNop()
	Info("ignored", zap.Int("n", 1))
	Named("renderer").Debug("ignored")
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{level: "error", expected: []string{"ERROR"}, excluded: []string{"WARN", "INFO", "DEBUG"}},
		{level: "warn", expected: []string{"ERROR", "WARN"}, excluded: []string{"INFO", "DEBUG"}},
		{level: "info", expected: []string{"ERROR", "WARN", "INFO"}, excluded: []string{"DEBUG"}},
		{level: "debug", expected: []string{"ERROR", "WARN", "INFO", "DEBUG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")

			err := Init(tt.level, WithConsole(nil), WithFile(FileConfig{Path: logFile, MaxSizeMB: 10}))
			if err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}

			Debug("debug message")
			Info("info message")
			Named("light").Warn("warn message")
			Error("error message")
			Sync()

			content, err := os.ReadFile(logFile)
			if err != nil {
				t.Fatalf("failed to read log file: %v", err)
			}
			logContent := string(content)

			for _, exp := range tt.expected {
				if !strings.Contains(logContent, exp) {
					t.Errorf("expected %s in log output", exp)
				}
			}
			for _, exc := range tt.excluded {
				if strings.Contains(logContent, exc) {
					t.Errorf("unexpected %s in log output for level %s", exc, tt.level)
				}
			}
		})
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init("loud", WithConsole(nil)); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestNamedLoggerWritesComponent(t *testing.T) {
	var console bytes.Buffer
	if err := Init("info", WithConsole(&console)); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	defer func() { Log = zap.NewNop() }()

	Named("light").Info("active lights changed", zap.Int("count", 64))
	Named("renderer").Debug("below level")
	Sync()

	out := console.String()
	for _, want := range []string{"light", "active lights changed", "64"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output, got %q", want, out)
		}
	}
	if strings.Contains(out, "below level") {
		t.Errorf("debug entry written at info level: %q", out)
	}
}

func TestFileConfigDefaults(t *testing.T) {
	w := FileConfig{Path: "/tmp/test.log", Compress: true}.writer()

	if w.Filename != "/tmp/test.log" {
		t.Errorf("expected path /tmp/test.log, got %s", w.Filename)
	}
	if w.MaxSize != 50 || w.MaxBackups != 3 || w.MaxAge != 7 {
		t.Errorf("expected rotation defaults 50/3/7, got %d/%d/%d", w.MaxSize, w.MaxBackups, w.MaxAge)
	}
	if !w.Compress {
		t.Error("expected Compress to be true")
	}

	w = FileConfig{Path: "x.log", MaxSizeMB: 5, MaxBackups: 1, MaxAgeDays: 2}.writer()
	if w.MaxSize != 5 || w.MaxBackups != 1 || w.MaxAge != 2 {
		t.Errorf("expected configured limits 5/1/2, got %d/%d/%d", w.MaxSize, w.MaxBackups, w.MaxAge)
	}
}
