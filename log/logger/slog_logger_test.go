package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogWithOptions(t *testing.T) {
	tests := []struct {
		name    string
		options *SLogOptions
		wantErr bool
	}{
		{
			name:    "nil options",
			options: nil,
			wantErr: true,
		},
		{
			name: "default console output",
			options: &SLogOptions{
				Level: "info",
			},
			wantErr: false,
		},
		{
			name: "stderr json output",
			options: &SLogOptions{
				Level:  "debug",
				Format: "json",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "invalid level",
			options: &SLogOptions{
				Level: "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid format",
			options: &SLogOptions{
				Level:  "info",
				Format: "invalid",
				Output: "discard",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewSLogWithOptions(tt.options)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogWithOptions() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("NewLogWithOptions() returned nil logger without error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"DEBUG", false}, // 测试大小写不敏感
		{"INFO", false},
		{"invalid", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			_, err := parseLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "odb.log")

	l, err := NewSLogWithOptions(&SLogOptions{
		Level:  "info",
		Output: logFile,
	})
	if err != nil {
		t.Fatalf("NewSLogWithOptions() error = %v", err)
	}
	l.WithGroup("engine").Info("commit", "version", 3)
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "engine.version=3") {
		t.Errorf("Log file doesn't contain expected message: %s", content)
	}
}

func TestJSONFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewSLogWithWriter(&buf, &SLogOptions{
		Level:  "warn",
		Format: "json",
		Fields: map[string]any{"service": "odb"},
	})
	if err != nil {
		t.Fatalf("NewSLogWithWriter() error = %v", err)
	}

	l.Info("dropped")
	l.With("table", "Person").Warn("slow query")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if record["msg"] != "slow query" || record["service"] != "odb" || record["table"] != "Person" {
		t.Errorf("unexpected record: %v", record)
	}
}
