package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})
	logger.Info("indexing document", "source", "lehninger.pdf")

	output := buf.String()
	if !strings.Contains(output, "indexing document") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, "source=lehninger.pdf") {
		t.Errorf("expected output to contain attribute, got: %s", output)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo, JSON: true})
	logger.Info("server started", "addr", "127.0.0.1:8080")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if entry["msg"] != "server started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "server started")
	}
	if entry["addr"] != "127.0.0.1:8080" {
		t.Errorf("addr = %v, want %q", entry["addr"], "127.0.0.1:8080")
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("messages below Warn should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "warn message") {
		t.Errorf("warn message missing from output: %s", output)
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop() returned nil")
	}
	logger.Info("discarded")
	logger.Error("also discarded")
}
