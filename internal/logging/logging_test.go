package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"verbose", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var out bytes.Buffer
	buf := NewRingBuffer(10)
	logger, closer, err := New(Options{Level: "info", Format: FormatJSON, Out: &out, Buffer: buf})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("asset", "a1").Msg("updated")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", out.String(), err)
	}
	if entry["message"] != "updated" || entry["asset"] != "a1" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if lines := buf.Tail(0); len(lines) != 1 || !strings.Contains(lines[0], `"updated"`) {
		t.Errorf("ring buffer = %q", lines)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	var out bytes.Buffer
	logger, closer, err := New(Options{Format: FormatConsole, File: path, Out: &out})
	if err != nil {
		t.Fatal(err)
	}
	logger.Warn().Msg("file not found")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"level":"warn"`) {
		t.Errorf("log file content = %q", data)
	}
	if !strings.Contains(out.String(), "file not found") {
		t.Errorf("console output = %q", out.String())
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRingBuffer_Tail(t *testing.T) {
	b := NewRingBuffer(3)
	for _, l := range []string{"one\n", "two\n", "three\nfour\n"} {
		if _, err := b.Write([]byte(l)); err != nil {
			t.Fatal(err)
		}
	}
	got := b.Tail(0)
	want := []string{"two", "three", "four"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Tail(0) = %v, want %v", got, want)
	}
	if got := b.Tail(2); strings.Join(got, ",") != "three,four" {
		t.Errorf("Tail(2) = %v", got)
	}
	if got := NewRingBuffer(5).Tail(3); len(got) != 0 {
		t.Errorf("empty buffer Tail = %v", got)
	}
}
