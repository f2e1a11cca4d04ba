package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", &buf)
	l.Info().Str("host", "127.0.0.1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["message"] != "hello" || line["host"] != "127.0.0.1" {
		t.Errorf("unexpected fields: %v", line)
	}
	if _, ok := line["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNewConsoleHasNoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	l := New("console", &buf)
	l.Warn().Msg("plain")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("console output to a buffer must not be colored: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "plain") {
		t.Errorf("message missing: %q", buf.String())
	}
}

func TestSetupFileOutputAndLevel(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "pitwall.log")
	Setup(Config{Level: "warn", Format: "json", Output: path})

	log.Info().Msg("dropped")
	log.Error().Msg("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("error message should be written")
	}
}

func TestSetupInvalidLevelFallsBackToInfo(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	Setup(Config{Level: "loud", Format: "json", Output: "stderr"})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}
}
