package config

import (
	"testing"
	"time"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if cfg.Server.Address != ":5000" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.Query.Timeout != 5*time.Second || cfg.Query.Interval != 45*time.Second {
		t.Errorf("query timing = %v/%v", cfg.Query.Timeout, cfg.Query.Interval)
	}
	if cfg.Query.DefaultHost != "127.0.0.1" || cfg.Query.DefaultPort != 9600 {
		t.Errorf("default endpoint = %s:%d", cfg.Query.DefaultHost, cfg.Query.DefaultPort)
	}
	if cfg.Query.BufferSize != 2048 {
		t.Errorf("buffer size = %d", cfg.Query.BufferSize)
	}
	if cfg.RateLimit.RefreshCount != 6 || cfg.RateLimit.RefreshWin != time.Minute {
		t.Errorf("rate limit = %d per %v", cfg.RateLimit.RefreshCount, cfg.RateLimit.RefreshWin)
	}
	if cfg.Storage.Path != "pitwall.db" || cfg.Storage.CheckAll || cfg.Storage.Import != "" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Server.AuthToken != "" {
		t.Error("auth token set by default")
	}
}

func TestParseArgsFlagsAndEnv(t *testing.T) {
	t.Setenv("PITWALL_QUERY_INTERVAL", "10s")
	t.Setenv("PITWALL_AUTH_TOKEN", "from-env")

	cfg, err := ParseArgs([]string{
		"--db-path", "/tmp/x.db",
		"--db-check-all",
		"--query-default-port", "9700",
		"--rate-limit-refresh-count", "2",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if cfg.Storage.Path != "/tmp/x.db" || !cfg.Storage.CheckAll {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Query.DefaultPort != 9700 {
		t.Errorf("default port = %d", cfg.Query.DefaultPort)
	}
	if cfg.RateLimit.RefreshCount != 2 {
		t.Errorf("refresh count = %d", cfg.RateLimit.RefreshCount)
	}
	if cfg.Query.Interval != 10*time.Second {
		t.Errorf("interval from env = %v", cfg.Query.Interval)
	}
	if cfg.Server.AuthToken != "from-env" {
		t.Errorf("auth token = %q", cfg.Server.AuthToken)
	}
}

func TestParseArgsInvalid(t *testing.T) {
	if _, err := ParseArgs([]string{"--query-timeout", "soon"}); err == nil {
		t.Error("expected error for invalid duration")
	}
}
