package geoip

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnsureDBDownloadsMissingFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasPrefix(r.UserAgent(), "Pitwall/") {
			t.Errorf("unexpected user agent %q", r.UserAgent())
		}
		_, _ = w.Write([]byte("mmdb-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	if err := EnsureDB(context.Background(), path, srv.URL, time.Hour); err != nil {
		t.Fatalf("EnsureDB: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mmdb-bytes" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	// Fresh file: no second download
	if err := EnsureDB(context.Background(), path, srv.URL, time.Hour); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("downloads = %d, want 1", hits.Load())
	}
}

func TestEnsureDBRefreshesOutdatedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	if err := EnsureDB(context.Background(), path, srv.URL, 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content = %q, want refreshed", data)
	}
}

func TestEnsureDBKeepsOldFileOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	_ = os.Chtimes(path, old, old)

	if err := EnsureDB(context.Background(), path, srv.URL, time.Hour); err == nil {
		t.Fatal("expected error")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Errorf("old database was replaced: %q", data)
	}
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	if got := p.CountryCode("1.1.1.1"); got != "" {
		t.Errorf("nil provider returned %q", got)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Fatal("expected error for missing database")
	}
}

// countingResolver fails every DNS exchange, stalling for stall first.
func countingResolver(dials *atomic.Int32, stall time.Duration) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, _, _ string) (net.Conn, error) {
			dials.Add(1)
			select {
			case <-time.After(stall):
			case <-ctx.Done():
			}
			return nil, errors.New("dns unreachable")
		},
	}
}

func TestCountryCodeRemembersFailedLookups(t *testing.T) {
	var dials atomic.Int32
	p := &Provider{
		resolver: countingResolver(&dials, time.Second),
		timeout:  100 * time.Millisecond,
	}
	hosts := []string{"a.dead-host.test", "b.dead-host.test", "c.dead-host.test"}

	for _, h := range hosts {
		if got := p.CountryCode(h); got != "" {
			t.Errorf("CountryCode(%q) = %q, want empty", h, got)
		}
	}
	first := dials.Load()
	if first == 0 {
		t.Fatal("resolver was never consulted")
	}

	start := time.Now()
	for _, h := range hosts {
		p.CountryCode(h)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("second round took %v", elapsed)
	}
	if got := dials.Load(); got != first {
		t.Errorf("dials = %d after second round, want %d", got, first)
	}
}

func TestCountryCodeRetriesAfterFailedTTL(t *testing.T) {
	var dials atomic.Int32
	p := &Provider{
		resolver:  countingResolver(&dials, 0),
		timeout:   100 * time.Millisecond,
		failedTTL: 50 * time.Millisecond,
	}

	p.CountryCode("dead-host.test")
	first := dials.Load()

	p.CountryCode("dead-host.test")
	if got := dials.Load(); got != first {
		t.Fatalf("dials = %d inside the TTL, want %d", got, first)
	}

	time.Sleep(80 * time.Millisecond)
	p.CountryCode("dead-host.test")
	if got := dials.Load(); got <= first {
		t.Errorf("dials = %d after the TTL, want a fresh lookup", got)
	}
}

func TestCountryCodeSharesConcurrentLookups(t *testing.T) {
	var dials atomic.Int32
	p := &Provider{
		resolver: countingResolver(&dials, time.Second),
		timeout:  150 * time.Millisecond,
	}

	// Baseline: how many exchanges one lookup of a name costs on this host.
	var single atomic.Int32
	(&Provider{resolver: countingResolver(&single, time.Second), timeout: 150 * time.Millisecond}).
		CountryCode("shared.dead-host.test")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.CountryCode("shared.dead-host.test")
		}()
	}
	wg.Wait()

	if got, want := dials.Load(), single.Load(); got > want {
		t.Errorf("dials = %d for 8 concurrent callers, want at most %d", got, want)
	}
}

func TestCountryCodeIPWithoutDatabase(t *testing.T) {
	var dials atomic.Int32
	p := &Provider{resolver: countingResolver(&dials, 0)}

	if got := p.CountryCode("203.0.113.7"); got != "" {
		t.Errorf("CountryCode = %q, want empty without a database", got)
	}
	if dials.Load() != 0 {
		t.Error("IP literal went through DNS")
	}
}
