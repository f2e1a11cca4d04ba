package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		header     http.Header
		name       string
		remoteAddr string
		want       string
		trustProxy bool
	}{
		{name: "remote addr", remoteAddr: "198.51.100.7:51234", want: "198.51.100.7"},
		{name: "remote addr without port", remoteAddr: "198.51.100.7", want: "198.51.100.7"},
		{
			name:       "forwarded ignored",
			remoteAddr: "10.0.0.1:80",
			header:     http.Header{"X-Forwarded-For": {"203.0.113.5"}},
			want:       "10.0.0.1",
		},
		{
			name:       "forwarded trusted",
			remoteAddr: "10.0.0.1:80",
			header:     http.Header{"X-Forwarded-For": {"203.0.113.5, 10.0.0.1"}},
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "cloudflare first",
			remoteAddr: "10.0.0.1:80",
			header: http.Header{
				"Cf-Connecting-Ip": {"203.0.113.9"},
				"X-Forwarded-For":  {"203.0.113.5"},
			},
			trustProxy: true,
			want:       "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.header {
				r.Header[k] = v
			}

			if got := GetRealIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("GetRealIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitPerIP(t *testing.T) {
	s := &Server{refreshCount: 1, refreshWin: time.Minute}
	h := s.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) int {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	if got := call("192.0.2.1:1000"); got != http.StatusNoContent {
		t.Errorf("first call = %d", got)
	}
	if got := call("192.0.2.1:1001"); got != http.StatusTooManyRequests {
		t.Errorf("second call from same IP = %d, want 429", got)
	}
	if got := call("192.0.2.2:1000"); got != http.StatusNoContent {
		t.Errorf("other IP = %d, want 204", got)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	s := &Server{}
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	h := s.RateLimitMiddleware(next)
	for range 10 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
}
