package geoip

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	resolveTimeout = 2 * time.Second

	// failedTTL keeps an unresolvable host out of the hot path for a while
	failedTTL = 10 * time.Minute
)

// Provider resolves game server hosts to ISO country codes.
// A nil *Provider is valid and resolves nothing.
type Provider struct {
	db       *geoip2.Reader
	resolver *net.Resolver

	// hosts caches host -> lookup, server hosts rarely change
	hosts   sync.Map
	lookups singleflight.Group

	timeout   time.Duration
	failedTTL time.Duration
}

type lookup struct {
	expires time.Time // zero for successful lookups
	code    string
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db, resolver: net.DefaultResolver}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// CountryCode returns the ISO country code (e.g. "EG", "DE") of host, which may be
// an IP address or a hostname. It returns an empty string when it cannot be determined.
// Failed lookups are remembered for a while so a dead hostname costs one DNS timeout,
// not one per poll. Concurrent lookups of the same host share a single resolution.
func (p *Provider) CountryCode(host string) string {
	if p == nil || host == "" {
		return ""
	}

	if cached, ok := p.hosts.Load(host); ok {
		entry := cached.(lookup)
		if entry.expires.IsZero() || time.Now().Before(entry.expires) {
			return entry.code
		}
	}

	code, _, _ := p.lookups.Do(host, func() (any, error) {
		return p.lookup(host), nil
	})

	return code.(string)
}

func (p *Provider) lookup(host string) string {
	ip := p.resolve(host)
	if ip == nil {
		p.hosts.Store(host, lookup{expires: time.Now().Add(p.negativeTTL())})
		return ""
	}

	if p.db == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		log.Trace().Err(err).Str("host", host).Msg("GeoIP lookup failed")
		p.hosts.Store(host, lookup{expires: time.Now().Add(p.negativeTTL())})
		return ""
	}

	code := record.Country.IsoCode
	p.hosts.Store(host, lookup{code: code})

	return code
}

func (p *Provider) resolve(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}

	resolver := p.resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	timeout := p.timeout
	if timeout <= 0 {
		timeout = resolveTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	addrs, err := resolver.LookupIP(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		log.Trace().Err(err).Str("host", host).Msg("Failed to resolve server host")
		return nil
	}

	return addrs[0]
}

func (p *Provider) negativeTTL() time.Duration {
	if p.failedTTL > 0 {
		return p.failedTTL
	}
	return failedTTL
}
