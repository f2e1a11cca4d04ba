// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/pitwall/internal/logger"
	"github.com/woozymasta/pitwall/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"PITWALL"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"PITWALL_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"PITWALL_GEOIP"`
	Query     Query         `group:"Query Options" namespace:"query" env-namespace:"PITWALL_QUERY"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"PITWALL_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"PITWALL_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address    string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":5000"`
	AuthToken  string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin token for force refresh and diagnostics (open when empty)"`
	TrustProxy bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Storage holds database configuration and one-shot maintenance tasks.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"pitwall.db"`
	Import        string `long:"import" description:"Import (insert or update) servers from a YAML file and exit"`
	CheckAll      bool   `long:"check-all" description:"Query every stored server once, log the result and exit"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
	FakeResponder string `long:"fake-responder" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"pitwall.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Disable country detection for server hosts"`
}

// Query holds Assetto Corsa UDP query configuration.
type Query struct {
	// betteralign:ignore

	Timeout     time.Duration `long:"timeout" env:"TIMEOUT" description:"Single query timeout" default:"5s"`
	BufferSize  uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Reply buffer size" default:"2048"`
	Interval    time.Duration `long:"interval" env:"INTERVAL" description:"Interval between full polls" default:"45s"`
	DefaultHost string        `long:"default-host" env:"DEFAULT_HOST" description:"Host queried for servers stored without one" default:"127.0.0.1"`
	DefaultPort int           `long:"default-port" env:"DEFAULT_PORT" description:"Port queried for servers stored without one" default:"9600"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	RefreshCount int           `long:"refresh-count" env:"REFRESH_COUNT" description:"Force refresh limit per IP: requests count" default:"6"`
	RefreshWin   time.Duration `long:"refresh-window" env:"REFRESH_WINDOW" description:"Force refresh limit per IP: window duration" default:"1m"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses the given arguments (and environment) without exiting.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return &cfg, nil
}
