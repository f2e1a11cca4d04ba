// main is the entry point of the Pitwall application.
// It initializes the configuration, logger, database, GeoIP provider and status poller,
// and runs them together with the HTTP server under one supervisor.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"
	"github.com/woozymasta/pitwall/internal/config"
	"github.com/woozymasta/pitwall/internal/fake"
	"github.com/woozymasta/pitwall/internal/game"
	"github.com/woozymasta/pitwall/internal/geoip"
	"github.com/woozymasta/pitwall/internal/logger"
	"github.com/woozymasta/pitwall/internal/maintenance"
	"github.com/woozymasta/pitwall/internal/server"
	"github.com/woozymasta/pitwall/internal/status"
	"github.com/woozymasta/pitwall/internal/storage"
	"github.com/woozymasta/pitwall/internal/vars"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Str("version", vars.Version).Msg("Starting pitwall service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GeoIP
	geoProvider := openGeoIP(ctx, cfg.GeoIP)
	if geoProvider != nil {
		defer func() {
			if err := geoProvider.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing GeoIP provider")
			}
		}()
	}

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Data generation
	if cfg.Storage.GenerateCount > 0 {
		host, port := fakeEndpoint(cfg.Storage.FakeResponder)
		created := fake.GenerateServers(ctx, store, cfg.Storage.GenerateCount, host, port)
		log.Info().Int("created", created).Msg("Fake servers generated")
		return
	}

	// Status poller
	hub := server.NewHub()
	opts := status.Options{
		Interval:    cfg.Query.Interval,
		DefaultHost: cfg.Query.DefaultHost,
		DefaultPort: cfg.Query.DefaultPort,
		OnUpdate:    hub.Broadcast,
	}
	if geoProvider != nil {
		opts.Locator = geoProvider
	}
	poller := status.New(store, game.New(cfg.Query), opts)

	// Database maintenance
	if maintenance.Run(ctx, cfg, store, poller) {
		return
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.New(poller, store, hub, cfg).Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		// Force refresh can wait for a full query timeout
		WriteTimeout: cfg.Query.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sup := suture.New("pitwall", suture.Spec{
		EventHook: logSupervisorEvent,
		Timeout:   10 * time.Second,
	})
	if cfg.Storage.FakeResponder != "" {
		sup.Add(fake.NewResponder(cfg.Storage.FakeResponder))
	}
	sup.Add(poller)
	sup.Add(hub)
	sup.Add(server.NewHTTPService(httpServer, 5*time.Second))

	log.Info().Str("address", cfg.Server.Address).Msg("Server listening")

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Supervisor stopped with error")
	}

	log.Info().Msg("Server exited")
}

// openGeoIP refreshes and opens the country database. It returns nil when
// country detection is disabled or the database is unusable.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	if cfg.Disable {
		log.Info().Msg("GeoIP country detection disabled")
		return nil
	}

	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return provider
}

// fakeEndpoint turns the fake responder listen address into the endpoint generated servers point at.
func fakeEndpoint(addr string) (string, int) {
	if addr == "" {
		return "", 0
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("Invalid fake responder address, using default endpoint")
		return "", 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("Invalid fake responder port, using default endpoint")
		return "", 0
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return host, port
}

// logSupervisorEvent forwards supervisor events to the global logger.
func logSupervisorEvent(e suture.Event) {
	log.Warn().Fields(e.Map()).Msg(e.String())
}
