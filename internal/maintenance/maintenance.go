// Package maintenance provides one-shot database tasks run from the command line.
package maintenance

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/config"
	"github.com/woozymasta/pitwall/internal/models"
)

// Store is the persistence used by maintenance tasks.
type Store interface {
	UpsertServers(ctx context.Context, servers []models.Server) ([]int64, error)
}

// Poller runs full status polls.
type Poller interface {
	UpdateAll(ctx context.Context)
	GetAll(ctx context.Context) []models.ServerStatus
}

// Run checks if any maintenance flags are set and executes the corresponding task.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store Store, poller Poller) bool {
	if cfg.Storage.Import != "" {
		log.Info().Str("file", cfg.Storage.Import).Msg("Importing servers...")

		count, err := ImportServers(ctx, store, cfg.Storage.Import)
		if err != nil {
			log.Error().Err(err).Int("imported", count).Msg("Import failed")
		} else {
			log.Info().Int("imported", count).Msg("Import finished")
		}

		return true
	}

	if cfg.Storage.CheckAll {
		log.Info().Msg("Querying all servers...")

		online, total := CheckAll(ctx, poller)
		log.Info().Int("online", online).Int("total", total).Msg("Maintenance task completed")

		return true
	}

	return false
}

// CheckAll runs one synchronous poll and logs the status of every server.
// It returns the number of online servers and the total.
func CheckAll(ctx context.Context, poller Poller) (online, total int) {
	poller.UpdateAll(ctx)

	for _, st := range poller.GetAll(ctx) {
		event := log.Info()
		if st.Status == models.StatusOffline {
			event = log.Warn()
		}
		if st.Status == models.StatusOnline {
			online++
		}

		event.
			Int64("server_id", st.ID).
			Str("name", st.Name).
			Str("status", string(st.Status)).
			Str("track", st.Track).
			Str("session", st.Session).
			Int("players", st.CurrentPlayers).
			Int("max_players", st.MaxPlayers).
			Msg("Server checked")
		total++
	}

	return online, total
}
