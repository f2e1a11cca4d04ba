// Package fake provides utilities for generating random server data and a fake
// Assetto Corsa query responder for testing and development purposes.
package fake

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/models"
)

// Store is where generated servers are written.
type Store interface {
	UpsertServer(ctx context.Context, s models.Server) (int64, error)
}

var (
	tracks   = []string{"ks_nordschleife", "spa", "monza", "imola", "ks_brands_hatch", "shuto_revival_project_beta", "ek_akina", "ks_red_bull_ring"}
	sessions = []string{"Practice", "Qualify", "Race", "Booking"}
	modes    = []string{"drift", "race", "traffic", "time attack", "touge"}

	// Regions with a weight of how often they appear
	regionsHigh = []string{"Europe", "North America", "Russia"}
	regionsMid  = []string{"Japan", "Brazil", "Australia"}
	regionsLow  = []string{"Egypt", "South Africa", "India", "Singapore"}
)

// GenerateServers populates the storage with count randomized server records.
// When host is not empty every record points at host:port, otherwise the records
// carry no endpoint and are polled at the configured default.
func GenerateServers(ctx context.Context, store Store, count int, host string, port int) int {
	created := 0

	for i := 0; i < count; i++ {
		var region string
		roll := rand.Float32()
		switch {
		case roll < 0.70:
			region = pick(regionsHigh)
		case roll < 0.90:
			region = pick(regionsMid)
		default:
			region = pick(regionsLow)
		}

		mode := pick(modes)
		srv := models.Server{
			Name:              fmt.Sprintf("%s | %s #%d", region, mode, rand.IntN(1000)),
			Region:            region,
			Host:              host,
			Port:              port,
			MaxPlayers:        []int{12, 16, 24, 32, 48}[rand.IntN(5)],
			TrafficDensity:    rand.IntN(101),
			AvailableVIPSlots: rand.IntN(5),
			GameMode:          mode,
			Status:            models.StatusOffline,
		}

		// 10% chance of maintenance
		if rand.Float32() < 0.1 {
			srv.Status = models.StatusMaintenance
		}

		if _, err := store.UpsertServer(ctx, srv); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
			continue
		}
		created++
	}

	return created
}

func pick(list []string) string {
	return list[rand.IntN(len(list))]
}
