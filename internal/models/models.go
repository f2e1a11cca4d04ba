// Package models defines the records shared between persistence, the query client and the API.
package models

import "time"

// Status is the externally visible state of a game server.
type Status string

const (
	// StatusOnline means the server answered the last query.
	StatusOnline Status = "online"

	// StatusOffline means the last query failed or timed out.
	StatusOffline Status = "offline"

	// StatusMaintenance is set by operators in persistence, never by the protocol.
	StatusMaintenance Status = "maintenance"
)

// Placeholders used when a field is unknown.
const (
	UnknownServer  = "Unknown Server"
	UnknownTrack   = "Unknown Track"
	UnknownSession = "Unknown Session"
	Unknown        = "Unknown"
)

// Server is a game server record stored in the database.
type Server struct {
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Name              string    `json:"name" koanf:"name" validate:"required,max=100"`
	Region            string    `json:"region" koanf:"region" validate:"required,max=50"`
	Host              string    `json:"host,omitempty" koanf:"host" validate:"omitempty,hostname_rfc1123|ip"`
	JoinLink          string    `json:"join_link,omitempty" koanf:"join_link" validate:"omitempty,url"`
	BannerURL         string    `json:"banner_url,omitempty" koanf:"banner_url" validate:"omitempty,url"`
	Status            Status    `json:"status" koanf:"status" validate:"omitempty,oneof=online offline maintenance"`
	GameMode          string    `json:"game_mode,omitempty" koanf:"game_mode" validate:"max=50"`
	ID                int64     `json:"id" koanf:"id" validate:"gte=0"`
	Port              int       `json:"port,omitempty" koanf:"port" validate:"gte=0,lte=65535"`
	MaxPlayers        int       `json:"max_players" koanf:"max_players" validate:"gte=0,lte=255"`
	TrafficDensity    int       `json:"traffic_density" koanf:"traffic_density" validate:"gte=0,lte=100"`
	AvailableVIPSlots int       `json:"available_vip_slots" koanf:"available_vip_slots" validate:"gte=0"`
}

// Target is one endpoint to query during a poll cycle. It is rebuilt every cycle.
type Target struct {
	Host        string
	DisplayName string
	ID          int64
	Port        int
}

// Reply is the parsed result of one UDP exchange, or its offline substitute.
type Reply struct {
	ObservedAt     time.Time
	Name           string
	Track          string
	Session        string
	Status         Status
	ID             int64
	CurrentPlayers int
	MaxPlayers     int
}

// OfflineReply builds the synthetic reply used when a server could not be queried.
func OfflineReply(id int64, name string, now time.Time) Reply {
	return Reply{
		ID:         id,
		Name:       name,
		Track:      Unknown,
		Session:    Unknown,
		Status:     StatusOffline,
		ObservedAt: now,
	}
}

// ServerStatus is a cache entry: live protocol data merged with persisted metadata.
// JSON names match what the web frontend consumes.
type ServerStatus struct {
	ObservedAt        time.Time `json:"lastUpdate"`
	Name              string    `json:"name"`
	Track             string    `json:"track"`
	Session           string    `json:"session"`
	Status            Status    `json:"status"`
	Region            string    `json:"region,omitempty"`
	CountryCode       string    `json:"countryCode,omitempty"`
	JoinLink          string    `json:"joinLink,omitempty"`
	BannerURL         string    `json:"bannerUrl,omitempty"`
	GameMode          string    `json:"gameMode,omitempty"`
	ID                int64     `json:"id"`
	CurrentPlayers    int       `json:"players"`
	MaxPlayers        int       `json:"maxPlayers"`
	TrafficDensity    int       `json:"trafficDensity,omitempty"`
	AvailableVIPSlots int       `json:"availableVipSlots,omitempty"`
}

// CacheStats is a diagnostic snapshot of the status cache.
type CacheStats struct {
	LastUpdate    *time.Time `json:"lastUpdate"`
	CachedServers int        `json:"cachedServers"`
	IsUpdating    bool       `json:"isUpdating"`
}
