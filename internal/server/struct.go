package server

import (
	"context"
	"time"

	"github.com/woozymasta/pitwall/internal/models"
)

// StatusSource is the status cache the handlers read from.
type StatusSource interface {
	GetAll(ctx context.Context) []models.ServerStatus
	Get(ctx context.Context, id int64) *models.ServerStatus
	ForceUpdate(ctx context.Context, id int64) (*models.ServerStatus, error)
	Stats() models.CacheStats
}

// Pinger reports whether persistence is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies and configuration required to handle HTTP requests.
type Server struct {
	// status is the in-memory status cache served by the API.
	status StatusSource

	// db is pinged by the health endpoint.
	db Pinger

	// hub pushes status snapshots to websocket clients. It can be nil.
	hub *Hub

	// authToken protects force refresh and diagnostics when not empty.
	authToken string

	// refreshCount is the number of force refreshes allowed per IP address
	// within the refreshWin duration.
	refreshCount int

	// refreshWin is the time window duration for the force refresh limiter.
	refreshWin time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// messageResponse is the body of every error and plain acknowledgement.
type messageResponse struct {
	Message string `json:"message"`
}

// healthResponse is the body of the health endpoint.
type healthResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
}
