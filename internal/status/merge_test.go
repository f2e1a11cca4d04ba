package status

import (
	"testing"
	"time"

	"github.com/woozymasta/pitwall/internal/models"
)

func TestMerge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := models.Server{
		ID:                3,
		Name:              "Stored Name",
		Region:            "Europe",
		MaxPlayers:        30,
		TrafficDensity:    70,
		AvailableVIPSlots: 2,
		JoinLink:          "https://example.com/join",
		GameMode:          "drift",
		Status:            models.StatusOnline,
	}

	tests := []struct {
		name        string
		reply       models.Reply
		stored      models.Status
		wantStatus  models.Status
		wantName    string
		wantMax     int
		wantPlayers int
	}{
		{
			name: "online reply wins",
			reply: models.Reply{
				ID: 3, Name: "Live Name", Track: "spa", Session: "Race",
				Status: models.StatusOnline, CurrentPlayers: 12, MaxPlayers: 24, ObservedAt: now,
			},
			wantStatus:  models.StatusOnline,
			wantName:    "Live Name",
			wantMax:     24,
			wantPlayers: 12,
		},
		{
			name:       "offline reply falls back to stored max players",
			reply:      models.OfflineReply(3, "Stored Name", now),
			wantStatus: models.StatusOffline,
			wantName:   "Stored Name",
			wantMax:    30,
		},
		{
			name: "maintenance overrides live status",
			reply: models.Reply{
				ID: 3, Name: "Live Name", Track: "spa", Session: "Race",
				Status: models.StatusOnline, CurrentPlayers: 4, MaxPlayers: 24, ObservedAt: now,
			},
			stored:      models.StatusMaintenance,
			wantStatus:  models.StatusMaintenance,
			wantName:    "Live Name",
			wantMax:     24,
			wantPlayers: 4,
		},
		{
			name:       "maintenance overrides offline",
			reply:      models.OfflineReply(3, "Stored Name", now),
			stored:     models.StatusMaintenance,
			wantStatus: models.StatusMaintenance,
			wantName:   "Stored Name",
			wantMax:    30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := srv
			if tt.stored != "" {
				s.Status = tt.stored
			}

			got := Merge(tt.reply, s, "NL")
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Name != tt.wantName {
				t.Errorf("name = %q, want %q", got.Name, tt.wantName)
			}
			if got.MaxPlayers != tt.wantMax {
				t.Errorf("maxPlayers = %d, want %d", got.MaxPlayers, tt.wantMax)
			}
			if got.CurrentPlayers != tt.wantPlayers {
				t.Errorf("players = %d, want %d", got.CurrentPlayers, tt.wantPlayers)
			}
			if got.ID != 3 || got.Region != "Europe" || got.CountryCode != "NL" {
				t.Errorf("metadata not merged: %+v", got)
			}
			if got.TrafficDensity != 70 || got.AvailableVIPSlots != 2 || got.GameMode != "drift" {
				t.Errorf("metadata not merged: %+v", got)
			}
			if !got.ObservedAt.Equal(now) {
				t.Errorf("observedAt = %v, want %v", got.ObservedAt, now)
			}
		})
	}
}
