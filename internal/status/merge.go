package status

import "github.com/woozymasta/pitwall/internal/models"

// Merge combines a protocol reply with the persisted record of the same server.
//
// Live fields come from the reply. An offline reply without a player limit falls back
// to the persisted max players, and a persisted maintenance status wins over the live one.
// Metadata always comes from persistence.
func Merge(reply models.Reply, srv models.Server, countryCode string) models.ServerStatus {
	st := models.ServerStatus{
		ID:             srv.ID,
		Name:           reply.Name,
		CurrentPlayers: reply.CurrentPlayers,
		MaxPlayers:     reply.MaxPlayers,
		Track:          reply.Track,
		Session:        reply.Session,
		Status:         reply.Status,
		ObservedAt:     reply.ObservedAt,

		Region:            srv.Region,
		CountryCode:       countryCode,
		JoinLink:          srv.JoinLink,
		BannerURL:         srv.BannerURL,
		TrafficDensity:    srv.TrafficDensity,
		AvailableVIPSlots: srv.AvailableVIPSlots,
		GameMode:          srv.GameMode,
	}

	if st.Status == models.StatusOffline && st.MaxPlayers == 0 {
		st.MaxPlayers = srv.MaxPlayers
	}

	if srv.Status == models.StatusMaintenance {
		st.Status = models.StatusMaintenance
	}

	return st
}
