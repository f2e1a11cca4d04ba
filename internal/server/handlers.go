package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/models"
	"github.com/woozymasta/pitwall/internal/vars"
)

const healthTimeout = 3 * time.Second

// handleStatusList returns every cached server status, sorted by id.
// The body carries an ETag so pollers can revalidate with If-None-Match.
func (s *Server) handleStatusList(w http.ResponseWriter, r *http.Request) {
	list := s.status.GetAll(r.Context())
	if list == nil {
		list = []models.ServerStatus{}
	}

	body, err := json.Marshal(list)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode server statuses")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to fetch server status"})
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeBody(w, http.StatusOK, body)
}

// handleServerStatus returns the cached status of one server.
func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseServerID(w, r)
	if !ok {
		return
	}

	st := s.status.Get(r.Context(), id)
	if st == nil {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Server not found"})
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// handleForceRefresh queries one server immediately and returns the fresh status.
// This endpoint is rate limited per client IP.
func (s *Server) handleForceRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := parseServerID(w, r)
	if !ok {
		return
	}

	st, err := s.status.ForceUpdate(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("server_id", id).Msg("Failed to refresh server status")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to refresh server status"})
		return
	}
	if st == nil {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Server not found"})
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// handleCacheStats returns diagnostic information about the status cache.
func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Stats())
}

// handleHealth reports whether the database is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Timestamp: time.Now().UTC(),
		Status:    "healthy",
		Database:  "connected",
	}

	if err := s.db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")

		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// parseServerID reads the {id} path value. On failure it writes a 400 response.
func parseServerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid server ID"})
		return 0, false
	}

	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// handleWebSocket streams a status snapshot after every cache write.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Websocket push is disabled"})
		return
	}

	s.hub.ServeWS(w, r, GetRealIP(r, s.trustProxy))
}
