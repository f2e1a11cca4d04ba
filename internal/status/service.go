// Package status keeps the live status of every known game server in memory.
//
// A Service polls all servers stored in persistence on a fixed interval, merges
// the protocol replies with persisted metadata and serves snapshots of the result.
// Failed queries never surface as errors: the server is reported offline instead.
package status

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/metrics"
	"github.com/woozymasta/pitwall/internal/models"
	"golang.org/x/sync/singleflight"
)

// DefaultInterval is the time between two scheduled full polls.
const DefaultInterval = 45 * time.Second

const pollKey = "poll"

// ServerStore reads the servers to poll.
type ServerStore interface {
	GetServers(ctx context.Context) ([]models.Server, error)
	GetServer(ctx context.Context, id int64) (*models.Server, error)
}

// Querier performs protocol queries.
type Querier interface {
	QueryServer(ctx context.Context, host string, port int) (*models.Reply, error)
	QueryMultipleServers(ctx context.Context, targets []models.Target) []models.Reply
}

// Locator resolves a server host to a country code.
type Locator interface {
	CountryCode(host string) string
}

// Options configures a Service.
type Options struct {
	// Locator is optional.
	Locator Locator

	// OnUpdate is called with a fresh snapshot after every cache write, from the
	// polling goroutine or from a ForceUpdate caller. Calls are serialized and a
	// snapshot is never delivered after a newer one. It must not block.
	OnUpdate func([]models.ServerStatus)

	// DefaultHost and DefaultPort are queried for servers stored without an endpoint.
	DefaultHost string
	DefaultPort int

	Interval time.Duration
}

// Service owns the status cache and its polling schedule.
type Service struct {
	store   ServerStore
	querier Querier
	opts    Options

	mu      sync.RWMutex
	cache   map[int64]models.ServerStatus
	version uint64 // bumped under mu on every cache write

	notifyMu sync.Mutex
	notified uint64

	// polls lets cold readers join a poll that is already running
	polls    singleflight.Group
	updating atomic.Bool

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Service. It does not poll until Start or Serve is called,
// or until a reader finds the cache empty.
func New(store ServerStore, querier Querier, opts Options) *Service {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	return &Service{
		store:   store,
		querier: querier,
		opts:    opts,
		cache:   make(map[int64]models.ServerStatus),
	}
}

// String names the service for the supervisor.
func (s *Service) String() string {
	return "status-poller"
}

// Serve polls once immediately and then on every interval tick until ctx is canceled.
func (s *Service) Serve(ctx context.Context) error {
	log.Info().Dur("interval", s.opts.Interval).Msg("Starting periodic server status updates")

	s.UpdateAll(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Periodic server status updates stopped")
			return ctx.Err()
		case <-ticker.C:
			s.UpdateAll(ctx)
		}
	}
}

// Start runs Serve in the background. Calling Start on a running service does nothing.
func (s *Service) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		_ = s.Serve(ctx)
	}()
}

// Stop cancels the schedule started by Start and waits for the loop to exit.
// No automatic poll runs after Stop returns. It is safe to call more than once.
func (s *Service) Stop() {
	s.lifeMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lifeMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// UpdateAll runs a full poll unless one is already in progress, in which case it
// returns immediately. Errors are logged and the cache keeps its previous entries.
func (s *Service) UpdateAll(ctx context.Context) {
	if s.updating.Load() {
		metrics.PollsTotal.WithLabelValues(metrics.PollSkipped).Inc()
		log.Debug().Msg("Server status update already in progress, skipping")
		return
	}

	_ = s.poll(ctx)
}

// GetAll returns every cache entry sorted by id. On a cold cache it runs (or joins)
// a poll first, so callers do not observe a spuriously empty result.
func (s *Service) GetAll(ctx context.Context) []models.ServerStatus {
	if s.size() == 0 {
		_ = s.poll(context.WithoutCancel(ctx))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Get returns the cache entry for id, or nil for an invalid or unknown id.
// A miss triggers (or joins) a full poll before giving up.
func (s *Service) Get(ctx context.Context, id int64) *models.ServerStatus {
	if id <= 0 {
		log.Debug().Int64("server_id", id).Msg("Invalid server ID")
		return nil
	}

	if st, ok := s.lookup(id); ok {
		return &st
	}

	_ = s.poll(context.WithoutCancel(ctx))

	if st, ok := s.lookup(id); ok {
		return &st
	}

	return nil
}

// ForceUpdate queries one server immediately, outside of the schedule, and stores the result.
// It returns nil for an unknown server without touching the cache. A failed query yields
// an offline status rather than an error; the error is only for persistence failures.
func (s *Service) ForceUpdate(ctx context.Context, id int64) (*models.ServerStatus, error) {
	if id <= 0 {
		return nil, nil
	}

	// The refresh completes even if the requester goes away
	ctx = context.WithoutCancel(ctx)

	srv, err := s.store.GetServer(ctx, id)
	if err != nil {
		metrics.ForceRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load server %d: %w", id, err)
	}
	if srv == nil {
		metrics.ForceRefreshes.WithLabelValues("not_found").Inc()
		return nil, nil
	}

	target := s.target(*srv)
	logCtx := log.With().
		Int64("server_id", srv.ID).
		Str("host", target.Host).
		Int("port", target.Port).
		Logger()

	codes := s.countryCodes([]models.Target{target})

	var reply models.Reply
	live, err := s.querier.QueryServer(ctx, target.Host, target.Port)
	if err != nil {
		logCtx.Warn().Err(err).Msg("Failed to force update server")
		reply = models.OfflineReply(srv.ID, srv.Name, time.Now())
	} else {
		reply = *live
		reply.ID = srv.ID
	}

	st := Merge(reply, *srv, codes()[0])

	s.mu.Lock()
	s.cache[st.ID] = st
	s.version++
	version, snapshot := s.version, s.snapshotLocked()
	s.mu.Unlock()

	metrics.ForceRefreshes.WithLabelValues(string(st.Status)).Inc()
	logCtx.Debug().Str("status", string(st.Status)).Msg("Server force updated")
	s.notify(version, snapshot)

	return &st, nil
}

// Stats returns a diagnostic snapshot. LastUpdate is the newest observation in the cache.
func (s *Service) Stats() models.CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.CacheStats{
		CachedServers: len(s.cache),
		IsUpdating:    s.updating.Load(),
	}

	var last time.Time
	for _, st := range s.cache {
		if st.ObservedAt.After(last) {
			last = st.ObservedAt
		}
	}
	if len(s.cache) > 0 {
		stats.LastUpdate = &last
	}

	return stats
}

// poll runs a full poll, or waits for the one already running and shares its result.
func (s *Service) poll(ctx context.Context) error {
	_, err, _ := s.polls.Do(pollKey, func() (any, error) {
		s.updating.Store(true)
		defer s.updating.Store(false)

		return nil, s.refreshAll(ctx)
	})

	return err
}

func (s *Service) refreshAll(ctx context.Context) error {
	start := time.Now()

	servers, err := s.store.GetServers(ctx)
	if err != nil {
		err = fmt.Errorf("fetch servers: %w", err)
		metrics.RecordPoll(time.Since(start), err)
		log.Error().Err(err).Msg("Failed to update server statuses")
		return err
	}

	known := make(map[int64]models.Server, len(servers))
	targets := make([]models.Target, 0, len(servers))
	for _, srv := range servers {
		known[srv.ID] = srv
		targets = append(targets, s.target(srv))
	}

	codes := s.countryCodes(targets)
	replies := s.querier.QueryMultipleServers(ctx, targets)
	countries := codes()

	// Replies of a canceled poll are timeouts, not observations
	if err := ctx.Err(); err != nil {
		log.Debug().Err(err).Msg("Server status update canceled")
		return err
	}

	entries := make([]models.ServerStatus, 0, len(replies))
	for i, reply := range replies {
		srv, ok := known[reply.ID]
		if !ok {
			continue
		}
		entries = append(entries, Merge(reply, srv, countries[i]))
	}

	s.mu.Lock()
	for id := range s.cache {
		if _, ok := known[id]; !ok {
			delete(s.cache, id)
		}
	}
	online := 0
	for _, st := range entries {
		s.cache[st.ID] = st
		if st.Status == models.StatusOnline {
			online++
		}
		metrics.ServerQueries.WithLabelValues(string(st.Status)).Inc()
	}
	s.version++
	version, snapshot := s.version, s.snapshotLocked()
	s.mu.Unlock()

	metrics.RecordPoll(time.Since(start), nil)
	log.Debug().
		Int("servers", len(entries)).
		Int("online", online).
		Dur("duration", time.Since(start)).
		Msg("Server statuses updated")

	s.notify(version, snapshot)

	return nil
}

func (s *Service) target(srv models.Server) models.Target {
	t := models.Target{
		ID:          srv.ID,
		Host:        srv.Host,
		Port:        srv.Port,
		DisplayName: srv.Name,
	}
	if t.Host == "" {
		t.Host = s.opts.DefaultHost
	}
	if t.Port == 0 {
		t.Port = s.opts.DefaultPort
	}

	return t
}

// countryCodes starts resolving the country of every target in the background
// and returns a func that waits for the results, in target order.
func (s *Service) countryCodes(targets []models.Target) func() []string {
	codes := make([]string, len(targets))
	if s.opts.Locator == nil {
		return func() []string { return codes }
	}

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = s.opts.Locator.CountryCode(t.Host)
		}()
	}

	return func() []string {
		wg.Wait()
		return codes
	}
}

func (s *Service) lookup(id int64) (models.ServerStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.cache[id]
	return st, ok
}

func (s *Service) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.cache)
}

// snapshotLocked copies the cache into a slice sorted by id. Callers hold mu.
func (s *Service) snapshotLocked() []models.ServerStatus {
	list := make([]models.ServerStatus, 0, len(s.cache))
	for _, st := range s.cache {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	metrics.CachedServers.Set(float64(len(list)))

	return list
}

// notify hands snapshot to OnUpdate unless a newer one was already delivered.
func (s *Service) notify(version uint64, snapshot []models.ServerStatus) {
	if s.opts.OnUpdate == nil {
		return
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if version <= s.notified {
		return
	}
	s.notified = version
	s.opts.OnUpdate(snapshot)
}
