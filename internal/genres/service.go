// Package genres enriches artists with Spotify genre labels and keeps the
// results in a file cache that only ever grows.
package genres

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	zspotify "github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-listening-stats/internal/auth"
	"github.com/justestif/go-spotify-listening-stats/internal/history"
	"github.com/justestif/go-spotify-listening-stats/internal/spotify"
)

var enrichRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "genre_enrich_runs_total", Help: "Genre enrichment runs by result source"},
	[]string{"source"},
)

func init() {
	prometheus.MustRegister(enrichRuns)
}

// Source says where an enrichment result came from.
type Source string

const (
	// SourceCache means a non-empty cache was returned without network access.
	SourceCache Source = "cache"
	// SourceUnavailable means credentials are missing.
	SourceUnavailable Source = "unavailable"
	// SourceNoToken means the token request failed.
	SourceNoToken Source = "no-token"
	// SourceNoTracks means no event carried a track URI to look up.
	SourceNoTracks Source = "no-tracks"
	// SourceNetwork means the API was queried and the cache updated.
	SourceNetwork Source = "network"
)

// TokenSource hands out API access tokens.
type TokenSource interface {
	Available() bool
	State() auth.State
	Token(ctx context.Context) (string, bool)
	Invalidate()
}

// Fetcher performs the batched catalog lookups.
type Fetcher interface {
	FetchTrackArtists(ctx context.Context, trackIDs []string, token string) (map[string][]zspotify.SimpleArtist, spotify.Report)
	FetchGenres(ctx context.Context, artistIDs []string, token string) (map[string][]string, spotify.Report)
}

// Report describes one Enrich call.
type Report struct {
	RunID         string          `json:"run_id"`
	Source        Source          `json:"source"`
	Tracks        int             `json:"tracks"`
	Artists       int             `json:"artists"`
	Added         int             `json:"added"`
	TrackLookup   *spotify.Report `json:"-"`
	GenreLookup   *spotify.Report `json:"-"`
	FailedBatches int             `json:"failed_batches"`
	Partial       bool            `json:"partial"`
	Persisted     bool            `json:"persisted"`
	Missing       []string        `json:"missing"`
}

// Status is the API and cache state.
type Status struct {
	APIAvailable  bool       `json:"api_available"`
	TokenState    auth.State `json:"token_state"`
	CacheExists   bool       `json:"cache_exists"`
	CachedArtists int        `json:"cached_artists"`
	HasGenreData  bool       `json:"has_genre_data"`
}

// Service orchestrates genre enrichment.
type Service struct {
	tokens     TokenSource
	fetcher    Fetcher
	cache      *Cache
	trackLimit int
	logger     logrus.FieldLogger

	runMu  sync.Mutex   // one Enrich at a time
	fileMu sync.RWMutex // guards the cache file
}

// Option configures a Service.
type Option func(*Service)

// WithTrackLimit caps the number of distinct tracks looked up per run.
// Zero or less means no cap.
func WithTrackLimit(n int) Option {
	return func(s *Service) {
		s.trackLimit = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
func NewService(tokens TokenSource, fetcher Fetcher, cache *Cache, opts ...Option) *Service {
	s := &Service{
		tokens:  tokens,
		fetcher: fetcher,
		cache:   cache,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cached returns the current cache contents without any network access.
func (s *Service) Cached() map[string][]string {
	return s.load()
}

// Status reports API availability and cache size. It never touches the
// network.
func (s *Service) Status() Status {
	cached := s.Cached()
	return Status{
		APIAvailable:  s.tokens.Available(),
		TokenState:    s.tokens.State(),
		CacheExists:   s.cache.Exists(),
		CachedArtists: len(cached),
		HasGenreData:  len(cached) > 0,
	}
}

// Enrich returns genres for artists, keyed by artist name.
//
// A non-empty cache is returned as is unless force is set. Otherwise the
// track URIs in events are resolved to artists, their genres fetched, and
// the results merged into the cache and persisted. When the API cannot be
// used the existing cache is returned unchanged. Enrich never fails; the
// report says what happened.
func (s *Service) Enrich(ctx context.Context, artistNames []string, events []history.PlayEvent, force bool) (map[string][]string, *Report) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := &Report{RunID: uuid.NewString()}
	log := s.logger.WithField("run_id", report.RunID)

	cache := s.load()
	finish := func(src Source) (map[string][]string, *Report) {
		report.Source = src
		report.Missing = missing(artistNames, cache)
		enrichRuns.WithLabelValues(string(src)).Inc()
		return cache, report
	}

	if len(cache) > 0 && !force {
		return finish(SourceCache)
	}

	if !s.tokens.Available() {
		log.Info("Spotify API not configured, using cached genres only")
		return finish(SourceUnavailable)
	}

	token, ok := s.tokens.Token(ctx)
	if !ok {
		log.Warn("Could not get Spotify access token, using cached genres only")
		return finish(SourceNoToken)
	}

	trackIDs := trackIDs(events, s.trackLimit)
	report.Tracks = len(trackIDs)
	if len(trackIDs) == 0 {
		return finish(SourceNoTracks)
	}

	log.WithField("tracks", len(trackIDs)).Info("Fetching track artists")
	trackArtists, trackReport := s.fetcher.FetchTrackArtists(ctx, trackIDs, token)
	report.TrackLookup = &trackReport

	var artistIDs []string
	names := make(map[string]string)
	for _, id := range trackIDs {
		for _, a := range trackArtists[id] {
			aid := string(a.ID)
			if aid == "" {
				continue
			}
			if _, ok := names[aid]; !ok {
				artistIDs = append(artistIDs, aid)
			}
			names[aid] = a.Name
		}
	}
	report.Artists = len(artistIDs)

	log.WithField("artists", len(artistIDs)).Info("Fetching artist genres")
	artistGenres, genreReport := s.fetcher.FetchGenres(ctx, artistIDs, token)
	report.GenreLookup = &genreReport
	report.FailedBatches = len(trackReport.Failed()) + len(genreReport.Failed())
	s.dropRejectedToken(log, trackReport, genreReport)

	fetched := make(map[string][]string, len(artistGenres))
	for _, id := range artistIDs {
		g, ok := artistGenres[id]
		if !ok || names[id] == "" {
			continue
		}
		fetched[names[id]] = g
	}

	merged := maps.Clone(cache)
	for name := range fetched {
		if _, ok := merged[name]; !ok {
			report.Added++
		}
	}
	maps.Copy(merged, fetched)
	cache = merged
	report.Partial = report.FailedBatches > 0 && len(fetched) > 0

	if err := s.save(cache); err != nil {
		log.WithError(err).Error("Failed to persist genre cache")
	} else {
		report.Persisted = true
	}

	log.WithFields(logrus.Fields{
		"fetched":        len(fetched),
		"added":          report.Added,
		"failed_batches": report.FailedBatches,
		"partial":        report.Partial,
	}).Info("Genre enrichment finished")

	return finish(SourceNetwork)
}

// load reads the cache, treating a corrupt file as empty.
func (s *Service) load() map[string][]string {
	s.fileMu.RLock()
	defer s.fileMu.RUnlock()

	m, err := s.cache.Load()
	if err != nil {
		s.logger.WithError(err).WithField("path", s.cache.Path()).Warn("Ignoring unreadable genre cache")
	}
	return m
}

func (s *Service) save(m map[string][]string) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return s.cache.Save(m)
}

// dropRejectedToken discards the cached token when the API refused it, so
// the next run requests a new one.
func (s *Service) dropRejectedToken(log logrus.FieldLogger, reports ...spotify.Report) {
	for _, r := range reports {
		for _, b := range r.Failed() {
			if spotify.IsUnauthorized(b.Err) {
				log.Warn("Spotify rejected the access token, discarding it")
				s.tokens.Invalidate()
				return
			}
		}
	}
}

// trackIDs returns the distinct track ids in events in first-seen order.
func trackIDs(events []history.PlayEvent, limit int) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range events {
		id, ok := spotify.TrackID(e.TrackURI)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids
}

// missing lists the requested names absent from cache, once each.
func missing(names []string, cache map[string][]string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		if _, ok := cache[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
