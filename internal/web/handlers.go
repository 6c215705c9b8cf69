package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justestif/go-spotify-listening-stats/internal/clustering"
	"github.com/justestif/go-spotify-listening-stats/internal/dataset"
	"github.com/justestif/go-spotify-listening-stats/internal/genres"
	"github.com/justestif/go-spotify-listening-stats/internal/history"
	"github.com/justestif/go-spotify-listening-stats/internal/playlists"
	"github.com/justestif/go-spotify-listening-stats/internal/stats"
)

// Default limits applied when a request has no limit parameter.
const (
	defaultLimit        = 10
	defaultGenreLimit   = 20
	defaultTrendGenres  = 5
	defaultGroupArtists = 200
)

// Handlers contains HTTP handlers for the statistics API.
type Handlers struct {
	data   *dataset.Dataset
	genres *genres.Service
	logger logrus.FieldLogger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(data *dataset.Dataset, genreSvc *genres.Service, logger logrus.FieldLogger) *Handlers {
	return &Handlers{
		data:   data,
		genres: genreSvc,
		logger: logger,
	}
}

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status            string `json:"status"`
		EventsLoadedAt    string `json:"events_loaded_at,omitempty"`
		PlaylistsLoadedAt string `json:"playlists_loaded_at,omitempty"`
	}

	resp := health{Status: "ok"}
	events, lists := h.data.LoadedAt()
	if !events.IsZero() {
		resp.EventsLoadedAt = events.Format(time.RFC3339)
	}
	if !lists.IsZero() {
		resp.PlaylistsLoadedAt = lists.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Years lists the years present in the history (GET /api/years).
func (h *Handlers) Years(w http.ResponseWriter, r *http.Request) {
	events, ok := h.events(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(history.Years(events)))
}

// Overview returns headline numbers (GET /api/overview?year=).
func (h *Handlers) Overview(w http.ResponseWriter, r *http.Request) {
	events, ok := h.yearEvents(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.Overview(events))
}

// Top ranks artists, tracks or albums
// (GET /api/top?dimension=&metric=&year=&limit=).
func (h *Handlers) Top(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dim := q.Get("dimension")
	if dim == "" {
		dim = string(stats.DimensionArtist)
	}
	dimension, err := stats.ParseDimension(dim)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	metric, err := stats.ParseMetric(q.Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	year, err := intParam(r, "year", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, ok := h.events(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.Top(events, stats.TopQuery{
		Dimension: dimension,
		Metric:    metric,
		Year:      year,
		Limit:     limit,
	}))
}

// MostSkipped ranks skipped tracks (GET /api/skipped?year=&limit=).
func (h *Handlers) MostSkipped(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events, ok := h.yearEvents(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(stats.MostSkipped(events, limit)))
}

// Heatmap returns plays by weekday and hour (GET /api/heatmap?year=).
func (h *Handlers) Heatmap(w http.ResponseWriter, r *http.Request) {
	events, ok := h.yearEvents(w, r)
	if !ok {
		return
	}
	hm := stats.BuildHeatmap(events)
	writeJSON(w, http.StatusOK, map[string]any{
		"days":  []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		"plays": hm,
		"total": hm.Total(),
	})
}

// Platforms groups plays by platform (GET /api/platforms?year=).
func (h *Handlers) Platforms(w http.ResponseWriter, r *http.Request) {
	events, ok := h.yearEvents(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(stats.PlatformStats(events)))
}

// Timeline buckets plays by period (GET /api/timeline?period=D|W|M|Y&year=).
func (h *Handlers) Timeline(w http.ResponseWriter, r *http.Request) {
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events, ok := h.yearEvents(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.ListeningOverTime(events, period))
}

// Search finds tracks or artists (GET /api/search?q=&scope=&limit=).
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing query parameter q"))
		return
	}
	scope, err := stats.ParseScope(q.Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	def := stats.DefaultTrackSearchLimit
	if scope == stats.ScopeArtist {
		def = stats.DefaultArtistSearchLimit
	}
	limit, err := intParam(r, "limit", def)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, ok := h.events(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.Search(events, query, scope, limit))
}

// TrackStats details one track (GET /api/tracks/stats?track=&artist=).
func (h *Handlers) TrackStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	track, artist := q.Get("track"), q.Get("artist")
	if track == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("track is required"))
		return
	}

	events, ok := h.events(w, r)
	if !ok {
		return
	}
	detail := stats.TrackStats(events, track, artist)
	if detail == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no plays of %q by %q", track, artist))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type playRow struct {
	Timestamp     string  `json:"ts"`
	Track         string  `json:"track"`
	Album         string  `json:"album"`
	MinutesPlayed float64 `json:"minutes_played"`
	Skipped       bool    `json:"skipped"`
	Platform      string  `json:"platform"`
}

// ArtistPlays lists every play of an artist (GET /api/artists/plays?artist=).
func (h *Handlers) ArtistPlays(w http.ResponseWriter, r *http.Request) {
	artist := r.URL.Query().Get("artist")
	if artist == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing query parameter artist"))
		return
	}

	events, ok := h.events(w, r)
	if !ok {
		return
	}
	plays := stats.ArtistPlays(events, artist)
	rows := make([]playRow, len(plays))
	for i, e := range plays {
		rows[i] = playRow{
			Timestamp:     e.Timestamp.Format(time.RFC3339),
			Track:         e.Track,
			Album:         e.Album,
			MinutesPlayed: e.MinutesPlayed,
			Skipped:       e.Skipped,
			Platform:      e.Platform,
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// OneHitWonders lists tracks played once and never added to a playlist
// (GET /api/one-hit-wonders?limit=).
func (h *Handlers) OneHitWonders(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events, lib, ok := h.eventsAndLibrary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(stats.OneHitWonders(events, lib.TrackSet(), limit)))
}

// OneHitStats summarizes one-hit wonders (GET /api/one-hit-wonders/stats).
func (h *Handlers) OneHitStats(w http.ResponseWriter, r *http.Request) {
	events, lib, ok := h.eventsAndLibrary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.OneHitWonderStats(events, lib.TrackSet()))
}

// TopNotOnPlaylist ranks played tracks missing from every playlist
// (GET /api/not-on-playlist?limit=).
func (h *Handlers) TopNotOnPlaylist(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events, lib, ok := h.eventsAndLibrary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.TopNotOnPlaylist(events, lib.TrackSet(), limit))
}

// NotOnPlaylistStats summarizes playlist coverage
// (GET /api/not-on-playlist/stats).
func (h *Handlers) NotOnPlaylistStats(w http.ResponseWriter, r *http.Request) {
	events, lib, ok := h.eventsAndLibrary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.NotOnPlaylistStats(events, lib.TrackSet()))
}

// Reload drops the loaded tables so the next query rereads the exports
// (POST /api/reload).
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	h.data.Invalidate()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloading"})
}

// Playlists lists playlist summaries (GET /api/playlists).
func (h *Handlers) Playlists(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lib.Summaries()))
}

// PlaylistOverview returns library-wide counts (GET /api/playlists/overview).
func (h *Handlers) PlaylistOverview(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	ov, found := lib.Overview()
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// PlaylistTracks lists one playlist (GET /api/playlists/tracks?name=).
func (h *Handlers) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	name, ok := requiredParam(w, r, "name")
	if !ok {
		return
	}
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lib.Tracks(name)))
}

// PlaylistTopArtists ranks artists within one playlist
// (GET /api/playlists/top-artists?name=&limit=).
func (h *Handlers) PlaylistTopArtists(w http.ResponseWriter, r *http.Request) {
	name, ok := requiredParam(w, r, "name")
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lib.TopArtists(name, limit)))
}

// ArtistDistribution ranks artists by playlist spread
// (GET /api/playlists/artists?limit=).
func (h *Handlers) ArtistDistribution(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultGenreLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lib.ArtistDistribution(limit)))
}

// Duplicates lists tracks on several playlists (GET /api/playlists/duplicates).
func (h *Handlers) Duplicates(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lib.Duplicates()))
}

// Overlap compares two playlists (GET /api/playlists/overlap?a=&b=).
func (h *Handlers) Overlap(w http.ResponseWriter, r *http.Request) {
	first, ok := requiredParam(w, r, "a")
	if !ok {
		return
	}
	second, ok := requiredParam(w, r, "b")
	if !ok {
		return
	}
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lib.Overlap(first, second))
}

// TrackOverlaps lists tracks of one playlist found elsewhere
// (GET /api/playlists/track-overlaps?name=).
func (h *Handlers) TrackOverlaps(w http.ResponseWriter, r *http.Request) {
	name, ok := requiredParam(w, r, "name")
	if !ok {
		return
	}
	lib, ok := h.library(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lib.TrackOverlaps(name)))
}

// Genres returns the cached artist genres (GET /api/genres).
func (h *Handlers) Genres(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.genres.Cached())
}

// GenreStatus reports API and cache state (GET /api/genres/status).
func (h *Handlers) GenreStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.genres.Status())
}

// TopGenres ranks genres by plays (GET /api/genres/top?year=&limit=).
func (h *Handlers) TopGenres(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultGenreLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events, ok := h.yearEvents(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(genres.TopGenres(events, h.genres.Cached(), limit)))
}

// GenreTrends returns monthly plays of the top genres
// (GET /api/genres/trends?top=&year=).
func (h *Handlers) GenreTrends(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", defaultTrendGenres)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events, ok := h.yearEvents(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, genres.Trends(events, h.genres.Cached(), top))
}

// ArtistGenres returns one artist's genres (GET /api/genres/artist?name=).
func (h *Handlers) ArtistGenres(w http.ResponseWriter, r *http.Request) {
	name, ok := requiredParam(w, r, "name")
	if !ok {
		return
	}
	g, found := genres.ArtistGenres(h.genres.Cached(), name)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("no genres cached for %q", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artist": name, "genres": g})
}

// GenreGroups clusters the most played artists by genre
// (GET /api/genres/groups?clusters=&min_size=&artists=).
func (h *Handlers) GenreGroups(w http.ResponseWriter, r *http.Request) {
	cfg := clustering.DefaultGroupConfig()
	var err error
	if cfg.NumClusters, err = intParam(r, "clusters", cfg.NumClusters); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if cfg.MinGroupSize, err = intParam(r, "min_size", cfg.MinGroupSize); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := intParam(r, "artists", defaultGroupArtists)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, ok := h.events(w, r)
	if !ok {
		return
	}
	artists := genres.GroupInput(events, h.genres.Cached(), n)

	groups, ungrouped, err := clustering.GroupArtists(artists, cfg)
	if err != nil {
		h.logger.WithError(err).Warn("Genre grouping failed")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":    nonNil(groups),
		"ungrouped": nonNil(ungrouped),
	})
}

// Enrich fetches missing genres from Spotify
// (POST /api/genres/enrich?force=true).
func (h *Handlers) Enrich(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	events, ok := h.events(w, r)
	if !ok {
		return
	}

	names := make([]string, 0)
	for _, row := range stats.Top(events, stats.TopQuery{Dimension: stats.DimensionArtist}) {
		names = append(names, row.Artist)
	}

	cache, report := h.genres.Enrich(r.Context(), names, events, force)
	writeJSON(w, http.StatusOK, map[string]any{
		"report":         report,
		"cached_artists": len(cache),
	})
}

func (h *Handlers) events(w http.ResponseWriter, r *http.Request) ([]history.PlayEvent, bool) {
	events, err := h.data.Events(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Loading streaming history failed")
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return events, true
}

// yearEvents returns the events of the year query parameter, or all events.
func (h *Handlers) yearEvents(w http.ResponseWriter, r *http.Request) ([]history.PlayEvent, bool) {
	year, err := intParam(r, "year", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	events, ok := h.events(w, r)
	if !ok {
		return nil, false
	}
	return history.FilterYear(events, year), true
}

func (h *Handlers) library(w http.ResponseWriter, r *http.Request) (*playlists.Library, bool) {
	lib, err := h.data.Playlists(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Loading playlists failed")
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return lib, true
}

func (h *Handlers) eventsAndLibrary(w http.ResponseWriter, r *http.Request) ([]history.PlayEvent, *playlists.Library, bool) {
	events, ok := h.events(w, r)
	if !ok {
		return nil, nil, false
	}
	lib, ok := h.library(w, r)
	if !ok {
		return nil, nil, false
	}
	return events, lib, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func requiredParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing query parameter %s", name))
		return "", false
	}
	return v, true
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
