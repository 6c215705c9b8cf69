package dataset

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justestif/go-spotify-listening-stats/internal/history"
	"github.com/justestif/go-spotify-listening-stats/internal/playlists"
)

// Config locates the export files.
type Config struct {
	DataDir        string
	HistoryPattern string
	PlaylistFile   string
	Excluded       []string
}

// Dataset holds the process-wide play-event and playlist tables.
type Dataset struct {
	dir          string
	pattern      string
	playlistPath string
	logger       logrus.FieldLogger

	events    *Slot[[]history.PlayEvent]
	playlists *Slot[*playlists.Library]
}

// New creates a Dataset backed by the export files described by cfg.
// Nothing is read until the first query.
func New(cfg Config, opts ...SlotOption) *Dataset {
	pattern := cfg.HistoryPattern
	if pattern == "" {
		pattern = history.DefaultPattern
	}
	playlistPath := cfg.PlaylistFile
	if playlistPath == "" {
		playlistPath = playlists.DefaultFile
	}
	if !filepath.IsAbs(playlistPath) {
		playlistPath = filepath.Join(cfg.DataDir, playlistPath)
	}
	excluded := cfg.Excluded
	if excluded == nil {
		excluded = playlists.DefaultExcluded
	}

	sc := slotConfig{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&sc)
	}

	return &Dataset{
		dir:          cfg.DataDir,
		pattern:      pattern,
		playlistPath: playlistPath,
		logger:       sc.logger,

		events: NewSlot("events", func(context.Context) ([]history.PlayEvent, error) {
			return history.LoadDir(cfg.DataDir, pattern)
		}, opts...),
		playlists: NewSlot("playlists", func(context.Context) (*playlists.Library, error) {
			return playlists.Load(playlistPath, excluded)
		}, opts...),
	}
}

// Events returns the music-only play events.
func (d *Dataset) Events(ctx context.Context) ([]history.PlayEvent, error) {
	return d.events.Get(ctx)
}

// Playlists returns the playlist library.
func (d *Dataset) Playlists(ctx context.Context) (*playlists.Library, error) {
	return d.playlists.Get(ctx)
}

// LoadedAt reports when each table was last loaded. A table that has not
// been loaded, or was invalidated since, reports the zero time.
func (d *Dataset) LoadedAt() (events, lists time.Time) {
	return d.events.LoadedAt(), d.playlists.LoadedAt()
}

// Invalidate forces both tables to reload on next access.
func (d *Dataset) Invalidate() {
	d.events.Invalidate()
	d.playlists.Invalidate()
}
