package playlists

import (
	"cmp"
	"math"
	"slices"
)

// TrackKey identifies a track by exact track and artist name.
type TrackKey struct {
	Track  string `json:"track"`
	Artist string `json:"artist"`
}

// TrackSet is a set of exact (track, artist) pairs.
type TrackSet map[TrackKey]struct{}

// Contains reports whether the pair is in the set. Matching is exact and
// case-sensitive.
func (s TrackSet) Contains(track, artist string) bool {
	_, ok := s[TrackKey{Track: track, Artist: artist}]
	return ok
}

// Library is an immutable view over the flattened playlist export.
type Library struct {
	entries   []Entry
	summaries []Summary // ordered by TrackCount descending
	names     []string  // export order
	tracks    TrackSet
}

// NewLibrary builds a Library from entries and per-playlist summaries in
// export order.
func NewLibrary(entries []Entry, summaries []Summary) *Library {
	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
	}

	sorted := slices.Clone(summaries)
	slices.SortStableFunc(sorted, func(a, b Summary) int {
		return cmp.Compare(b.TrackCount, a.TrackCount)
	})

	tracks := make(TrackSet, len(entries))
	for _, e := range entries {
		tracks[TrackKey{Track: e.Track, Artist: e.Artist}] = struct{}{}
	}

	return &Library{
		entries:   entries,
		summaries: sorted,
		names:     names,
		tracks:    tracks,
	}
}

// Entries returns every playlist entry in export order.
func (l *Library) Entries() []Entry {
	return l.entries
}

// Summaries returns one summary per retained playlist, largest first.
func (l *Library) Summaries() []Summary {
	return l.summaries
}

// Names returns retained playlist names in export order.
func (l *Library) Names() []string {
	return l.names
}

// TrackSet returns the set of (track, artist) pairs on any retained playlist.
func (l *Library) TrackSet() TrackSet {
	return l.tracks
}

// Overview summarizes the whole library.
type Overview struct {
	TotalPlaylists      int     `json:"total_playlists"`
	TotalTracks         int     `json:"total_tracks"`
	UniqueTracks        int     `json:"unique_tracks"`
	UniqueArtists       int     `json:"unique_artists"`
	AvgPlaylistSize     float64 `json:"avg_playlist_size"`
	LargestPlaylist     string  `json:"largest_playlist"`
	LargestPlaylistSize int     `json:"largest_playlist_size"`
}

// Overview returns library-wide counts. It returns false when the library
// has no entries.
func (l *Library) Overview() (Overview, bool) {
	if len(l.entries) == 0 {
		return Overview{}, false
	}

	artists := make(map[string]struct{})
	for _, e := range l.entries {
		artists[e.Artist] = struct{}{}
	}

	o := Overview{
		TotalPlaylists: len(l.summaries),
		TotalTracks:    len(l.entries),
		UniqueTracks:   len(l.tracks),
		UniqueArtists:  len(artists),
	}

	if len(l.summaries) > 0 {
		total := 0
		for _, s := range l.summaries {
			total += s.TrackCount
		}
		o.AvgPlaylistSize = round1(float64(total) / float64(len(l.summaries)))
		o.LargestPlaylist = l.summaries[0].Name
		o.LargestPlaylistSize = l.summaries[0].TrackCount
	}

	return o, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
