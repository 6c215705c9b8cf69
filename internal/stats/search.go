package stats

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/justestif/go-spotify-listening-stats/internal/history"
)

// Scope selects what Search matches against.
type Scope string

const (
	ScopeTrack  Scope = "track"
	ScopeArtist Scope = "artist"
)

// Default result limits for searches.
const (
	DefaultTrackSearchLimit  = 50
	DefaultArtistSearchLimit = 20
)

// ParseScope validates a search scope. Empty selects track scope.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case "":
		return ScopeTrack, nil
	case ScopeTrack, ScopeArtist:
		return sc, nil
	}
	return "", fmt.Errorf("unknown search scope %q", s)
}

// TrackMatch aggregates plays of one (track, artist, album) matching a search.
type TrackMatch struct {
	Track        string    `json:"track"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album"`
	PlayCount    int       `json:"play_count"`
	TotalMinutes float64   `json:"total_minutes"`
	FirstPlayed  time.Time `json:"first_played"`
	LastPlayed   time.Time `json:"last_played"`
}

// ArtistMatch aggregates plays of one artist matching a search.
type ArtistMatch struct {
	Artist       string    `json:"artist"`
	PlayCount    int       `json:"play_count"`
	TotalMinutes float64   `json:"total_minutes"`
	UniqueTracks int       `json:"unique_tracks"`
	FirstPlayed  time.Time `json:"first_played"`
	LastPlayed   time.Time `json:"last_played"`

	tracks map[string]struct{}
}

// SearchResult holds the matches of whichever scope was searched.
type SearchResult struct {
	Scope   Scope         `json:"scope"`
	Tracks  []TrackMatch  `json:"tracks,omitempty"`
	Artists []ArtistMatch `json:"artists,omitempty"`
}

// Search runs a case-insensitive substring search in the given scope.
func Search(events []history.PlayEvent, query string, scope Scope, limit int) SearchResult {
	if scope == ScopeArtist {
		return SearchResult{Scope: scope, Artists: SearchArtists(events, query, limit)}
	}
	return SearchResult{Scope: ScopeTrack, Tracks: SearchTracks(events, query, limit)}
}

// SearchTracks matches query against track, artist and album names and
// groups matches by (track, artist, album), most played first.
func SearchTracks(events []history.PlayEvent, query string, limit int) []TrackMatch {
	q := strings.ToLower(query)
	g := newGroups[rowKey, TrackMatch]()

	for _, e := range events {
		if e.Artist == "" || e.Album == "" {
			continue
		}
		if !contains(e.Track, q) && !contains(e.Artist, q) && !contains(e.Album, q) {
			continue
		}
		m := g.at(rowKey{e.Track, e.Artist, e.Album}, func() TrackMatch {
			return TrackMatch{
				Track:       e.Track,
				Artist:      e.Artist,
				Album:       e.Album,
				FirstPlayed: e.Timestamp,
				LastPlayed:  e.Timestamp,
			}
		})
		m.PlayCount++
		m.TotalMinutes += e.MinutesPlayed
		m.FirstPlayed, m.LastPlayed = widen(m.FirstPlayed, m.LastPlayed, e.Timestamp)
	}

	rows := g.rows
	if rows == nil {
		rows = []TrackMatch{}
	}
	slices.SortStableFunc(rows, func(a, b TrackMatch) int {
		return cmp.Compare(b.PlayCount, a.PlayCount)
	})
	return truncate(rows, limit)
}

// SearchArtists matches query against artist names and groups matches by
// artist, most played first.
func SearchArtists(events []history.PlayEvent, query string, limit int) []ArtistMatch {
	q := strings.ToLower(query)
	g := newGroups[string, ArtistMatch]()

	for _, e := range events {
		if e.Artist == "" || !contains(e.Artist, q) {
			continue
		}
		m := g.at(e.Artist, func() ArtistMatch {
			return ArtistMatch{
				Artist:      e.Artist,
				FirstPlayed: e.Timestamp,
				LastPlayed:  e.Timestamp,
				tracks:      make(map[string]struct{}),
			}
		})
		m.PlayCount++
		m.TotalMinutes += e.MinutesPlayed
		m.tracks[e.Track] = struct{}{}
		m.UniqueTracks = len(m.tracks)
		m.FirstPlayed, m.LastPlayed = widen(m.FirstPlayed, m.LastPlayed, e.Timestamp)
	}

	rows := g.rows
	if rows == nil {
		rows = []ArtistMatch{}
	}
	slices.SortStableFunc(rows, func(a, b ArtistMatch) int {
		return cmp.Compare(b.PlayCount, a.PlayCount)
	})
	return truncate(rows, limit)
}

// TrackDetail aggregates every play of a single track.
type TrackDetail struct {
	Track        string              `json:"track"`
	Artist       string              `json:"artist"`
	Album        string              `json:"album"`
	PlayCount    int                 `json:"play_count"`
	TotalMinutes float64             `json:"total_minutes"`
	FirstPlayed  time.Time           `json:"first_played"`
	LastPlayed   time.Time           `json:"last_played"`
	PlaysByYear  map[int]int         `json:"plays_by_year"`
	Plays        []history.PlayEvent `json:"-"`
}

// TrackStats matches track (and artist, when non-empty) by case-insensitive
// equality. It returns nil when nothing matches.
func TrackStats(events []history.PlayEvent, track, artist string) *TrackDetail {
	wantTrack := strings.ToLower(track)
	wantArtist := strings.ToLower(artist)

	var d *TrackDetail
	for _, e := range events {
		if strings.ToLower(e.Track) != wantTrack {
			continue
		}
		if artist != "" && strings.ToLower(e.Artist) != wantArtist {
			continue
		}
		if d == nil {
			d = &TrackDetail{
				Track:       e.Track,
				Artist:      e.Artist,
				Album:       e.Album,
				FirstPlayed: e.Timestamp,
				LastPlayed:  e.Timestamp,
				PlaysByYear: make(map[int]int),
			}
		}
		d.PlayCount++
		d.TotalMinutes += e.MinutesPlayed
		d.PlaysByYear[e.Year]++
		d.FirstPlayed, d.LastPlayed = widen(d.FirstPlayed, d.LastPlayed, e.Timestamp)
		d.Plays = append(d.Plays, e)
	}
	return d
}

// ArtistPlays returns every play of artist, matched case-insensitively.
func ArtistPlays(events []history.PlayEvent, artist string) []history.PlayEvent {
	want := strings.ToLower(artist)
	plays := make([]history.PlayEvent, 0)
	for _, e := range events {
		if strings.ToLower(e.Artist) == want {
			plays = append(plays, e)
		}
	}
	return plays
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

func widen(first, last, ts time.Time) (time.Time, time.Time) {
	if ts.Before(first) {
		first = ts
	}
	if ts.After(last) {
		last = ts
	}
	return first, last
}
