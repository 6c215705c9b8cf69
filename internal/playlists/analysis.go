package playlists

import (
	"cmp"
	"slices"
)

// ArtistCount is the number of tracks an artist has in one playlist.
type ArtistCount struct {
	Artist     string `json:"artist"`
	TrackCount int    `json:"track_count"`
}

// ArtistSpread describes how an artist is spread across playlists.
type ArtistSpread struct {
	Artist        string   `json:"artist"`
	PlaylistCount int      `json:"playlist_count"`
	TrackCount    int      `json:"track_count"`
	Playlists     []string `json:"playlists"`
}

// Duplicate is a track found on more than one playlist.
type Duplicate struct {
	Track         string   `json:"track"`
	Artist        string   `json:"artist"`
	PlaylistCount int      `json:"playlist_count"`
	Playlists     []string `json:"playlists"`
}

// Overlap compares two playlists.
type Overlap struct {
	First             string     `json:"first"`
	Second            string     `json:"second"`
	FirstTrackCount   int        `json:"first_track_count"`
	SecondTrackCount  int        `json:"second_track_count"`
	FirstArtistCount  int        `json:"first_artist_count"`
	SecondArtistCount int        `json:"second_artist_count"`
	SharedArtists     []string   `json:"shared_artists"`
	SharedTracks      []TrackKey `json:"shared_tracks"`
}

// TrackOverlap is a track in one playlist that also appears elsewhere.
type TrackOverlap struct {
	Track          string   `json:"track"`
	Artist         string   `json:"artist"`
	OtherPlaylists []string `json:"other_playlists"`
	OverlapCount   int      `json:"overlap_count"`
}

// Tracks returns the entries of one playlist in export order.
func (l *Library) Tracks(playlist string) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Playlist == playlist {
			out = append(out, e)
		}
	}
	return out
}

// TopArtists counts tracks per artist within one playlist, most first.
func (l *Library) TopArtists(playlist string, limit int) []ArtistCount {
	index := make(map[string]int)
	var rows []ArtistCount
	for _, e := range l.entries {
		if e.Playlist != playlist {
			continue
		}
		i, ok := index[e.Artist]
		if !ok {
			i = len(rows)
			index[e.Artist] = i
			rows = append(rows, ArtistCount{Artist: e.Artist})
		}
		rows[i].TrackCount++
	}

	slices.SortStableFunc(rows, func(a, b ArtistCount) int {
		return cmp.Compare(b.TrackCount, a.TrackCount)
	})
	return truncate(rows, limit)
}

// ArtistDistribution ranks artists by the number of distinct playlists they
// appear on.
func (l *Library) ArtistDistribution(limit int) []ArtistSpread {
	index := make(map[string]int)
	var rows []ArtistSpread
	for _, e := range l.entries {
		i, ok := index[e.Artist]
		if !ok {
			i = len(rows)
			index[e.Artist] = i
			rows = append(rows, ArtistSpread{Artist: e.Artist})
		}
		rows[i].TrackCount++
		if !slices.Contains(rows[i].Playlists, e.Playlist) {
			rows[i].Playlists = append(rows[i].Playlists, e.Playlist)
			rows[i].PlaylistCount++
		}
	}

	slices.SortStableFunc(rows, func(a, b ArtistSpread) int {
		return cmp.Compare(b.PlaylistCount, a.PlaylistCount)
	})
	return truncate(rows, limit)
}

// Duplicates returns tracks present on two or more distinct playlists.
func (l *Library) Duplicates() []Duplicate {
	index := make(map[TrackKey]int)
	var groups []Duplicate
	for _, e := range l.entries {
		key := TrackKey{Track: e.Track, Artist: e.Artist}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Duplicate{Track: e.Track, Artist: e.Artist})
		}
		if !slices.Contains(groups[i].Playlists, e.Playlist) {
			groups[i].Playlists = append(groups[i].Playlists, e.Playlist)
			groups[i].PlaylistCount++
		}
	}

	dupes := make([]Duplicate, 0)
	for _, g := range groups {
		if g.PlaylistCount > 1 {
			dupes = append(dupes, g)
		}
	}

	slices.SortStableFunc(dupes, func(a, b Duplicate) int {
		return cmp.Compare(b.PlaylistCount, a.PlaylistCount)
	})
	return dupes
}

// Overlap compares the artists and exact tracks of two playlists. The shared
// sets are sorted, so swapping the arguments only swaps the labelled counts.
func (l *Library) Overlap(first, second string) Overlap {
	firstEntries := l.Tracks(first)
	secondEntries := l.Tracks(second)

	firstArtists, firstTracks := entrySets(firstEntries)
	secondArtists, secondTracks := entrySets(secondEntries)

	sharedArtists := make([]string, 0)
	for a := range firstArtists {
		if _, ok := secondArtists[a]; ok {
			sharedArtists = append(sharedArtists, a)
		}
	}
	slices.Sort(sharedArtists)

	sharedTracks := make([]TrackKey, 0)
	for k := range firstTracks {
		if _, ok := secondTracks[k]; ok {
			sharedTracks = append(sharedTracks, k)
		}
	}
	slices.SortFunc(sharedTracks, compareKeys)

	return Overlap{
		First:             first,
		Second:            second,
		FirstTrackCount:   len(firstEntries),
		SecondTrackCount:  len(secondEntries),
		FirstArtistCount:  len(firstArtists),
		SecondArtistCount: len(secondArtists),
		SharedArtists:     sharedArtists,
		SharedTracks:      sharedTracks,
	}
}

// TrackOverlaps finds, for each distinct track in playlist, the other
// playlists containing the same exact (track, artist) pair.
func (l *Library) TrackOverlaps(playlist string) []TrackOverlap {
	others := make(map[TrackKey][]string)
	for _, e := range l.entries {
		if e.Playlist == playlist {
			continue
		}
		key := TrackKey{Track: e.Track, Artist: e.Artist}
		if !slices.Contains(others[key], e.Playlist) {
			others[key] = append(others[key], e.Playlist)
		}
	}

	seen := make(map[TrackKey]struct{})
	result := make([]TrackOverlap, 0)
	for _, e := range l.entries {
		if e.Playlist != playlist {
			continue
		}
		key := TrackKey{Track: e.Track, Artist: e.Artist}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if names := others[key]; len(names) > 0 {
			result = append(result, TrackOverlap{
				Track:          e.Track,
				Artist:         e.Artist,
				OtherPlaylists: names,
				OverlapCount:   len(names),
			})
		}
	}

	slices.SortStableFunc(result, func(a, b TrackOverlap) int {
		return cmp.Compare(b.OverlapCount, a.OverlapCount)
	})
	return result
}

func entrySets(entries []Entry) (map[string]struct{}, TrackSet) {
	artists := make(map[string]struct{})
	tracks := make(TrackSet)
	for _, e := range entries {
		artists[e.Artist] = struct{}{}
		tracks[TrackKey{Track: e.Track, Artist: e.Artist}] = struct{}{}
	}
	return artists, tracks
}

func compareKeys(a, b TrackKey) int {
	if c := cmp.Compare(a.Artist, b.Artist); c != 0 {
		return c
	}
	return cmp.Compare(a.Track, b.Track)
}
