package stats

import (
	"cmp"
	"slices"
	"time"

	"github.com/justestif/go-spotify-listening-stats/internal/history"
	"github.com/justestif/go-spotify-listening-stats/internal/playlists"
)

// MinOneHitMs is the minimum listen, in milliseconds, for a single play to
// count as a one-hit wonder.
const MinOneHitMs = 120000

// pairTotals aggregates all plays of one (track, artist) pair.
type pairTotals struct {
	track        string
	artist       string
	album        string // album of the earliest play
	playCount    int
	msPlayed     int64
	totalMinutes float64
	firstPlayed  time.Time
	lastPlayed   time.Time
}

// totalsByPair groups events by exact (track, artist). Events without an
// artist are not grouped.
func totalsByPair(events []history.PlayEvent) []pairTotals {
	g := newGroups[pairKey, pairTotals]()
	for _, e := range events {
		if e.Artist == "" {
			continue
		}
		p := g.at(pairKey{e.Track, e.Artist}, func() pairTotals {
			return pairTotals{
				track:       e.Track,
				artist:      e.Artist,
				album:       e.Album,
				firstPlayed: e.Timestamp,
				lastPlayed:  e.Timestamp,
			}
		})
		p.playCount++
		p.msPlayed += e.MsPlayed
		p.totalMinutes += e.MinutesPlayed
		if e.Timestamp.Before(p.firstPlayed) {
			p.firstPlayed = e.Timestamp
			p.album = e.Album
		}
		if e.Timestamp.After(p.lastPlayed) {
			p.lastPlayed = e.Timestamp
		}
	}
	return g.rows
}

// OneHit is a track played exactly once, long enough to count, and never
// added to a playlist.
type OneHit struct {
	Track    string    `json:"track"`
	Artist   string    `json:"artist"`
	Album    string    `json:"album"`
	PlayedOn time.Time `json:"played_on"`
	MsPlayed int64     `json:"ms_played"`
}

// OneHitWonders lists one-hit wonders, most recently played first.
// Playlist membership uses exact, case-sensitive (track, artist) equality.
func OneHitWonders(events []history.PlayEvent, onPlaylist playlists.TrackSet, limit int) []OneHit {
	hits := make([]OneHit, 0)
	for _, p := range totalsByPair(events) {
		if !isOneHit(p, onPlaylist) {
			continue
		}
		hits = append(hits, OneHit{
			Track:    p.track,
			Artist:   p.artist,
			Album:    p.album,
			PlayedOn: p.firstPlayed,
			MsPlayed: p.msPlayed,
		})
	}

	slices.SortStableFunc(hits, func(a, b OneHit) int {
		return b.PlayedOn.Compare(a.PlayedOn)
	})
	return truncate(hits, limit)
}

func isOneHit(p pairTotals, onPlaylist playlists.TrackSet) bool {
	return p.playCount == 1 && p.msPlayed >= MinOneHitMs && !onPlaylist.Contains(p.track, p.artist)
}

// OneHitStats relates the number of one-hit wonders to all tracks listened
// to for at least MinOneHitMs in total.
type OneHitStats struct {
	TotalUniqueTracks int     `json:"total_unique_tracks"`
	OneHitCount       int     `json:"one_hit_count"`
	OneHitPercent     float64 `json:"one_hit_percent"`
}

// OneHitWonderStats counts one-hit wonders among qualifying tracks.
func OneHitWonderStats(events []history.PlayEvent, onPlaylist playlists.TrackSet) OneHitStats {
	var s OneHitStats
	for _, p := range totalsByPair(events) {
		if p.msPlayed < MinOneHitMs {
			continue
		}
		s.TotalUniqueTracks++
		if isOneHit(p, onPlaylist) {
			s.OneHitCount++
		}
	}
	s.OneHitPercent = percent(s.OneHitCount, s.TotalUniqueTracks)
	return s
}

// NotOnPlaylist summarizes played tracks missing from every playlist.
type NotOnPlaylist struct {
	TotalUniqueTracks    int     `json:"total_unique_tracks"`
	OnPlaylistCount      int     `json:"on_playlist_count"`
	NotOnPlaylistCount   int     `json:"not_on_playlist_count"`
	NotOnPlaylistPercent float64 `json:"not_on_playlist_percent"`
	NotOnPlaylistPlays   int     `json:"not_on_playlist_plays"`
	NotOnPlaylistMinutes float64 `json:"not_on_playlist_minutes"`
}

// NotOnPlaylistStats applies the playlist-membership test to every played
// (track, artist) pair.
func NotOnPlaylistStats(events []history.PlayEvent, onPlaylist playlists.TrackSet) NotOnPlaylist {
	var s NotOnPlaylist
	for _, p := range totalsByPair(events) {
		s.TotalUniqueTracks++
		if onPlaylist.Contains(p.track, p.artist) {
			s.OnPlaylistCount++
			continue
		}
		s.NotOnPlaylistCount++
		s.NotOnPlaylistPlays += p.playCount
		s.NotOnPlaylistMinutes += p.totalMinutes
	}
	s.NotOnPlaylistPercent = percent(s.NotOnPlaylistCount, s.TotalUniqueTracks)
	return s
}

// UnlistedTrack is a played track absent from every playlist.
type UnlistedTrack struct {
	Track        string    `json:"track"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album"`
	PlayCount    int       `json:"play_count"`
	TotalMinutes float64   `json:"total_minutes"`
	LastPlayed   time.Time `json:"last_played"`
}

// TopNotOnPlaylist ranks played tracks absent from every playlist by play
// count.
func TopNotOnPlaylist(events []history.PlayEvent, onPlaylist playlists.TrackSet, limit int) []UnlistedTrack {
	rows := make([]UnlistedTrack, 0)
	for _, p := range totalsByPair(events) {
		if onPlaylist.Contains(p.track, p.artist) {
			continue
		}
		rows = append(rows, UnlistedTrack{
			Track:        p.track,
			Artist:       p.artist,
			Album:        p.album,
			PlayCount:    p.playCount,
			TotalMinutes: p.totalMinutes,
			LastPlayed:   p.lastPlayed,
		})
	}

	slices.SortStableFunc(rows, func(a, b UnlistedTrack) int {
		return cmp.Compare(b.PlayCount, a.PlayCount)
	})
	return truncate(rows, limit)
}
