// Package history loads Spotify extended streaming history exports and
// normalizes them into play events.
package history

import "time"

// PlayEvent is one logged listen of a music track.
// Empty Artist or Album means the export carried no value.
type PlayEvent struct {
	Timestamp time.Time
	Track     string
	Artist    string
	Album     string
	MsPlayed  int64
	Skipped   bool
	Platform  string
	TrackURI  string

	// Derived at load time from Timestamp (UTC).
	Year          int
	Month         int
	Day           int
	Hour          int
	DayOfWeek     int // 0=Monday .. 6=Sunday
	DayName       string
	Date          string // YYYY-MM-DD
	MinutesPlayed float64
}

// rawEvent mirrors one object in a Streaming_History_Audio_*.json file.
type rawEvent struct {
	TS             string  `json:"ts"`
	MsPlayed       int64   `json:"ms_played"`
	TrackName      *string `json:"master_metadata_track_name"`
	ArtistName     *string `json:"master_metadata_album_artist_name"`
	AlbumName      *string `json:"master_metadata_album_album_name"`
	EpisodeName    *string `json:"episode_name"`
	AudiobookTitle *string `json:"audiobook_title"`
	Skipped        *bool   `json:"skipped"`
	Platform       *string `json:"platform"`
	TrackURI       *string `json:"spotify_track_uri"`
}

// isMusic reports whether a raw record is a music listen: it names a track
// and carries neither a podcast episode nor an audiobook title.
func isMusic(track, episodeName, audiobookTitle *string) bool {
	return present(track) && !present(episodeName) && !present(audiobookTitle)
}

func present(s *string) bool {
	return s != nil && *s != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// newPlayEvent builds a PlayEvent from a raw record.
func newPlayEvent(raw rawEvent, ts time.Time) PlayEvent {
	e := PlayEvent{
		Timestamp: ts,
		Track:     deref(raw.TrackName),
		Artist:    deref(raw.ArtistName),
		Album:     deref(raw.AlbumName),
		MsPlayed:  raw.MsPlayed,
		Platform:  deref(raw.Platform),
		TrackURI:  deref(raw.TrackURI),
	}
	if raw.Skipped != nil {
		e.Skipped = *raw.Skipped
	}
	return Derive(e)
}

// Derive normalizes Timestamp to UTC, clamps MsPlayed at zero and fills in
// the time-derived fields.
func Derive(e PlayEvent) PlayEvent {
	ts := e.Timestamp.UTC()
	if e.MsPlayed < 0 {
		e.MsPlayed = 0
	}
	e.Timestamp = ts
	e.Year = ts.Year()
	e.Month = int(ts.Month())
	e.Day = ts.Day()
	e.Hour = ts.Hour()
	e.DayOfWeek = mondayFirst(ts.Weekday())
	e.DayName = ts.Weekday().String()
	e.Date = ts.Format(time.DateOnly)
	e.MinutesPlayed = float64(e.MsPlayed) / 60000
	return e
}

// mondayFirst converts time.Weekday (Sunday=0) to a Monday=0 index.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}
