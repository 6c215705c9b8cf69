package stats

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/justestif/go-spotify-listening-stats/internal/history"
)

// Summary holds headline numbers for a set of events.
type Summary struct {
	TotalPlays    int     `json:"total_plays"`
	UniqueTracks  int     `json:"unique_tracks"`
	UniqueArtists int     `json:"unique_artists"`
	HoursListened float64 `json:"hours_listened"`
}

// Overview computes headline numbers over every event.
func Overview(events []history.PlayEvent) Summary {
	tracks := make(map[string]struct{})
	artists := make(map[string]struct{})
	var minutes float64
	for _, e := range events {
		tracks[e.Track] = struct{}{}
		if e.Artist != "" {
			artists[e.Artist] = struct{}{}
		}
		minutes += e.MinutesPlayed
	}
	return Summary{
		TotalPlays:    len(events),
		UniqueTracks:  len(tracks),
		UniqueArtists: len(artists),
		HoursListened: minutes / 60,
	}
}

// PlatformRow aggregates plays on one simplified platform.
type PlatformRow struct {
	Platform     string  `json:"platform"`
	PlayCount    int     `json:"play_count"`
	TotalMinutes float64 `json:"total_minutes"`
}

// PlatformStats groups plays by simplified platform name, most played first.
func PlatformStats(events []history.PlayEvent) []PlatformRow {
	g := newGroups[string, PlatformRow]()
	for _, e := range events {
		name := SimplifyPlatform(e.Platform)
		row := g.at(name, func() PlatformRow { return PlatformRow{Platform: name} })
		row.PlayCount++
		row.TotalMinutes += e.MinutesPlayed
	}

	rows := g.rows
	if rows == nil {
		rows = []PlatformRow{}
	}
	slices.SortStableFunc(rows, func(a, b PlatformRow) int {
		return cmp.Compare(b.PlayCount, a.PlayCount)
	})
	return rows
}

// SimplifyPlatform maps raw platform strings such as
// "iOS 16.1 (iPhone14,2)" to a short family name.
func SimplifyPlatform(p string) string {
	if p == "" {
		return "Unknown"
	}
	lower := strings.ToLower(p)
	switch {
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ios"):
		return "iPhone"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "mac"), strings.Contains(lower, "osx"):
		return "Mac"
	case strings.Contains(lower, "web"):
		return "Web Player"
	case strings.Contains(lower, "linux"):
		return "Linux"
	default:
		return "Other"
	}
}

// Period is a time bucket size for ListeningOverTime.
type Period string

const (
	PeriodDay   Period = "D"
	PeriodWeek  Period = "W"
	PeriodMonth Period = "M"
	PeriodYear  Period = "Y"
)

// ParsePeriod validates a period code. Empty selects months.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToUpper(s)); p {
	case "":
		return PeriodMonth, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// PeriodRow aggregates plays within one period.
type PeriodRow struct {
	Period        string  `json:"period"`
	PlayCount     int     `json:"play_count"`
	TotalMinutes  float64 `json:"total_minutes"`
	UniqueTracks  int     `json:"unique_tracks"`
	UniqueArtists int     `json:"unique_artists"`

	start   time.Time
	tracks  map[string]struct{}
	artists map[string]struct{}
}

// ListeningOverTime buckets plays by period, oldest first.
func ListeningOverTime(events []history.PlayEvent, period Period) []PeriodRow {
	g := newGroups[time.Time, PeriodRow]()
	for _, e := range events {
		start, label := PeriodStart(e.Timestamp, period)
		row := g.at(start, func() PeriodRow {
			return PeriodRow{
				Period:  label,
				start:   start,
				tracks:  make(map[string]struct{}),
				artists: make(map[string]struct{}),
			}
		})
		row.PlayCount++
		row.TotalMinutes += e.MinutesPlayed
		row.tracks[e.Track] = struct{}{}
		if e.Artist != "" {
			row.artists[e.Artist] = struct{}{}
		}
		row.UniqueTracks = len(row.tracks)
		row.UniqueArtists = len(row.artists)
	}

	rows := g.rows
	if rows == nil {
		rows = []PeriodRow{}
	}
	slices.SortFunc(rows, func(a, b PeriodRow) int {
		return a.start.Compare(b.start)
	})
	return rows
}

// PeriodStart returns the UTC start of the period containing ts and its
// label. Weeks run Monday to Sunday and are labelled "start/end".
func PeriodStart(ts time.Time, period Period) (time.Time, string) {
	ts = ts.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodDay:
		return day, day.Format(time.DateOnly)
	case PeriodWeek:
		start := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		end := start.AddDate(0, 0, 6)
		return start, start.Format(time.DateOnly) + "/" + end.Format(time.DateOnly)
	case PeriodYear:
		start := time.Date(ts.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.Format("2006")
	default:
		start := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.Format("2006-01")
	}
}
