package stats

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/justestif/go-spotify-listening-stats/internal/history"
)

// Dimension selects the grouping key of a ranking.
type Dimension string

const (
	DimensionArtist Dimension = "artist"
	DimensionTrack  Dimension = "track"
	DimensionAlbum  Dimension = "album"
)

// Metric selects the ranking order.
type Metric string

const (
	MetricPlayCount    Metric = "plays"
	MetricTotalMinutes Metric = "minutes"
)

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case DimensionArtist, DimensionTrack, DimensionAlbum:
		return d, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// ParseMetric validates a metric name. Empty selects play count.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case "":
		return MetricPlayCount, nil
	case MetricPlayCount, MetricTotalMinutes:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// TopQuery parameterizes Top. Year 0 means all years; Limit <= 0 means no
// limit.
type TopQuery struct {
	Dimension Dimension
	Metric    Metric
	Year      int
	Limit     int
}

// Row is one ranked group. Only the key fields of the dimension are set.
type Row struct {
	Track        string  `json:"track,omitempty"`
	Artist       string  `json:"artist"`
	Album        string  `json:"album,omitempty"`
	PlayCount    int     `json:"play_count"`
	TotalMinutes float64 `json:"total_minutes"`
}

type rowKey struct {
	track, artist, album string
}

// Top ranks artists, tracks (track + artist) or albums (album + artist).
// Events missing a key field of the dimension are not grouped.
func Top(events []history.PlayEvent, q TopQuery) []Row {
	g := newGroups[rowKey, Row]()

	for _, e := range history.FilterYear(events, q.Year) {
		key, ok := dimensionKey(e, q.Dimension)
		if !ok {
			continue
		}
		row := g.at(key, func() Row {
			return Row{Track: key.track, Artist: key.artist, Album: key.album}
		})
		row.PlayCount++
		row.TotalMinutes += e.MinutesPlayed
	}

	rows := g.rows
	if rows == nil {
		rows = []Row{}
	}
	if q.Metric == MetricTotalMinutes {
		slices.SortStableFunc(rows, func(a, b Row) int {
			return cmp.Compare(b.TotalMinutes, a.TotalMinutes)
		})
	} else {
		slices.SortStableFunc(rows, func(a, b Row) int {
			return cmp.Compare(b.PlayCount, a.PlayCount)
		})
	}
	return truncate(rows, q.Limit)
}

func dimensionKey(e history.PlayEvent, d Dimension) (rowKey, bool) {
	if e.Artist == "" {
		return rowKey{}, false
	}
	switch d {
	case DimensionArtist:
		return rowKey{artist: e.Artist}, true
	case DimensionTrack:
		return rowKey{track: e.Track, artist: e.Artist}, true
	case DimensionAlbum:
		if e.Album == "" {
			return rowKey{}, false
		}
		return rowKey{album: e.Album, artist: e.Artist}, true
	}
	return rowKey{}, false
}

// SkipRow counts skipped plays of one track.
type SkipRow struct {
	Track     string `json:"track"`
	Artist    string `json:"artist"`
	SkipCount int    `json:"skip_count"`
}

// MostSkipped ranks (track, artist) pairs by number of skipped plays.
func MostSkipped(events []history.PlayEvent, limit int) []SkipRow {
	g := newGroups[pairKey, SkipRow]()
	for _, e := range events {
		if !e.Skipped || e.Artist == "" {
			continue
		}
		row := g.at(pairKey{e.Track, e.Artist}, func() SkipRow {
			return SkipRow{Track: e.Track, Artist: e.Artist}
		})
		row.SkipCount++
	}

	rows := g.rows
	if rows == nil {
		rows = []SkipRow{}
	}
	slices.SortStableFunc(rows, func(a, b SkipRow) int {
		return cmp.Compare(b.SkipCount, a.SkipCount)
	})
	return truncate(rows, limit)
}

// Heatmap counts plays by day of week (0=Monday) and hour of day.
type Heatmap [7][24]int

// Total returns the sum of all cells.
func (h Heatmap) Total() int {
	total := 0
	for _, day := range h {
		for _, n := range day {
			total += n
		}
	}
	return total
}

// BuildHeatmap counts every event into its day-of-week and hour cell.
func BuildHeatmap(events []history.PlayEvent) Heatmap {
	var h Heatmap
	for _, e := range events {
		h[e.DayOfWeek][e.Hour]++
	}
	return h
}
