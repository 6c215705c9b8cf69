package genres

import (
	"cmp"
	"slices"

	"github.com/justestif/go-spotify-listening-stats/internal/clustering"
	"github.com/justestif/go-spotify-listening-stats/internal/history"
	"github.com/justestif/go-spotify-listening-stats/internal/stats"
)

// GenreCount is the play total for one genre.
type GenreCount struct {
	Genre   string `json:"genre"`
	Plays   int    `json:"play_count"`
	Artists int    `json:"artist_count"`
}

// TrendPoint is the play count of a genre in one month.
type TrendPoint struct {
	Period string `json:"period"` // YYYY-MM
	Genre  string `json:"genre"`
	Plays  int    `json:"play_count"`
}

// TopGenres credits each play to every genre of its artist and returns
// genres by plays, highest first. Ties keep first-seen order. Events whose
// artist has no cached genres are ignored. limit <= 0 means no limit.
func TopGenres(events []history.PlayEvent, cache map[string][]string, limit int) []GenreCount {
	idx := make(map[string]int)
	var rows []GenreCount
	artists := make(map[string]map[string]struct{})

	for _, e := range events {
		for _, g := range distinct(cache[e.Artist]) {
			i, ok := idx[g]
			if !ok {
				i = len(rows)
				idx[g] = i
				rows = append(rows, GenreCount{Genre: g})
				artists[g] = make(map[string]struct{})
			}
			rows[i].Plays++
			artists[g][e.Artist] = struct{}{}
		}
	}

	for i := range rows {
		rows[i].Artists = len(artists[rows[i].Genre])
	}

	slices.SortStableFunc(rows, func(a, b GenreCount) int {
		return cmp.Compare(b.Plays, a.Plays)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Trends returns monthly play counts for the topN genres, ordered by month
// and then by overall genre rank. Months in which a genre has no plays are
// omitted.
func Trends(events []history.PlayEvent, cache map[string][]string, topN int) []TrendPoint {
	top := TopGenres(events, cache, topN)
	if len(top) == 0 {
		return []TrendPoint{}
	}

	rank := make(map[string]int, len(top))
	for i, g := range top {
		rank[g.Genre] = i
	}

	type key struct {
		period string
		genre  string
	}
	counts := make(map[key]int)
	for _, e := range events {
		period := e.Timestamp.Format("2006-01")
		for _, g := range distinct(cache[e.Artist]) {
			if _, ok := rank[g]; ok {
				counts[key{period, g}]++
			}
		}
	}

	points := make([]TrendPoint, 0, len(counts))
	for k, n := range counts {
		points = append(points, TrendPoint{Period: k.period, Genre: k.genre, Plays: n})
	}
	slices.SortFunc(points, func(a, b TrendPoint) int {
		if c := cmp.Compare(a.Period, b.Period); c != 0 {
			return c
		}
		return cmp.Compare(rank[a.Genre], rank[b.Genre])
	})
	return points
}

// ArtistGenres returns the cached genres of an artist. The name must match
// exactly.
func ArtistGenres(cache map[string][]string, artist string) ([]string, bool) {
	g, ok := cache[artist]
	return g, ok
}

// GroupInput pairs the limit most played artists with their cached genres
// for clustering. limit <= 0 means every artist.
func GroupInput(events []history.PlayEvent, cache map[string][]string, limit int) []clustering.Artist {
	rows := stats.Top(events, stats.TopQuery{Dimension: stats.DimensionArtist, Limit: limit})
	artists := make([]clustering.Artist, len(rows))
	for i, row := range rows {
		artists[i] = clustering.Artist{
			Name:   row.Artist,
			Genres: cache[row.Artist],
			Plays:  row.PlayCount,
		}
	}
	return artists
}

func distinct(genres []string) []string {
	if len(genres) < 2 {
		return genres
	}
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
