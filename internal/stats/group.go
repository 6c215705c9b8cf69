// Package stats answers aggregate queries over play events: top artists,
// tracks and albums, search, heatmaps, skips, one-hit wonders and
// playlist-membership analysis.
//
// Every function is pure and never mutates its input. Rankings sort by the
// requested metric descending and keep first-occurrence order for ties.
package stats

import "math"

// groups collects rows keyed by K in first-occurrence order.
type groups[K comparable, V any] struct {
	index map[K]int
	rows  []V
}

func newGroups[K comparable, V any]() *groups[K, V] {
	return &groups[K, V]{index: make(map[K]int)}
}

// at returns the row for key, creating it with init on first sight.
func (g *groups[K, V]) at(key K, init func() V) *V {
	i, ok := g.index[key]
	if !ok {
		i = len(g.rows)
		g.index[key] = i
		g.rows = append(g.rows, init())
	}
	return &g.rows[i]
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

type pairKey struct {
	track  string
	artist string
}
