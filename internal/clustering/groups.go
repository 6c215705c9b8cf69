package clustering

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// GroupConfig holds genre clustering parameters.
type GroupConfig struct {
	NumClusters  int // Number of clusters to create (default: 5)
	MinGroupSize int // Smaller clusters are returned as ungrouped artists
	MaxGenres    int // Maximum genres used as vector dimensions (default: 50)
}

// DefaultGroupConfig returns the recommended default configuration.
func DefaultGroupConfig() GroupConfig {
	return GroupConfig{
		NumClusters:  5,
		MinGroupSize: 2,
		MaxGenres:    50,
	}
}

// artistObservation wraps an Artist to implement clusters.Observation.
type artistObservation struct {
	artist *Artist
	coords clusters.Coordinates
}

func (o artistObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o artistObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// GroupArtists partitions artists by genre similarity. Artists without
// genres, and members of clusters below MinGroupSize, are returned as
// ungrouped. Groups are ordered by total plays, highest first.
func GroupArtists(artists []Artist, cfg GroupConfig) ([]Group, []Artist, error) {
	if len(artists) == 0 {
		return nil, nil, nil
	}

	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultGroupConfig().NumClusters
	}
	if cfg.MaxGenres <= 0 {
		cfg.MaxGenres = DefaultGroupConfig().MaxGenres
	}

	var valid []*Artist
	var noGenres []Artist
	for i := range artists {
		a := &artists[i]
		if len(a.Genres) > 0 {
			valid = append(valid, a)
		} else {
			noGenres = append(noGenres, *a)
		}
	}

	allUngrouped := func() []Artist {
		out := make([]Artist, 0, len(artists))
		for _, a := range valid {
			out = append(out, *a)
		}
		return append(out, noGenres...)
	}

	if len(valid) < cfg.NumClusters {
		return nil, allUngrouped(), nil
	}

	vocabulary := buildGenreVocabulary(valid, cfg.MaxGenres)
	if len(vocabulary) == 0 {
		return nil, allUngrouped(), nil
	}

	var obs clusters.Observations
	for _, a := range valid {
		obs = append(obs, artistObservation{artist: a, coords: buildGenreVector(a, vocabulary)})
	}

	result, err := kmeans.New().Partition(obs, cfg.NumClusters)
	if err != nil {
		return nil, allUngrouped(), fmt.Errorf("k-means partition: %w", err)
	}

	var groups []Group
	var ungrouped []Artist

	for _, cluster := range result {
		var members []Artist
		for _, o := range cluster.Observations {
			if ao, ok := o.(artistObservation); ok {
				members = append(members, *ao.artist)
			}
		}
		if len(members) == 0 {
			continue
		}
		if len(members) < cfg.MinGroupSize {
			ungrouped = append(ungrouped, members...)
			continue
		}

		slices.SortFunc(members, byPlays)

		top := extractTopGenres(cluster.Center, vocabulary, 3)
		g := Group{
			Name:      groupName(top),
			TopGenres: top,
			Artists:   members,
		}
		for _, m := range members {
			g.Plays += m.Plays
		}
		groups = append(groups, g)
	}

	ungrouped = append(ungrouped, noGenres...)
	slices.SortFunc(ungrouped, byPlays)

	slices.SortFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(b.Plays, a.Plays); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return groups, ungrouped, nil
}

func byPlays(a, b Artist) int {
	if c := cmp.Compare(b.Plays, a.Plays); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// genreWeight pairs a genre with its play-weighted count.
type genreWeight struct {
	name   string
	weight float64
}

// buildGenreVocabulary returns the maxGenres genres with the most plays
// across artists. Artists with no plays count once.
func buildGenreVocabulary(artists []*Artist, maxGenres int) []string {
	counts := make(map[string]float64)
	for _, a := range artists {
		w := float64(max(a.Plays, 1))
		for _, g := range a.Genres {
			counts[strings.ToLower(g)] += w
		}
	}

	weights := make([]genreWeight, 0, len(counts))
	for name, w := range counts {
		weights = append(weights, genreWeight{name: name, weight: w})
	}

	sort.Slice(weights, func(i, j int) bool {
		if weights[i].weight != weights[j].weight {
			return weights[i].weight > weights[j].weight
		}
		return weights[i].name < weights[j].name
	})

	n := min(maxGenres, len(weights))
	vocabulary := make([]string, n)
	for i := 0; i < n; i++ {
		vocabulary[i] = weights[i].name
	}
	return vocabulary
}

// buildGenreVector marks each vocabulary genre the artist carries with 1.
func buildGenreVector(a *Artist, vocabulary []string) clusters.Coordinates {
	index := make(map[string]int, len(vocabulary))
	for i, g := range vocabulary {
		index[g] = i
	}

	vector := make(clusters.Coordinates, len(vocabulary))
	for _, g := range a.Genres {
		if i, ok := index[strings.ToLower(g)]; ok {
			vector[i] = 1
		}
	}
	return vector
}

// extractTopGenres returns up to n genres with the largest positive
// centroid weight.
func extractTopGenres(centroid clusters.Coordinates, vocabulary []string, n int) []string {
	if len(centroid) == 0 || len(vocabulary) == 0 {
		return nil
	}

	weights := make([]genreWeight, len(vocabulary))
	for i, name := range vocabulary {
		w := 0.0
		if i < len(centroid) {
			w = centroid[i]
		}
		weights[i] = genreWeight{name: name, weight: w}
	}

	// Stable so equal weights keep vocabulary order.
	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].weight > weights[j].weight
	})

	result := make([]string, 0, n)
	for i := 0; i < len(weights) && len(result) < n; i++ {
		if weights[i].weight > 0 {
			result = append(result, weights[i].name)
		}
	}
	return result
}

func groupName(topGenres []string) string {
	if len(topGenres) == 0 {
		return "Mixed"
	}
	return strings.Join(topGenres, " & ")
}
