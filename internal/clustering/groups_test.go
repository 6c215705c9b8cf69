package clustering

import (
	"slices"
	"strings"
	"testing"
)

func TestGroupArtists_Empty(t *testing.T) {
	groups, ungrouped, err := GroupArtists(nil, DefaultGroupConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if groups != nil || ungrouped != nil {
		t.Errorf("expected nil results, got %v, %v", groups, ungrouped)
	}
}

func TestGroupArtists_NoGenres(t *testing.T) {
	artists := []Artist{
		{Name: "A", Plays: 1},
		{Name: "B", Plays: 5},
	}

	groups, ungrouped, err := GroupArtists(artists, DefaultGroupConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected 0 groups, got %d", len(groups))
	}
	if len(ungrouped) != 2 {
		t.Errorf("expected 2 ungrouped, got %d", len(ungrouped))
	}
}

func TestGroupArtists_FewerArtistsThanClusters(t *testing.T) {
	artists := []Artist{
		{Name: "A", Genres: []string{"rock"}},
		{Name: "B"},
	}

	groups, ungrouped, err := GroupArtists(artists, GroupConfig{NumClusters: 3, MinGroupSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 || len(ungrouped) != 2 {
		t.Errorf("expected everything ungrouped, got %d groups and %d ungrouped", len(groups), len(ungrouped))
	}
}

func TestGroupArtists_ClustersByGenreSimilarity(t *testing.T) {
	artists := []Artist{
		{Name: "Rock 1", Plays: 30, Genres: []string{"rock", "grunge"}},
		{Name: "Rock 2", Plays: 20, Genres: []string{"rock", "grunge"}},
		{Name: "Rock 3", Plays: 10, Genres: []string{"Rock", "grunge"}},
		{Name: "House 1", Plays: 5, Genres: []string{"house", "techno"}},
		{Name: "House 2", Plays: 4, Genres: []string{"house", "techno"}},
		{Name: "House 3", Plays: 3, Genres: []string{"house", "techno"}},
		{Name: "Silent", Plays: 100},
	}

	groups, ungrouped, err := GroupArtists(artists, GroupConfig{NumClusters: 2, MinGroupSize: 3, MaxGenres: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	rock := groups[0]
	if rock.Plays != 60 {
		t.Errorf("expected first group to be the rock group with 60 plays, got %d", rock.Plays)
	}
	for _, a := range rock.Artists {
		if !strings.HasPrefix(a.Name, "Rock") {
			t.Errorf("unexpected artist %q in rock group", a.Name)
		}
	}
	if rock.Artists[0].Name != "Rock 1" {
		t.Errorf("expected artists sorted by plays, got %q first", rock.Artists[0].Name)
	}
	if !slices.Contains(rock.TopGenres, "rock") || !slices.Contains(rock.TopGenres, "grunge") {
		t.Errorf("expected rock genres in %v", rock.TopGenres)
	}

	if len(ungrouped) != 1 || ungrouped[0].Name != "Silent" {
		t.Errorf("expected Silent to be ungrouped, got %v", ungrouped)
	}
}

func TestGroupArtists_SmallClustersAreUngrouped(t *testing.T) {
	artists := []Artist{
		{Name: "Rock 1", Genres: []string{"rock"}},
		{Name: "Rock 2", Genres: []string{"rock"}},
		{Name: "Rock 3", Genres: []string{"rock"}},
		{Name: "Jazz", Genres: []string{"jazz"}},
	}

	groups, ungrouped, err := GroupArtists(artists, GroupConfig{NumClusters: 2, MinGroupSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Artists) != 3 {
		t.Errorf("expected 3 artists in group, got %d", len(groups[0].Artists))
	}
	if len(ungrouped) != 1 || ungrouped[0].Name != "Jazz" {
		t.Errorf("expected Jazz ungrouped, got %v", ungrouped)
	}
}

func TestBuildGenreVocabulary(t *testing.T) {
	artists := []*Artist{
		{Name: "A", Plays: 10, Genres: []string{"Rock", "pop"}},
		{Name: "B", Plays: 1, Genres: []string{"jazz", "pop"}},
		{Name: "C", Genres: []string{"jazz"}},
	}

	got := buildGenreVocabulary(artists, 50)
	want := []string{"pop", "rock", "jazz"}
	if !slices.Equal(got, want) {
		t.Errorf("vocabulary = %v, want %v", got, want)
	}

	if got := buildGenreVocabulary(artists, 1); !slices.Equal(got, []string{"pop"}) {
		t.Errorf("limited vocabulary = %v, want [pop]", got)
	}
}

func TestBuildGenreVector(t *testing.T) {
	vec := buildGenreVector(&Artist{Genres: []string{"Pop", "unknown"}}, []string{"rock", "pop"})
	if len(vec) != 2 || vec[0] != 0 || vec[1] != 1 {
		t.Errorf("vector = %v, want [0 1]", vec)
	}
}

func TestExtractTopGenres(t *testing.T) {
	got := extractTopGenres([]float64{0.2, 0, 0.9, 0.5}, []string{"a", "b", "c", "d"}, 3)
	want := []string{"c", "d", "a"}
	if !slices.Equal(got, want) {
		t.Errorf("top genres = %v, want %v", got, want)
	}

	if got := extractTopGenres([]float64{0, 0}, []string{"a", "b"}, 3); len(got) != 0 {
		t.Errorf("expected zero weights skipped, got %v", got)
	}
}

func TestGroupName(t *testing.T) {
	if got := groupName(nil); got != "Mixed" {
		t.Errorf("groupName(nil) = %q", got)
	}
	if got := groupName([]string{"rock", "pop"}); got != "rock & pop" {
		t.Errorf("groupName = %q", got)
	}
}
