package playlists

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "playlists": [
    {
      "name": "Road Trip",
      "lastModifiedDate": "2024-01-10",
      "collaborators": [{"name": "x"}],
      "items": [
        {"track": {"trackName": "Song A", "artistName": "Alpha", "albumName": "A1", "trackUri": "spotify:track:a"}},
        {"track": {"trackName": "Song B", "artistName": "Beta", "albumName": "B1", "trackUri": "spotify:track:b"}},
        {"track": null, "episode": {"episodeName": "Pod"}},
        {"track": {"trackName": "Song C", "artistName": "Alpha", "albumName": "A2", "trackUri": "spotify:track:c"}}
      ]
    },
    {
      "name": "Chill",
      "lastModifiedDate": "2024-02-01",
      "collaborators": [],
      "items": [
        {"track": {"trackName": "Song B", "artistName": "Beta", "albumName": "B1", "trackUri": "spotify:track:b"}},
        {"track": {"trackName": "Song D", "artistName": "Alpha", "albumName": "A3", "trackUri": "spotify:track:d"}}
      ]
    },
    {
      "name": "SD/TB - Thanks 4 Sharing",
      "items": [
        {"track": {"trackName": "Song A", "artistName": "Alpha", "albumName": "A1", "trackUri": "spotify:track:a"}}
      ]
    }
  ]
}`

func sampleLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Parse([]byte(sampleExport), DefaultExcluded)
	require.NoError(t, err)
	return lib
}

func TestParse_FlattensAndExcludes(t *testing.T) {
	lib := sampleLibrary(t)

	assert.Equal(t, []string{"Road Trip", "Chill"}, lib.Names())
	assert.Len(t, lib.Entries(), 5)
	for _, e := range lib.Entries() {
		assert.NotEqual(t, "SD/TB - Thanks 4 Sharing", e.Playlist)
	}

	summaries := lib.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, Summary{
		Name:              "Road Trip",
		TrackCount:        3,
		UniqueArtistCount: 2,
		LastModified:      "2024-01-10",
		CollaboratorCount: 1,
	}, summaries[0])
	assert.Equal(t, 2, summaries[1].TrackCount)
}

func TestParse_SkipsEmptyTrackObjects(t *testing.T) {
	lib, err := Parse([]byte(`{"playlists": [{"name": "Sparse", "items": [
		{"track": {}},
		{"track": null},
		{},
		{"track": {"trackName": "Kept", "artistName": "A"}}
	]}]}`), nil)
	require.NoError(t, err)

	require.Len(t, lib.Entries(), 1)
	assert.Equal(t, "Kept", lib.Entries()[0].Track)
	require.Len(t, lib.Summaries(), 1)
	assert.Equal(t, 1, lib.Summaries()[0].TrackCount)
	assert.Equal(t, 1, lib.Summaries()[0].UniqueArtistCount)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"playlists": [`), nil)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		lib, err := Load(filepath.Join(t.TempDir(), DefaultFile), DefaultExcluded)
		require.NoError(t, err)
		assert.Empty(t, lib.Entries())
		_, ok := lib.Overview()
		assert.False(t, ok)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), DefaultFile)
		require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))

		_, err := Load(path, DefaultExcluded)
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, path, perr.Path)
	})
}

func TestDuplicates_SingleSharedPair(t *testing.T) {
	lib := sampleLibrary(t)

	dupes := lib.Duplicates()
	require.Len(t, dupes, 1)
	assert.Equal(t, "Song B", dupes[0].Track)
	assert.Equal(t, "Beta", dupes[0].Artist)
	assert.Equal(t, 2, dupes[0].PlaylistCount)
	assert.Equal(t, []string{"Road Trip", "Chill"}, dupes[0].Playlists)
}

func TestDuplicates_SamePlaylistTwiceIsNotDuplicate(t *testing.T) {
	lib := NewLibrary([]Entry{
		{Playlist: "P", Track: "T", Artist: "A"},
		{Playlist: "P", Track: "T", Artist: "A"},
	}, []Summary{{Name: "P", TrackCount: 2}})

	assert.Empty(t, lib.Duplicates())
}

func TestOverlap_Symmetric(t *testing.T) {
	lib := sampleLibrary(t)

	ab := lib.Overlap("Road Trip", "Chill")
	ba := lib.Overlap("Chill", "Road Trip")

	assert.Equal(t, ab.SharedArtists, ba.SharedArtists)
	assert.Equal(t, ab.SharedTracks, ba.SharedTracks)
	assert.Equal(t, []string{"Alpha", "Beta"}, ab.SharedArtists)
	assert.Equal(t, []TrackKey{{Track: "Song B", Artist: "Beta"}}, ab.SharedTracks)

	assert.Equal(t, 3, ab.FirstTrackCount)
	assert.Equal(t, 2, ab.SecondTrackCount)
	assert.Equal(t, ab.FirstTrackCount, ba.SecondTrackCount)
	assert.Equal(t, 2, ab.FirstArtistCount)
}

func TestTrackOverlaps(t *testing.T) {
	lib := NewLibrary([]Entry{
		{Playlist: "P1", Track: "T1", Artist: "A"},
		{Playlist: "P1", Track: "T2", Artist: "A"},
		{Playlist: "P1", Track: "T3", Artist: "B"},
		{Playlist: "P2", Track: "T1", Artist: "A"},
		{Playlist: "P2", Track: "T2", Artist: "A"},
		{Playlist: "P3", Track: "T2", Artist: "A"},
		{Playlist: "P3", Track: "t3", Artist: "B"},
	}, []Summary{{Name: "P1"}, {Name: "P2"}, {Name: "P3"}})

	got := lib.TrackOverlaps("P1")
	require.Len(t, got, 2)
	assert.Equal(t, TrackOverlap{Track: "T2", Artist: "A", OtherPlaylists: []string{"P2", "P3"}, OverlapCount: 2}, got[0])
	assert.Equal(t, TrackOverlap{Track: "T1", Artist: "A", OtherPlaylists: []string{"P2"}, OverlapCount: 1}, got[1])
}

func TestTopArtistsAndTracks(t *testing.T) {
	lib := sampleLibrary(t)

	top := lib.TopArtists("Road Trip", 10)
	assert.Equal(t, []ArtistCount{{Artist: "Alpha", TrackCount: 2}, {Artist: "Beta", TrackCount: 1}}, top)
	assert.Len(t, lib.TopArtists("Road Trip", 1), 1)
	assert.Empty(t, lib.TopArtists("Nope", 10))

	tracks := lib.Tracks("Chill")
	require.Len(t, tracks, 2)
	assert.Equal(t, "Song B", tracks[0].Track)
	assert.Equal(t, "Song D", tracks[1].Track)
}

func TestArtistDistribution(t *testing.T) {
	lib := NewLibrary([]Entry{
		{Playlist: "P1", Track: "x", Artist: "Solo"},
		{Playlist: "P1", Track: "y", Artist: "Solo"},
		{Playlist: "P1", Track: "z", Artist: "Everywhere"},
		{Playlist: "P2", Track: "z", Artist: "Everywhere"},
		{Playlist: "P3", Track: "w", Artist: "Everywhere"},
	}, []Summary{{Name: "P1"}, {Name: "P2"}, {Name: "P3"}})

	got := lib.ArtistDistribution(0)
	require.Len(t, got, 2)
	assert.Equal(t, ArtistSpread{Artist: "Everywhere", PlaylistCount: 3, TrackCount: 3, Playlists: []string{"P1", "P2", "P3"}}, got[0])
	assert.Equal(t, ArtistSpread{Artist: "Solo", PlaylistCount: 1, TrackCount: 2, Playlists: []string{"P1"}}, got[1])

	assert.Len(t, lib.ArtistDistribution(1), 1)
}

func TestOverview(t *testing.T) {
	lib := sampleLibrary(t)

	o, ok := lib.Overview()
	require.True(t, ok)
	assert.Equal(t, Overview{
		TotalPlaylists:      2,
		TotalTracks:         5,
		UniqueTracks:        4,
		UniqueArtists:       2,
		AvgPlaylistSize:     2.5,
		LargestPlaylist:     "Road Trip",
		LargestPlaylistSize: 3,
	}, o)
}

func TestTrackSet_ExactMatch(t *testing.T) {
	lib := sampleLibrary(t)
	set := lib.TrackSet()

	assert.True(t, set.Contains("Song A", "Alpha"))
	assert.False(t, set.Contains("song a", "Alpha"))
	assert.False(t, set.Contains("Song A", "alpha"))
}
