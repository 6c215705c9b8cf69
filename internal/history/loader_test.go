package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir_ConcatenatesInFileNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Streaming_History_Audio_2023_2.json", `[
		{"ts": "2023-06-01T10:00:00Z", "ms_played": 60000, "master_metadata_track_name": "Three", "master_metadata_album_artist_name": "A"}
	]`)
	writeFile(t, dir, "Streaming_History_Audio_2021.json", `[
		{"ts": "2021-01-01T10:00:00Z", "ms_played": 60000, "master_metadata_track_name": "One", "master_metadata_album_artist_name": "A"},
		{"ts": "2021-01-02T10:00:00Z", "ms_played": 60000, "master_metadata_track_name": "Other", "master_metadata_album_artist_name": "B"}
	]`)
	writeFile(t, dir, "Streaming_History_Audio_2022.json", `[
		{"ts": "2022-01-01T10:00:00Z", "ms_played": 60000, "master_metadata_track_name": "Two", "master_metadata_album_artist_name": "A"}
	]`)
	writeFile(t, dir, "Streaming_History_Video_2022.json", `[
		{"ts": "2022-01-01T10:00:00Z", "ms_played": 60000, "master_metadata_track_name": "Video", "master_metadata_album_artist_name": "A"}
	]`)

	events, err := LoadDir(dir, DefaultPattern)
	require.NoError(t, err)
	require.Len(t, events, 4)

	var tracks []string
	countA := 0
	for _, e := range events {
		tracks = append(tracks, e.Track)
		if e.Artist == "A" {
			countA++
		}
	}
	assert.Equal(t, []string{"One", "Other", "Two", "Three"}, tracks)
	assert.Equal(t, 3, countA)
}

func TestLoadDir_NoFiles(t *testing.T) {
	events, err := LoadDir(t.TempDir(), DefaultPattern)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLoadFile_MusicOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Streaming_History_Audio_1.json", `[
		{"ts": "2023-01-01T00:00:00Z", "ms_played": 1000, "master_metadata_track_name": "Song"},
		{"ts": "2023-01-01T00:00:00Z", "ms_played": 1000, "master_metadata_track_name": null, "episode_name": "Podcast Ep"},
		{"ts": "2023-01-01T00:00:00Z", "ms_played": 1000, "master_metadata_track_name": "Chapter 1", "audiobook_title": "Book"},
		{"ts": "2023-01-01T00:00:00Z", "ms_played": 1000, "master_metadata_track_name": "Mixed", "episode_name": "Ep"},
		{"ts": "2023-01-01T00:00:00Z", "ms_played": 1000, "master_metadata_track_name": ""},
		{"ts": "2023-01-01T00:00:00Z", "ms_played": 1000}
	]`)

	events, err := LoadFile(filepath.Join(dir, "Streaming_History_Audio_1.json"))
	require.NoError(t, err)
	require.Len(t, events, 1)

	for _, e := range events {
		assert.NotEmpty(t, e.Track)
	}
	assert.Equal(t, "Song", events[0].Track)
	assert.Empty(t, events[0].Artist)
}

func TestLoadFile_DerivedFields(t *testing.T) {
	dir := t.TempDir()
	// 2024-03-17 is a Sunday.
	writeFile(t, dir, "Streaming_History_Audio_1.json", `[
		{"ts": "2024-03-17T23:15:00Z", "ms_played": 90000, "master_metadata_track_name": "Late",
		 "master_metadata_album_artist_name": "Artist", "master_metadata_album_album_name": "Album",
		 "skipped": true, "platform": "ios", "spotify_track_uri": "spotify:track:abc"}
	]`)

	events, err := LoadFile(filepath.Join(dir, "Streaming_History_Audio_1.json"))
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, time.Date(2024, 3, 17, 23, 15, 0, 0, time.UTC), e.Timestamp)
	assert.Equal(t, 2024, e.Year)
	assert.Equal(t, 3, e.Month)
	assert.Equal(t, 17, e.Day)
	assert.Equal(t, 23, e.Hour)
	assert.Equal(t, 6, e.DayOfWeek)
	assert.Equal(t, "Sunday", e.DayName)
	assert.Equal(t, "2024-03-17", e.Date)
	assert.InDelta(t, 1.5, e.MinutesPlayed, 1e-9)
	assert.True(t, e.Skipped)
	assert.Equal(t, "ios", e.Platform)
	assert.Equal(t, "spotify:track:abc", e.TrackURI)
}

func TestLoadFile_ParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantIndex int
	}{
		{name: "invalid json", content: `{not json`, wantIndex: -1},
		{name: "object instead of list", content: `{"ts": "2023-01-01T00:00:00Z"}`, wantIndex: -1},
		{
			name:      "bad timestamp",
			content:   `[{"ts": "2023-01-01T00:00:00Z", "master_metadata_track_name": "ok"}, {"ts": "yesterday", "master_metadata_track_name": "bad"}]`,
			wantIndex: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "Streaming_History_Audio_1.json", tt.content)

			_, err := LoadDir(dir, DefaultPattern)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "Streaming_History_Audio_1.json", perr.File)
			assert.Equal(t, tt.wantIndex, perr.Index)
		})
	}
}

func TestFilterYearAndYears(t *testing.T) {
	events := []PlayEvent{{Year: 2022}, {Year: 2020}, {Year: 2022}, {Year: 2021}}

	assert.Equal(t, []int{2020, 2021, 2022}, Years(events))
	assert.Len(t, FilterYear(events, 2022), 2)
	assert.Len(t, FilterYear(events, 0), 4)
	assert.Empty(t, FilterYear(events, 1999))
}
