// Package playlists loads a Spotify playlist export and answers
// per-playlist and cross-playlist queries over it.
package playlists

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
)

// DefaultFile is the playlist export file name inside a Spotify data export.
const DefaultFile = "Playlist1.json"

const unknownName = "Unknown"

// DefaultExcluded lists playlists that never contribute entries.
var DefaultExcluded = []string{
	"SD/TB - Thanks 4 Sharing",
	"SD/TB - Client Confirmed Bangers",
}

// Entry is one track's membership in one playlist.
type Entry struct {
	Playlist string `json:"playlist"`
	Track    string `json:"track"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	URI      string `json:"uri"`
}

// Summary describes one retained playlist.
type Summary struct {
	Name              string `json:"name"`
	TrackCount        int    `json:"track_count"`
	UniqueArtistCount int    `json:"unique_artist_count"`
	LastModified      string `json:"last_modified"`
	CollaboratorCount int    `json:"collaborator_count"`
}

// ParseError reports a playlist export that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing playlist export %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// export mirrors the playlist export document.
type export struct {
	Playlists []struct {
		Name             *string           `json:"name"`
		LastModifiedDate string            `json:"lastModifiedDate"`
		Collaborators    []json.RawMessage `json:"collaborators"`
		Items            []struct {
			Track *exportTrack `json:"track"`
		} `json:"items"`
	} `json:"playlists"`
}

type exportTrack struct {
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
	AlbumName  string `json:"albumName"`
	TrackURI   string `json:"trackUri"`
}

// present reports whether the item carries a track. Local files and
// removed tracks show up as null or as an empty object.
func (t *exportTrack) present() bool {
	return t != nil && *t != exportTrack{}
}

// Load reads the playlist export at path. A missing file yields an empty
// library.
func Load(path string, excluded []string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewLibrary(nil, nil), nil
		}
		return nil, fmt.Errorf("reading playlist export: %w", err)
	}

	lib, err := Parse(data, excluded)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return lib, nil
}

// Parse flattens a playlist export document. Playlists named in excluded are
// skipped entirely, and items without a track (null or {}) are ignored.
func Parse(data []byte, excluded []string) (*Library, error) {
	var doc export
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var entries []Entry
	var summaries []Summary

	for _, p := range doc.Playlists {
		name := unknownName
		if p.Name != nil {
			name = *p.Name
		}
		if slices.Contains(excluded, name) {
			continue
		}

		artists := make(map[string]struct{})
		count := 0
		for _, item := range p.Items {
			if !item.Track.present() {
				continue
			}
			count++
			artists[item.Track.ArtistName] = struct{}{}
			entries = append(entries, Entry{
				Playlist: name,
				Track:    item.Track.TrackName,
				Artist:   item.Track.ArtistName,
				Album:    item.Track.AlbumName,
				URI:      item.Track.TrackURI,
			})
		}

		summaries = append(summaries, Summary{
			Name:              name,
			TrackCount:        count,
			UniqueArtistCount: len(artists),
			LastModified:      p.LastModifiedDate,
			CollaboratorCount: len(p.Collaborators),
		})
	}

	return NewLibrary(entries, summaries), nil
}
