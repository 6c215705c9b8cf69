package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// DefaultPattern matches the audio history files in a Spotify extended
// streaming history export.
const DefaultPattern = "Streaming_History_Audio_*.json"

// timestampLayouts are tried in order when parsing the "ts" field.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseError reports a history file that could not be decoded, or an event
// whose timestamp could not be parsed. Index is -1 for file-level errors.
type ParseError struct {
	File  string
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("parsing %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("parsing %s (record %d): %v", e.File, e.Index, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadDir reads every file in dir matching pattern, in file-name order, and
// returns the concatenated music-only events. A directory with no matching
// files yields an empty table.
func LoadDir(dir, pattern string) ([]PlayEvent, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("matching history files: %w", err)
	}
	slices.Sort(files)

	events := make([]PlayEvent, 0)
	for _, path := range files {
		fileEvents, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		events = append(events, fileEvents...)
	}

	return events, nil
}

// LoadFile reads a single history file and returns its music-only events in
// file order.
func LoadFile(path string) ([]PlayEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	var raws []rawEvent
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &ParseError{File: filepath.Base(path), Index: -1, Err: err}
	}

	events := make([]PlayEvent, 0, len(raws))
	for i, raw := range raws {
		ts, err := parseTimestamp(raw.TS)
		if err != nil {
			return nil, &ParseError{File: filepath.Base(path), Index: i, Err: err}
		}
		if !isMusic(raw.TrackName, raw.EpisodeName, raw.AudiobookTitle) {
			continue
		}
		events = append(events, newPlayEvent(raw, ts))
	}

	return events, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FilterYear returns the events played in year. Year 0 returns events as is.
func FilterYear(events []PlayEvent, year int) []PlayEvent {
	if year == 0 {
		return events
	}
	filtered := make([]PlayEvent, 0)
	for _, e := range events {
		if e.Year == year {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Years returns the distinct years present in events, ascending.
func Years(events []PlayEvent) []int {
	seen := make(map[int]struct{})
	var years []int
	for _, e := range events {
		if _, ok := seen[e.Year]; ok {
			continue
		}
		seen[e.Year] = struct{}{}
		years = append(years, e.Year)
	}
	slices.Sort(years)
	return years
}
