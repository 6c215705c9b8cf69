package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify/v2"
)

var (
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spotify_api_batches_total", Help: "Spotify API batches by outcome"},
		[]string{"endpoint", "result"},
	)
	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spotify_api_rate_limited_total", Help: "Spotify API 429 responses"},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(batchesTotal, rateLimited)
}

const trackURIPrefix = "spotify:track:"

// BatchResult is the outcome of one batched request.
type BatchResult struct {
	Index      int
	IDs        []string
	Retried    bool
	RetryAfter time.Duration
	Err        error
}

// OK reports whether the batch produced data.
func (b BatchResult) OK() bool {
	return b.Err == nil
}

// Report collects the batch outcomes of one lookup.
type Report struct {
	Endpoint  string
	Requested int
	Batches   []BatchResult
}

// Failed returns the batches that produced no data.
func (r Report) Failed() []BatchResult {
	var failed []BatchResult
	for _, b := range r.Batches {
		if !b.OK() {
			failed = append(failed, b)
		}
	}
	return failed
}

// Partial reports whether some, but not all, batches failed.
func (r Report) Partial() bool {
	n := len(r.Failed())
	return n > 0 && n < len(r.Batches)
}

// Batches removes empty and duplicate ids, keeping first-seen order, and
// splits the rest into chunks of at most size.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxIDsPerRequest
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var batches [][]string
	for i := 0; i < len(unique); i += size {
		end := min(i+size, len(unique))
		batches = append(batches, unique[i:end])
	}
	return batches
}

// TrackID extracts the id from a "spotify:track:<id>" URI.
func TrackID(uri string) (string, bool) {
	id, ok := strings.CutPrefix(uri, trackURIPrefix)
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// FetchGenres looks up genres for artist ids. Failed batches are skipped
// and recorded in the report; results from other batches are kept.
func (c *Client) FetchGenres(ctx context.Context, artistIDs []string, token string) (map[string][]string, Report) {
	genres := make(map[string][]string)

	report := c.runBatches(ctx, "/artists", artistIDs, token, func(body []byte) error {
		var resp struct {
			Artists []*spotify.FullArtist `json:"artists"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("parsing artists response: %w", err)
		}
		for _, a := range resp.Artists {
			if a == nil || a.ID == "" {
				continue
			}
			g := a.Genres
			if g == nil {
				g = []string{}
			}
			genres[string(a.ID)] = g
		}
		return nil
	})

	return genres, report
}

// FetchTrackArtists looks up the artists credited on each track id.
func (c *Client) FetchTrackArtists(ctx context.Context, trackIDs []string, token string) (map[string][]spotify.SimpleArtist, Report) {
	artists := make(map[string][]spotify.SimpleArtist)

	report := c.runBatches(ctx, "/tracks", trackIDs, token, func(body []byte) error {
		var resp struct {
			Tracks []*spotify.FullTrack `json:"tracks"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("parsing tracks response: %w", err)
		}
		for _, t := range resp.Tracks {
			if t == nil || t.ID == "" {
				continue
			}
			artists[string(t.ID)] = t.Artists
		}
		return nil
	})

	return artists, report
}

// runBatches requests ids in batches, pausing between successive batches,
// and hands each successful body to handle.
func (c *Client) runBatches(ctx context.Context, endpoint string, ids []string, token string, handle func([]byte) error) Report {
	batches := Batches(ids, MaxIDsPerRequest)
	report := Report{Endpoint: endpoint, Batches: make([]BatchResult, 0, len(batches))}
	for _, b := range batches {
		report.Requested += len(b)
	}

	for i, batch := range batches {
		if i > 0 && c.batchDelay > 0 {
			if err := c.sleep(ctx, c.batchDelay); err != nil {
				report.Batches = append(report.Batches, BatchResult{Index: i, IDs: batch, Err: err})
				continue
			}
		}

		result := BatchResult{Index: i, IDs: batch}
		body, err := c.fetchBatch(ctx, endpoint, batch, token, &result)
		if err == nil {
			err = handle(body)
		}
		result.Err = err

		if err != nil {
			batchesTotal.WithLabelValues(endpoint, "error").Inc()
			c.logger.WithError(err).WithFields(logrus.Fields{
				"endpoint": endpoint,
				"batch":    i,
				"size":     len(batch),
			}).Warn("Skipping failed batch")
		} else {
			batchesTotal.WithLabelValues(endpoint, "ok").Inc()
		}
		report.Batches = append(report.Batches, result)
	}

	return report
}
