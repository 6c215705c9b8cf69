// Package clustering groups artists by genre similarity using k-means.
package clustering

// Artist is a listened-to artist with its genre labels.
type Artist struct {
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	Plays  int      `json:"plays"`
}

// Group is a cluster of artists with similar genres.
type Group struct {
	Name      string   `json:"name"`       // e.g. "indie rock & shoegaze"
	TopGenres []string `json:"top_genres"` // dominant genres of the centroid
	Artists   []Artist `json:"artists"`
	Plays     int      `json:"plays"`
}
