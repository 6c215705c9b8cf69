package clustering

import (
	"fmt"
	"strings"
)

const (
	sampleArtistCount = 3
	shownGenres       = 5
	shownUngrouped    = 5
)

// FormatGroupSummary renders genre groups for a terminal: one block per
// group with its share of all plays, leading genres and most played
// artists, followed by the ungrouped artists.
func FormatGroupSummary(groups []Group, ungrouped []Artist) string {
	var sb strings.Builder

	artists, plays := len(ungrouped), 0
	for _, a := range ungrouped {
		plays += a.Plays
	}
	for _, g := range groups {
		artists += len(g.Artists)
		plays += g.Plays
	}

	fmt.Fprintf(&sb, "%s across %s, %s\n",
		plural(len(groups), "genre group"), plural(artists, "artist"), plural(plays, "play"))

	for i, g := range groups {
		sb.WriteString("\n")
		writeGroup(&sb, i+1, g, plays)
	}

	if len(ungrouped) > 0 {
		sb.WriteString("\n")
		names := make([]string, 0, shownUngrouped)
		for _, a := range ungrouped[:min(shownUngrouped, len(ungrouped))] {
			names = append(names, a.Name)
		}
		fmt.Fprintf(&sb, "Ungrouped (%d): %s%s\n", len(ungrouped), strings.Join(names, ", "), more(len(ungrouped)-len(names)))
	}

	return sb.String()
}

func writeGroup(sb *strings.Builder, num int, g Group, totalPlays int) {
	share := 0.0
	if totalPlays > 0 {
		share = 100 * float64(g.Plays) / float64(totalPlays)
	}
	fmt.Fprintf(sb, "%d. %s: %s, %s (%.1f%% of plays)\n",
		num, g.Name, plural(len(g.Artists), "artist"), plural(g.Plays, "play"), share)

	if len(g.TopGenres) > 0 {
		fmt.Fprintf(sb, "   genres:  %s\n", strings.Join(g.TopGenres[:min(shownGenres, len(g.TopGenres))], ", "))
	}

	names := make([]string, 0, sampleArtistCount)
	for _, a := range g.Artists[:min(sampleArtistCount, len(g.Artists))] {
		names = append(names, fmt.Sprintf("%s (%d)", a.Name, a.Plays))
	}
	fmt.Fprintf(sb, "   artists: %s%s\n", strings.Join(names, ", "), more(len(g.Artists)-len(names)))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func more(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" +%d more", n)
}
