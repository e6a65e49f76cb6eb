// Package enrich turns a fetched playlist into the enriched import payload:
// normalized track rows with purchase offers from the configured vendors.
package enrich

import (
	"fmt"
	"strings"

	"cratelink/internal/core"
	"cratelink/internal/spotify"
)

// NormalizeTracks converts playlist items into core track rows. Empty slots
// are dropped and the surviving tracks get compacted, gapless order indexes.
// A track the platform reports without an ID gets a deterministic fallback
// identifier derived from the playlist and its original slot.
func NormalizeTracks(playlist *spotify.Playlist) []core.Track {
	tracks := make([]core.Track, 0, len(playlist.Items))

	for slot, item := range playlist.Items {
		if item.Track == nil {
			continue
		}
		raw := item.Track

		id := raw.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", playlist.ID, slot)
		}

		var album *string
		if raw.Album != "" {
			album = &raw.Album
		}

		tracks = append(tracks, core.Track{
			ID:         id,
			Name:       raw.Name,
			Artist:     strings.Join(raw.Artists, ", "),
			Album:      album,
			Duration:   core.FormatDuration(raw.DurationMs),
			DurationMs: raw.DurationMs,
			SpotifyID:  raw.ID,
			SpotifyURL: raw.URL,
			ISRC:       raw.ISRC,
			OrderIndex: len(tracks),
			Vendors:    []core.VendorEntry{},
		})
	}

	return tracks
}
