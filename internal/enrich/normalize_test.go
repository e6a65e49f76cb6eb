package enrich

import (
	"testing"

	"cratelink/internal/spotify"
)

func TestNormalizeTracks(t *testing.T) {
	playlist := &spotify.Playlist{
		ID: "pl1",
		Items: []spotify.Item{
			{Track: &spotify.Track{
				ID:         "t1",
				Name:       "One",
				Artists:    []string{"A", "B"},
				Album:      "First",
				DurationMs: 214000,
				URL:        "https://open.spotify.com/track/t1",
				ISRC:       "GBAAA0000001",
			}},
			{Track: nil}, // removed content keeps its slot but is dropped here
			{Track: &spotify.Track{
				Name:       "Two",
				Artists:    []string{"C"},
				DurationMs: 95000,
			}},
		},
	}

	tracks := NormalizeTracks(playlist)

	if len(tracks) != 2 {
		t.Fatalf("NormalizeTracks() count = %d, want 2", len(tracks))
	}

	first := tracks[0]
	if first.ID != "t1" || first.SpotifyID != "t1" {
		t.Errorf("first track IDs = %q/%q, want t1", first.ID, first.SpotifyID)
	}
	if first.Artist != "A, B" {
		t.Errorf("first track Artist = %q, want comma-joined %q", first.Artist, "A, B")
	}
	if first.Album == nil || *first.Album != "First" {
		t.Errorf("first track Album = %v, want First", first.Album)
	}
	if first.Duration != "3:34" {
		t.Errorf("first track Duration = %q, want 3:34", first.Duration)
	}
	if first.ISRC != "GBAAA0000001" {
		t.Errorf("first track ISRC = %q", first.ISRC)
	}
	if first.OrderIndex != 0 {
		t.Errorf("first track OrderIndex = %d, want 0", first.OrderIndex)
	}
	if first.Vendors == nil || len(first.Vendors) != 0 {
		t.Errorf("first track Vendors = %v, want empty slice", first.Vendors)
	}

	second := tracks[1]
	// The ID-less track in slot 2 gets a slot-derived fallback identifier,
	// and order indexes stay gapless despite the dropped slot.
	if second.ID != "pl1-2" {
		t.Errorf("second track ID = %q, want fallback pl1-2", second.ID)
	}
	if second.SpotifyID != "" {
		t.Errorf("second track SpotifyID = %q, want empty", second.SpotifyID)
	}
	if second.OrderIndex != 1 {
		t.Errorf("second track OrderIndex = %d, want 1", second.OrderIndex)
	}
	if second.Album != nil {
		t.Errorf("second track Album = %v, want nil", second.Album)
	}
	if second.Duration != "1:35" {
		t.Errorf("second track Duration = %q, want 1:35", second.Duration)
	}
}

func TestNormalizeTracks_EmptyPlaylist(t *testing.T) {
	tracks := NormalizeTracks(&spotify.Playlist{ID: "pl1"})
	if len(tracks) != 0 {
		t.Errorf("NormalizeTracks() count = %d, want 0", len(tracks))
	}
}
