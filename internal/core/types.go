// Package core holds the configuration, domain types, and error taxonomy
// shared across the cratelink service.
package core

import (
	"fmt"
	"net/url"
	"time"
)

// Import status values. The ingestion pipeline is synchronous, so imports land
// directly on StatusReady; the remaining values exist for schema compatibility
// with a future background pipeline.
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusReady      = "READY"
	StatusFailed     = "FAILED"
	StatusArchived   = "ARCHIVED"
)

// Offer availability values.
const (
	AvailabilityAvailable   = "AVAILABLE"
	AvailabilityUnavailable = "UNAVAILABLE"
	AvailabilityUnknown     = "UNKNOWN"
	AvailabilityOutOfStock  = "OUT_OF_STOCK"
)

// Import activity event types.
const (
	EventImportStarted      = "IMPORT_STARTED"
	EventSpotifySynced      = "SPOTIFY_SYNCED"
	EventEnrichmentComplete = "ENRICHMENT_COMPLETE"
	EventReviewReady        = "REVIEW_READY"
	EventExportTriggered    = "EXPORT_TRIGGERED"
	EventPurchaseInitiated  = "PURCHASE_INITIATED"
	EventError              = "ERROR"
)

// Selection status values.
const (
	SelectionDraft     = "draft"
	SelectionCompleted = "completed"
)

// Principal identifies the acting user as supplied by the identity provider.
// The service trusts this pair verbatim and never re-verifies it.
type Principal struct {
	UserID string
	Email  string
}

// VendorEntry is one purchase option attached to a track during enrichment.
type VendorEntry struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Price     string `json:"price,omitempty"`
	Available *bool  `json:"available,omitempty"`
}

// Track is one normalized playlist entry with its accumulated vendor offers.
type Track struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Artist     string        `json:"artist"`
	Album      *string       `json:"album,omitempty"`
	Duration   string        `json:"duration"`
	DurationMs int           `json:"durationMs"`
	SpotifyID  string        `json:"spotifyId,omitempty"`
	SpotifyURL string        `json:"spotifyUrl,omitempty"`
	ISRC       string        `json:"isrc,omitempty"`
	OrderIndex int           `json:"orderIndex"`
	Vendors    []VendorEntry `json:"vendors"`
}

// PlaylistPayload is the enriched playlist as returned by the orchestrator and
// accepted by the persistence boundary.
type PlaylistPayload struct {
	SpotifyPlaylistID string    `json:"spotifyPlaylistId,omitempty"`
	URL               string    `json:"url"`
	Name              string    `json:"name"`
	Description       *string   `json:"description,omitempty"`
	TrackCount        int       `json:"trackCount"`
	ImportedAt        time.Time `json:"importedAt"`
	Tracks            []Track   `json:"tracks"`
}

// SelectionPayload is the user's chosen subset of tracks for a purchase run.
type SelectionPayload struct {
	TrackIDs      []string          `json:"trackIds"`
	TotalCost     float64           `json:"totalCost"`
	PurchaseLinks map[string]string `json:"purchaseLinks,omitempty"`
	Status        string            `json:"status,omitempty"`
}

// Validate checks the payload against the persistence schema. It returns a
// *ValidationError listing every violation, or nil when the payload is valid.
func (p *PlaylistPayload) Validate() error {
	var v []string

	if !isWellFormedURL(p.URL) {
		v = append(v, "url must be a valid URL")
	}
	if p.Name == "" {
		v = append(v, "name is required")
	}
	if p.TrackCount < 0 {
		v = append(v, "trackCount must be non-negative")
	}

	for i := range p.Tracks {
		v = append(v, p.Tracks[i].validate(i)...)
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

func (t *Track) validate(idx int) []string {
	var v []string
	field := func(name string) string { return fmt.Sprintf("tracks[%d].%s", idx, name) }

	if t.ID == "" {
		v = append(v, field("id")+" is required")
	}
	if t.Name == "" {
		v = append(v, field("name")+" is required")
	}
	if t.Artist == "" {
		v = append(v, field("artist")+" is required")
	}
	if t.Duration == "" {
		v = append(v, field("duration")+" is required")
	}
	if t.DurationMs < 0 {
		v = append(v, field("durationMs")+" must be non-negative")
	}
	if t.OrderIndex < 0 {
		v = append(v, field("orderIndex")+" must be non-negative")
	}
	if t.SpotifyURL != "" && !isWellFormedURL(t.SpotifyURL) {
		v = append(v, field("spotifyUrl")+" must be a valid URL")
	}

	for j, vendor := range t.Vendors {
		if vendor.Name == "" {
			v = append(v, fmt.Sprintf("tracks[%d].vendors[%d].name is required", idx, j))
		}
		if !isWellFormedURL(vendor.URL) {
			v = append(v, fmt.Sprintf("tracks[%d].vendors[%d].url must be a valid URL", idx, j))
		}
	}

	return v
}

// Validate checks the selection payload and normalizes its status.
func (s *SelectionPayload) Validate() error {
	var v []string

	if len(s.TrackIDs) == 0 {
		v = append(v, "trackIds must not be empty")
	}
	for i, id := range s.TrackIDs {
		if id == "" {
			v = append(v, fmt.Sprintf("trackIds[%d] must not be empty", i))
		}
	}
	if s.TotalCost < 0 {
		v = append(v, "totalCost must be non-negative")
	}

	switch s.Status {
	case "":
		s.Status = SelectionDraft
	case SelectionDraft, SelectionCompleted:
	default:
		v = append(v, "status must be draft or completed")
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

func isWellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// FormatDuration renders a millisecond duration as "M:SS", flooring seconds.
func FormatDuration(durationMs int) string {
	if durationMs <= 0 {
		return "0:00"
	}
	totalSeconds := durationMs / 1000
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}
