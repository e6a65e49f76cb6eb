package db

import "time"

// ImportSummary is the list-view projection of a playlist import.
type ImportSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	Status          string    `json:"status"`
	TotalTracks     int       `json:"totalTracks"`
	MatchedTracks   int       `json:"matchedTracks"`
	AvailableOffers int       `json:"availableOffers"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ImportRecord is a fully hydrated playlist import: the import row plus its
// ordered tracks (each with offers) and its activity history.
type ImportRecord struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	Source           string        `json:"source"`
	SourcePlaylistID *string       `json:"sourcePlaylistId"`
	SourceURL        string        `json:"sourceUrl"`
	Name             string        `json:"name"`
	Description      *string       `json:"description"`
	Status           string        `json:"status"`
	Notes            *string       `json:"notes"`
	TotalTracks      int           `json:"totalTracks"`
	MatchedTracks    int           `json:"matchedTracks"`
	AvailableOffers  int           `json:"availableOffers"`
	StartedAt        time.Time     `json:"startedAt"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	Tracks           []TrackRecord `json:"tracks"`
	Activities       []Activity    `json:"activities"`
}

// TrackRecord is one persisted playlist track with its vendor offers.
type TrackRecord struct {
	ID              string        `json:"id"`
	ImportID        string        `json:"importId"`
	OrderIndex      int           `json:"orderIndex"`
	Name            string        `json:"name"`
	Artists         string        `json:"artists"`
	Album           *string       `json:"album"`
	SpotifyTrackID  *string       `json:"spotifyTrackId"`
	SpotifyTrackURL *string       `json:"spotifyTrackUrl"`
	ISRC            *string       `json:"isrc"`
	DurationMs      *int          `json:"durationMs"`
	CreatedAt       time.Time     `json:"createdAt"`
	Offers          []OfferRecord `json:"offers"`
}

// OfferRecord is one persisted vendor offer joined with its vendor.
type OfferRecord struct {
	ID           string   `json:"id"`
	TrackID      string   `json:"trackId"`
	VendorID     string   `json:"vendorId"`
	Title        *string  `json:"title"`
	Subtitle     *string  `json:"subtitle"`
	ExternalURL  string   `json:"externalUrl"`
	CurrencyCode string   `json:"currencyCode"`
	PriceValue   *float64 `json:"priceValue"`
	Price        *string  `json:"price"`
	Availability string   `json:"availability"`
	Available    *bool    `json:"available"`
	Vendor       Vendor   `json:"vendor"`
}

// Vendor is a purchase destination, seeded from the well-known set or derived
// from an unrecognized vendor name.
type Vendor struct {
	ID             string  `json:"id"`
	DisplayName    string  `json:"displayName"`
	Description    *string `json:"description"`
	WebsiteURL     *string `json:"websiteUrl"`
	PrimaryColor   *string `json:"primaryColor"`
	SecondaryColor *string `json:"secondaryColor"`
}

// Activity is one append-only import event.
type Activity struct {
	ID        string         `json:"id"`
	ImportID  string         `json:"importId"`
	EventType string         `json:"eventType"`
	Message   *string        `json:"message"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Preferences is a user's account-level settings row.
type Preferences struct {
	UserID             string    `json:"userId"`
	EmailNotifications bool      `json:"emailNotifications"`
	AutoExport         bool      `json:"autoExport"`
	PreferredVendors   []string  `json:"preferredVendors"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
