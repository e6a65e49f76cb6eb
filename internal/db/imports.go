package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cratelink/internal/core"
	"cratelink/pkg/vendors"
)

// txStatementTimeout bounds every import transaction; a runaway bulk insert
// aborts instead of holding locks indefinitely.
const txStatementTimeout = "60000"

// ImportRepository handles playlist import persistence.
type ImportRepository struct {
	pool *pgxpool.Pool
}

// Create persists a validated enriched playlist for the user and returns the
// generated import ID. Profile and preference rows are guaranteed before the
// transaction; the import row, tracks, vendors, and offers land atomically
// inside it. Any transactional failure rolls everything back and surfaces as
// a *core.PersistenceError.
func (r *ImportRepository) Create(ctx context.Context, principal core.Principal, playlist *core.PlaylistPayload) (string, error) {
	if err := playlist.Validate(); err != nil {
		return "", err
	}

	if err := r.ensureProfile(ctx, principal); err != nil {
		return "", err
	}
	if err := ensurePreferences(ctx, r.pool, principal.UserID); err != nil {
		return "", err
	}

	importID := uuid.NewString()

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := r.insertImportRow(ctx, tx, importID, principal.UserID, playlist); err != nil {
			return err
		}

		vendorIDs, err := r.upsertVendors(ctx, tx, playlist)
		if err != nil {
			return err
		}

		trackIDs, err := r.insertTracks(ctx, tx, importID, playlist)
		if err != nil {
			return err
		}

		return r.insertOffers(ctx, tx, playlist, trackIDs, vendorIDs)
	})
	if err != nil {
		return "", &core.PersistenceError{ImportID: importID, Err: err}
	}

	return importID, nil
}

// List returns the user's imports, newest first.
func (r *ImportRepository) List(ctx context.Context, userID string) ([]ImportSummary, error) {
	query := `
		SELECT id, name, description, status, total_tracks, matched_tracks, available_offers, created_at
		FROM playlist_imports
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying imports: %w", err)
	}
	defer rows.Close()

	var items []ImportSummary
	for rows.Next() {
		var item ImportSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Status,
			&item.TotalTracks, &item.MatchedTracks, &item.AvailableOffers, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning import: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns a fully hydrated import owned by the user: tracks in playlist
// order with their offers, plus the activity history, newest event first.
// Imports belonging to other users surface as core.ErrNotFound.
func (r *ImportRepository) Get(ctx context.Context, userID, importID string) (*ImportRecord, error) {
	query := `
		SELECT id, user_id, source, source_playlist_id, source_url, name, description, status, notes,
			total_tracks, matched_tracks, available_offers, started_at, created_at, updated_at
		FROM playlist_imports
		WHERE id = $1 AND user_id = $2
	`
	var record ImportRecord
	err := r.pool.QueryRow(ctx, query, importID, userID).Scan(
		&record.ID, &record.UserID, &record.Source, &record.SourcePlaylistID, &record.SourceURL,
		&record.Name, &record.Description, &record.Status, &record.Notes,
		&record.TotalTracks, &record.MatchedTracks, &record.AvailableOffers,
		&record.StartedAt, &record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying import: %w", err)
	}

	if record.Tracks, err = r.loadTracks(ctx, importID); err != nil {
		return nil, err
	}
	if record.Activities, err = r.loadActivities(ctx, importID); err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *ImportRepository) ensureProfile(ctx context.Context, principal core.Principal) error {
	email := principal.Email
	if email == "" {
		email = "unknown@example.com"
	}

	query := `
		INSERT INTO profiles (id, email)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, principal.UserID, email); err != nil {
		return fmt.Errorf("ensuring profile: %w", err)
	}
	return nil
}

func (r *ImportRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SET LOCAL statement_timeout = '"+txStatementTimeout+"'"); err != nil {
		return fmt.Errorf("setting statement timeout: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ImportRepository) insertImportRow(ctx context.Context, tx pgx.Tx, importID, userID string, playlist *core.PlaylistPayload) error {
	var sourcePlaylistID *string
	if playlist.SpotifyPlaylistID != "" {
		sourcePlaylistID = &playlist.SpotifyPlaylistID
	}

	query := `
		INSERT INTO playlist_imports
			(id, user_id, source, source_playlist_id, source_url, name, description, status,
			 total_tracks, matched_tracks, available_offers)
		VALUES ($1, $2, 'SPOTIFY', $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Exec(ctx, query,
		importID, userID, sourcePlaylistID, playlist.URL, playlist.Name, playlist.Description,
		core.StatusReady, playlist.TrackCount, len(playlist.Tracks), countAvailableOffers(playlist))
	if err != nil {
		return fmt.Errorf("inserting import row: %w", err)
	}
	return nil
}

// upsertVendors registers every vendor referenced by the payload and returns a
// vendor-name to vendor-ID map. Existing rows keep their branding.
func (r *ImportRepository) upsertVendors(ctx context.Context, tx pgx.Tx, playlist *core.PlaylistPayload) (map[string]string, error) {
	vendorIDs := make(map[string]string)
	var identities []Vendor

	for _, track := range playlist.Tracks {
		for _, entry := range track.Vendors {
			if _, seen := vendorIDs[entry.Name]; seen {
				continue
			}
			identity := vendorIdentity(entry.Name)
			vendorIDs[entry.Name] = identity.ID
			identities = append(identities, identity)
		}
	}
	if len(identities) == 0 {
		return vendorIDs, nil
	}

	query := `
		INSERT INTO vendors (id, display_name, website_url, primary_color, secondary_color)
		SELECT * FROM unnest($1::varchar[], $2::text[], $3::text[], $4::varchar[], $5::varchar[])
		ON CONFLICT (id) DO NOTHING
	`

	ids := make([]string, len(identities))
	names := make([]string, len(identities))
	sites := make([]*string, len(identities))
	primaries := make([]*string, len(identities))
	secondaries := make([]*string, len(identities))
	for i, v := range identities {
		ids[i] = v.ID
		names[i] = v.DisplayName
		sites[i] = v.WebsiteURL
		primaries[i] = v.PrimaryColor
		secondaries[i] = v.SecondaryColor
	}

	if _, err := tx.Exec(ctx, query, ids, names, sites, primaries, secondaries); err != nil {
		return nil, fmt.Errorf("upserting vendors: %w", err)
	}
	return vendorIDs, nil
}

// insertTracks bulk-inserts the track rows and returns the generated track ID
// per payload index.
func (r *ImportRepository) insertTracks(ctx context.Context, tx pgx.Tx, importID string, playlist *core.PlaylistPayload) ([]string, error) {
	if len(playlist.Tracks) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO playlist_tracks
			(id, import_id, order_index, name, artists, album,
			 spotify_track_id, spotify_track_url, isrc, duration_ms)
		SELECT * FROM unnest($1::text[], $2::text[], $3::int[], $4::text[], $5::text[],
			$6::text[], $7::varchar[], $8::text[], $9::varchar[], $10::int[])
	`

	n := len(playlist.Tracks)
	trackIDs := make([]string, n)
	importIDs := make([]string, n)
	orderIndexes := make([]int, n)
	names := make([]string, n)
	artists := make([]string, n)
	albums := make([]*string, n)
	spotifyIDs := make([]*string, n)
	spotifyURLs := make([]*string, n)
	isrcs := make([]*string, n)
	durations := make([]int, n)

	for i := range playlist.Tracks {
		track := &playlist.Tracks[i]
		trackIDs[i] = uuid.NewString()
		importIDs[i] = importID
		orderIndexes[i] = track.OrderIndex
		names[i] = track.Name
		artists[i] = track.Artist
		albums[i] = track.Album
		spotifyIDs[i] = optional(track.SpotifyID)
		spotifyURLs[i] = optional(track.SpotifyURL)
		isrcs[i] = optional(track.ISRC)
		durations[i] = track.DurationMs
	}

	if _, err := tx.Exec(ctx, query, trackIDs, importIDs, orderIndexes, names, artists,
		albums, spotifyIDs, spotifyURLs, isrcs, durations); err != nil {
		return nil, fmt.Errorf("inserting tracks: %w", err)
	}
	return trackIDs, nil
}

// insertOffers writes every vendor offer. A duplicate vendor on the same
// track keeps the first offer; duplicates are dropped, not errored.
func (r *ImportRepository) insertOffers(ctx context.Context, tx pgx.Tx, playlist *core.PlaylistPayload, trackIDs []string, vendorIDs map[string]string) error {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO vendor_offers
			(id, track_id, vendor_id, title, subtitle, external_url,
			 currency_code, price_value, availability, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (track_id, vendor_id) DO NOTHING
	`

	for i := range playlist.Tracks {
		track := &playlist.Tracks[i]
		for _, entry := range track.Vendors {
			amount, currency := parsePrice(entry.Price)

			availability := core.AvailabilityAvailable
			if entry.Available != nil && !*entry.Available {
				availability = core.AvailabilityUnavailable
			}

			batch.Queue(query,
				uuid.NewString(), trackIDs[i], vendorIDs[entry.Name],
				track.Name, track.Artist, entry.URL,
				currency, amount, availability,
				map[string]any{"vendorName": entry.Name, "price": entry.Price})
		}
	}
	if batch.Len() == 0 {
		return nil
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting offer: %w", err)
		}
	}
	return results.Close()
}

func (r *ImportRepository) loadTracks(ctx context.Context, importID string) ([]TrackRecord, error) {
	query := `
		SELECT id, import_id, order_index, name, artists, album,
			spotify_track_id, spotify_track_url, isrc, duration_ms, created_at
		FROM playlist_tracks
		WHERE import_id = $1
		ORDER BY order_index
	`
	rows, err := r.pool.Query(ctx, query, importID)
	if err != nil {
		return nil, fmt.Errorf("querying tracks: %w", err)
	}
	defer rows.Close()

	var tracks []TrackRecord
	index := make(map[string]int)
	for rows.Next() {
		var track TrackRecord
		if err := rows.Scan(&track.ID, &track.ImportID, &track.OrderIndex, &track.Name, &track.Artists,
			&track.Album, &track.SpotifyTrackID, &track.SpotifyTrackURL, &track.ISRC,
			&track.DurationMs, &track.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		track.Offers = []OfferRecord{}
		index[track.ID] = len(tracks)
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachOffers(ctx, importID, tracks, index); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (r *ImportRepository) attachOffers(ctx context.Context, importID string, tracks []TrackRecord, index map[string]int) error {
	if len(tracks) == 0 {
		return nil
	}

	query := `
		SELECT o.id, o.track_id, o.vendor_id, o.title, o.subtitle, o.external_url,
			o.currency_code, o.price_value, o.availability,
			v.display_name, v.description, v.website_url, v.primary_color, v.secondary_color
		FROM vendor_offers o
		JOIN playlist_tracks t ON t.id = o.track_id
		JOIN vendors v ON v.id = o.vendor_id
		WHERE t.import_id = $1
		ORDER BY t.order_index, o.created_at
	`
	rows, err := r.pool.Query(ctx, query, importID)
	if err != nil {
		return fmt.Errorf("querying offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var offer OfferRecord
		if err := rows.Scan(&offer.ID, &offer.TrackID, &offer.VendorID, &offer.Title, &offer.Subtitle,
			&offer.ExternalURL, &offer.CurrencyCode, &offer.PriceValue, &offer.Availability,
			&offer.Vendor.DisplayName, &offer.Vendor.Description, &offer.Vendor.WebsiteURL,
			&offer.Vendor.PrimaryColor, &offer.Vendor.SecondaryColor); err != nil {
			return fmt.Errorf("scanning offer: %w", err)
		}
		offer.Vendor.ID = offer.VendorID
		offer.Price = renderPrice(offer.PriceValue, offer.CurrencyCode)
		offer.Available = availabilityFlag(offer.Availability)

		if i, ok := index[offer.TrackID]; ok {
			tracks[i].Offers = append(tracks[i].Offers, offer)
		}
	}
	return rows.Err()
}

func (r *ImportRepository) loadActivities(ctx context.Context, importID string) ([]Activity, error) {
	query := `
		SELECT id, import_id, event_type, message, metadata, created_at
		FROM import_activities
		WHERE import_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, importID)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var activity Activity
		if err := rows.Scan(&activity.ID, &activity.ImportID, &activity.EventType,
			&activity.Message, &activity.Metadata, &activity.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

// countAvailableOffers counts vendor entries that are not explicitly
// unavailable; unknown availability still counts as purchasable.
func countAvailableOffers(playlist *core.PlaylistPayload) int {
	count := 0
	for i := range playlist.Tracks {
		for _, entry := range playlist.Tracks[i].Vendors {
			if entry.Available == nil || *entry.Available {
				count++
			}
		}
	}
	return count
}

// parsePrice extracts a numeric amount and a currency code from localized
// price text ("£1.29", "$ 0.99"). Unparseable amounts persist as NULL rather
// than dropping the offer; the currency defaults to GBP.
func parsePrice(price string) (*float64, string) {
	trimmed := strings.TrimSpace(price)
	currency := "GBP"
	if trimmed == "" {
		return nil, currency
	}

	var symbol strings.Builder
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			break
		}
		symbol.WriteRune(r)
	}
	if strings.TrimSpace(symbol.String()) == "$" {
		currency = "USD"
	}

	var numeric strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			numeric.WriteRune(r)
		case r == ',':
			// thousands separator, dropped
		}
	}

	amount, err := strconv.ParseFloat(numeric.String(), 64)
	if err != nil {
		return nil, currency
	}
	return &amount, currency
}

// renderPrice turns a stored amount back into localized currency text for API
// responses, the inverse of parsePrice.
func renderPrice(value *float64, currencyCode string) *string {
	if value == nil {
		return nil
	}
	price := vendors.FormatPrice(*value, currencyCode)
	return &price
}

// availabilityFlag collapses the availability enum to the tri-state boolean
// the API exposes: nil when the vendor never reported stock.
func availabilityFlag(availability string) *bool {
	switch availability {
	case core.AvailabilityAvailable:
		available := true
		return &available
	case core.AvailabilityUnavailable, core.AvailabilityOutOfStock:
		available := false
		return &available
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
