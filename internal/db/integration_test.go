//go:build integration

// These tests need a reachable PostgreSQL instance; point
// CRATELINK_TEST_DATABASE_URL at a throwaway database and run with
// -tags=integration. Each test truncates the schema it touches.
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"cratelink/internal/core"
)

func newIntegrationDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("CRATELINK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CRATELINK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	if err := database.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() {
		_, err := database.Pool().Exec(context.Background(),
			`TRUNCATE profiles, playlist_imports, playlist_tracks, vendors,
			 vendor_offers, import_activities, user_preferences CASCADE`)
		if err != nil {
			t.Errorf("truncating test database: %v", err)
		}
		database.Close()
	})

	return database
}

func testPrincipal() core.Principal {
	id := uuid.NewString()
	return core.Principal{UserID: id, Email: fmt.Sprintf("%s@example.com", id[:8])}
}

func availableTrue() *bool {
	v := true
	return &v
}

func integrationPayload() *core.PlaylistPayload {
	album := "Come to Daddy"
	return &core.PlaylistPayload{
		SpotifyPlaylistID: "pl1",
		URL:               "https://open.spotify.com/playlist/pl1",
		Name:              "Warp Classics",
		TrackCount:        2,
		ImportedAt:        time.Now().UTC(),
		Tracks: []core.Track{
			{
				ID: "sp1", Name: "Windowlicker", Artist: "Aphex Twin", Album: &album,
				Duration: "6:07", DurationMs: 367000, ISRC: "GBAFL9900060", OrderIndex: 0,
				SpotifyID: "sp1", SpotifyURL: "https://open.spotify.com/track/sp1",
				Vendors: []core.VendorEntry{
					{Name: "Apple iTunes", URL: "https://music.apple.com/gb/album/1", Price: "£1.29", Available: availableTrue()},
					{Name: "Discogs Marketplace", URL: "https://www.discogs.com/sell/release/1"},
				},
			},
			{
				ID: "pl1-1", Name: "Roygbiv", Artist: "Boards of Canada",
				Duration: "2:31", DurationMs: 151000, OrderIndex: 1,
				Vendors: []core.VendorEntry{},
			},
		},
	}
}

func TestIntegrationImportRoundTrip(t *testing.T) {
	database := newIntegrationDB(t)
	ctx := context.Background()
	principal := testPrincipal()

	importID, err := database.Imports().Create(ctx, principal, integrationPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	record, err := database.Imports().Get(ctx, principal.UserID, importID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != core.StatusReady {
		t.Fatalf("status = %q, want READY", record.Status)
	}
	if len(record.Tracks) != 2 || record.Tracks[0].Name != "Windowlicker" || record.Tracks[1].OrderIndex != 1 {
		t.Fatalf("tracks out of order: %+v", record.Tracks)
	}

	offers := record.Tracks[0].Offers
	if len(offers) != 2 {
		t.Fatalf("offers = %d, want 2", len(offers))
	}
	if offers[0].Vendor.DisplayName != "Apple iTunes" {
		t.Fatalf("vendor display = %q", offers[0].Vendor.DisplayName)
	}
	if offers[0].PriceValue == nil || *offers[0].PriceValue != 1.29 {
		t.Fatalf("price value = %v, want 1.29", offers[0].PriceValue)
	}
	if offers[0].Price == nil || !strings.Contains(*offers[0].Price, "1.29") {
		t.Fatalf("rendered price = %v", offers[0].Price)
	}
	if offers[0].Available == nil || !*offers[0].Available {
		t.Fatalf("available = %v, want true", offers[0].Available)
	}
	if offers[1].Available != nil {
		t.Fatalf("offer without stock info should have nil available, got %v", *offers[1].Available)
	}

	summaries, err := database.Imports().List(ctx, principal.UserID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].TotalTracks != 2 || summaries[0].AvailableOffers != 2 {
		t.Fatalf("unexpected summary: %+v", summaries)
	}

	// Another user must not see or fetch the import.
	other := testPrincipal()
	if _, err := database.Imports().Create(ctx, other, integrationPayload()); err != nil {
		t.Fatalf("Create for second user: %v", err)
	}
	if _, err := database.Imports().Get(ctx, other.UserID, importID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign Get error = %v, want ErrNotFound", err)
	}
}

func TestIntegrationVendorUpsertIdempotent(t *testing.T) {
	database := newIntegrationDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := database.Imports().Create(ctx, testPrincipal(), integrationPayload()); err != nil {
			t.Fatalf("Create %d: %v", i+1, err)
		}
	}

	var count int
	err := database.Pool().QueryRow(ctx,
		`SELECT count(*) FROM vendors WHERE id IN ('itunes', 'discogs')`).Scan(&count)
	if err != nil {
		t.Fatalf("counting vendors: %v", err)
	}
	if count != 2 {
		t.Fatalf("vendor rows = %d, want 2 (one per vendor across repeat imports)", count)
	}
}

func TestIntegrationOfferUniquePerTrackAndVendor(t *testing.T) {
	database := newIntegrationDB(t)
	ctx := context.Background()
	principal := testPrincipal()

	payload := integrationPayload()
	payload.Tracks[0].Vendors = append(payload.Tracks[0].Vendors,
		core.VendorEntry{Name: "Apple iTunes", URL: "https://music.apple.com/gb/album/other", Price: "£0.99"})

	importID, err := database.Imports().Create(ctx, principal, payload)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var count int
	err = database.Pool().QueryRow(ctx,
		`SELECT count(*) FROM vendor_offers o
		 JOIN playlist_tracks t ON t.id = o.track_id
		 WHERE t.import_id = $1 AND o.vendor_id = 'itunes'`, importID).Scan(&count)
	if err != nil {
		t.Fatalf("counting offers: %v", err)
	}
	if count != 1 {
		t.Fatalf("itunes offers = %d, want 1 (duplicate dropped)", count)
	}
}

func TestIntegrationCreateRollsBackAtomically(t *testing.T) {
	database := newIntegrationDB(t)
	ctx := context.Background()
	principal := testPrincipal()

	// An ISRC longer than the column forces the track insert to fail after
	// the import row is already written inside the transaction.
	payload := integrationPayload()
	payload.Tracks[0].ISRC = "GBAFL9900060-TOO-LONG"

	_, err := database.Imports().Create(ctx, principal, payload)
	var persistenceErr *core.PersistenceError
	if !errors.As(err, &persistenceErr) {
		t.Fatalf("Create error = %v, want *core.PersistenceError", err)
	}

	var imports, tracks int
	if err := database.Pool().QueryRow(ctx,
		`SELECT count(*) FROM playlist_imports WHERE user_id = $1`, principal.UserID).Scan(&imports); err != nil {
		t.Fatalf("counting imports: %v", err)
	}
	if err := database.Pool().QueryRow(ctx,
		`SELECT count(*) FROM playlist_tracks`).Scan(&tracks); err != nil {
		t.Fatalf("counting tracks: %v", err)
	}
	if imports != 0 || tracks != 0 {
		t.Fatalf("rows survived rollback: imports=%d tracks=%d", imports, tracks)
	}
}

func TestIntegrationSelectionSurvivesExportAudit(t *testing.T) {
	database := newIntegrationDB(t)
	ctx := context.Background()
	principal := testPrincipal()

	importID, err := database.Imports().Create(ctx, principal, integrationPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	selection := &core.SelectionPayload{
		TrackIDs:  []string{"t-selected"},
		TotalCost: 1.29,
		Status:    core.SelectionCompleted,
	}
	if err := database.Activities().SaveSelection(ctx, principal.UserID, importID, selection); err != nil {
		t.Fatalf("SaveSelection: %v", err)
	}

	// A later export writes an audit event of the same type without trackIds.
	if err := database.Activities().Log(ctx, importID, core.EventExportTriggered, nil,
		map[string]any{"format": "csv", "offerCount": 2}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	activity, err := database.Activities().LatestSelection(ctx, principal.UserID, importID)
	if err != nil {
		t.Fatalf("LatestSelection: %v", err)
	}
	if activity == nil {
		t.Fatal("LatestSelection = nil, want the saved selection")
	}
	if !carriesSelection(activity.Metadata) {
		t.Fatalf("latest selection has no trackIds: %+v", activity.Metadata)
	}

	if _, err := database.Activities().LatestSelection(ctx, testPrincipal().UserID, importID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign LatestSelection error = %v, want ErrNotFound", err)
	}
}
