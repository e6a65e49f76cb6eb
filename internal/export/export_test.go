package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"cratelink/internal/db"
)

func sampleImport() *db.ImportRecord {
	price := 1.29
	return &db.ImportRecord{
		Name: "Warp Classics",
		Tracks: []db.TrackRecord{
			{
				ID:         "t1",
				OrderIndex: 0,
				Name:       "Windowlicker",
				Artists:    "Aphex Twin",
				Offers: []db.OfferRecord{
					{
						ExternalURL:  "https://music.apple.com/gb/album/1",
						CurrencyCode: "GBP",
						PriceValue:   &price,
						Availability: "AVAILABLE",
						Vendor:       db.Vendor{ID: "itunes", DisplayName: "Apple iTunes"},
					},
					{
						ExternalURL:  "https://www.discogs.com/sell/release/1",
						CurrencyCode: "GBP",
						Availability: "UNKNOWN",
						Vendor:       db.Vendor{ID: "discogs", DisplayName: "Discogs Marketplace"},
					},
				},
			},
			{
				ID:         "t2",
				OrderIndex: 1,
				Name:       "Roygbiv",
				Artists:    "Boards of Canada",
				Offers:     []db.OfferRecord{},
			},
			{
				ID:         "t3",
				OrderIndex: 2,
				Name:       "CIRKLON3",
				Artists:    "Aphex Twin",
				Offers: []db.OfferRecord{
					{
						ExternalURL:  "https://aphextwin.bandcamp.com",
						CurrencyCode: "GBP",
						Availability: "AVAILABLE",
						Vendor:       db.Vendor{ID: "bandcamp", DisplayName: "Bandcamp"},
					},
				},
			},
		},
	}
}

func TestBuildRowsFlattensOffersInOrder(t *testing.T) {
	rows := BuildRows(sampleImport(), nil)

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Vendor != "Apple iTunes" || rows[1].Vendor != "Discogs Marketplace" || rows[2].Vendor != "Bandcamp" {
		t.Fatalf("unexpected vendor order: %q %q %q", rows[0].Vendor, rows[1].Vendor, rows[2].Vendor)
	}
	if rows[0].Price == nil || !strings.Contains(*rows[0].Price, "£") || !strings.Contains(*rows[0].Price, "1.29") {
		t.Fatalf("price = %v, want £1.29", rows[0].Price)
	}
	if rows[1].Price != nil {
		t.Fatalf("offer without price should have nil price, got %q", *rows[1].Price)
	}
	if rows[2].OrderIndex != 2 {
		t.Fatalf("OrderIndex = %d, want 2", rows[2].OrderIndex)
	}
}

func TestBuildRowsHonorsSelection(t *testing.T) {
	rows := BuildRows(sampleImport(), []string{"t3"})

	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Track != "CIRKLON3" {
		t.Fatalf("track = %q, want CIRKLON3", rows[0].Track)
	}
}

func TestRenderCSV(t *testing.T) {
	rows := BuildRows(sampleImport(), nil)

	var buf bytes.Buffer
	if err := Render(&buf, FormatCSV, "Warp Classics", rows); err != nil {
		t.Fatalf("Render: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("csv records = %d, want header + 3 rows", len(records))
	}
	if records[0][0] != "order" || records[0][6] != "url" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][1] != "Windowlicker" || !strings.Contains(records[1][4], "1.29") {
		t.Fatalf("unexpected first row: %v", records[1])
	}
	if records[2][4] != "" {
		t.Fatalf("priceless offer should render empty cell, got %q", records[2][4])
	}
}

func TestRenderJSON(t *testing.T) {
	rows := BuildRows(sampleImport(), nil)

	var buf bytes.Buffer
	if err := Render(&buf, FormatJSON, "Warp Classics", rows); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var doc struct {
		Playlist string `json:"playlist"`
		Offers   []Row  `json:"offers"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if doc.Playlist != "Warp Classics" {
		t.Fatalf("playlist = %q", doc.Playlist)
	}
	if len(doc.Offers) != 3 {
		t.Fatalf("offers = %d, want 3", len(doc.Offers))
	}
}

func TestRenderText(t *testing.T) {
	rows := BuildRows(sampleImport(), nil)

	var buf bytes.Buffer
	if err := Render(&buf, FormatText, "Warp Classics", rows); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Purchase list: Warp Classics",
		"1. Aphex Twin - Windowlicker",
		"Apple iTunes (",
		"1.29",
		"AVAILABLE)",
		"price unknown",
		"https://aphextwin.bandcamp.com",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "xlsx", "Warp Classics", nil); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on format error, got %q", buf.String())
	}

	if ct := ContentType("xlsx"); ct != "" {
		t.Fatalf("ContentType(xlsx) = %q, want empty", ct)
	}
	if ct := ContentType(FormatCSV); ct != "text/csv" {
		t.Fatalf("ContentType(csv) = %q", ct)
	}
}
