package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// maxVendorIDLength matches the vendors.id column width.
const maxVendorIDLength = 32

// knownVendors maps lowercase vendor names from the enrichment pipeline onto
// stable identities and branding. Unrecognized names fall back to a slug.
var knownVendors = map[string]Vendor{
	"apple itunes": {
		ID:           "itunes",
		DisplayName:  "Apple iTunes",
		PrimaryColor: strPtr("#FF2D55"),
		WebsiteURL:   strPtr("https://music.apple.com"),
	},
	"apple music": {
		ID:           "itunes",
		DisplayName:  "Apple iTunes",
		PrimaryColor: strPtr("#FF2D55"),
		WebsiteURL:   strPtr("https://music.apple.com"),
	},
	"discogs marketplace": {
		ID:           "discogs",
		DisplayName:  "Discogs Marketplace",
		PrimaryColor: strPtr("#5865F2"),
		WebsiteURL:   strPtr("https://www.discogs.com"),
	},
	"discogs": {
		ID:           "discogs",
		DisplayName:  "Discogs Marketplace",
		PrimaryColor: strPtr("#5865F2"),
		WebsiteURL:   strPtr("https://www.discogs.com"),
	},
	"bandcamp": {
		ID:           "bandcamp",
		DisplayName:  "Bandcamp",
		PrimaryColor: strPtr("#13B4B1"),
		WebsiteURL:   strPtr("https://bandcamp.com"),
	},
	"bandcamp (via discogs)": {
		ID:           "bandcamp",
		DisplayName:  "Bandcamp",
		PrimaryColor: strPtr("#13B4B1"),
		WebsiteURL:   strPtr("https://bandcamp.com"),
	},
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

func strPtr(s string) *string { return &s }

// slugify lowercases and collapses every non-alphanumeric run to a hyphen,
// trimming leading and trailing hyphens.
func slugify(value string) string {
	slug := slugRegex.ReplaceAllString(strings.ToLower(value), "-")
	return strings.Trim(slug, "-")
}

// vendorIdentity resolves an enrichment vendor name to its persisted vendor
// row. Names outside the well-known set get a slug identity capped to the
// column width, with "vendor" as the last-resort ID.
func vendorIdentity(name string) Vendor {
	if preset, ok := knownVendors[strings.ToLower(name)]; ok {
		return preset
	}

	id := slugify(name)
	if len(id) > maxVendorIDLength {
		id = id[:maxVendorIDLength]
	}
	if id == "" {
		id = "vendor"
	}

	return Vendor{ID: id, DisplayName: name}
}

// VendorRepository handles vendor catalog operations.
type VendorRepository struct {
	pool *pgxpool.Pool
}

// List returns every vendor ordered by display name.
func (r *VendorRepository) List(ctx context.Context) ([]Vendor, error) {
	query := `
		SELECT id, display_name, description, website_url, primary_color, secondary_color
		FROM vendors
		ORDER BY display_name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying vendors: %w", err)
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.DisplayName, &v.Description, &v.WebsiteURL, &v.PrimaryColor, &v.SecondaryColor); err != nil {
			return nil, fmt.Errorf("scanning vendor: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
