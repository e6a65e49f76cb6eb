// Package vendors provides purchase-offer matchers for external retail and
// marketplace catalogs. Each matcher resolves at most one best offer per track
// and reports lookup failures to the caller instead of aborting a batch.
package vendors

import (
	"context"
)

// Offer is a single resolved purchase option for a track.
type Offer struct {
	URL string // Purchase page URL.

	// Price is localized currency text ("£1.29"); empty when the vendor
	// reported no usable price. An offer without a price is still an offer.
	Price string

	// Available reports marketplace stock: true/false when the vendor
	// exposes a for-sale count, nil when unknown.
	Available *bool

	// AlternateURL is an alternate-vendor link mined from the vendor's
	// grouping record (currently a Bandcamp page), when one exists.
	AlternateURL string

	// VideoURLs are embedded preview/video links found on the vendor pages.
	VideoURLs []string
}

// CatalogQuery identifies a track for a digital storefront search.
type CatalogQuery struct {
	Track  string
	Artist string
	ISRC   string
}

// MarketplaceQuery identifies a track for a physical marketplace search.
type MarketplaceQuery struct {
	Track  string
	Artist string
	Album  string
}

// CatalogMatcher resolves a single best purchase offer from a digital
// storefront. A (nil, nil) return means the vendor has no match; a non-nil
// error means the lookup itself failed and the caller decides how to degrade.
type CatalogMatcher interface {
	Find(ctx context.Context, q CatalogQuery) (*Offer, error)
}

// MarketplaceMatcher resolves a marketplace listing plus optional alternate
// links, with the same (nil, nil) / error contract as CatalogMatcher.
type MarketplaceMatcher interface {
	Find(ctx context.Context, q MarketplaceQuery) (*Offer, error)
}
