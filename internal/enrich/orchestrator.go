package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cratelink/internal/core"
	"cratelink/internal/spotify"
	"cratelink/pkg/vendors"
)

// Vendor display names attached to enriched tracks.
const (
	VendorAppleITunes        = "Apple iTunes"
	VendorDiscogsMarketplace = "Discogs Marketplace"
	VendorBandcampViaDiscogs = "Bandcamp (via Discogs)"
)

// Lookup outcome labels for metrics.
const (
	LookupStatusMatch   = "match"
	LookupStatusNoMatch = "no_match"
	LookupStatusError   = "error"
)

// MetricsRecorder counts vendor lookup outcomes. The HTTP layer provides the
// Prometheus-backed implementation.
type MetricsRecorder interface {
	RecordVendorLookup(vendor, status string)
}

// Orchestrator runs the full import pipeline short of persistence: fetch the
// playlist, normalize its tracks, and layer vendor offers onto each track.
type Orchestrator struct {
	spotify     *spotify.Client
	catalog     vendors.CatalogMatcher
	marketplace vendors.MarketplaceMatcher
	config      *core.EnrichConfig
	logger      *zap.Logger
	metrics     MetricsRecorder
}

func NewOrchestrator(
	spotifyClient *spotify.Client,
	catalog vendors.CatalogMatcher,
	marketplace vendors.MarketplaceMatcher,
	config *core.EnrichConfig,
	logger *zap.Logger,
	metrics MetricsRecorder,
) *Orchestrator {
	return &Orchestrator{
		spotify:     spotifyClient,
		catalog:     catalog,
		marketplace: marketplace,
		config:      config,
		logger:      logger,
		metrics:     metrics,
	}
}

// Enrich fetches the referenced playlist with the user's token and returns the
// enriched payload without persisting anything. A failed vendor lookup never
// fails the run; the affected track simply carries fewer offers.
func (o *Orchestrator) Enrich(ctx context.Context, accessToken, ref string) (*core.PlaylistPayload, error) {
	playlist, err := o.spotify.FetchPlaylist(ctx, accessToken, ref)
	if err != nil {
		return nil, err
	}

	tracks := NormalizeTracks(playlist)
	o.catalogPass(ctx, tracks)
	o.marketplacePass(ctx, tracks)

	var description *string
	if playlist.Description != "" {
		description = &playlist.Description
	}

	payload := &core.PlaylistPayload{
		SpotifyPlaylistID: playlist.ID,
		URL:               playlist.URL,
		Name:              playlist.Name,
		Description:       description,
		TrackCount:        len(tracks),
		ImportedAt:        time.Now().UTC(),
		Tracks:            tracks,
	}

	o.logger.Info("Playlist enrichment completed",
		zap.String("playlistID", playlist.ID),
		zap.Int("trackCount", len(tracks)))

	return payload, nil
}

// catalogPass resolves storefront offers in concurrent batches. Batches run
// sequentially; tracks within a batch run in parallel.
func (o *Orchestrator) catalogPass(ctx context.Context, tracks []core.Track) {
	o.runBatches(ctx, tracks, o.config.CatalogBatchSize, func(ctx context.Context, track *core.Track) {
		offer, err := o.catalog.Find(ctx, vendors.CatalogQuery{
			Track:  track.Name,
			Artist: track.Artist,
			ISRC:   track.ISRC,
		})
		if err != nil {
			o.recordLookup(VendorAppleITunes, LookupStatusError)
			o.logger.Warn("Catalog lookup failed",
				zap.String("trackID", track.ID),
				zap.String("track", track.Name),
				zap.Error(err))
			return
		}
		if offer == nil {
			o.recordLookup(VendorAppleITunes, LookupStatusNoMatch)
			return
		}

		o.recordLookup(VendorAppleITunes, LookupStatusMatch)
		track.Vendors = append(track.Vendors, core.VendorEntry{
			Name:      VendorAppleITunes,
			URL:       offer.URL,
			Price:     offer.Price,
			Available: offer.Available,
		})
	})
}

// marketplacePass resolves marketplace listings plus any Bandcamp alternate
// the listing surfaces. Entries always land after the catalog pass, keeping
// offer order deterministic per track.
func (o *Orchestrator) marketplacePass(ctx context.Context, tracks []core.Track) {
	o.runBatches(ctx, tracks, o.config.MarketplaceBatchSize, func(ctx context.Context, track *core.Track) {
		var album string
		if track.Album != nil {
			album = *track.Album
		}

		offer, err := o.marketplace.Find(ctx, vendors.MarketplaceQuery{
			Track:  track.Name,
			Artist: track.Artist,
			Album:  album,
		})
		if err != nil {
			o.recordLookup(VendorDiscogsMarketplace, LookupStatusError)
			o.logger.Warn("Marketplace lookup failed",
				zap.String("trackID", track.ID),
				zap.String("track", track.Name),
				zap.Error(err))
			return
		}
		if offer == nil {
			o.recordLookup(VendorDiscogsMarketplace, LookupStatusNoMatch)
			return
		}

		o.recordLookup(VendorDiscogsMarketplace, LookupStatusMatch)
		track.Vendors = append(track.Vendors, core.VendorEntry{
			Name:      VendorDiscogsMarketplace,
			URL:       offer.URL,
			Price:     offer.Price,
			Available: offer.Available,
		})

		if offer.AlternateURL != "" {
			track.Vendors = append(track.Vendors, core.VendorEntry{
				Name: VendorBandcampViaDiscogs,
				URL:  offer.AlternateURL,
			})
		}
	})
}

// runBatches walks the tracks in fixed-size batches, running one goroutine per
// track inside a batch. Each goroutine owns its track, so no locking is needed.
func (o *Orchestrator) runBatches(ctx context.Context, tracks []core.Track, batchSize int, fn func(context.Context, *core.Track)) {
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(tracks); start += batchSize {
		end := start + batchSize
		if end > len(tracks) {
			end = len(tracks)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			track := &tracks[i]
			g.Go(func() error {
				fn(ctx, track)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (o *Orchestrator) recordLookup(vendor, status string) {
	if o.metrics != nil {
		o.metrics.RecordVendorLookup(vendor, status)
	}
}
