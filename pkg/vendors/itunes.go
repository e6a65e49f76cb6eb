package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cratelink/pkg/fuzzy"
)

const (
	// DefaultITunesSearchURL is the public iTunes search API endpoint.
	DefaultITunesSearchURL = "https://itunes.apple.com/search"
	// ITunesRequestTimeout is the timeout for iTunes API requests.
	ITunesRequestTimeout = 10 * time.Second
	// itunesISRCLimit is the result limit for exact ISRC searches.
	itunesISRCLimit = 1
	// itunesTermLimit is the result limit for keyword searches.
	itunesTermLimit = 5
)

// iTunesSearchResponse represents the response from the iTunes search API.
type iTunesSearchResponse struct {
	ResultCount int                  `json:"resultCount"`
	Results     []iTunesSearchResult `json:"results"`
}

// iTunesSearchResult represents a single result from the iTunes search API.
type iTunesSearchResult struct {
	TrackID           int64   `json:"trackId"`
	TrackName         string  `json:"trackName"`
	ArtistName        string  `json:"artistName"`
	CollectionName    string  `json:"collectionName"`
	TrackPrice        float64 `json:"trackPrice"`
	CollectionPrice   float64 `json:"collectionPrice"`
	Currency          string  `json:"currency"`
	TrackViewURL      string  `json:"trackViewUrl"`
	CollectionViewURL string  `json:"collectionViewUrl"`
	ISRC              string  `json:"isrc"`
}

// ITunes resolves purchase offers from the iTunes catalog search API.
type ITunes struct {
	searchURL  string
	country    string
	client     *http.Client
	cache      Cache
	normalizer *fuzzy.Normalizer
}

// NewITunes creates an iTunes catalog matcher. The cache may be nil to
// disable caching entirely.
func NewITunes(searchURL, country string, cache Cache) *ITunes {
	if searchURL == "" {
		searchURL = DefaultITunesSearchURL
	}
	if country == "" {
		country = "GB"
	}

	return &ITunes{
		searchURL:  searchURL,
		country:    country,
		client:     &http.Client{Timeout: ITunesRequestTimeout},
		cache:      cache,
		normalizer: fuzzy.NewNormalizer(),
	}
}

// Find resolves at most one best-matching offer for the track. A cache hit,
// including a cached "no match", short-circuits all network calls. Lookup
// failures are cached as "no match" and returned to the caller.
func (m *ITunes) Find(ctx context.Context, q CatalogQuery) (*Offer, error) {
	key := cacheKey(q.ISRC, q.Track, q.Artist)
	if m.cache != nil {
		if offer, ok := m.cache.Get(key); ok {
			return offer, nil
		}
	}

	offer, err := m.lookup(ctx, q)
	if err != nil {
		if m.cache != nil {
			m.cache.Set(key, nil)
		}
		return nil, err
	}

	if m.cache != nil {
		m.cache.Set(key, offer)
	}
	return offer, nil
}

func (m *ITunes) lookup(ctx context.Context, q CatalogQuery) (*Offer, error) {
	// Tier 1: exact ISRC search, accepted unconditionally when it yields a
	// usable result. Failures here fall through to the keyword search.
	if q.ISRC != "" {
		if offer, err := m.search(ctx, q.ISRC, itunesISRCLimit, nil); err == nil && offer != nil {
			return offer, nil
		}
	}

	// Tier 2: keyword search with fuzzy preference among the top results.
	term := strings.TrimSpace(strings.Join(nonEmpty(q.Track, q.Artist), " "))
	if term == "" {
		return nil, nil
	}

	return m.search(ctx, term, itunesTermLimit, func(results []iTunesSearchResult) *iTunesSearchResult {
		return m.pickBest(results, q)
	})
}

// search issues one search request. With a nil picker the first result wins.
func (m *ITunes) search(
	ctx context.Context,
	term string,
	limit int,
	pick func([]iTunesSearchResult) *iTunesSearchResult,
) (*Offer, error) {
	reqURL := fmt.Sprintf("%s?term=%s&entity=song&limit=%d&country=%s",
		m.searchURL, url.QueryEscape(term), limit, url.QueryEscape(m.country))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("iTunes API returned status %d", resp.StatusCode)
	}

	var searchResp iTunesSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode iTunes API response: %w", err)
	}

	if searchResp.ResultCount == 0 || len(searchResp.Results) == 0 {
		return nil, nil
	}

	result := &searchResp.Results[0]
	if pick != nil {
		result = pick(searchResp.Results)
	}

	return m.offerFromResult(result), nil
}

// pickBest prefers the first result whose normalized title contains the
// normalized track name and, when an artist was supplied, whose normalized
// artist contains the normalized first artist. Falls back to the first result.
func (m *ITunes) pickBest(results []iTunesSearchResult, q CatalogQuery) *iTunesSearchResult {
	normalizedTrack := m.normalizer.NormalizeTerm(q.Track)
	normalizedArtist := m.normalizer.NormalizeTerm(m.normalizer.PrimaryArtist(q.Artist))

	for i := range results {
		resultTrack := m.normalizer.NormalizeTerm(results[i].TrackName)
		resultArtist := m.normalizer.NormalizeTerm(results[i].ArtistName)

		if strings.Contains(resultTrack, normalizedTrack) &&
			(normalizedArtist == "" || strings.Contains(resultArtist, normalizedArtist)) {
			return &results[i]
		}
	}

	return &results[0]
}

// offerFromResult converts an API result to an Offer, or nil when the result
// carries no purchase URL.
func (m *ITunes) offerFromResult(result *iTunesSearchResult) *Offer {
	offerURL := result.TrackViewURL
	if offerURL == "" {
		offerURL = result.CollectionViewURL
	}
	if offerURL == "" {
		return nil
	}

	price := result.TrackPrice
	if price == 0 {
		price = result.CollectionPrice
	}

	offer := &Offer{URL: offerURL}
	if price > 0 && result.Currency != "" {
		offer.Price = FormatPrice(price, result.Currency)
	}

	available := true
	offer.Available = &available

	return offer
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
