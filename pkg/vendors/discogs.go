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
	// DefaultDiscogsAPIBaseURL is the Discogs API endpoint.
	DefaultDiscogsAPIBaseURL = "https://api.discogs.com"
	// DefaultDiscogsUserAgent identifies this service to the Discogs API,
	// which rejects requests without a User-Agent.
	DefaultDiscogsUserAgent = "cratelink/1.0 (+https://github.com/cratelink)"
	// DiscogsRequestTimeout is the timeout for Discogs API requests.
	DiscogsRequestTimeout = 10 * time.Second
	// discogsSearchPerPage is how many search results are considered.
	discogsSearchPerPage = 5
	// discogsCurrency is the marketplace currency requested on release
	// detail calls.
	discogsCurrency = "GBP"
)

// discogsSearchResponse represents a Discogs database search response.
type discogsSearchResponse struct {
	Results []discogsSearchResult `json:"results"`
}

// discogsSearchResult represents a single Discogs search result.
type discogsSearchResult struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	ResourceURL string `json:"resource_url"`
	URI         string `json:"uri"`
	MasterID    int64  `json:"master_id"`
}

// discogsRelease represents a Discogs release detail response.
type discogsRelease struct {
	ID          int64          `json:"id"`
	URI         string         `json:"uri"`
	LowestPrice float64        `json:"lowest_price"`
	NumForSale  *int           `json:"num_for_sale"`
	Videos      []discogsVideo `json:"videos"`
}

// discogsMaster represents a Discogs master detail response.
type discogsMaster struct {
	URLs   []string       `json:"urls"`
	Videos []discogsVideo `json:"videos"`
}

type discogsVideo struct {
	URI string `json:"uri"`
}

// Discogs resolves marketplace offers from the Discogs database API. With an
// empty token every lookup misses without touching the network.
type Discogs struct {
	baseURL    string
	token      string
	userAgent  string
	client     *http.Client
	cache      Cache
	normalizer *fuzzy.Normalizer
}

// NewDiscogs creates a Discogs marketplace matcher. The cache may be nil to
// disable caching entirely.
func NewDiscogs(baseURL, token, userAgent string, cache Cache) *Discogs {
	if baseURL == "" {
		baseURL = DefaultDiscogsAPIBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultDiscogsUserAgent
	}

	return &Discogs{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		userAgent:  userAgent,
		client:     &http.Client{Timeout: DiscogsRequestTimeout},
		cache:      cache,
		normalizer: fuzzy.NewNormalizer(),
	}
}

// Find resolves at most one marketplace offer for the track. Without a
// configured token it returns no match immediately. A cache hit, including a
// cached "no match", short-circuits all network calls. Lookup failures are
// cached as "no match" and returned to the caller.
func (m *Discogs) Find(ctx context.Context, q MarketplaceQuery) (*Offer, error) {
	if m.token == "" {
		return nil, nil
	}

	key := cacheKey(q.Track, q.Artist, q.Album)
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

func (m *Discogs) lookup(ctx context.Context, q MarketplaceQuery) (*Offer, error) {
	result, err := m.search(ctx, q)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	release, err := m.fetchRelease(ctx, result.ResourceURL)
	if err != nil {
		return nil, err
	}
	if release.URI == "" {
		return nil, nil
	}

	var master *discogsMaster
	if result.MasterID != 0 {
		master, err = m.fetchMaster(ctx, result.MasterID)
		if err != nil {
			return nil, err
		}
	}

	offer := &Offer{URL: release.URI}
	if release.LowestPrice > 0 {
		offer.Price = FormatPrice(release.LowestPrice, discogsCurrency)
	}
	if release.NumForSale != nil {
		available := *release.NumForSale > 0
		offer.Available = &available
	}
	if master != nil {
		for _, u := range master.URLs {
			if strings.Contains(strings.ToLower(u), "bandcamp.com") {
				offer.AlternateURL = u
				break
			}
		}
	}
	offer.VideoURLs = gatherVideoURLs(release, master)

	return offer, nil
}

// search picks the first release-typed result whose normalized title contains
// the normalized track name and, when an artist was supplied, the normalized
// first artist. Falls back to the first result of any type.
func (m *Discogs) search(ctx context.Context, q MarketplaceQuery) (*discogsSearchResult, error) {
	query := url.Values{}
	query.Set("type", "release")
	query.Set("per_page", fmt.Sprintf("%d", discogsSearchPerPage))
	query.Set("token", m.token)

	if term := strings.TrimSpace(strings.Join(nonEmpty(q.Track, q.Artist, q.Album), " ")); term != "" {
		query.Set("q", term)
	}
	if q.Artist != "" {
		query.Set("artist", q.Artist)
	}
	if q.Track != "" {
		query.Set("track", q.Track)
	}

	var searchResp discogsSearchResponse
	if err := m.getJSON(ctx, m.baseURL+"/database/search?"+query.Encode(), &searchResp); err != nil {
		return nil, err
	}
	if len(searchResp.Results) == 0 {
		return nil, nil
	}

	normalizedTrack := m.normalizer.NormalizeTerm(q.Track)
	normalizedArtist := m.normalizer.NormalizeTerm(m.normalizer.PrimaryArtist(q.Artist))

	for i := range searchResp.Results {
		result := &searchResp.Results[i]
		if result.Type != "release" {
			continue
		}
		normalizedTitle := m.normalizer.NormalizeTerm(result.Title)
		if strings.Contains(normalizedTitle, normalizedTrack) &&
			(normalizedArtist == "" || strings.Contains(normalizedTitle, normalizedArtist)) {
			return result, nil
		}
	}

	return &searchResp.Results[0], nil
}

func (m *Discogs) fetchRelease(ctx context.Context, resourceURL string) (*discogsRelease, error) {
	u, err := url.Parse(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid release resource URL %q: %w", resourceURL, err)
	}
	query := u.Query()
	query.Set("token", m.token)
	query.Set("currency", discogsCurrency)
	u.RawQuery = query.Encode()

	var release discogsRelease
	if err := m.getJSON(ctx, u.String(), &release); err != nil {
		return nil, err
	}
	return &release, nil
}

func (m *Discogs) fetchMaster(ctx context.Context, masterID int64) (*discogsMaster, error) {
	query := url.Values{}
	query.Set("token", m.token)
	query.Set("currency", discogsCurrency)

	var master discogsMaster
	u := fmt.Sprintf("%s/masters/%d?%s", m.baseURL, masterID, query.Encode())
	if err := m.getJSON(ctx, u, &master); err != nil {
		return nil, err
	}
	return &master, nil
}

func (m *Discogs) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discogs API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode discogs API response: %w", err)
	}
	return nil
}

// gatherVideoURLs collects video links from the release and master in order,
// dropping duplicates and blanks.
func gatherVideoURLs(release *discogsRelease, master *discogsMaster) []string {
	seen := make(map[string]struct{})
	var urls []string

	add := func(videos []discogsVideo) {
		for _, v := range videos {
			if v.URI == "" {
				continue
			}
			if _, ok := seen[v.URI]; ok {
				continue
			}
			seen[v.URI] = struct{}{}
			urls = append(urls, v.URI)
		}
	}

	add(release.Videos)
	if master != nil {
		add(master.Videos)
	}
	return urls
}
