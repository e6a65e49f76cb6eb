package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeDiscogs serves a fixed search/release/master trio and counts requests.
type fakeDiscogs struct {
	search        discogsSearchResponse
	release       discogsRelease
	master        discogsMaster
	releaseStatus int
	masterStatus  int
	calls         int
}

func (f *fakeDiscogs) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		_ = json.NewEncoder(w).Encode(f.search)
	})
	mux.HandleFunc("/releases/", func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		if f.releaseStatus != 0 {
			w.WriteHeader(f.releaseStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(f.release)
	})
	mux.HandleFunc("/masters/", func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		if f.masterStatus != 0 {
			w.WriteHeader(f.masterStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(f.master)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func intPtr(v int) *int { return &v }

func newTestDiscogs(t *testing.T, server *httptest.Server, token string) *Discogs {
	t.Helper()

	return NewDiscogs(server.URL, token, "cratelink-test/1.0", NewLRUCache(16))
}

func TestDiscogs_Find_NoTokenShortCircuits(t *testing.T) {
	fake := &fakeDiscogs{}
	server := fake.start(t)
	matcher := newTestDiscogs(t, server, "")

	offer, err := matcher.Find(context.Background(), MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin"})
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if offer != nil {
		t.Errorf("Find() = %+v, want nil without token", offer)
	}
	if fake.calls != 0 {
		t.Errorf("request count = %d, want 0 without token", fake.calls)
	}
}

func TestDiscogs_Find_FullLookup(t *testing.T) {
	fake := &fakeDiscogs{
		master: discogsMaster{
			URLs:   []string{"https://aphextwin.bandcamp.com/track/windowlicker", "https://example.com"},
			Videos: []discogsVideo{{URI: "https://youtube.com/watch?v=b"}, {URI: "https://youtube.com/watch?v=a"}},
		},
	}
	server := fake.start(t)
	fake.search = discogsSearchResponse{
		Results: []discogsSearchResult{
			{
				ID:          42,
				Title:       "Aphex Twin - Windowlicker",
				Type:        "release",
				ResourceURL: server.URL + "/releases/42",
				URI:         "/release/42",
				MasterID:    7,
			},
		},
	}
	fake.release = discogsRelease{
		ID:          42,
		URI:         "https://www.discogs.com/release/42",
		LowestPrice: 4.5,
		NumForSale:  intPtr(3),
		Videos:      []discogsVideo{{URI: "https://youtube.com/watch?v=a"}},
	}
	matcher := newTestDiscogs(t, server, "test-token")

	offer, err := matcher.Find(context.Background(), MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin"})
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if offer == nil {
		t.Fatal("Find() = nil, want offer")
	}
	if offer.URL != "https://www.discogs.com/release/42" {
		t.Errorf("Find() URL = %q, want release URI", offer.URL)
	}
	if !strings.Contains(offer.Price, "4.50") {
		t.Errorf("Find() Price = %q, want formatted 4.50", offer.Price)
	}
	if offer.Available == nil || !*offer.Available {
		t.Errorf("Find() Available = %v, want true with copies for sale", offer.Available)
	}
	if offer.AlternateURL != "https://aphextwin.bandcamp.com/track/windowlicker" {
		t.Errorf("Find() AlternateURL = %q, want bandcamp link from master", offer.AlternateURL)
	}
	// Release videos come first, master-only videos follow, duplicates drop.
	wantVideos := []string{"https://youtube.com/watch?v=a", "https://youtube.com/watch?v=b"}
	if fmt.Sprint(offer.VideoURLs) != fmt.Sprint(wantVideos) {
		t.Errorf("Find() VideoURLs = %v, want %v", offer.VideoURLs, wantVideos)
	}
	if fake.calls != 3 {
		t.Errorf("request count = %d, want 3 (search, release, master)", fake.calls)
	}
}

func TestDiscogs_Find_Availability(t *testing.T) {
	tests := []struct {
		name       string
		numForSale *int
		wantNil    bool
		wantValue  bool
	}{
		{name: "copies for sale", numForSale: intPtr(2), wantValue: true},
		{name: "sold out", numForSale: intPtr(0), wantValue: false},
		{name: "unknown", numForSale: nil, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDiscogs{}
			server := fake.start(t)
			fake.search = discogsSearchResponse{
				Results: []discogsSearchResult{
					{ID: 1, Title: "Aphex Twin - Windowlicker", Type: "release", ResourceURL: server.URL + "/releases/1"},
				},
			}
			fake.release = discogsRelease{ID: 1, URI: "https://www.discogs.com/release/1", NumForSale: tt.numForSale}
			matcher := newTestDiscogs(t, server, "test-token")

			offer, err := matcher.Find(context.Background(), MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin"})
			if err != nil {
				t.Fatalf("Find() unexpected error: %v", err)
			}
			if offer == nil {
				t.Fatal("Find() = nil, want offer")
			}
			if tt.wantNil {
				if offer.Available != nil {
					t.Errorf("Find() Available = %v, want nil (unknown)", *offer.Available)
				}
			} else if offer.Available == nil || *offer.Available != tt.wantValue {
				t.Errorf("Find() Available = %v, want %v", offer.Available, tt.wantValue)
			}
		})
	}
}

func TestDiscogs_Find_PrefersReleaseTypeMatch(t *testing.T) {
	fake := &fakeDiscogs{}
	server := fake.start(t)
	fake.search = discogsSearchResponse{
		Results: []discogsSearchResult{
			{ID: 1, Title: "Aphex Twin - Windowlicker", Type: "master", ResourceURL: server.URL + "/releases/1"},
			{ID: 2, Title: "Various - Warp Compilation", Type: "release", ResourceURL: server.URL + "/releases/2"},
			{ID: 3, Title: "Aphex Twin - Windowlicker EP", Type: "release", ResourceURL: server.URL + "/releases/3"},
		},
	}
	fake.release = discogsRelease{ID: 3, URI: "https://www.discogs.com/release/3"}
	matcher := newTestDiscogs(t, server, "test-token")

	offer, err := matcher.Find(context.Background(), MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin"})
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if offer == nil || offer.URL != "https://www.discogs.com/release/3" {
		t.Errorf("Find() = %+v, want the release-typed fuzzy match", offer)
	}
}

func TestDiscogs_Find_ReleaseWithoutURIIsNoMatch(t *testing.T) {
	fake := &fakeDiscogs{}
	server := fake.start(t)
	fake.search = discogsSearchResponse{
		Results: []discogsSearchResult{
			{ID: 1, Title: "Aphex Twin - Windowlicker", Type: "release", ResourceURL: server.URL + "/releases/1"},
		},
	}
	fake.release = discogsRelease{ID: 1}
	matcher := newTestDiscogs(t, server, "test-token")

	offer, err := matcher.Find(context.Background(), MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin"})
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if offer != nil {
		t.Errorf("Find() = %+v, want nil for release without URI", offer)
	}
}

func TestDiscogs_Find_UpstreamFailuresReported(t *testing.T) {
	tests := []struct {
		name          string
		releaseStatus int
		masterStatus  int
	}{
		{name: "release fetch fails", releaseStatus: http.StatusTooManyRequests},
		{name: "master fetch fails", masterStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDiscogs{releaseStatus: tt.releaseStatus, masterStatus: tt.masterStatus}
			server := fake.start(t)
			fake.search = discogsSearchResponse{
				Results: []discogsSearchResult{
					{ID: 1, Title: "Aphex Twin - Windowlicker", Type: "release", ResourceURL: server.URL + "/releases/1", MasterID: 7},
				},
			}
			fake.release = discogsRelease{ID: 1, URI: "https://www.discogs.com/release/1"}
			matcher := newTestDiscogs(t, server, "test-token")

			if _, err := matcher.Find(context.Background(), MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin"}); err == nil {
				t.Fatal("Find() expected error on upstream failure")
			}

			// The failure is cached as a miss, so retries stay offline.
			calls := fake.calls
			offer, err := matcher.Find(context.Background(), MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin"})
			if err != nil {
				t.Fatalf("Find() retry unexpected error: %v", err)
			}
			if offer != nil {
				t.Errorf("Find() retry = %+v, want cached no-match", offer)
			}
			if fake.calls != calls {
				t.Errorf("request count = %d after retry, want %d", fake.calls, calls)
			}
		})
	}
}

func TestDiscogs_Find_CachesRepeatQueries(t *testing.T) {
	fake := &fakeDiscogs{}
	server := fake.start(t)
	fake.search = discogsSearchResponse{
		Results: []discogsSearchResult{
			{ID: 1, Title: "Aphex Twin - Windowlicker", Type: "release", ResourceURL: server.URL + "/releases/1"},
		},
	}
	fake.release = discogsRelease{ID: 1, URI: "https://www.discogs.com/release/1"}
	matcher := newTestDiscogs(t, server, "test-token")

	q := MarketplaceQuery{Track: "Windowlicker", Artist: "Aphex Twin", Album: "Windowlicker"}
	if _, err := matcher.Find(context.Background(), q); err != nil {
		t.Fatalf("Find() first call unexpected error: %v", err)
	}
	calls := fake.calls

	offer, err := matcher.Find(context.Background(), q)
	if err != nil {
		t.Fatalf("Find() second call unexpected error: %v", err)
	}
	if offer == nil || offer.URL != "https://www.discogs.com/release/1" {
		t.Errorf("Find() second call = %+v, want cached offer", offer)
	}
	if fake.calls != calls {
		t.Errorf("request count = %d after repeat, want %d (cache hit)", fake.calls, calls)
	}
}
