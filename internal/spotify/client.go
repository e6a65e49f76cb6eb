// Package spotify fetches playlist metadata and tracks from the Spotify Web API
// on behalf of an end user's access token.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"cratelink/internal/core"
)

// DefaultPageSize is the page size used for playlist track pagination; 100 is
// the Spotify API maximum.
const DefaultPageSize = 100

var (
	playlistURLRegex = regexp.MustCompile(`playlist/([a-zA-Z0-9]+)(\?|$)`)
	playlistIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// Playlist is a fetched playlist with its full, paginated track listing.
type Playlist struct {
	ID          string
	Name        string
	Description string
	URL         string
	Items       []Item
}

// Item is one playlist slot. Track is nil when the slot holds no playable
// track (removed content or a podcast episode); empty slots are kept so that
// callers can derive stable slot-based fallback identifiers.
type Item struct {
	Track *Track
}

// Track is the subset of Spotify track data the import pipeline consumes.
type Track struct {
	ID         string
	Name       string
	Artists    []string
	Album      string
	DurationMs int
	URL        string
	ISRC       string
}

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	return &Client{
		config: config,
		logger: logger,
	}
}

// ExtractPlaylistID accepts a full playlist URL, a spotify: URI, or a bare
// playlist ID and returns the canonical ID. An unrecognizable reference
// returns core.ErrInvalidPlaylistReference.
func (c *Client) ExtractPlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", core.ErrInvalidPlaylistReference
	}

	if matches := playlistURLRegex.FindStringSubmatch(ref); len(matches) > 1 {
		return matches[1], nil
	}

	if playlistIDRegex.MatchString(ref) {
		return ref, nil
	}

	return "", core.ErrInvalidPlaylistReference
}

// FetchPlaylist retrieves playlist metadata and every track page using the
// user's access token. An expired or invalid token maps to
// core.ErrUnauthorized. A failure on a track page is not fatal: the pages
// accumulated so far are returned, mirroring the metadata-first contract of
// the import flow.
func (c *Client) FetchPlaylist(ctx context.Context, accessToken, ref string) (*Playlist, error) {
	playlistID, err := c.ExtractPlaylistID(ref)
	if err != nil {
		return nil, err
	}

	api := c.api(ctx, accessToken)

	full, err := api.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, c.mapAPIError(err)
	}

	playlist := &Playlist{
		ID:          playlistID,
		Name:        full.Name,
		Description: full.Description,
		URL:         full.ExternalURLs["spotify"],
	}
	if playlist.URL == "" {
		playlist.URL = ref
	}

	playlist.Items = c.fetchAllItems(ctx, api, playlistID)

	c.logger.Info("Fetched playlist",
		zap.String("playlistID", playlistID),
		zap.String("name", playlist.Name),
		zap.Int("itemCount", len(playlist.Items)))

	return playlist, nil
}

// fetchAllItems pages through the playlist's tracks. A page failure stops the
// walk and keeps what was already fetched.
func (c *Client) fetchAllItems(ctx context.Context, api *spotify.Client, playlistID string) []Item {
	limit := c.config.PageSize
	if limit <= 0 || limit > DefaultPageSize {
		limit = DefaultPageSize
	}

	var items []Item
	offset := 0

	for {
		page, err := api.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			c.logger.Warn("Playlist page fetch failed, keeping tracks fetched so far",
				zap.String("playlistID", playlistID),
				zap.Int("offset", offset),
				zap.Error(err))
			break
		}

		for i := range page.Items {
			items = append(items, Item{Track: convertItemTrack(&page.Items[i])})
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return items
}

func convertItemTrack(item *spotify.PlaylistItem) *Track {
	full := item.Track.Track
	if full == nil {
		return nil
	}

	var artists []string
	for _, artist := range full.Artists {
		artists = append(artists, artist.Name)
	}

	return &Track{
		ID:         string(full.ID),
		Name:       full.Name,
		Artists:    artists,
		Album:      full.Album.Name,
		DurationMs: int(full.Duration),
		URL:        full.ExternalURLs["spotify"],
		ISRC:       full.ExternalIDs["isrc"],
	}
}

// api builds a per-request Spotify client around the caller's token.
func (c *Client) api(ctx context.Context, accessToken string) *spotify.Client {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	if c.config.APIBaseURL != "" {
		baseURL := c.config.APIBaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		return spotify.New(httpClient, spotify.WithBaseURL(baseURL))
	}
	return spotify.New(httpClient)
}

// mapAPIError converts Spotify API failures into the shared error taxonomy.
func (c *Client) mapAPIError(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == 401 {
			return core.ErrUnauthorized
		}
		return &core.UpstreamError{
			Service: "spotify",
			Status:  apiErr.Status,
			Message: apiErr.Message,
		}
	}
	return fmt.Errorf("failed to fetch playlist: %w", err)
}
