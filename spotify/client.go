// Package spotify is the first of the two external collaborators (spec
// §6): it resolves a track URL supplied at save time into a title,
// artist, and canonical Spotify URL used to enrich a stored song.
package spotify

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"song-recognition/config"
	"song-recognition/errs"
)

const (
	tokenURL      = "https://accounts.spotify.com/api/token"
	trackURLFmt   = "https://api.spotify.com/v1/tracks/%s"
	searchURLFmt  = "https://api.spotify.com/v1/search"
)

// Track is the subset of a Spotify track object the ingestion path
// persists alongside a song's fingerprint.
type Track struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	URL      string
	Duration time.Duration
}

// Client wraps the Spotify Web API client-credentials flow. A single
// Client is safe for concurrent use; the access token is cached and
// refreshed lazily once it's expired, mirroring the one-token-per-
// process shape of the collaborator this was adapted from.
type Client struct {
	clientID     string
	clientSecret string
	http         *resty.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClient builds a Client from the running config. Credentials may
// be empty; requests will then fail with an ExternalAPIError rather
// than panicking, so callers that never resolve a track can still run.
func NewClient(cfg config.Config) *Client {
	return &Client{
		clientID:     cfg.SpotifyClientID,
		clientSecret: cfg.SpotifyClientSecret,
		http:         resty.New().SetTimeout(15 * time.Second).SetRetryCount(2),
	}
}

func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", errs.ExternalAPIError(fmt.Errorf("spotify: SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET not configured"))
	}

	resp, err := c.http.R().
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("grant_type=client_credentials").
		Post(tokenURL)
	if err != nil {
		return "", errs.ExternalAPIError(fmt.Errorf("spotify: token request: %w", err))
	}
	if resp.IsError() {
		return "", errs.ExternalAPIError(fmt.Errorf("spotify: token request failed: %s: %s", resp.Status(), resp.Body()))
	}

	// The token response is a flat two-field object, a better fit for
	// jsonparser's byte-level accessors than gjson's path queries (which
	// this client reserves for the nested track/search responses below).
	body := resp.Body()
	token, err := jsonparser.GetString(body, "access_token")
	if err != nil || token == "" {
		return "", errs.ExternalAPIError(fmt.Errorf("spotify: token response missing access_token: %s", body))
	}
	expiresIn, err := jsonparser.GetInt(body, "expires_in")
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}

	c.token = token
	c.expiresAt = time.Now().Add(time.Duration(expiresIn)*time.Second - 30*time.Second)
	return c.token, nil
}

// ParseTrackID extracts the track ID from a Spotify track URL such as
// https://open.spotify.com/track/<id>?si=....
func ParseTrackID(spotifyURL string) (string, error) {
	u, err := url.Parse(spotifyURL)
	if err != nil {
		return "", fmt.Errorf("spotify: invalid URL %q: %w", spotifyURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "track" {
		return parts[1], nil
	}
	return "", fmt.Errorf("spotify: not a track URL: %q", spotifyURL)
}

// ResolveTrack fetches metadata for a Spotify track URL.
func (c *Client) ResolveTrack(spotifyURL string) (Track, error) {
	trackID, err := ParseTrackID(spotifyURL)
	if err != nil {
		return Track{}, err
	}

	token, err := c.accessToken()
	if err != nil {
		return Track{}, err
	}

	resp, err := c.http.R().
		SetAuthToken(token).
		Get(fmt.Sprintf(trackURLFmt, trackID))
	if err != nil {
		return Track{}, errs.ExternalAPIError(fmt.Errorf("spotify: fetching track %s: %w", trackID, err))
	}
	if resp.IsError() {
		return Track{}, errs.ExternalAPIError(fmt.Errorf("spotify: track request failed: %s: %s", resp.Status(), resp.Body()))
	}

	body := resp.Body()
	parsed := gjson.ParseBytes(body)

	artist := parsed.Get("artists.0.name").String()
	if artist == "" {
		artist = "Unknown Artist"
	}
	title := parsed.Get("name").String()
	if title == "" {
		title = "Unknown Title"
	}

	return Track{
		ID:       trackID,
		Title:    title,
		Artist:   artist,
		Album:    parsed.Get("album.name").String(),
		URL:      parsed.Get("external_urls.spotify").String(),
		Duration: time.Duration(parsed.Get("duration_ms").Int()) * time.Millisecond,
	}, nil
}

// SearchTrack finds the best-match track for a title/artist pair. The
// download paths in this repository take a track URL and call
// ResolveTrack instead; nothing here calls SearchTrack.
func (c *Client) SearchTrack(title, artist string) (Track, error) {
	token, err := c.accessToken()
	if err != nil {
		return Track{}, err
	}

	query := title
	if artist != "" {
		query = fmt.Sprintf("%s artist:%s", title, artist)
	}

	resp, err := c.http.R().
		SetAuthToken(token).
		SetQueryParams(map[string]string{"q": query, "type": "track", "limit": "1"}).
		Get(searchURLFmt)
	if err != nil {
		return Track{}, errs.ExternalAPIError(fmt.Errorf("spotify: search request: %w", err))
	}
	if resp.IsError() {
		return Track{}, errs.ExternalAPIError(fmt.Errorf("spotify: search failed: %s: %s", resp.Status(), resp.Body()))
	}

	first := gjson.GetBytes(resp.Body(), "tracks.items.0")
	if !first.Exists() {
		return Track{}, errs.ExternalAPIError(fmt.Errorf("spotify: no track found for %q", query))
	}

	artistName := first.Get("artists.0.name").String()
	return Track{
		ID:     first.Get("id").String(),
		Title:  first.Get("name").String(),
		Artist: artistName,
		Album:  first.Get("album.name").String(),
		URL:    first.Get("external_urls.spotify").String(),
	}, nil
}
