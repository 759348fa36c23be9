// Package api is the bearer-authenticated client for the streaming
// service's catalogue and playback endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/araddon/dateparse"

	"tidarr/internal/domain/consts"
	"tidarr/internal/manifest"
	"tidarr/internal/models"
	"tidarr/internal/net"
	"tidarr/internal/utils/logging"
)

// Client talks to the service API. BaseURL is overridable in tests.
type Client struct {
	HTTP    *net.Client
	BaseURL string
}

// NewClient returns an API client over the given transport.
func NewClient(httpClient *net.Client) *Client {
	return &Client{
		HTTP:    httpClient,
		BaseURL: consts.APIBaseURL,
	}
}

// PlaybackInfo is the playback-info endpoint response. Manifest is the raw
// base64 payload the manifest resolver consumes.
type PlaybackInfo struct {
	TrackID     int64  `json:"trackId"`
	VideoID     int64  `json:"videoId"`
	Manifest    string `json:"manifest"`
	MimeType    string `json:"manifestMimeType"`
	UserMessage string `json:"userMessage"`
}

// GetPlaybackInfo fetches playback info for an item. A response without a
// manifest is fatal, surfaced with whatever diagnostic text the server sent.
func (c *Client) GetPlaybackInfo(ctx context.Context, session *models.Session, itemID string, kind models.MediaKind, quality string) (*PlaybackInfo, error) {
	var endpoint string
	q := url.Values{
		"assetpresentation": {"FULL"},
		"playbackmode":      {"STREAM"},
	}
	if kind == models.KindVideo {
		endpoint = fmt.Sprintf("%s/videos/%s/playbackinfopostpaywall", c.BaseURL, url.PathEscape(itemID))
		// Video quality is chosen later from the master playlist variants;
		// the endpoint itself always serves the full variant set.
		q.Set("videoquality", "HIGH")
	} else {
		endpoint = fmt.Sprintf("%s/tracks/%s/playbackinfopostpaywall", c.BaseURL, url.PathEscape(itemID))
		q.Set("audioquality", quality)
	}

	body, err := c.getJSON(ctx, session, endpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var info PlaybackInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("malformed playback info response: %w", err)
	}
	if info.Manifest == "" {
		detail := "playback info carries no manifest"
		if info.UserMessage != "" {
			detail += ": " + info.UserMessage
		}
		return nil, &manifest.ManifestError{Detail: detail}
	}

	logging.D(1, "Playback info for %s %s: mime type %s", kind, itemID, info.MimeType)
	return &info, nil
}

type trackMetaResponse struct {
	Title  string `json:"title"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		ReleaseDate string `json:"releaseDate"`
	} `json:"album"`
}

type videoMetaResponse struct {
	Title       string `json:"title"`
	ReleaseDate string `json:"releaseDate"`
	Artist      struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// GetMeta fetches the naming metadata for an item. Failures here are not
// fatal to a download; callers fall back to the raw item id.
func (c *Client) GetMeta(ctx context.Context, session *models.Session, itemID string, kind models.MediaKind) (*models.MediaMeta, error) {
	var endpoint string
	if kind == models.KindVideo {
		endpoint = fmt.Sprintf("%s/videos/%s", c.BaseURL, url.PathEscape(itemID))
	} else {
		endpoint = fmt.Sprintf("%s/tracks/%s", c.BaseURL, url.PathEscape(itemID))
	}
	if session.CountryCode != "" {
		endpoint += "?countryCode=" + url.QueryEscape(session.CountryCode)
	}

	body, err := c.getJSON(ctx, session, endpoint)
	if err != nil {
		return nil, err
	}

	meta := &models.MediaMeta{ItemID: itemID}
	if kind == models.KindVideo {
		var v videoMetaResponse
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("malformed video metadata: %w", err)
		}
		meta.Title = v.Title
		meta.Artist = v.Artist.Name
		meta.ReleasedAt = v.ReleaseDate
	} else {
		var tr trackMetaResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, fmt.Errorf("malformed track metadata: %w", err)
		}
		meta.Title = tr.Title
		meta.Artist = tr.Artist.Name
		meta.ReleasedAt = tr.Album.ReleaseDate
	}
	return meta, nil
}

// ReleaseYear parses the metadata release date, tolerant of the several
// date spellings the catalogue uses. Zero when absent or unparseable.
func ReleaseYear(meta *models.MediaMeta) int {
	if meta == nil || meta.ReleasedAt == "" {
		return 0
	}
	ts, err := dateparse.ParseAny(meta.ReleasedAt)
	if err != nil {
		logging.D(2, "Unparseable release date %q: %v", meta.ReleasedAt, err)
		return 0
	}
	return ts.Year()
}

// getJSON issues a bearer-authenticated GET and returns the body on 200.
func (c *Client) getJSON(ctx context.Context, session *models.Session, endpoint string) ([]byte, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+session.AccessToken)

	resp, err := c.HTTP.Get(ctx, endpoint, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := serverMessage(body)
		if msg == "" {
			msg = strconv.Itoa(resp.StatusCode)
		}
		return nil, fmt.Errorf("request to %s returned HTTP %d: %s", endpoint, resp.StatusCode, msg)
	}
	return body, nil
}

// serverMessage pulls userMessage out of an error body when present.
func serverMessage(body []byte) string {
	var eb struct {
		UserMessage string `json:"userMessage"`
	}
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.UserMessage
}
