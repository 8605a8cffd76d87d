package soundcloud

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"scgrab/internal/core"
)

// StreamURL exchanges a transcoding for a time limited media URL.
func (c *Client) StreamURL(ctx context.Context, transcoding core.Transcoding, trackAuthorization string) (string, error) {
	query := url.Values{}
	if trackAuthorization != "" {
		query.Set(trackAuthorizationParam, trackAuthorization)
	}

	body, err := c.request(ctx, c.api, http.MethodGet, transcoding.URL, query, true)
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(body) {
		return "", core.NewTransportError(errors.New("malformed stream exchange response"))
	}

	result := gjson.GetBytes(body, "url")
	if result.Type != gjson.String || result.String() == "" {
		return "", core.NewTransportError(core.ErrMissingStreamURL)
	}

	return result.String(), nil
}

// FetchMedia downloads the audio bytes behind an exchanged media URL.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	return c.request(ctx, c.media, http.MethodGet, mediaURL, nil, false)
}
