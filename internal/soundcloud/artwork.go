package soundcloud

import (
	"context"
	"net/http"
	"strings"
)

// defaultArtworkToken is the size token the API embeds in artwork URLs.
const defaultArtworkToken = "-large."

// CoverURL rewrites the size token of an artwork URL, e.g. "-large.jpg" to "-t500x500.jpg".
// URLs without the token, or an empty size, are returned unchanged.
func CoverURL(artworkURL, size string) string {
	if size == "" {
		return artworkURL
	}
	idx := strings.LastIndex(artworkURL, defaultArtworkToken)
	if idx < 0 {
		return artworkURL
	}
	return artworkURL[:idx] + "-" + size + "." + artworkURL[idx+len(defaultArtworkToken):]
}

// FetchCover downloads the artwork at the configured size. An empty reference means the
// track has no artwork: no request is made and no bytes are returned.
func (c *Client) FetchCover(ctx context.Context, artworkURL string) ([]byte, error) {
	if artworkURL == "" {
		return nil, nil
	}
	return c.request(ctx, c.media, http.MethodGet, CoverURL(artworkURL, c.coverSize), nil, false)
}
