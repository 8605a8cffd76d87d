// Package soundcloud talks to the SoundCloud v2 API: it resolves track URLs,
// exchanges transcodings for media links and downloads artwork and audio.
package soundcloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"scgrab/internal/core"
	"scgrab/pkg/text"
)

const (
	// commonUserAgent is the user agent string used for all HTTP requests.
	commonUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// maxAPIResponseSize caps JSON bodies from resolve and exchange calls.
	maxAPIResponseSize = 8 << 20
	// maxHTTPRedirects is the maximum number of HTTP redirects to follow.
	maxHTTPRedirects = 5

	clientIDParam           = "client_id"
	trackAuthorizationParam = "track_authorization"
	sourceURLParam          = "url"
)

var (
	// ErrTooManyRedirects is returned when too many redirects are encountered.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// Client is the SoundCloud implementation of core.TrackSource.
type Client struct {
	config    *core.SoundCloudConfig
	coverSize string
	api       *http.Client
	media     *http.Client
	logger    *zap.Logger
}

var _ core.TrackSource = (*Client)(nil)

// NewClient creates a client. API calls and media downloads use separate HTTP clients
// so a slow audio transfer is not bound by the API timeout.
func NewClient(config *core.SoundCloudConfig, coverSize string, logger *zap.Logger) *Client {
	return &Client{
		config:    config,
		coverSize: coverSize,
		api:       newHTTPClient(config.APITimeout),
		media:     newHTTPClient(config.MediaTimeout),
		logger:    logger,
	}
}

// newHTTPClient creates a new HTTP client with standard settings and redirect validation.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxHTTPRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// CanResolve checks if the URL is a SoundCloud link.
func CanResolve(rawURL string) bool {
	return text.IsSoundCloudURL(rawURL)
}

// request performs one HTTP call and returns the whole body. There are no retries.
// Failures are classified into core.DownloadError kinds: 404 and 403 carry the
// user-facing URL, everything else is a transport error.
func (c *Client) request(
	ctx context.Context,
	hc *http.Client,
	method, rawURL string,
	query url.Values,
	withCredential bool,
) ([]byte, error) {
	target, err := buildURL(rawURL, query, withCredential, c.config.ClientID)
	if err != nil {
		return nil, core.NewTransportError(fmt.Errorf("failed to build request URL: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	if err != nil {
		return nil, core.NewTransportError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", commonUserAgent)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, core.NewTransportError(fmt.Errorf("request failed: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.logger.Debug("Upstream response",
		zap.String("method", method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if err := statusError(resp.StatusCode, originalURL(query, rawURL)); err != nil {
		return nil, err
	}

	var body io.Reader = resp.Body
	if hc == c.api {
		body = io.LimitReader(resp.Body, maxAPIResponseSize)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, core.NewTransportError(fmt.Errorf("failed to read response body: %w", err))
	}

	return data, nil
}

func statusError(status int, userURL string) error {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusNotFound:
		return &core.DownloadError{Kind: core.KindNotFound, URL: userURL, Err: fmt.Errorf("status %d", status)}
	case status == http.StatusForbidden:
		return &core.DownloadError{Kind: core.KindForbidden, URL: userURL, Err: fmt.Errorf("status %d", status)}
	default:
		return core.NewTransportError(fmt.Errorf("unexpected status %d", status))
	}
}

// originalURL is the URL the user asked for: the source passed to the resolve
// endpoint, or the request URL itself for calls that carry none.
func originalURL(query url.Values, rawURL string) string {
	if u := query.Get(sourceURLParam); u != "" {
		return u
	}
	return rawURL
}

func buildURL(rawURL string, query url.Values, withCredential bool, clientID string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if len(query) == 0 && !withCredential {
		return u.String(), nil
	}

	q := u.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if withCredential {
		q.Set(clientIDParam, clientID)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
