package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"scgrab/internal/core"
)

// trackResponse mirrors the resolve payload. Required fields are pointers so that
// absence can be told apart from an empty value.
type trackResponse struct {
	ID                 int64          `json:"id"`
	Kind               string         `json:"kind"`
	Title              *string        `json:"title"`
	Genre              *string        `json:"genre"`
	ArtworkURL         *string        `json:"artwork_url"`
	PermalinkURL       string         `json:"permalink_url"`
	Downloadable       bool           `json:"downloadable"`
	TrackAuthorization string         `json:"track_authorization"`
	User               *userResponse  `json:"user"`
	Media              *mediaResponse `json:"media"`
}

type userResponse struct {
	ID       int64   `json:"id"`
	Username *string `json:"username"`
}

type mediaResponse struct {
	Transcodings *[]transcodingResponse `json:"transcodings"`
}

type transcodingResponse struct {
	URL    string `json:"url"`
	Preset string `json:"preset"`
	Format struct {
		Protocol string `json:"protocol"`
		MimeType string `json:"mime_type"`
	} `json:"format"`
}

// Resolve looks sourceURL up through the resolve endpoint and validates the result.
func (c *Client) Resolve(ctx context.Context, sourceURL string) (*core.TrackDescriptor, error) {
	query := url.Values{}
	query.Set(sourceURLParam, sourceURL)

	body, err := c.request(ctx, c.api, http.MethodGet, c.config.ResolveURL(), query, true)
	if err != nil {
		return nil, err
	}

	var resp trackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.NewTransportError(fmt.Errorf("failed to decode track: %w", err))
	}

	track, err := resp.descriptor()
	if err != nil {
		return nil, core.NewTransportError(err)
	}

	c.logger.Debug("Resolved track",
		zap.String("source_url", sourceURL),
		zap.Int64("track_id", track.ID),
		zap.String("title", track.Title),
		zap.String("permalink", track.Permalink),
		zap.Bool("downloadable", track.Downloadable),
		zap.Int("transcodings", len(track.Transcodings)))

	return track, nil
}

func (r *trackResponse) descriptor() (*core.TrackDescriptor, error) {
	if r.Kind != "" && r.Kind != core.TrackKind {
		return nil, fmt.Errorf("%w: kind %q", core.ErrNotATrack, r.Kind)
	}

	var missing []string
	if r.Title == nil {
		missing = append(missing, "title")
	}
	if r.User == nil || r.User.Username == nil {
		missing = append(missing, "user.username")
	}
	if r.Media == nil || r.Media.Transcodings == nil {
		missing = append(missing, "media.transcodings")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("track response is missing %v", missing)
	}

	if len(*r.Media.Transcodings) == 0 {
		return nil, core.ErrNoTranscodings
	}

	transcodings := make([]core.Transcoding, 0, len(*r.Media.Transcodings))
	for _, t := range *r.Media.Transcodings {
		if t.URL == "" {
			return nil, errors.New("transcoding without url")
		}
		transcodings = append(transcodings, core.Transcoding{
			URL:    t.URL,
			Preset: t.Preset,
			Format: core.TranscodingFormat{
				Protocol: t.Format.Protocol,
				MimeType: t.Format.MimeType,
			},
		})
	}

	return &core.TrackDescriptor{
		ID:                 r.ID,
		Kind:               core.TrackKind,
		Title:              *r.Title,
		Genre:              deref(r.Genre),
		ArtworkURL:         deref(r.ArtworkURL),
		Permalink:          r.PermalinkURL,
		Downloadable:       r.Downloadable,
		TrackAuthorization: r.TrackAuthorization,
		User: core.User{
			ID:       r.User.ID,
			Username: *r.User.Username,
		},
		Transcodings: transcodings,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
