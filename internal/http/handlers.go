package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scgrab/internal/core"
	"scgrab/pkg/text"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestBody  = 64 << 10
)

type contextKey int

const requestIDKey contextKey = iota

type downloadRequest struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

func (r downloadRequest) overrides() []core.Field {
	return []core.Field{
		{Label: core.LabelTitle, Value: strings.TrimSpace(r.Title)},
		{Label: core.LabelArtist, Value: strings.TrimSpace(r.Artist)},
		{Label: core.LabelAlbum, Value: strings.TrimSpace(r.Album)},
		{Label: core.LabelGenre, Value: strings.TrimSpace(r.Genre)},
	}
}

type downloadResponse struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album"`
	Genre   string `json:"genre"`
	TrackID int64  `json:"track_id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id"`
}

// withRequestID tags every request with an ID, reusing a valid incoming one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	id := requestID(r.Context())
	logger := s.logger.With(zap.String("request_id", id))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, id, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}

	var req downloadRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, id, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, id, http.StatusBadRequest, "bad_request", "url is required")
		return
	}
	if !text.IsSoundCloudURL(req.URL) {
		writeError(w, id, http.StatusBadRequest, "bad_request", "url is not a SoundCloud link")
		return
	}

	if s.limiter != nil {
		if decision := s.limiter.Allow(clientID(r)); !decision.Allowed {
			s.metrics.RecordRateLimited()
			retry := int(math.Ceil(decision.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, id, http.StatusTooManyRequests, "rate_limited",
				fmt.Sprintf("rate limit exceeded, retry in %d seconds", retry))
			logger.Info("Download rate limited", zap.String("client", clientID(r)))
			return
		}
	}

	s.metrics.InFlight.Inc()
	defer s.metrics.InFlight.Dec()

	result, err := s.downloader.DownloadTrack(r.Context(), req.URL, req.overrides())
	if err != nil {
		status, kind := statusFor(err)
		logger.Warn("Download request failed",
			zap.String("source_url", req.URL),
			zap.Int("status", status),
			zap.Error(err))
		writeError(w, id, status, kind, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{
		Path:    result.Path,
		Title:   result.Metadata.Title,
		Artist:  result.Metadata.Artist,
		Album:   result.Metadata.Album,
		Genre:   result.Metadata.Genre,
		TrackID: result.Track.ID,
	})
}

// statusFor maps a pipeline error to an HTTP status and a machine readable kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmptySourceURL):
		return http.StatusBadRequest, "bad_request"
	case core.IsSelectionError(err):
		return http.StatusUnprocessableEntity, "selection"
	}

	switch kind := core.KindOf(err); kind {
	case core.KindNotFound:
		return http.StatusNotFound, kind.String()
	case core.KindForbidden:
		return http.StatusForbidden, kind.String()
	case core.KindTransport:
		return http.StatusBadGateway, kind.String()
	case core.KindIO:
		return http.StatusInternalServerError, kind.String()
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// clientID identifies the caller for rate limiting by remote IP.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, id string, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: kind, RequestID: id})
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"scgrab"}`))
}

func (s *Server) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"scgrab"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready","service":"scgrab"}`))
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(homePage)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

const homePage = `<!DOCTYPE html>
<html>
<head>
    <title>scgrab</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
        pre { background: #f4f4f4; padding: 10px; }
    </style>
</head>
<body>
    <h1 class="header">🎵 scgrab</h1>
    <p>SoundCloud track downloader with ID3 tagging</p>

    <h2>Endpoints</h2>
    <div class="endpoint">⬇️ <code>POST /api/download</code> - Download and tag a track</div>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>

    <h2>Example</h2>
    <pre>curl -X POST localhost:8080/api/download \
  -d '{"url": "https://soundcloud.com/artist/track", "album": "My Album"}'</pre>
</body>
</html>`
