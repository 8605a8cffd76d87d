package core

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// DefaultClientID is the static application token the public SoundCloud web player uses.
	// It identifies the application, not a user, and is treated as embedded configuration.
	DefaultClientID = "bX15WAb1KO8PbF0ZxzrtUNTgliPQqV55"
	// DefaultAPIBaseURL is the root of the SoundCloud v2 API (the resolve endpoint lives below it).
	DefaultAPIBaseURL = "https://api-v2.soundcloud.com"
	// DefaultAPITimeoutSecs bounds resolve and exchange calls.
	DefaultAPITimeoutSecs = 15
	// DefaultMediaTimeoutSecs bounds cover and audio downloads, which carry whole files.
	DefaultMediaTimeoutSecs = 600
	// DefaultCoverSize is the artwork size token substituted into artwork URLs.
	DefaultCoverSize = "t500x500"
	// CoverMIMEAuto sniffs the picture type from the cover bytes.
	CoverMIMEAuto = "auto"
	// DefaultServerPort is the port used by serve mode.
	DefaultServerPort = 8080
	// DefaultRateLimitPerMinute caps download requests per client in serve mode.
	DefaultRateLimitPerMinute = 10
	// DefaultDedupCapacity is the number of track keys remembered per process.
	DefaultDedupCapacity = 1000
	// DefaultDedupFalsePositiveRate configures the dedup bloom filter.
	DefaultDedupFalsePositiveRate = 0.001
	// DefaultLanguage matches i18n.DefaultLanguage.
	DefaultLanguage = "en"
	// AudioExtension is the container the stream fetcher produces.
	AudioExtension = ".mp3"
)

var (
	// ErrMissingClientID is returned by Validate when no credential is configured.
	ErrMissingClientID = errors.New("soundcloud client ID is required")
	// ErrInvalidTranscodingIndex is returned by Validate for negative ordinals.
	ErrInvalidTranscodingIndex = errors.New("transcoding index must not be negative")
)

type Config struct {
	SoundCloud SoundCloudConfig
	Download   DownloadConfig
	Server     ServerConfig
	Log        LogConfig
	App        AppConfig
}

type SoundCloudConfig struct {
	ClientID     string
	APIBaseURL   string
	APITimeout   time.Duration
	MediaTimeout time.Duration
}

// ResolveURL returns the resolution endpoint derived from APIBaseURL.
func (c SoundCloudConfig) ResolveURL() string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/resolve"
}

type DownloadConfig struct {
	Dir string
	// TranscodingIndex is the ordinal picked from the resolved transcodings list.
	// The upstream list is preference ordered but not guaranteed stable.
	TranscodingIndex int
	// TranscodingProtocol selects by content instead of position when set (e.g. "progressive").
	TranscodingProtocol string
	// TranscodingMIME narrows TranscodingProtocol selection to one MIME type prefix.
	TranscodingMIME string
	CoverSize       string
	// CoverMIME is declared on the picture frame; CoverMIMEAuto sniffs it from the bytes.
	CoverMIME     string
	ParallelFetch bool
}

// Selector builds the transcoding selection strategy described by the config.
func (c DownloadConfig) Selector() Selector {
	if c.TranscodingProtocol != "" {
		return ProtocolSelector(c.TranscodingProtocol, c.TranscodingMIME)
	}
	return IndexSelector(c.TranscodingIndex)
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language           string
	RateLimitPerMinute int
	DedupCapacity      int
}

func DefaultConfig() *Config {
	return &Config{
		SoundCloud: SoundCloudConfig{
			ClientID:     DefaultClientID,
			APIBaseURL:   DefaultAPIBaseURL,
			APITimeout:   DefaultAPITimeoutSecs * time.Second,
			MediaTimeout: DefaultMediaTimeoutSecs * time.Second,
		},
		Download: DownloadConfig{
			Dir:              ".",
			TranscodingIndex: 0,
			CoverSize:        DefaultCoverSize,
			CoverMIME:        CoverMIMEAuto,
			ParallelFetch:    true,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: DefaultMediaTimeoutSecs * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		App: AppConfig{
			Language:           DefaultLanguage,
			RateLimitPerMinute: DefaultRateLimitPerMinute,
			DedupCapacity:      DefaultDedupCapacity,
		},
	}
}

// Validate checks the settings every run depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SoundCloud.ClientID) == "" {
		return ErrMissingClientID
	}

	u, err := url.Parse(c.SoundCloud.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid api base URL %q", c.SoundCloud.APIBaseURL)
	}

	if c.Download.TranscodingIndex < 0 {
		return ErrInvalidTranscodingIndex
	}

	if c.Download.Dir == "" {
		return errors.New("download directory is required")
	}
	fi, err := os.Stat(c.Download.Dir)
	if err != nil {
		return fmt.Errorf("download directory %q: %w", c.Download.Dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("download directory %q is not a directory", c.Download.Dir)
	}

	return nil
}
