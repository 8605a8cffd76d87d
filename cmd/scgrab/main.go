// Package main provides the scgrab CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"scgrab/internal/core"
	"scgrab/internal/flood"
	httpserver "scgrab/internal/http"
	"scgrab/internal/i18n"
	"scgrab/internal/soundcloud"
	"scgrab/internal/store"
	"scgrab/internal/tagger"
)

const envPrefix = "SCGRAB"

var errDownloadsFailed = errors.New("one or more downloads failed")

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scgrab [url...]",
	Short: "scgrab - SoundCloud track downloader with ID3 tagging",
	Long: `scgrab resolves public SoundCloud track links, downloads the audio stream
and writes an MP3 tagged with title, artist, album, genre and cover art.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDownload,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP download API",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDownloadsFailed) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	registerFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd)
}

func registerFlags(flags *pflag.FlagSet) {
	defaults := core.DefaultConfig()

	flags.String("client-id", defaults.SoundCloud.ClientID, "SoundCloud client ID")
	flags.String("api-base-url", defaults.SoundCloud.APIBaseURL, "SoundCloud API base URL")
	flags.Int("api-timeout-secs", core.DefaultAPITimeoutSecs, "Timeout for resolve and stream exchange calls in seconds")
	flags.Int("media-timeout-secs", core.DefaultMediaTimeoutSecs, "Timeout for cover and audio downloads in seconds")

	flags.String("download-dir", defaults.Download.Dir, "Directory the tagged files are written to")
	flags.Int("transcoding-index", defaults.Download.TranscodingIndex, "Position of the transcoding to download")
	flags.String("transcoding-protocol", "", "Select the first transcoding with this protocol instead of by index (e.g. progressive)")
	flags.String("transcoding-mime", "", "MIME type prefix required with --transcoding-protocol (e.g. audio/mpeg)")
	flags.String("cover-size", defaults.Download.CoverSize, "Artwork size token")
	flags.String("cover-mime", defaults.Download.CoverMIME, "Cover picture MIME type, or auto to detect it")
	flags.Bool("parallel-fetch", defaults.Download.ParallelFetch, "Fetch cover art and stream link concurrently")

	flags.String("title", "", "Override the track title")
	flags.String("artist", "", "Override the artist")
	flags.String("album", "", "Set the album")
	flags.String("genre", "", "Override the genre")
	flags.String("input", "", "File with SoundCloud links to download, - for stdin")
	flags.Bool("interactive", false, "Prompt for the URL, directory and metadata")

	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (console, json)")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Output language (%s)", supportedLangs))

	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Int("rate-limit-per-minute", defaults.App.RateLimitPerMinute, "Maximum download requests per client per minute, 0 disables")
	flags.Int("dedup-capacity", defaults.App.DedupCapacity, "Number of tracks a batch run remembers to skip repeated downloads, 0 disables")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")
}

func initConfig() {
	// Load .env file explicitly using gotenv
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	if err := bindViper(viper.GetViper(), rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	config = buildConfig(viper.GetViper())
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func bindViper(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

func buildConfig(v *viper.Viper) *core.Config {
	cfg := core.DefaultConfig()

	configureSoundCloud(cfg, v)
	configureDownload(cfg, v)
	configureServer(cfg, v)
	configureLogging(cfg, v)
	configureApp(cfg, v)

	return cfg
}

func configureSoundCloud(cfg *core.Config, v *viper.Viper) {
	if id := strings.TrimSpace(v.GetString("client-id")); id != "" {
		cfg.SoundCloud.ClientID = id
	}
	if base := strings.TrimSpace(v.GetString("api-base-url")); base != "" {
		cfg.SoundCloud.APIBaseURL = base
	}
	if secs := v.GetInt("api-timeout-secs"); secs > 0 {
		cfg.SoundCloud.APITimeout = secondsToDuration(secs)
	}
	if secs := v.GetInt("media-timeout-secs"); secs > 0 {
		cfg.SoundCloud.MediaTimeout = secondsToDuration(secs)
		cfg.Server.WriteTimeout = cfg.SoundCloud.MediaTimeout
	}
}

func configureDownload(cfg *core.Config, v *viper.Viper) {
	if dir := strings.TrimSpace(v.GetString("download-dir")); dir != "" {
		cfg.Download.Dir = dir
	}
	cfg.Download.TranscodingIndex = v.GetInt("transcoding-index")
	cfg.Download.TranscodingProtocol = strings.TrimSpace(v.GetString("transcoding-protocol"))
	cfg.Download.TranscodingMIME = strings.TrimSpace(v.GetString("transcoding-mime"))
	if size := strings.TrimSpace(v.GetString("cover-size")); size != "" {
		cfg.Download.CoverSize = size
	}
	if mime := strings.TrimSpace(v.GetString("cover-mime")); mime != "" {
		cfg.Download.CoverMIME = mime
	}
	if v.IsSet("parallel-fetch") {
		cfg.Download.ParallelFetch = v.GetBool("parallel-fetch")
	}
}

func configureServer(cfg *core.Config, v *viper.Viper) {
	if host := v.GetString("server-host"); host != "" {
		cfg.Server.Host = host
	}
	if port := v.GetInt("server-port"); port > 0 {
		cfg.Server.Port = port
	}
}

func configureLogging(cfg *core.Config, v *viper.Viper) {
	if level := v.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format := v.GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
}

func configureApp(cfg *core.Config, v *viper.Viper) {
	// Language configuration with validation
	cfg.App.Language = v.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}

	if v.IsSet("rate-limit-per-minute") {
		cfg.App.RateLimitPerMinute = v.GetInt("rate-limit-per-minute")
	}
	if cfg.App.RateLimitPerMinute < 0 {
		cfg.App.RateLimitPerMinute = core.DefaultRateLimitPerMinute
	}

	if v.IsSet("dedup-capacity") {
		cfg.App.DedupCapacity = v.GetInt("dedup-capacity")
	}
	if cfg.App.DedupCapacity < 0 {
		cfg.App.DedupCapacity = 0
	}
}

func secondsToDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

// overridesFromFlags returns the metadata overrides given on the command line.
func overridesFromFlags(v *viper.Viper) []core.Field {
	var fields []core.Field
	for _, label := range core.Labels() {
		key := strings.ToLower(label.String())
		if value := strings.TrimSpace(v.GetString(key)); value != "" {
			fields = append(fields, core.Field{Label: label, Value: value})
		}
	}
	return fields
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if strings.EqualFold(format, "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

// newDownloader wires the SoundCloud client and the tag writer into a pipeline.
func newDownloader(cfg *core.Config, log *zap.Logger) *core.Downloader {
	client := soundcloud.NewClient(&cfg.SoundCloud, cfg.Download.CoverSize, log.Named("soundcloud"))
	writer := tagger.NewWriter(cfg.Download.CoverMIME, log.Named("tagger"))
	return core.NewDownloader(&cfg.Download, client, writer, log.Named("downloader"))
}

// newBatchDeduper returns the dedup store for one batch run, or nil when disabled.
func newBatchDeduper(cfg *core.Config) (core.Deduper, error) {
	if cfg.App.DedupCapacity <= 0 {
		return nil, nil
	}
	dedup, err := store.NewDedupStore(cfg.App.DedupCapacity, core.DefaultDedupFalsePositiveRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup store: %w", err)
	}
	return dedup, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd.Root().PersistentFlags())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() { _ = logger.Sync() }()

	loc := i18n.NewLocalizer(config.App.Language)
	con := newConsole(color.Output, loc)

	if err := config.Validate(); err != nil {
		return errors.New(loc.T("error.config", err))
	}

	downloader := newDownloader(config, logger)
	downloader.SetObserver(con)

	overrides := overridesFromFlags(viper.GetViper())

	if viper.GetBool("interactive") {
		prompter := newPrompter(survey.AskOne, loc)
		downloader.SetFieldEditor(prompter)
		return runInteractive(ctx, downloader, prompter, &config.Download, overrides, con)
	}

	urls, err := collectURLs(args, viper.GetString("input"), os.Stdin)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New(loc.T("error.no_urls"))
	}

	dedup, err := newBatchDeduper(config)
	if err != nil {
		return err
	}
	if dedup != nil {
		downloader.SetDeduper(dedup)
	}

	logger.Debug("Starting batch download", zap.Int("tracks", len(urls)))
	summary := runBatch(ctx, downloader, urls, overrides, con)
	con.summary(summary)

	if summary.failed > 0 {
		return errDownloadsFailed
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd.Root().PersistentFlags())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting scgrab server",
		zap.String("download_dir", config.Download.Dir),
		zap.Int("rate_limit_per_minute", config.App.RateLimitPerMinute))

	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	downloader := newDownloader(config, logger)

	metrics := httpserver.NewMetrics()
	downloader.SetRecorder(metrics)

	var limiter httpserver.RateLimiter
	floodgate := flood.New(config.App.RateLimitPerMinute)
	if config.App.RateLimitPerMinute > 0 {
		limiter = floodgate
		stats := floodgate.GetStats()
		logger.Debug("Rate limiting enabled",
			zap.Int("limit_per_minute", stats.LimitPerMinute),
			zap.Int("window_seconds", stats.WindowSeconds))
	}

	server := httpserver.NewServer(&config.Server, downloader, limiter, metrics, logger.Named("http"))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		floodgate.Stop()
		return nil
	})

	logger.Info("scgrab server started",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("scgrab server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("scgrab server stopped gracefully")
	return nil
}
