package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scgrab/pkg/fuzzy"
	"scgrab/pkg/text"
)

const (
	stageResolve  = "resolve"
	stageCover    = "cover"
	stageExchange = "exchange"
	stageMedia    = "media"
	stageTag      = "tag"

	resultSuccess   = "success"
	resultDuplicate = "duplicate"
	resultFailure   = "failure"
)

// Downloader runs the track acquisition pipeline:
// resolve, select, fetch cover and stream, assemble metadata, tag and persist.
//
// A Downloader keeps no state between runs and may be shared by concurrent callers
// once its optional collaborators are set.
type Downloader struct {
	config     *DownloadConfig
	source     TrackSource
	tagger     TagWriter
	selector   Selector
	logger     *zap.Logger
	metrics    Recorder
	observer   Observer
	editor     FieldEditor
	dedup      Deduper
	normalizer *fuzzy.Normalizer
}

// NewDownloader creates a pipeline that pulls from source and persists through tagger.
func NewDownloader(config *DownloadConfig, source TrackSource, tagger TagWriter, logger *zap.Logger) *Downloader {
	return &Downloader{
		config:     config,
		source:     source,
		tagger:     tagger,
		selector:   config.Selector(),
		logger:     logger,
		metrics:    nopRecorder{},
		normalizer: fuzzy.NewNormalizer(),
	}
}

// SetSelector replaces the transcoding selection strategy derived from the config.
func (d *Downloader) SetSelector(selector Selector) {
	d.selector = selector
}

// SetRecorder sets the metrics sink.
func (d *Downloader) SetRecorder(recorder Recorder) {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	d.metrics = recorder
}

// SetObserver sets the state transition listener.
func (d *Downloader) SetObserver(observer Observer) {
	d.observer = observer
}

// SetFieldEditor enables interactive field editing before tagging.
func (d *Downloader) SetFieldEditor(editor FieldEditor) {
	d.editor = editor
}

// SetDeduper enables skipping tracks that were already downloaded to the same
// path with the same metadata. Only batch runs install one.
func (d *Downloader) SetDeduper(dedup Deduper) {
	d.dedup = dedup
}

// DownloadTrack resolves sourceURL, downloads its audio and writes the tagged file.
// overrides replace the resolved field values; see Assemble.
// A blank sourceURL fails fast with ErrEmptySourceURL, outside the ErrorKind taxonomy.
func (d *Downloader) DownloadTrack(ctx context.Context, sourceURL string, overrides []Field) (*Result, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, ErrEmptySourceURL
	}

	start := time.Now()
	logger := d.logger.With(zap.String("source_url", sourceURL))
	d.notify(logger, sourceURL, StateIdle)

	result, err := d.run(ctx, logger, sourceURL, overrides)
	if err != nil {
		d.notify(logger, sourceURL, StateFailed)
		d.recordFailure(err)
		logger.Warn("Track download failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	d.notify(logger, sourceURL, StateDone)
	d.metrics.RecordDownload(resultSuccess)
	logger.Info("Track downloaded",
		zap.String("path", result.Path),
		zap.String("title", result.Metadata.Title),
		zap.String("artist", result.Metadata.Artist),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func (d *Downloader) run(ctx context.Context, logger *zap.Logger, sourceURL string, overrides []Field) (*Result, error) {
	d.notify(logger, sourceURL, StateResolving)

	stageStart := time.Now()
	track, err := d.source.Resolve(ctx, sourceURL)
	d.metrics.RecordStage(stageResolve, time.Since(stageStart))
	if err != nil {
		return nil, err
	}
	if len(track.Transcodings) == 0 {
		return nil, NewTransportError(ErrNoTranscodings)
	}

	logger = logger.With(zap.Int64("track_id", track.ID))

	key := d.dedupKey(track, overrides)
	if d.dedup != nil && d.dedup.Has(key) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, track.Title)
	}

	transcoding, err := d.selector(track.Transcodings)
	if err != nil {
		return nil, err
	}
	logger.Debug("Selected transcoding",
		zap.String("preset", transcoding.Preset),
		zap.String("protocol", transcoding.Format.Protocol),
		zap.String("mime_type", transcoding.Format.MimeType))

	cover, audio, err := d.fetch(ctx, logger, sourceURL, track, transcoding)
	if err != nil {
		return nil, err
	}

	d.notify(logger, sourceURL, StateAssembling)
	md := Assemble(track, overrides, cover)

	if d.editor != nil {
		edits, editErr := d.editor.EditFields(ctx, track, md.Fields())
		if editErr != nil {
			return nil, fmt.Errorf("failed to edit metadata: %w", editErr)
		}
		combined := make([]Field, 0, len(overrides)+len(edits))
		combined = append(combined, overrides...)
		combined = append(combined, edits...)
		md = Assemble(track, combined, cover)
	}

	path := filepath.Join(d.config.Dir, d.fileName(track))

	d.notify(logger, sourceURL, StateTagging)
	stageStart = time.Now()
	err = d.tagger.Write(ctx, path, audio, md)
	d.metrics.RecordStage(stageTag, time.Since(stageStart))
	if err != nil {
		return nil, err
	}

	if d.dedup != nil {
		d.dedup.Add(key)
	}

	return &Result{Path: path, Track: track, Metadata: md}, nil
}

// fetch downloads the cover and the selected stream. In parallel mode the cover fetch and
// the stream exchange overlap; the cover error wins when both fail.
func (d *Downloader) fetch(
	ctx context.Context,
	logger *zap.Logger,
	sourceURL string,
	track *TrackDescriptor,
	transcoding Transcoding,
) (cover, audio []byte, err error) {
	var mediaURL string

	if d.config.ParallelFetch {
		d.notify(logger, sourceURL, StateFetchingCover)
		d.notify(logger, sourceURL, StateFetchingStream)

		var coverErr, streamErr error
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			cover, coverErr = d.fetchCover(gCtx, track)
			return coverErr
		})
		g.Go(func() error {
			mediaURL, streamErr = d.exchange(gCtx, track, transcoding)
			return streamErr
		})
		_ = g.Wait()

		if err := firstError(ctx, coverErr, streamErr); err != nil {
			return nil, nil, err
		}
	} else {
		d.notify(logger, sourceURL, StateFetchingCover)
		cover, err = d.fetchCover(ctx, track)
		if err != nil {
			return nil, nil, err
		}

		d.notify(logger, sourceURL, StateFetchingStream)
		mediaURL, err = d.exchange(ctx, track, transcoding)
		if err != nil {
			return nil, nil, err
		}
	}

	stageStart := time.Now()
	audio, err = d.source.FetchMedia(ctx, mediaURL)
	d.metrics.RecordStage(stageMedia, time.Since(stageStart))
	if err != nil {
		return nil, nil, err
	}
	d.metrics.AddBytes(stageMedia, len(audio))
	logger.Debug("Fetched audio", zap.Int("bytes", len(audio)))

	return cover, audio, nil
}

func (d *Downloader) fetchCover(ctx context.Context, track *TrackDescriptor) ([]byte, error) {
	if track.ArtworkURL == "" {
		return nil, nil
	}

	stageStart := time.Now()
	cover, err := d.source.FetchCover(ctx, track.ArtworkURL)
	d.metrics.RecordStage(stageCover, time.Since(stageStart))
	if err != nil {
		return nil, err
	}
	d.metrics.AddBytes(stageCover, len(cover))
	return cover, nil
}

func (d *Downloader) exchange(ctx context.Context, track *TrackDescriptor, transcoding Transcoding) (string, error) {
	stageStart := time.Now()
	mediaURL, err := d.source.StreamURL(ctx, transcoding, track.TrackAuthorization)
	d.metrics.RecordStage(stageExchange, time.Since(stageStart))
	return mediaURL, err
}

// firstError returns the leftmost error that is not just the fallout of a sibling
// cancelling the shared context.
func firstError(parent context.Context, errs ...error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if parent.Err() == nil && errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return err
	}
	return canceled
}

func (d *Downloader) fileName(track *TrackDescriptor) string {
	base := text.SanitizeFilename(track.Title)
	if base == "" {
		base = "track-" + strconv.FormatInt(track.ID, 10)
	}
	return base + AudioExtension
}

// dedupKey identifies a download by destination path, track identity and the
// assembled field values, so a changed directory or override is a new download.
func (d *Downloader) dedupKey(track *TrackDescriptor, overrides []Field) string {
	identity := d.normalizer.Key(track.User.Username, track.Title)
	if track.ID != 0 {
		identity = strconv.FormatInt(track.ID, 10)
	}

	parts := []string{filepath.Join(d.config.Dir, d.fileName(track)), identity}
	for _, f := range Assemble(track, overrides, nil).Fields() {
		parts = append(parts, f.Value)
	}
	return strings.Join(parts, "\x00")
}

func (d *Downloader) notify(logger *zap.Logger, sourceURL string, state State) {
	logger.Debug("Pipeline state", zap.Stringer("state", state))
	if d.observer != nil {
		d.observer.OnState(sourceURL, state)
	}
}

func (d *Downloader) recordFailure(err error) {
	switch {
	case errors.Is(err, ErrDuplicate):
		d.metrics.RecordDownload(resultDuplicate)
		return
	case IsSelectionError(err):
		d.metrics.RecordError("selection")
	case KindOf(err) != 0:
		d.metrics.RecordError(KindOf(err).String())
	default:
		d.metrics.RecordError("other")
	}
	d.metrics.RecordDownload(resultFailure)
}
