package core

import (
	"context"
	"time"
)

// TrackKind is the only resolvable kind this pipeline downloads.
const TrackKind = "track"

// TrackDescriptor is the resolved description of a single track. It is not modified after resolution.
type TrackDescriptor struct {
	ID                 int64
	Kind               string
	Title              string
	Genre              string
	ArtworkURL         string
	Permalink          string
	Downloadable       bool
	TrackAuthorization string
	User               User
	Transcodings       []Transcoding
}

type User struct {
	ID       int64
	Username string
}

// Transcoding is one encoded rendition of a track. URL is an opaque exchange URL.
type Transcoding struct {
	URL    string
	Preset string
	Format TranscodingFormat
}

type TranscodingFormat struct {
	Protocol string
	MimeType string
}

// Result is what a successful pipeline run hands back to its caller.
type Result struct {
	Path     string
	Track    *TrackDescriptor
	Metadata Metadata
}

// TrackSource is the upstream the pipeline pulls tracks from.
type TrackSource interface {
	Resolve(ctx context.Context, sourceURL string) (*TrackDescriptor, error)
	FetchCover(ctx context.Context, artworkURL string) ([]byte, error)
	StreamURL(ctx context.Context, transcoding Transcoding, trackAuthorization string) (string, error)
	FetchMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// TagWriter embeds metadata into audio bytes and persists them at path.
type TagWriter interface {
	Write(ctx context.Context, path string, audio []byte, md Metadata) error
}

// FieldEditor lets a caller adjust the assembled fields before tagging.
// The returned fields are applied as overrides on top of the current ones.
type FieldEditor interface {
	EditFields(ctx context.Context, track *TrackDescriptor, current []Field) ([]Field, error)
}

// Deduper remembers which tracks were already downloaded.
type Deduper interface {
	Has(key string) bool
	Add(key string)
}

// Observer is notified of every pipeline state transition.
type Observer interface {
	OnState(sourceURL string, state State)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordDownload(result string)
	RecordError(kind string)
	RecordStage(stage string, duration time.Duration)
	AddBytes(kind string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordDownload(string)             {}
func (nopRecorder) RecordError(string)                {}
func (nopRecorder) RecordStage(string, time.Duration) {}
func (nopRecorder) AddBytes(string, int)              {}

// State is a step of the track acquisition pipeline.
type State int

const (
	// StateIdle is the state before a run starts
	StateIdle State = iota
	// StateResolving indicates the source URL is being resolved
	StateResolving
	// StateFetchingCover indicates the artwork is being downloaded
	StateFetchingCover
	// StateFetchingStream indicates the stream is being exchanged and downloaded
	StateFetchingStream
	// StateAssembling indicates metadata is being composed
	StateAssembling
	// StateTagging indicates the tagged file is being written
	StateTagging
	// StateDone indicates the file was written
	StateDone
	// StateFailed indicates the run stopped with an error
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateFetchingCover:
		return "fetching_cover"
	case StateFetchingStream:
		return "fetching_stream"
	case StateAssembling:
		return "assembling"
	case StateTagging:
		return "tagging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
