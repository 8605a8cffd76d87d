package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DownloadError. The set is closed.
type ErrorKind int

const (
	// KindIO is a local filesystem failure
	KindIO ErrorKind = iota + 1
	// KindNotFound means the source URL did not resolve (removed, private or mistyped)
	KindNotFound
	// KindForbidden means access to the track is restricted (e.g. geo blocking)
	KindForbidden
	// KindTransport covers connection failures, timeouts, unexpected statuses and malformed bodies
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

var (
	// ErrNoTranscodings is reported when a resolved track carries no transcodings.
	ErrNoTranscodings = errors.New("track has no transcodings")
	// ErrNotATrack is reported when the URL resolves to a playlist, user or other non-track resource.
	ErrNotATrack = errors.New("url does not point to a track")
	// ErrMissingStreamURL is reported when the exchange response has no media URL.
	ErrMissingStreamURL = errors.New("stream exchange response has no url")
	// ErrDuplicate is returned when a batch run already wrote the same track
	// to the same path with the same metadata.
	ErrDuplicate = errors.New("track already downloaded")
	// ErrEmptySourceURL is returned unwrapped when DownloadTrack is called without a URL.
	// Like SelectionError it is a caller contract violation, not a DownloadError:
	// it carries no ErrorKind and nothing is resolved or recorded.
	ErrEmptySourceURL = errors.New("source URL is empty")
)

// DownloadError is the user-facing failure of a pipeline run.
// URL holds the URL the user supplied for the two resolution kinds.
type DownloadError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *DownloadError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("track not found: %s", e.URL)
	case KindForbidden:
		return fmt.Sprintf("access to track forbidden: %s", e.URL)
	case KindIO:
		if e.Err != nil {
			return fmt.Sprintf("could not write file: %v", e.Err)
		}
		return "could not write file"
	default:
		if e.Err != nil {
			return fmt.Sprintf("network error: %v", e.Err)
		}
		return "network error"
	}
}

func (e *DownloadError) Unwrap() error { return e.Err }

// NewIOError wraps a filesystem failure.
func NewIOError(err error) *DownloadError {
	return &DownloadError{Kind: KindIO, Err: err}
}

// NewTransportError wraps a network or decoding failure.
func NewTransportError(err error) *DownloadError {
	return &DownloadError{Kind: KindTransport, Err: err}
}

// KindOf returns the kind of the DownloadError in err's chain, or 0 if there is none.
func KindOf(err error) ErrorKind {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsNotFound reports whether err is a KindNotFound DownloadError.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsForbidden reports whether err is a KindForbidden DownloadError.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// SelectionError means the selection strategy could not pick a transcoding.
// It signals a data invariant violation rather than a user-facing download failure.
type SelectionError struct {
	Index     int
	Available int
	Reason    string
}

func (e *SelectionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no transcoding selected: %s (%d available)", e.Reason, e.Available)
	}
	return fmt.Sprintf("transcoding index %d out of range (%d available)", e.Index, e.Available)
}

// IsSelectionError reports whether err carries a SelectionError.
func IsSelectionError(err error) bool {
	var se *SelectionError
	return errors.As(err, &se)
}
