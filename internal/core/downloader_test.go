package core

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

const testSourceURL = "https://soundcloud.com/band/song"

// Mock implementations for testing

type mockSource struct {
	mu sync.Mutex

	track     *TrackDescriptor
	cover     []byte
	audio     []byte
	mediaURL  string
	calls     []string
	gotAuth   string
	coverWait bool

	resolveErr error
	coverErr   error
	streamErr  error
	mediaErr   error
}

func newMockSource() *mockSource {
	return &mockSource{
		track:    testTrack(),
		cover:    []byte("jpeg"),
		audio:    []byte("audio"),
		mediaURL: "https://cdn.example.com/a.mp3",
	}
}

func (m *mockSource) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockSource) called(call string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (m *mockSource) Resolve(_ context.Context, _ string) (*TrackDescriptor, error) {
	m.record("resolve")
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return m.track, nil
}

func (m *mockSource) FetchCover(ctx context.Context, _ string) ([]byte, error) {
	m.record("cover")
	if m.coverWait {
		<-ctx.Done()
		return nil, NewTransportError(ctx.Err())
	}
	if m.coverErr != nil {
		return nil, m.coverErr
	}
	return m.cover, nil
}

func (m *mockSource) StreamURL(_ context.Context, _ Transcoding, trackAuthorization string) (string, error) {
	m.record("exchange")
	m.mu.Lock()
	m.gotAuth = trackAuthorization
	m.mu.Unlock()
	if m.streamErr != nil {
		return "", m.streamErr
	}
	return m.mediaURL, nil
}

func (m *mockSource) FetchMedia(_ context.Context, _ string) ([]byte, error) {
	m.record("media")
	if m.mediaErr != nil {
		return nil, m.mediaErr
	}
	return m.audio, nil
}

type mockTagger struct {
	path  string
	audio []byte
	md    Metadata
	err   error
	calls int
}

func (m *mockTagger) Write(_ context.Context, path string, audio []byte, md Metadata) error {
	m.calls++
	m.path, m.audio, m.md = path, audio, md
	return m.err
}

type mockObserver struct {
	mu     sync.Mutex
	states []State
}

func (m *mockObserver) OnState(_ string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

type mockDeduper struct {
	keys map[string]bool
}

func (m *mockDeduper) Has(key string) bool { return m.keys[key] }
func (m *mockDeduper) Add(key string)      { m.keys[key] = true }

type mockEditor struct {
	edits []Field
	err   error
	seen  []Field
}

func (m *mockEditor) EditFields(_ context.Context, _ *TrackDescriptor, current []Field) ([]Field, error) {
	m.seen = current
	return m.edits, m.err
}

type mockRecorder struct {
	mu        sync.Mutex
	downloads map[string]int
	errors    map[string]int
	stages    map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		downloads: make(map[string]int),
		errors:    make(map[string]int),
		stages:    make(map[string]int),
	}
}

func (m *mockRecorder) RecordDownload(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[result]++
}

func (m *mockRecorder) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *mockRecorder) RecordStage(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage]++
}

func (m *mockRecorder) AddBytes(string, int) {}

func newTestDownloader(t *testing.T, source TrackSource, tagger TagWriter, parallel bool) *Downloader {
	t.Helper()
	config := &DownloadConfig{Dir: t.TempDir(), ParallelFetch: parallel}
	return NewDownloader(config, source, tagger, zap.NewNop())
}

func TestDownloader_DownloadTrack(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			source := newMockSource()
			source.track.TrackAuthorization = "auth"
			tagger := &mockTagger{}
			recorder := newMockRecorder()
			d := newTestDownloader(t, source, tagger, parallel)
			d.SetRecorder(recorder)

			result, err := d.DownloadTrack(context.Background(), "  "+testSourceURL+" ", []Field{{Label: LabelAlbum, Value: "Album"}})
			if err != nil {
				t.Fatalf("DownloadTrack() error = %v", err)
			}

			wantPath := filepath.Join(d.config.Dir, "Song.mp3")
			if result.Path != wantPath || tagger.path != wantPath {
				t.Errorf("Path = %q (tagger %q), want %q", result.Path, tagger.path, wantPath)
			}

			want := Metadata{Title: "Song", Artist: "Band", Album: "Album", Genre: "Electronic", Cover: []byte("jpeg")}
			if !reflect.DeepEqual(tagger.md, want) {
				t.Errorf("tagged metadata = %+v, want %+v", tagger.md, want)
			}
			if !bytes.Equal(tagger.audio, source.audio) {
				t.Errorf("tagged audio = %q, want %q", tagger.audio, source.audio)
			}
			if result.Track.ID != 42 {
				t.Errorf("Result.Track.ID = %d, want 42", result.Track.ID)
			}
			if source.gotAuth != "auth" {
				t.Errorf("track authorization = %q, want auth", source.gotAuth)
			}
			if recorder.downloads[resultSuccess] != 1 {
				t.Errorf("success downloads = %d, want 1", recorder.downloads[resultSuccess])
			}
			for _, stage := range []string{stageResolve, stageCover, stageExchange, stageMedia, stageTag} {
				if recorder.stages[stage] != 1 {
					t.Errorf("stage %s recorded %d times, want 1", stage, recorder.stages[stage])
				}
			}
		})
	}
}

func TestDownloader_States(t *testing.T) {
	source := newMockSource()
	observer := &mockObserver{}
	d := newTestDownloader(t, source, &mockTagger{}, false)
	d.SetObserver(observer)

	if _, err := d.DownloadTrack(context.Background(), testSourceURL, nil); err != nil {
		t.Fatalf("DownloadTrack() error = %v", err)
	}

	want := []State{
		StateIdle, StateResolving, StateFetchingCover, StateFetchingStream,
		StateAssembling, StateTagging, StateDone,
	}
	if !reflect.DeepEqual(observer.states, want) {
		t.Errorf("states = %v, want %v", observer.states, want)
	}

	source.resolveErr = &DownloadError{Kind: KindNotFound, URL: testSourceURL}
	observer.states = nil
	if _, err := d.DownloadTrack(context.Background(), testSourceURL, nil); err == nil {
		t.Fatal("DownloadTrack() error = nil, want error")
	}
	want = []State{StateIdle, StateResolving, StateFailed}
	if !reflect.DeepEqual(observer.states, want) {
		t.Errorf("states = %v, want %v", observer.states, want)
	}
}

func TestDownloader_ResolutionErrorsKeepURL(t *testing.T) {
	for _, kind := range []ErrorKind{KindNotFound, KindForbidden} {
		t.Run(kind.String(), func(t *testing.T) {
			source := newMockSource()
			source.resolveErr = &DownloadError{Kind: kind, URL: testSourceURL}
			tagger := &mockTagger{}

			_, err := newTestDownloader(t, source, tagger, true).DownloadTrack(context.Background(), testSourceURL, nil)

			var de *DownloadError
			if !errors.As(err, &de) {
				t.Fatalf("DownloadTrack() error = %v, want *DownloadError", err)
			}
			if de.Kind != kind || de.URL != testSourceURL {
				t.Errorf("DownloadError = %+v, want kind %v url %q", de, kind, testSourceURL)
			}
			if tagger.calls != 0 {
				t.Errorf("tagger called %d times, want 0", tagger.calls)
			}
		})
	}
}

func TestDownloader_SelectionOutOfRange(t *testing.T) {
	source := newMockSource()
	tagger := &mockTagger{}
	recorder := newMockRecorder()
	d := newTestDownloader(t, source, tagger, true)
	d.SetSelector(IndexSelector(3))
	d.SetRecorder(recorder)

	for i := 0; i < 2; i++ {
		_, err := d.DownloadTrack(context.Background(), testSourceURL, nil)

		var se *SelectionError
		if !errors.As(err, &se) {
			t.Fatalf("DownloadTrack() error = %v, want *SelectionError", err)
		}
		if se.Index != 3 || se.Available != 1 {
			t.Errorf("SelectionError = %+v, want index 3 available 1", se)
		}
		if KindOf(err) != 0 {
			t.Errorf("KindOf() = %v, want no DownloadError", KindOf(err))
		}
	}

	for _, call := range []string{"cover", "exchange", "media"} {
		if source.called(call) {
			t.Errorf("%s was called after a selection failure", call)
		}
	}
	if recorder.errors["selection"] != 2 {
		t.Errorf("selection errors = %d, want 2", recorder.errors["selection"])
	}
}

func TestDownloader_NoTranscodings(t *testing.T) {
	source := newMockSource()
	source.track.Transcodings = nil

	_, err := newTestDownloader(t, source, &mockTagger{}, true).DownloadTrack(context.Background(), testSourceURL, nil)
	if KindOf(err) != KindTransport || !errors.Is(err, ErrNoTranscodings) {
		t.Errorf("DownloadTrack() error = %v, want transport error wrapping ErrNoTranscodings", err)
	}
}

func TestDownloader_ParallelErrors(t *testing.T) {
	coverErr := NewTransportError(errors.New("cover failed"))
	streamErr := &DownloadError{Kind: KindForbidden, URL: "https://api.example.com/media/1"}

	t.Run("Cover error wins", func(t *testing.T) {
		source := newMockSource()
		source.coverErr = coverErr
		source.streamErr = streamErr

		_, err := newTestDownloader(t, source, &mockTagger{}, true).DownloadTrack(context.Background(), testSourceURL, nil)
		if !errors.Is(err, coverErr) {
			t.Errorf("DownloadTrack() error = %v, want %v", err, coverErr)
		}
	})

	t.Run("Cancellation fallout ignored", func(t *testing.T) {
		source := newMockSource()
		source.coverWait = true
		source.streamErr = streamErr

		_, err := newTestDownloader(t, source, &mockTagger{}, true).DownloadTrack(context.Background(), testSourceURL, nil)
		if !errors.Is(err, streamErr) {
			t.Errorf("DownloadTrack() error = %v, want %v", err, streamErr)
		}
		if source.called("media") {
			t.Error("media fetched after a failed exchange")
		}
	})

	t.Run("Sequential stops at cover", func(t *testing.T) {
		source := newMockSource()
		source.coverErr = coverErr
		source.streamErr = streamErr

		_, err := newTestDownloader(t, source, &mockTagger{}, false).DownloadTrack(context.Background(), testSourceURL, nil)
		if !errors.Is(err, coverErr) {
			t.Errorf("DownloadTrack() error = %v, want %v", err, coverErr)
		}
		if source.called("exchange") {
			t.Error("exchange called after cover failure in sequential mode")
		}
	})
}

func TestFirstError(t *testing.T) {
	live := context.Background()
	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	errReal := errors.New("real")
	fallout := NewTransportError(context.Canceled)

	tests := []struct {
		name   string
		parent context.Context
		errs   []error
		want   error
	}{
		{"None", live, []error{nil, nil}, nil},
		{"Leftmost wins", live, []error{errReal, errors.New("other")}, errReal},
		{"Fallout skipped", live, []error{fallout, errReal}, errReal},
		{"Only fallout", live, []error{fallout, nil}, fallout},
		{"Parent canceled keeps order", canceledCtx, []error{fallout, errReal}, fallout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstError(tt.parent, tt.errs...); got != tt.want {
				t.Errorf("firstError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDownloader_NoArtwork(t *testing.T) {
	source := newMockSource()
	source.track.ArtworkURL = ""
	tagger := &mockTagger{}

	if _, err := newTestDownloader(t, source, tagger, true).DownloadTrack(context.Background(), testSourceURL, nil); err != nil {
		t.Fatalf("DownloadTrack() error = %v", err)
	}
	if source.called("cover") {
		t.Error("cover fetched for a track without artwork")
	}
	if len(tagger.md.Cover) != 0 {
		t.Errorf("cover = %q, want empty", tagger.md.Cover)
	}
}

func TestDownloader_FileName(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		id       int64
		expected string
	}{
		{"Plain", "Song", 1, "Song.mp3"},
		{"Spaces and slashes", "My Song / Remix", 1, "My_Song__Remix.mp3"},
		{"Nothing left", `///`, 42, "track-42.mp3"},
	}

	d := newTestDownloader(t, newMockSource(), &mockTagger{}, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.fileName(&TrackDescriptor{ID: tt.id, Title: tt.title})
			if got != tt.expected {
				t.Errorf("fileName() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDownloader_Dedup(t *testing.T) {
	source := newMockSource()
	tagger := &mockTagger{}
	recorder := newMockRecorder()
	d := newTestDownloader(t, source, tagger, true)
	d.SetDeduper(&mockDeduper{keys: make(map[string]bool)})
	d.SetRecorder(recorder)

	if _, err := d.DownloadTrack(context.Background(), testSourceURL, nil); err != nil {
		t.Fatalf("first DownloadTrack() error = %v", err)
	}

	_, err := d.DownloadTrack(context.Background(), testSourceURL, nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second DownloadTrack() error = %v, want ErrDuplicate", err)
	}
	if tagger.calls != 1 {
		t.Errorf("tagger called %d times, want 1", tagger.calls)
	}
	if recorder.downloads[resultDuplicate] != 1 {
		t.Errorf("duplicate downloads = %d, want 1", recorder.downloads[resultDuplicate])
	}
}

func TestDownloader_DedupNotAddedOnFailure(t *testing.T) {
	source := newMockSource()
	dedup := &mockDeduper{keys: make(map[string]bool)}
	d := newTestDownloader(t, source, &mockTagger{err: NewIOError(errors.New("disk full"))}, true)
	d.SetDeduper(dedup)

	if _, err := d.DownloadTrack(context.Background(), testSourceURL, nil); KindOf(err) != KindIO {
		t.Fatalf("DownloadTrack() error = %v, want io error", err)
	}
	if len(dedup.keys) != 0 {
		t.Errorf("dedup keys = %v, want none after failure", dedup.keys)
	}
}

func TestDownloader_DedupRedownloadsOnChangedTarget(t *testing.T) {
	source := newMockSource()
	tagger := &mockTagger{}
	d := newTestDownloader(t, source, tagger, true)
	d.SetDeduper(&mockDeduper{keys: make(map[string]bool)})
	ctx := context.Background()
	albumA := []Field{{Label: LabelAlbum, Value: "A"}}

	if _, err := d.DownloadTrack(ctx, testSourceURL, albumA); err != nil {
		t.Fatalf("first DownloadTrack() error = %v", err)
	}
	firstPath := tagger.path

	d.config.Dir = t.TempDir()
	result, err := d.DownloadTrack(ctx, testSourceURL, []Field{{Label: LabelAlbum, Value: "B"}})
	if err != nil {
		t.Fatalf("DownloadTrack() into a new dir error = %v", err)
	}
	if tagger.calls != 2 || result.Path == firstPath || tagger.md.Album != "B" {
		t.Errorf("calls = %d, path = %q (first %q), album = %q; want a second write with album B",
			tagger.calls, result.Path, firstPath, tagger.md.Album)
	}

	if _, err := d.DownloadTrack(ctx, testSourceURL, []Field{{Label: LabelAlbum, Value: "C"}}); err != nil {
		t.Fatalf("DownloadTrack() with a new album error = %v", err)
	}
	if tagger.calls != 3 || tagger.md.Album != "C" {
		t.Errorf("calls = %d, album = %q; want the same path rewritten with album C", tagger.calls, tagger.md.Album)
	}

	if _, err := d.DownloadTrack(ctx, testSourceURL, []Field{{Label: LabelAlbum, Value: "C"}}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("identical repeat error = %v, want ErrDuplicate", err)
	}
}

func TestDownloader_DedupKey(t *testing.T) {
	d := newTestDownloader(t, newMockSource(), &mockTagger{}, false)
	track := &TrackDescriptor{ID: 42, Title: "Song", User: User{Username: "Band"}}
	album := []Field{{Label: LabelAlbum, Value: "A"}}

	base := d.dedupKey(track, album)
	if base != d.dedupKey(track, []Field{{Label: LabelAlbum, Value: "A"}}) {
		t.Error("dedupKey() differs for identical input")
	}
	if base != d.dedupKey(track, append([]Field{{Label: LabelGenre, Value: ""}}, album...)) {
		t.Error("dedupKey() changed by an empty override")
	}

	tests := []struct {
		name      string
		track     *TrackDescriptor
		overrides []Field
	}{
		{"Other album", track, []Field{{Label: LabelAlbum, Value: "B"}}},
		{"No overrides", track, nil},
		{"Other id", &TrackDescriptor{ID: 43, Title: "Song", User: User{Username: "Band"}}, album},
		{"Fuzzy identity", &TrackDescriptor{Title: "Song", User: User{Username: "Band"}}, album},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.dedupKey(tt.track, tt.overrides); got == base {
				t.Errorf("dedupKey() = %q, want a key different from %q", got, base)
			}
		})
	}

	before := base
	d.config.Dir = t.TempDir()
	if d.dedupKey(track, album) == before {
		t.Error("dedupKey() unchanged after changing the download dir")
	}
}

func TestDownloader_FieldEditor(t *testing.T) {
	source := newMockSource()
	tagger := &mockTagger{}
	editor := &mockEditor{edits: []Field{{Label: LabelGenre, Value: "House"}, {Label: LabelAlbum, Value: "Edited"}}}
	d := newTestDownloader(t, source, tagger, true)
	d.SetFieldEditor(editor)

	_, err := d.DownloadTrack(context.Background(), testSourceURL, []Field{{Label: LabelAlbum, Value: "Flag"}})
	if err != nil {
		t.Fatalf("DownloadTrack() error = %v", err)
	}

	if len(editor.seen) != len(Labels()) || editor.seen[2].Value != "Flag" {
		t.Errorf("editor saw %+v, want assembled fields with album Flag", editor.seen)
	}
	if tagger.md.Album != "Edited" || tagger.md.Genre != "House" || tagger.md.Title != "Song" {
		t.Errorf("tagged metadata = %+v, want edits applied over flags", tagger.md)
	}
}

func TestDownloader_FieldEditorError(t *testing.T) {
	tagger := &mockTagger{}
	d := newTestDownloader(t, newMockSource(), tagger, true)
	d.SetFieldEditor(&mockEditor{err: context.Canceled})

	_, err := d.DownloadTrack(context.Background(), testSourceURL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("DownloadTrack() error = %v, want context.Canceled", err)
	}
	if tagger.calls != 0 {
		t.Errorf("tagger called %d times, want 0", tagger.calls)
	}
}

func TestDownloader_EmptySourceURL(t *testing.T) {
	source := newMockSource()
	d := newTestDownloader(t, source, &mockTagger{}, true)

	recorder := newMockRecorder()
	d.SetRecorder(recorder)

	_, err := d.DownloadTrack(context.Background(), "   ", nil)
	if err != ErrEmptySourceURL {
		t.Errorf("DownloadTrack() error = %v, want bare ErrEmptySourceURL", err)
	}
	if KindOf(err) != 0 || IsSelectionError(err) {
		t.Errorf("KindOf() = %v, IsSelectionError() = %v; want an error outside the taxonomy",
			KindOf(err), IsSelectionError(err))
	}
	var de *DownloadError
	if errors.As(err, &de) {
		t.Errorf("DownloadTrack() error = %#v, want no DownloadError", de)
	}
	if source.called("resolve") {
		t.Error("resolve called for an empty URL")
	}
	if len(recorder.downloads) != 0 || len(recorder.errors) != 0 {
		t.Errorf("recorded downloads %v and errors %v for an empty URL", recorder.downloads, recorder.errors)
	}
}
