package tagger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bogem/id3v2/v2"
	"go.uber.org/zap"

	"scgrab/internal/core"
)

var (
	testAudio = []byte("\xff\xfb\x90\x64 fake mpeg frames")
	testPNG   = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	testJPEG  = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func readTag(t *testing.T, path string) (*id3v2.Tag, []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	return tag, data
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Song.mp3")
	md := core.Metadata{
		Title:  "Song",
		Artist: "Band",
		Album:  "",
		Genre:  "Electronic",
		Cover:  testJPEG,
	}

	if err := NewWriter(core.CoverMIMEAuto, zap.NewNop()).Write(context.Background(), path, testAudio, md); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	tag, data := readTag(t, path)

	if tag.Version() != 4 {
		t.Errorf("Version() = %d, want 4", tag.Version())
	}
	if tag.Title() != "Song" {
		t.Errorf("Title() = %q, want Song", tag.Title())
	}
	if tag.Artist() != "Band" {
		t.Errorf("Artist() = %q, want Band", tag.Artist())
	}
	if tag.Genre() != "Electronic" {
		t.Errorf("Genre() = %q, want Electronic", tag.Genre())
	}
	if tag.Album() != "" {
		t.Errorf("Album() = %q, want empty", tag.Album())
	}
	if frames := tag.GetFrames("TALB"); len(frames) != 0 {
		t.Errorf("got %d TALB frames, want 0", len(frames))
	}

	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(pictures) != 1 {
		t.Fatalf("got %d picture frames, want 1", len(pictures))
	}
	pic, ok := pictures[0].(id3v2.PictureFrame)
	if !ok {
		t.Fatalf("picture frame type = %T", pictures[0])
	}
	if pic.PictureType != id3v2.PTFrontCover {
		t.Errorf("PictureType = %d, want front cover", pic.PictureType)
	}
	if pic.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want image/jpeg", pic.MimeType)
	}
	if !bytes.Equal(pic.Picture, testJPEG) {
		t.Error("picture bytes differ from cover")
	}

	if body := stripID3v2(data); !bytes.Equal(body, testAudio) {
		t.Errorf("audio after tag = %q, want %q", body, testAudio)
	}
}

func TestWriter_NoCover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Song.mp3")
	md := core.Metadata{Title: "Song", Artist: "Band"}

	if err := NewWriter(core.CoverMIMEAuto, zap.NewNop()).Write(context.Background(), path, testAudio, md); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	tag, _ := readTag(t, path)
	if pictures := tag.GetFrames(tag.CommonID("Attached picture")); len(pictures) != 0 {
		t.Errorf("got %d picture frames, want 0", len(pictures))
	}
	if frames := tag.GetFrames("TCON"); len(frames) != 0 {
		t.Errorf("got %d TCON frames for empty genre, want 0", len(frames))
	}
}

func TestWriter_ReplacesExistingTag(t *testing.T) {
	old := id3v2.NewEmptyTag()
	old.SetTitle("Old Title")
	old.SetAlbum("Old Album")
	var src bytes.Buffer
	if _, err := old.WriteTo(&src); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	src.Write(testAudio)

	path := filepath.Join(t.TempDir(), "Song.mp3")
	md := core.Metadata{Title: "New Title", Artist: "Band"}
	if err := NewWriter(core.CoverMIMEAuto, zap.NewNop()).Write(context.Background(), path, src.Bytes(), md); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	tag, data := readTag(t, path)
	if tag.Title() != "New Title" {
		t.Errorf("Title() = %q, want New Title", tag.Title())
	}
	if tag.Album() != "" {
		t.Errorf("Album() = %q, want old album dropped", tag.Album())
	}
	if body := stripID3v2(data); !bytes.Equal(body, testAudio) {
		t.Errorf("audio after tag = %q, want %q", body, testAudio)
	}
}

func TestWriter_OverwritesTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Song.mp3")
	if err := os.WriteFile(path, []byte("previous"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := NewWriter(core.CoverMIMEAuto, zap.NewNop()).Write(context.Background(), path, testAudio, core.Metadata{Title: "Song"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	tag, _ := readTag(t, path)
	if tag.Title() != "Song" {
		t.Errorf("Title() = %q, want Song", tag.Title())
	}
}

func TestWriter_RenameFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Song.mp3")

	old := renameFunc
	renameFunc = func(_, _ string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := NewWriter(core.CoverMIMEAuto, zap.NewNop()).Write(context.Background(), path, testAudio, core.Metadata{Title: "Song"})
	if got := core.KindOf(err); got != core.KindIO {
		t.Fatalf("KindOf() = %v, want %v (err: %v)", got, core.KindIO, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".Song.mp3.tmp-") {
			t.Errorf("temp file left behind: %q", e.Name())
		}
		if e.Name() == "Song.mp3" {
			t.Error("target written despite rename failure")
		}
	}
}

func TestWriter_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "Song.mp3")

	err := NewWriter(core.CoverMIMEAuto, zap.NewNop()).Write(context.Background(), path, testAudio, core.Metadata{Title: "Song"})
	if got := core.KindOf(err); got != core.KindIO {
		t.Errorf("KindOf() = %v, want %v", got, core.KindIO)
	}
}

func TestWriter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "Song.mp3")
	err := NewWriter(core.CoverMIMEAuto, zap.NewNop()).Write(ctx, path, testAudio, core.Metadata{Title: "Song"})
	if got := core.KindOf(err); got != core.KindIO {
		t.Errorf("KindOf() = %v, want %v", got, core.KindIO)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("Stat() error = %v, want not exist", statErr)
	}
}

func TestStripID3v2(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{name: "No tag", input: testAudio, expected: testAudio},
		{
			name:     "Empty tag",
			input:    append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), testAudio...),
			expected: testAudio,
		},
		{
			name:     "Two byte body",
			input:    append([]byte("ID3\x04\x00\x00\x00\x00\x00\x02ab"), testAudio...),
			expected: testAudio,
		},
		{
			name:     "Truncated tag kept",
			input:    []byte("ID3\x04\x00\x00\x00\x00\x01\x00short"),
			expected: []byte("ID3\x04\x00\x00\x00\x00\x01\x00short"),
		},
		{
			name:     "Invalid syncsafe size kept",
			input:    []byte("ID3\x04\x00\x00\x80\x00\x00\x00"),
			expected: []byte("ID3\x04\x00\x00\x80\x00\x00\x00"),
		},
		{name: "Short input", input: []byte("ID3"), expected: []byte("ID3")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripID3v2(tt.input); !bytes.Equal(got, tt.expected) {
				t.Errorf("stripID3v2() = %q, want %q", got, tt.expected)
			}
		})
	}
}
