// Package tagger embeds ID3v2 metadata into downloaded audio and persists the result.
package tagger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bogem/id3v2/v2"
	"go.uber.org/zap"

	"scgrab/internal/core"
)

const (
	filePerm         = 0o644
	coverDescription = "Cover"

	id3HeaderSize  = 10
	id3FooterSize  = 10
	id3FooterFlag  = 0x10
	syncsafeBits   = 7
	syncsafeMask   = 0x7f
	syncsafeDigits = 4
)

// Writer is the ID3v2.4 implementation of core.TagWriter.
type Writer struct {
	coverMIME string
	logger    *zap.Logger
}

var _ core.TagWriter = (*Writer)(nil)

// NewWriter creates a tag writer. coverMIME is declared on the picture frame;
// core.CoverMIMEAuto sniffs it from the cover bytes.
func NewWriter(coverMIME string, logger *zap.Logger) *Writer {
	return &Writer{
		coverMIME: coverMIME,
		logger:    logger,
	}
}

// Write prepends a fresh tag built from md to audio and writes the file atomically.
// An ID3v2 tag already present at the start of audio is replaced. Empty text fields are
// omitted and the picture frame is only written when md carries cover bytes.
// Every failure is reported as a core.KindIO error.
func (w *Writer) Write(ctx context.Context, path string, audio []byte, md core.Metadata) error {
	if err := ctx.Err(); err != nil {
		return core.NewIOError(err)
	}

	tag := w.buildTag(md)

	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		return core.NewIOError(fmt.Errorf("failed to encode tag: %w", err))
	}
	tagSize := buf.Len()
	buf.Write(stripID3v2(audio))

	if err := writeFileAtomic(path, buf.Bytes(), filePerm); err != nil {
		return core.NewIOError(fmt.Errorf("failed to write %s: %w", path, err))
	}

	w.logger.Debug("Wrote tagged file",
		zap.String("path", path),
		zap.Int("tag_bytes", tagSize),
		zap.Int("bytes", buf.Len()))

	return nil
}

func (w *Writer) buildTag(md core.Metadata) *id3v2.Tag {
	tag := id3v2.NewEmptyTag()
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if md.Title != "" {
		tag.SetTitle(md.Title)
	}
	if md.Artist != "" {
		tag.SetArtist(md.Artist)
	}
	if md.Album != "" {
		tag.SetAlbum(md.Album)
	}
	if md.Genre != "" {
		tag.SetGenre(md.Genre)
	}

	if len(md.Cover) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    coverMIME(md.Cover, w.coverMIME),
			PictureType: id3v2.PTFrontCover,
			Description: coverDescription,
			Picture:     md.Cover,
		})
	}

	return tag
}

// stripID3v2 removes ID3v2 tags at the start of audio. Data whose header does not
// describe a complete tag is returned unchanged.
func stripID3v2(audio []byte) []byte {
	for len(audio) >= id3HeaderSize && bytes.HasPrefix(audio, []byte("ID3")) {
		size, ok := syncsafe(audio[6:id3HeaderSize])
		if !ok {
			return audio
		}

		total := id3HeaderSize + size
		if audio[5]&id3FooterFlag != 0 {
			total += id3FooterSize
		}
		if total > len(audio) {
			return audio
		}

		audio = audio[total:]
	}
	return audio
}

func syncsafe(b []byte) (int, bool) {
	if len(b) != syncsafeDigits {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c > syncsafeMask {
			return 0, false
		}
		n = n<<syncsafeBits | int(c)
	}
	return n, true
}
