package core

import (
	"fmt"
	"strings"
)

// Label names one editable metadata field.
type Label int

const (
	// LabelTitle is the track title (TIT2)
	LabelTitle Label = iota
	// LabelArtist is the lead artist (TPE1)
	LabelArtist
	// LabelAlbum is the album (TALB); the upstream has no album concept
	LabelAlbum
	// LabelGenre is the genre (TCON)
	LabelGenre
)

// Labels returns every label in canonical order.
func Labels() []Label {
	return []Label{LabelTitle, LabelArtist, LabelAlbum, LabelGenre}
}

func (l Label) String() string {
	switch l {
	case LabelTitle:
		return "Title"
	case LabelArtist:
		return "Artist"
	case LabelAlbum:
		return "Album"
	case LabelGenre:
		return "Genre"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// ParseLabel maps a case-insensitive label name to a Label.
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels() {
		if strings.EqualFold(strings.TrimSpace(s), l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown metadata field %q", s)
}

// Field is a single (label, value) pair. An empty value applies no override.
type Field struct {
	Label Label
	Value string
}

// Metadata is the record embedded into the audio file.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Cover  []byte
}

// Value returns the value stored for label.
func (m Metadata) Value(label Label) string {
	switch label {
	case LabelTitle:
		return m.Title
	case LabelArtist:
		return m.Artist
	case LabelAlbum:
		return m.Album
	case LabelGenre:
		return m.Genre
	default:
		return ""
	}
}

// Fields returns exactly one field per label in canonical order.
func (m Metadata) Fields() []Field {
	labels := Labels()
	fields := make([]Field, 0, len(labels))
	for _, l := range labels {
		fields = append(fields, Field{Label: l, Value: m.Value(l)})
	}
	return fields
}

func (m *Metadata) set(label Label, value string) {
	switch label {
	case LabelTitle:
		m.Title = value
	case LabelArtist:
		m.Artist = value
	case LabelAlbum:
		m.Album = value
	case LabelGenre:
		m.Genre = value
	}
}

// Assemble composes the metadata record from a resolved track and overrides.
// Overrides are applied in order, so the last non-empty value for a label wins.
func Assemble(track *TrackDescriptor, overrides []Field, cover []byte) Metadata {
	md := Metadata{
		Title:  track.Title,
		Artist: track.User.Username,
		Album:  "",
		Genre:  track.Genre,
		Cover:  cover,
	}

	for _, o := range overrides {
		if o.Value == "" {
			continue
		}
		md.set(o.Label, o.Value)
	}

	return md
}
