package core

import (
	"fmt"
	"strings"
)

// Selector picks exactly one transcoding from a resolved list.
type Selector func(transcodings []Transcoding) (Transcoding, error)

// IndexSelector picks the transcoding at a fixed ordinal of the upstream ordering.
func IndexSelector(index int) Selector {
	return func(transcodings []Transcoding) (Transcoding, error) {
		if index < 0 || index >= len(transcodings) {
			return Transcoding{}, &SelectionError{Index: index, Available: len(transcodings)}
		}
		return transcodings[index], nil
	}
}

// ProtocolSelector picks the first transcoding whose protocol matches and, when mimePrefix
// is set, whose MIME type starts with it (e.g. "audio/mpeg").
func ProtocolSelector(protocol, mimePrefix string) Selector {
	return func(transcodings []Transcoding) (Transcoding, error) {
		for _, t := range transcodings {
			if !strings.EqualFold(t.Format.Protocol, protocol) {
				continue
			}
			if mimePrefix != "" && !strings.HasPrefix(strings.ToLower(t.Format.MimeType), strings.ToLower(mimePrefix)) {
				continue
			}
			return t, nil
		}

		reason := fmt.Sprintf("no %s transcoding", protocol)
		if mimePrefix != "" {
			reason = fmt.Sprintf("no %s transcoding with mime type %s", protocol, mimePrefix)
		}
		return Transcoding{}, &SelectionError{Index: -1, Available: len(transcodings), Reason: reason}
	}
}
