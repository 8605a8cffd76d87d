package tagger

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"scgrab/internal/core"
)

// fallbackCoverMIME is declared when the cover bytes are not a recognizable image.
// Artwork served by the upstream CDN is JPEG.
const fallbackCoverMIME = "image/jpeg"

// coverMIME picks the MIME type declared on the picture frame. An explicit configured
// value is used as is; "auto" or empty sniffs the bytes.
func coverMIME(cover []byte, configured string) string {
	configured = strings.TrimSpace(configured)
	if configured != "" && !strings.EqualFold(configured, core.CoverMIMEAuto) {
		return configured
	}

	detected := mimetype.Detect(cover).String()
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return fallbackCoverMIME
}
