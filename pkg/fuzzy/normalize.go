// Package fuzzy normalizes artist and track names into comparable keys.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(?:feat|ft|featuring)\b\.?\s+[^\)\]]*[\)\]]?\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s&]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeArtist folds case, accents and punctuation and unifies common joiners.
func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.basicNormalize(artist)

	artist = strings.ReplaceAll(artist, " and ", " & ")
	artist = whitespaceRegex.ReplaceAllString(artist, " ")

	return strings.TrimSpace(artist)
}

// NormalizeTitle folds a title and drops featuring credits. Remix and version
// suffixes are kept since they name a different recording.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = n.basicNormalize(title)
	return strings.TrimSpace(title)
}

// Key builds the comparison key for an artist/title pair.
func (n *Normalizer) Key(artist, title string) string {
	return n.NormalizeArtist(artist) + " - " + n.NormalizeTitle(title)
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.ToLower(text)
	text = strings.TrimSpace(text)

	return text
}
