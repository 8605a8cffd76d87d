// Package text provides filename sanitizing and SoundCloud link extraction from free text.
package text

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	urlRegex        = regexp.MustCompile(`https?://\S+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	soundCloudHosts = map[string]bool{
		"soundcloud.com":     true,
		"www.soundcloud.com": true,
		"m.soundcloud.com":   true,
		"on.soundcloud.com":  true,
	}

	trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "si", "ref"}
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ExtractTrackURLs returns the SoundCloud links found in text in order of appearance,
// with tracking parameters removed and duplicates dropped.
func (p *Parser) ExtractTrackURLs(text string) []string {
	text = p.normalizeText(text)

	var urls []string
	seen := make(map[string]bool)
	for _, match := range urlRegex.FindAllString(text, -1) {
		cleanURL := p.cleanURL(match)
		if cleanURL == "" || !IsSoundCloudURL(cleanURL) || seen[cleanURL] {
			continue
		}
		seen[cleanURL] = true
		urls = append(urls, cleanURL)
	}

	return urls
}

func (p *Parser) normalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func (p *Parser) cleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, ".,!?;)]>\"'")

	// Check if this looks like a valid URL
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if u.Host == "" {
		return ""
	}

	q := u.Query()
	for _, param := range trackingParams {
		q.Del(param)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String()
}

// IsSoundCloudURL reports whether rawURL is an http(s) link on a SoundCloud host
// with a non-empty path.
func IsSoundCloudURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if !soundCloudHosts[strings.ToLower(u.Hostname())] {
		return false
	}

	return strings.Trim(u.Path, "/") != ""
}
