package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"scgrab/internal/core"
	"scgrab/internal/i18n"
)

// console renders pipeline progress and results for a terminal user.
type console struct {
	out     io.Writer
	loc     *i18n.Localizer
	info    *color.Color
	success *color.Color
	warn    *color.Color
	fail    *color.Color
}

func newConsole(out io.Writer, loc *i18n.Localizer) *console {
	return &console{
		out:     out,
		loc:     loc,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
	}
}

// OnState prints the user-visible pipeline steps. Terminal and idle states are
// reported by the batch runner instead.
func (c *console) OnState(sourceURL string, state core.State) {
	var msg string
	switch state {
	case core.StateResolving:
		msg = c.loc.T("state.resolving", sourceURL)
	case core.StateFetchingCover:
		msg = c.loc.T("state.fetching_cover")
	case core.StateFetchingStream:
		msg = c.loc.T("state.fetching_stream")
	case core.StateTagging:
		msg = c.loc.T("state.tagging")
	default:
		return
	}
	_, _ = c.info.Fprintln(c.out, "  "+msg)
}

func (c *console) downloaded(result *core.Result) {
	track := c.loc.T("format.track", result.Metadata.Artist, result.Metadata.Title)
	if result.Metadata.Album != "" {
		track += c.loc.T("format.album", result.Metadata.Album)
	}
	_, _ = c.success.Fprintln(c.out, "✅ "+c.loc.T("success.downloaded", track, result.Path))
}

func (c *console) duplicate(sourceURL string) {
	_, _ = c.warn.Fprintln(c.out, "⏭️  "+c.loc.T("success.duplicate", sourceURL))
}

func (c *console) failed(sourceURL string, err error) {
	_, _ = c.fail.Fprintln(c.out, "❌ "+errorMessage(c.loc, sourceURL, err))
}

func (c *console) summary(s batchSummary) {
	_, _ = fmt.Fprintln(c.out, c.loc.T("success.summary", s.downloaded, s.skipped, s.failed))
}

// errorMessage turns a pipeline error into a localized hint for the user.
func errorMessage(loc *i18n.Localizer, sourceURL string, err error) string {
	var de *core.DownloadError
	url := sourceURL
	if errors.As(err, &de) && de.URL != "" {
		url = de.URL
	}

	switch {
	case errors.Is(err, core.ErrNotATrack):
		return loc.T("error.not_a_track", url)
	case core.IsSelectionError(err):
		return loc.T("error.selection", err)
	}

	switch core.KindOf(err) {
	case core.KindNotFound:
		return loc.T("error.not_found", url)
	case core.KindForbidden:
		return loc.T("error.forbidden", url)
	case core.KindTransport:
		return loc.T("error.transport", unwrapDetail(de))
	case core.KindIO:
		return loc.T("error.io", unwrapDetail(de))
	default:
		return loc.T("error.generic", err)
	}
}

func unwrapDetail(de *core.DownloadError) error {
	if de.Err != nil {
		return de.Err
	}
	return de
}
