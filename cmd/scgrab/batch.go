package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"scgrab/internal/core"
	"scgrab/internal/soundcloud"
	"scgrab/pkg/text"
)

// trackDownloader is the part of core.Downloader the CLI drives.
type trackDownloader interface {
	DownloadTrack(ctx context.Context, sourceURL string, overrides []core.Field) (*core.Result, error)
}

type batchSummary struct {
	downloaded int
	skipped    int
	failed     int
}

// collectURLs merges the positional arguments with the links found in the input file.
// Links from the input file are extracted from free text, so any document that
// mentions track links can be passed. Order is preserved and repeats are dropped.
func collectURLs(args []string, input string, stdin io.Reader) ([]string, error) {
	urls := make([]string, 0, len(args))
	seen := make(map[string]bool)
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, arg := range args {
		add(arg)
	}

	if input == "" {
		return urls, nil
	}

	var data []byte
	var err error
	if input == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", input, err)
	}

	for _, u := range text.NewParser().ExtractTrackURLs(string(data)) {
		add(u)
	}

	return urls, nil
}

// runBatch downloads urls one after another. A failed track never stops the batch.
func runBatch(
	ctx context.Context,
	downloader trackDownloader,
	urls []string,
	overrides []core.Field,
	con *console,
) batchSummary {
	var summary batchSummary

	for _, u := range urls {
		if ctx.Err() != nil {
			summary.failed++
			continue
		}

		if !soundcloud.CanResolve(u) {
			_, _ = con.fail.Fprintln(con.out, "❌ "+con.loc.T("error.invalid_url", u))
			summary.failed++
			continue
		}

		result, err := downloader.DownloadTrack(ctx, u, overrides)
		switch {
		case err == nil:
			con.downloaded(result)
			summary.downloaded++
		case errors.Is(err, core.ErrDuplicate):
			con.duplicate(u)
			summary.skipped++
		default:
			logger.Debug("Track failed", zap.String("source_url", u), zap.Error(err))
			con.failed(u, err)
			summary.failed++
		}
	}

	return summary
}

// runInteractive asks for a track and a directory, downloads it, and repeats while
// the user wants another one.
func runInteractive(
	ctx context.Context,
	downloader trackDownloader,
	p *prompter,
	download *core.DownloadConfig,
	overrides []core.Field,
	con *console,
) error {
	var summary batchSummary

	for {
		sourceURL, err := p.askURL()
		if err != nil {
			return err
		}

		dir, err := p.askDirectory(download.Dir)
		if err != nil {
			return err
		}
		download.Dir = dir

		s := runBatch(ctx, downloader, []string{sourceURL}, overrides, con)
		summary.downloaded += s.downloaded
		summary.skipped += s.skipped
		summary.failed += s.failed

		if ctx.Err() != nil {
			break
		}
		another, err := p.askAnother()
		if err != nil {
			return err
		}
		if !another {
			break
		}
	}

	con.summary(summary)
	if summary.failed > 0 {
		return errDownloadsFailed
	}
	return nil
}
