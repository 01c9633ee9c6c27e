package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrExtractorUnavailable is returned when the yt-dlp binary cannot be
// found. Callers treat it the same as any extraction failure: the URL
// resolves to no media.
var ErrExtractorUnavailable = errors.New("yt-dlp not installed")

// Extractor obtains the true media URL for hosts that serve a player page
// instead of the file.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Replaceable for tests.
var (
	lookPath   = exec.LookPath
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).Output()
	}
)

// YtDlp shells out to the yt-dlp binary to resolve v.redd.it, gfycat and
// redgifs URLs.
type YtDlp struct{}

func (YtDlp) Extract(ctx context.Context, url string) (string, error) {
	bin, err := lookPath("yt-dlp")
	if err != nil {
		return "", ErrExtractorUnavailable
	}

	out, err := runCommand(ctx, bin,
		"--quiet", "--no-warnings",
		"--get-url",
		"-f", "best[ext=mp4]/best",
		url,
	)
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed for %s: %w", url, err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("yt-dlp returned no url for %s", url)
}
