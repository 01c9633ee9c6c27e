// Package download retrieves media bytes over HTTP with size limits,
// retry with backoff, streaming hash computation and deterministic file
// naming.
package download

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/richardnixondev/reddit-image-collect/config"
)

const (
	requestTimeout = 30 * time.Second
	chunkSize      = 8192
	maxAttempts    = 3

	userAgent = "Mozilla/5.0 (compatible; reddit-image-collect/1.0)"
)

// ErrTooLarge marks a download rejected by the size cap. It is not
// retried: the size will not change on a second attempt.
var ErrTooLarge = errors.New("file exceeds maximum size")

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// Downloader fetches one media URL at a time, throttled by a fixed
// inter-download delay independent of the listing client's rate limiter.
type Downloader struct {
	client    *http.Client
	outputDir string
	maxSize   int64
	delay     time.Duration
	flat      bool
	sleep     func(time.Duration)
}

func NewDownloader(cfg config.Config) *Downloader {
	return &Downloader{
		client:    &http.Client{Timeout: requestTimeout},
		outputDir: cfg.Download.OutputDir,
		maxSize:   int64(cfg.Download.MaxFileSizeMB) * 1024 * 1024,
		delay:     time.Duration(cfg.RateLimit.DownloadDelaySeconds * float64(time.Second)),
		flat:      cfg.Download.FlatStructure,
		sleep:     time.Sleep,
	}
}

// Download fetches rawURL to disk and returns the local path and the MD5
// hex digest of the written bytes. Transport failures are retried up to
// maxAttempts with exponential backoff; the last error is returned after
// the attempts are exhausted.
func (d *Downloader) Download(rawURL string, m Meta) (string, string, error) {
	d.sleep(d.delay)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			log.Warn().
				Err(lastErr).
				Int("attempt", attempt+1).
				Dur("backoff", wait).
				Str("url", rawURL).
				Msg("retrying download")
			d.sleep(wait)
		}

		path, sum, err := d.fetch(rawURL, m)
		if err == nil {
			return path, sum, nil
		}
		lastErr = err
		if errors.Is(err, ErrTooLarge) {
			break
		}
	}
	return "", "", lastErr
}

func (d *Downloader) fetch(rawURL string, m Meta) (string, string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*,video/*,*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("unexpected status %s for %s", resp.Status, rawURL)
	}

	// Declared-length violation: reject before any bytes hit the disk.
	if resp.ContentLength > 0 && resp.ContentLength > d.maxSize {
		return "", "", fmt.Errorf("%w: %.1fMB declared", ErrTooLarge,
			float64(resp.ContentLength)/1024/1024)
	}

	ext := extensionFor(rawURL, resp.Header.Get("Content-Type"))
	path, err := d.localPath(m, ext)
	if err != nil {
		return "", "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", "", err
	}

	hasher := md5.New()
	if err := copyCapped(file, resp.Body, hasher, d.maxSize); err != nil {
		file.Close()
		os.Remove(path)
		return "", "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", "", err
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	log.Debug().Str("url", rawURL).Str("path", path).Str("hash", sum[:8]).Msg("downloaded")
	return path, sum, nil
}

// copyCapped streams body to file in fixed-size chunks, feeding the hasher
// and aborting once the running total exceeds maxSize. Guards against a
// source that omits or understates Content-Length.
func copyCapped(file *os.File, body io.Reader, hasher hash.Hash, maxSize int64) error {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxSize {
				return fmt.Errorf("%w: exceeded cap mid-stream", ErrTooLarge)
			}
			if _, werr := file.Write(buf[:n]); werr != nil {
				return werr
			}
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (d *Downloader) localPath(m Meta, ext string) (string, error) {
	if d.flat {
		if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(d.outputDir, FlatFilename(m, ext)), nil
	}

	dir := filepath.Join(d.outputDir, SanitizeDirName(m.Subreddit))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, LegacyFilename(m, ext)), nil
}

// extensionFor picks the file extension from the declared content type
// first, then the URL path suffix, then a generic mime guess, defaulting
// to .jpg.
func extensionFor(rawURL, contentType string) string {
	ct := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if ext, ok := mimeExtensions[ct]; ok {
		return ext
	}

	if u, err := url.Parse(rawURL); err == nil {
		path := strings.ToLower(u.Path)
		for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4", ".webm"} {
			if strings.HasSuffix(path, ext) {
				if ext == ".jpeg" {
					return ".jpg"
				}
				return ext
			}
		}
	}

	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".jpg"
}
