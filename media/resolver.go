package media

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/richardnixondev/reddit-image-collect/reddit"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Resolver expands a post into zero or more media items. Video hosts that
// hide the real media URL behind a player page go through the Extractor;
// when extraction fails (or the extractor binary is absent) the post is
// treated as having no media rather than failing the run.
type Resolver struct {
	extractor Extractor
}

func NewResolver() *Resolver {
	return &Resolver{extractor: YtDlp{}}
}

// WithExtractor swaps the secondary extractor. Used by tests.
func (r *Resolver) WithExtractor(e Extractor) *Resolver {
	r.extractor = e
	return r
}

// Resolve applies the host rules in precedence order and returns the
// media items for the post. An empty result means the post has no
// downloadable content and is skipped by the caller. Extraction hosts are
// only tagged here, never contacted; callers run Extract after their own
// dedup checks so known items cost no subprocess.
func (r *Resolver) Resolve(post *reddit.Post) []Item {
	if post.IsGallery {
		return galleryItems(post)
	}

	lower := strings.ToLower(post.URL)

	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return []Item{{URL: post.URL, Kind: KindImage}}
		}
	}

	if strings.HasSuffix(lower, ".gif") {
		return []Item{{URL: post.URL, Kind: KindGIF}}
	}

	if strings.Contains(lower, "i.redd.it") {
		return []Item{{URL: post.URL, Kind: KindImage}}
	}

	if strings.Contains(lower, "v.redd.it") {
		return []Item{{URL: post.URL, Kind: KindVideo, NeedsExtraction: true}}
	}

	if strings.Contains(lower, "i.imgur.com") {
		if strings.Contains(lower, ".gifv") {
			return []Item{{URL: strings.ReplaceAll(post.URL, ".gifv", ".mp4"), Kind: KindVideo}}
		}
		return []Item{{URL: post.URL, Kind: KindImage}}
	}

	if strings.Contains(lower, "imgur.com") {
		// Albums and galleries are not supported; fall through to the
		// preview fallback for those.
		if !strings.Contains(lower, "/a/") && !strings.Contains(lower, "/gallery/") {
			if hasMediaSuffix(lower) {
				return []Item{{URL: post.URL, Kind: KindImage}}
			}
			// Bare share link: the direct CDN URL is the id plus .jpg.
			return []Item{{URL: post.URL + ".jpg", Kind: KindImage}}
		}
	}

	if strings.Contains(lower, "gfycat.com") || strings.Contains(lower, "redgifs.com") {
		return []Item{{URL: post.URL, Kind: KindVideo, NeedsExtraction: true}}
	}

	if post.Preview != nil && len(post.Preview.Images) > 0 {
		source := post.Preview.Images[0].Source.URL
		if source != "" {
			return []Item{{URL: unescape(source), Kind: KindImage}}
		}
	}

	return nil
}

// Extract turns a tagged item into its downloadable form by running the
// secondary extractor against the player page. Items that need no
// extraction pass through unchanged. An error means the item has no
// downloadable content.
func (r *Resolver) Extract(ctx context.Context, item Item) (Item, error) {
	if !item.NeedsExtraction {
		return item, nil
	}
	resolved, err := r.extractor.Extract(ctx, item.URL)
	if err != nil {
		log.Debug().Err(err).Str("url", item.URL).Msg("media extraction failed")
		return Item{}, err
	}
	return Item{URL: resolved, Kind: item.Kind}, nil
}

func galleryItems(post *reddit.Post) []Item {
	var items []Item
	for _, entry := range post.MediaMetadata.Items() {
		if entry.Status != "valid" || entry.Kind != "Image" {
			continue
		}
		if entry.Source.URL == "" {
			continue
		}
		items = append(items, Item{URL: unescape(entry.Source.URL), Kind: KindImage})
	}
	return items
}

func hasMediaSuffix(lower string) bool {
	for _, ext := range []string{".jpg", ".png", ".gif", ".mp4"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func unescape(u string) string {
	return strings.ReplaceAll(u, "&amp;", "&")
}
