// Package collector runs one collection pass: fetch posts for every
// configured target, filter them, resolve and download their media, and
// record everything in the store. A run is a pure function from (config,
// store) to a Stats summary; all processing is strictly sequential.
package collector

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/richardnixondev/reddit-image-collect/config"
	"github.com/richardnixondev/reddit-image-collect/download"
	"github.com/richardnixondev/reddit-image-collect/filter"
	"github.com/richardnixondev/reddit-image-collect/media"
	"github.com/richardnixondev/reddit-image-collect/reddit"
	"github.com/richardnixondev/reddit-image-collect/sidecar"
	"github.com/richardnixondev/reddit-image-collect/store"
)

const (
	originSubreddit = "subreddit"
	originUser      = "user"
)

type Runner struct {
	cfg         config.Config
	store       *store.Store
	client      *reddit.Client
	resolver    *media.Resolver
	downloader  *download.Downloader
	postFilter  filter.PostFilter
	mediaFilter filter.MediaFilter
}

func New(cfg config.Config, st *store.Store) *Runner {
	r := &Runner{
		cfg:        cfg,
		store:      st,
		client:     reddit.NewClient(cfg.RateLimit),
		resolver:   media.NewResolver(),
		downloader: download.NewDownloader(cfg),
		postFilter: filter.NewPostFilter(cfg),
	}
	r.mediaFilter = filter.NewMediaFilter(cfg, r.favoriteAuthors)
	return r
}

// WithClient replaces the listing client. Used by tests.
func (r *Runner) WithClient(c *reddit.Client) *Runner {
	r.client = c
	return r
}

// WithResolver replaces the media resolver. Used by tests.
func (r *Runner) WithResolver(res *media.Resolver) *Runner {
	r.resolver = res
	return r
}

// favoriteAuthors is the live lookup behind videos_only_from_favorites.
func (r *Runner) favoriteAuthors() map[string]bool {
	authors, err := r.store.FavoriteAuthors()
	if err != nil {
		log.Err(err).Msg("favorite author lookup failed")
		return map[string]bool{}
	}
	return authors
}

// Run processes all subreddit targets, then all user targets. A target's
// listing error aborts that target only; the run continues. Cancellation
// via ctx stops between items.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for _, target := range r.cfg.Targets.Subreddits {
		log.Info().Str("subreddit", target.Name).Int("limit", target.Limit).
			Str("sort", target.Sort).Msg("processing subreddit")
		r.drain(ctx, &stats, r.client.SubredditPosts(ctx, target), originSubreddit, "r/"+target.Name)
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
	}

	for _, target := range r.cfg.Targets.Users {
		log.Info().Str("user", target.Name).Int("limit", target.Limit).Msg("processing user")
		r.drain(ctx, &stats, r.client.UserPosts(ctx, target), originUser, "u/"+target.Name)
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
	}

	return stats, nil
}

func (r *Runner) drain(ctx context.Context, stats *Stats, posts <-chan reddit.Result, origin, label string) {
	for result := range posts {
		if result.Err != nil {
			log.Err(result.Err).Str("target", label).Msg("listing fetch failed, skipping target")
			stats.Errors++
			return
		}
		r.processPost(ctx, stats, result.Post, origin)
		if ctx.Err() != nil {
			return
		}
	}
}

// processPost runs one post through the pipeline: post filters, media
// resolution, per-item id dedup, media filters, download, hash dedup,
// sidecar. Failures of one item never block its siblings.
func (r *Runner) processPost(ctx context.Context, stats *Stats, post reddit.Post, origin string) {
	stats.Processed++

	if ok, reason := r.postFilter.Check(&post); !ok {
		stats.countRejection(reason)
		log.Debug().Str("post", post.ID).Str("reason", string(reason)).Msg("skipping post")
		return
	}

	items := r.resolver.Resolve(&post)
	if len(items) == 0 {
		stats.SkippedNoMedia++
		log.Debug().Str("post", post.ID).Msg("no media found")
		return
	}

	for idx, item := range items {
		itemID := post.ID
		galleryIndex := 0
		if len(items) > 1 {
			galleryIndex = idx + 1
			itemID = fmt.Sprintf("%s_%d", post.ID, galleryIndex)
		}
		r.processItem(ctx, stats, &post, item, itemID, galleryIndex, origin)
	}
}

func (r *Runner) processItem(ctx context.Context, stats *Stats, post *reddit.Post, item media.Item, itemID string, galleryIndex int, origin string) {
	exists, err := r.store.PostExists(itemID)
	if err != nil {
		stats.Errors++
		log.Err(err).Str("item", itemID).Msg("store lookup failed")
		return
	}
	if exists {
		stats.SkippedExists++
		log.Debug().Str("item", itemID).Msg("already in database")
		return
	}

	if ok, reason := r.mediaFilter.Check(post, item); !ok {
		stats.countRejection(reason)
		log.Debug().Str("item", itemID).Str("reason", string(reason)).Msg("skipping item")
		return
	}

	// Extraction runs a subprocess, so it waits until the id-dedup and
	// filter checks have passed.
	item, err = r.resolver.Extract(ctx, item)
	if err != nil {
		stats.SkippedNoMedia++
		log.Debug().Str("item", itemID).Msg("no media found")
		return
	}

	rec := store.PostRecord{
		ID:         itemID,
		Subreddit:  post.Subreddit,
		Author:     post.Author,
		Title:      post.Title,
		URL:        post.URL,
		MediaURL:   item.URL,
		MediaType:  string(item.Kind),
		Score:      post.Score,
		CreatedUTC: post.CreatedUTC,
		Permalink:  post.Permalink,
		Origin:     origin,
		Flair:      post.Flair(),
	}
	if err := r.store.AddPost(rec); err != nil {
		stats.Errors++
		log.Err(err).Str("item", itemID).Msg("store write failed")
		return
	}

	path, sum, err := r.downloader.Download(item.URL, download.Meta{
		PostID:       post.ID,
		Subreddit:    post.Subreddit,
		Author:       post.Author,
		CreatedUTC:   post.CreatedUTC,
		GalleryIndex: galleryIndex,
	})
	if err != nil {
		stats.Errors++
		log.Err(err).Str("item", itemID).Str("url", item.URL).Msg("download failed")
		return
	}

	// Byte-identical content already on disk under another record: drop
	// the new file, first record stays canonical.
	if existing, found, err := r.store.HashExists(sum); err != nil {
		stats.Errors++
		log.Err(err).Str("item", itemID).Msg("hash lookup failed")
		return
	} else if found {
		os.Remove(path)
		stats.SkippedExists++
		log.Info().Str("item", itemID).Str("existing", existing).Msg("duplicate content, keeping existing")
		return
	}

	if err := r.store.MarkDownloaded(itemID, path, sum); err != nil {
		stats.Errors++
		log.Err(err).Str("item", itemID).Msg("store update failed")
		return
	}

	if r.cfg.Download.GenerateSidecar {
		if _, err := sidecar.Write(path, sidecar.Meta{
			Subreddit:  post.Subreddit,
			Author:     post.Author,
			Title:      post.Title,
			Score:      post.Score,
			CreatedUTC: post.CreatedUTC,
			MediaType:  string(item.Kind),
			Permalink:  post.Permalink,
			Flair:      post.Flair(),
			Origin:     origin,
		}); err != nil {
			log.Err(err).Str("item", itemID).Msg("sidecar write failed")
		}
	}

	stats.Downloaded++
	log.Info().Str("item", itemID).Str("subreddit", post.Subreddit).
		Str("type", string(item.Kind)).Msg("downloaded")
}
