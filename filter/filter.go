// Package filter holds the post-level and media-level accept/reject
// predicates. Everything here is a pure function over the post, the
// resolved item and the loaded configuration; no state is mutated.
package filter

import (
	"strings"

	"github.com/richardnixondev/reddit-image-collect/config"
	"github.com/richardnixondev/reddit-image-collect/media"
	"github.com/richardnixondev/reddit-image-collect/reddit"
)

// Reason tags a rejection for the run statistics.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonNSFW      Reason = "nsfw"
	ReasonScore     Reason = "score"
	ReasonBlacklist Reason = "blacklist"
	ReasonMediaType Reason = "media_type"
	ReasonDomain    Reason = "domain"
	ReasonFavorites Reason = "favorites_only"
)

// PostFilter rejects posts before any media resolution is attempted.
type PostFilter struct {
	SkipNSFW  bool
	MinScore  int
	Blacklist config.Blacklist
}

func NewPostFilter(cfg config.Config) PostFilter {
	return PostFilter{
		SkipNSFW:  cfg.Download.SkipNSFW,
		MinScore:  cfg.Download.MinScore,
		Blacklist: cfg.Blacklist,
	}
}

// Check returns false with the rejection reason, or true with ReasonNone.
func (f PostFilter) Check(post *reddit.Post) (bool, Reason) {
	if f.SkipNSFW && post.Over18 {
		return false, ReasonNSFW
	}
	if post.Score < f.MinScore {
		return false, ReasonScore
	}
	if f.blacklisted(post) {
		return false, ReasonBlacklist
	}
	return true, ReasonNone
}

// blacklisted matches authors and subreddits exactly and title keywords as
// substrings, all case-insensitive. Blacklist entries are already
// lower-cased at config load.
func (f PostFilter) blacklisted(post *reddit.Post) bool {
	author := strings.ToLower(post.Author)
	for _, banned := range f.Blacklist.Authors {
		if author == banned {
			return true
		}
	}
	subreddit := strings.ToLower(post.Subreddit)
	for _, banned := range f.Blacklist.Subreddits {
		if subreddit == banned {
			return true
		}
	}
	title := strings.ToLower(post.Title)
	for _, keyword := range f.Blacklist.TitleKeywords {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}

// MediaFilter rejects individual resolved items. FavoriteAuthors is
// consulted live for every candidate video/gif so a favorite added
// mid-run takes effect immediately.
type MediaFilter struct {
	AllowedTypes            []string
	Domains                 []string
	VideosOnlyFromFavorites bool
	FavoriteAuthors         func() map[string]bool
}

func NewMediaFilter(cfg config.Config, favoriteAuthors func() map[string]bool) MediaFilter {
	return MediaFilter{
		AllowedTypes:            cfg.Download.MediaTypes,
		Domains:                 cfg.Blacklist.Domains,
		VideosOnlyFromFavorites: cfg.Download.VideosOnlyFromFavorites,
		FavoriteAuthors:         favoriteAuthors,
	}
}

func (f MediaFilter) Check(post *reddit.Post, item media.Item) (bool, Reason) {
	if !f.typeAllowed(item.Kind) {
		return false, ReasonMediaType
	}

	if f.VideosOnlyFromFavorites && (item.Kind == media.KindVideo || item.Kind == media.KindGIF) {
		favorites := map[string]bool{}
		if f.FavoriteAuthors != nil {
			favorites = f.FavoriteAuthors()
		}
		if !favorites[strings.ToLower(post.Author)] {
			return false, ReasonFavorites
		}
	}

	lower := strings.ToLower(item.URL)
	for _, domain := range f.Domains {
		if strings.Contains(lower, domain) {
			return false, ReasonDomain
		}
	}

	return true, ReasonNone
}

func (f MediaFilter) typeAllowed(kind media.Kind) bool {
	for _, allowed := range f.AllowedTypes {
		if string(kind) == allowed {
			return true
		}
	}
	return false
}
