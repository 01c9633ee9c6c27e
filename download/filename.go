package download

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	maxSubredditLen = 30
	maxAuthorLen    = 20
)

// Meta carries the post fields the engine needs for naming.
type Meta struct {
	PostID       string
	Subreddit    string
	Author       string
	CreatedUTC   float64
	GalleryIndex int // 1-based for gallery items, 0 otherwise
}

// FlatFilename builds the single-folder descriptive name:
// {subreddit}_{author}_{YYYYMMDD_HHMMSS}_{post_id}[_{index}]{ext}.
// Components are reduced to [A-Za-z0-9_-] and length-capped; a blank or
// placeholder author becomes "unknown". The timestamp is UTC.
func FlatFilename(m Meta, ext string) string {
	ts := time.Unix(int64(m.CreatedUTC), 0).UTC().Format("20060102_150405")

	sub := truncate(sanitizeComponent(m.Subreddit), maxSubredditLen)
	author := truncate(sanitizeComponent(m.Author), maxAuthorLen)
	if author == "" || author == "deleted" || author == "AutoModerator" {
		author = "unknown"
	}

	name := fmt.Sprintf("%s_%s_%s_%s", sub, author, ts, m.PostID)
	if m.GalleryIndex > 0 {
		name += "_" + strconv.Itoa(m.GalleryIndex)
	}
	return name + ext
}

// LegacyFilename builds the per-subreddit-folder name: {post_id}[_{index}]{ext}.
func LegacyFilename(m Meta, ext string) string {
	name := m.PostID
	if m.GalleryIndex > 0 {
		name += "_" + strconv.Itoa(m.GalleryIndex)
	}
	return name + ext
}

// sanitizeComponent drops every rune outside [A-Za-z0-9_-].
func sanitizeComponent(name string) string {
	var b strings.Builder
	for _, r := range name {
		if isNameRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeDirName keeps [A-Za-z0-9_-] and replaces everything else with an
// underscore. Used for the legacy per-subreddit directory.
func SanitizeDirName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if isNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
