// Package sidecar writes the per-asset JSON descriptor consumed by the
// Immich photo manager. The field names and value shapes are part of that
// consumer's contract; do not rename them.
package sidecar

import (
	"encoding/json"
	"os"
	"time"
	"unicode/utf8"
)

const maxDescriptionLen = 500

// Meta is everything the descriptor is derived from.
type Meta struct {
	Subreddit  string
	Author     string
	Title      string
	Score      int
	CreatedUTC float64
	MediaType  string
	Permalink  string
	Flair      string
	Origin     string // "subreddit" or "user"
}

type document struct {
	DateTimeOriginal string   `json:"dateTimeOriginal"`
	Description      string   `json:"description"`
	Albums           []string `json:"albums"`
	Tags             []string `json:"tags"`
	Rating           int      `json:"rating"`
	People           []string `json:"people,omitempty"`
	ExternalURL      string   `json:"externalUrl,omitempty"`
}

// Write creates {mediaPath}.json and returns its path.
func Write(mediaPath string, m Meta) (string, error) {
	doc := document{
		DateTimeOriginal: time.Unix(int64(m.CreatedUTC), 0).UTC().Format(time.RFC3339),
		Description:      truncate(m.Title, maxDescriptionLen),
		Albums:           []string{"r/" + m.Subreddit},
		Tags:             buildTags(m),
		Rating:           Rating(m.Score),
	}
	if realAuthor(m.Author) {
		doc.People = []string{m.Author}
	}
	if m.Permalink != "" {
		doc.ExternalURL = "https://reddit.com" + m.Permalink
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	path := mediaPath + ".json"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func buildTags(m Meta) []string {
	tags := []string{"reddit", m.Subreddit, m.MediaType}
	if m.Flair != "" {
		tags = append(tags, m.Flair)
	}
	if m.Origin != "" {
		tags = append(tags, "from_"+m.Origin)
	}
	return tags
}

// Rating maps the post score to the 1-5 star scale.
func Rating(score int) int {
	switch {
	case score >= 1000:
		return 5
	case score >= 200:
		return 4
	case score >= 50:
		return 3
	case score >= 10:
		return 2
	default:
		return 1
	}
}

// realAuthor excludes the deleted sentinel and known bot placeholders.
func realAuthor(author string) bool {
	return author != "" && author != "[deleted]" && author != "AutoModerator"
}

// truncate caps s at limit characters, not bytes, so a multi-byte title
// is never cut mid-rune.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
