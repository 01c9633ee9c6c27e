package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AuthorDeleted is substituted when a listing entry carries no author.
const AuthorDeleted = "[deleted]"

// listing mirrors the envelope reddit wraps every page in.
type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data Post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Post is one listing entry. Decoding is tolerant: any absent field keeps
// its zero value, the author is replaced with AuthorDeleted when empty,
// and the optional preview/gallery structures stay nil when missing.
type Post struct {
	ID            string           `json:"id"`
	Subreddit     string           `json:"subreddit"`
	Author        string           `json:"author"`
	Title         string           `json:"title"`
	URL           string           `json:"url"`
	Score         int              `json:"score"`
	CreatedUTC    float64          `json:"created_utc"`
	Over18        bool             `json:"over_18"`
	IsGallery     bool             `json:"is_gallery"`
	Preview       *Preview         `json:"preview"`
	MediaMetadata *GalleryMetadata `json:"media_metadata"`
	Permalink     string           `json:"permalink"`
	LinkFlairText string           `json:"link_flair_text"`
	FlairText     string           `json:"flair_text"`
}

func (p *Post) normalize() {
	if p.Author == "" {
		p.Author = AuthorDeleted
	}
}

// Flair returns the post flair, checking both fields reddit uses for it.
func (p *Post) Flair() string {
	if p.LinkFlairText != "" {
		return p.LinkFlairText
	}
	return p.FlairText
}

type Preview struct {
	Images []PreviewImage `json:"images"`
}

type PreviewImage struct {
	Source PreviewSource `json:"source"`
}

type PreviewSource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// GalleryItem is one entry of a gallery post's media_metadata map.
type GalleryItem struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Kind   string        `json:"e"`
	Source GallerySource `json:"s"`
}

type GallerySource struct {
	URL    string `json:"u"`
	Width  int    `json:"x"`
	Height int    `json:"y"`
}

// GalleryMetadata is the media_metadata object of a gallery post. The wire
// format is a JSON object keyed by media id; gallery order is the key
// order, which encoding/json maps discard, so decoding walks the object
// token by token and keeps the keys in document order.
type GalleryMetadata struct {
	order []string
	items map[string]GalleryItem
}

func (g *GalleryMetadata) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("media_metadata: expected object, got %v", tok)
	}

	g.items = make(map[string]GalleryItem)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("media_metadata: non-string key %v", keyTok)
		}
		var item GalleryItem
		if err := dec.Decode(&item); err != nil {
			return err
		}
		if item.ID == "" {
			item.ID = key
		}
		g.order = append(g.order, key)
		g.items[key] = item
	}
	_, err = dec.Token() // closing brace
	return err
}

// Items returns the gallery entries in document order.
func (g *GalleryMetadata) Items() []GalleryItem {
	if g == nil {
		return nil
	}
	items := make([]GalleryItem, 0, len(g.order))
	for _, key := range g.order {
		items = append(items, g.items[key])
	}
	return items
}

func (g *GalleryMetadata) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}
