// Package media maps a post's outbound URL to downloadable media items.
package media

// Kind classifies a downloadable item. The values match the media_types
// entries of the configuration and the media_type column of the store.
type Kind string

const (
	KindImage Kind = "image"
	KindGIF   Kind = "gif"
	KindVideo Kind = "video"
)

// Item is one downloadable media URL resolved from a post. A gallery post
// yields one Item per valid image entry, in gallery order; any other post
// yields at most one. When NeedsExtraction is set, URL is still the host's
// player page and the downloadable URL must be obtained through
// Resolver.Extract first.
type Item struct {
	URL             string
	Kind            Kind
	NeedsExtraction bool
}
