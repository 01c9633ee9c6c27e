package media

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardnixondev/reddit-image-collect/reddit"
)

type stubExtractor struct {
	url string
	err error
}

func (s stubExtractor) Extract(ctx context.Context, u string) (string, error) {
	return s.url, s.err
}

func TestResolveDirectImage(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	items := r.Resolve(&reddit.Post{URL: "https://i.redd.it/abc.PNG"})

	require.Len(t, items, 1)
	assert.Equal(t, "https://i.redd.it/abc.PNG", items[0].URL)
	assert.Equal(t, KindImage, items[0].Kind)
}

func TestResolveGIF(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	items := r.Resolve(&reddit.Post{URL: "https://example.com/anim.gif"})

	require.Len(t, items, 1)
	assert.Equal(t, KindGIF, items[0].Kind)
}

func TestResolveGallery(t *testing.T) {
	t.Parallel()

	var post reddit.Post
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "gal1",
		"is_gallery": true,
		"media_metadata": {
			"first": {"status": "valid", "e": "Image", "s": {"u": "https://preview.redd.it/first.jpg?width=640&amp;s=abc"}},
			"second": {"status": "failed", "e": "Image", "s": {}},
			"third": {"status": "valid", "e": "Image", "s": {"u": "https://preview.redd.it/third.jpg"}}
		}
	}`), &post))

	r := NewResolver()
	items := r.Resolve(&post)

	require.Len(t, items, 2)
	assert.Equal(t, "https://preview.redd.it/first.jpg?width=640&s=abc", items[0].URL)
	assert.Equal(t, "https://preview.redd.it/third.jpg", items[1].URL)
}

func TestResolveImgur(t *testing.T) {
	t.Parallel()

	r := NewResolver()

	items := r.Resolve(&reddit.Post{URL: "https://i.imgur.com/abc.gifv"})
	require.Len(t, items, 1)
	assert.Equal(t, "https://i.imgur.com/abc.mp4", items[0].URL)
	assert.Equal(t, KindVideo, items[0].Kind)

	// Bare share link resolves to the direct CDN URL.
	items = r.Resolve(&reddit.Post{URL: "https://imgur.com/abc123"})
	require.Len(t, items, 1)
	assert.Equal(t, "https://imgur.com/abc123.jpg", items[0].URL)

	// Albums are unsupported and the post has no preview.
	items = r.Resolve(&reddit.Post{URL: "https://imgur.com/a/abc123"})
	assert.Empty(t, items)
}

func TestResolveTagsExtractionHosts(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	for _, u := range []string{"https://v.redd.it/xyz", "https://gfycat.com/xyz", "https://redgifs.com/watch/xyz"} {
		items := r.Resolve(&reddit.Post{URL: u})
		require.Len(t, items, 1, "url %s", u)
		assert.Equal(t, u, items[0].URL, "resolution must not contact the host")
		assert.Equal(t, KindVideo, items[0].Kind)
		assert.True(t, items[0].NeedsExtraction)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	r := NewResolver().WithExtractor(stubExtractor{url: "https://cdn.example.com/video.mp4"})

	item, err := r.Extract(context.Background(), Item{URL: "https://v.redd.it/xyz", Kind: KindVideo, NeedsExtraction: true})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/video.mp4", item.URL)
	assert.Equal(t, KindVideo, item.Kind)
	assert.False(t, item.NeedsExtraction)

	// Items that need no extraction pass through untouched.
	direct := Item{URL: "https://i.redd.it/a.jpg", Kind: KindImage}
	item, err = r.Extract(context.Background(), direct)
	require.NoError(t, err)
	assert.Equal(t, direct, item)
}

func TestExtractFailure(t *testing.T) {
	t.Parallel()

	r := NewResolver().WithExtractor(stubExtractor{err: errors.New("boom")})
	_, err := r.Extract(context.Background(), Item{URL: "https://redgifs.com/watch/xyz", Kind: KindVideo, NeedsExtraction: true})
	assert.Error(t, err)
}

func TestResolvePreviewFallback(t *testing.T) {
	t.Parallel()

	post := reddit.Post{
		URL: "https://example.com/some-article",
		Preview: &reddit.Preview{Images: []reddit.PreviewImage{
			{Source: reddit.PreviewSource{URL: "https://preview.redd.it/img.jpg?s=1&amp;q=2"}},
		}},
	}

	r := NewResolver()
	items := r.Resolve(&post)

	require.Len(t, items, 1)
	assert.Equal(t, "https://preview.redd.it/img.jpg?s=1&q=2", items[0].URL)
}

func TestResolveNoMedia(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	assert.Empty(t, r.Resolve(&reddit.Post{URL: "https://example.com/article"}))
}
