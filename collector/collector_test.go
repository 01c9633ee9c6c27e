package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardnixondev/reddit-image-collect/config"
	"github.com/richardnixondev/reddit-image-collect/media"
	"github.com/richardnixondev/reddit-image-collect/reddit"
	"github.com/richardnixondev/reddit-image-collect/store"
)

// mediaServer serves distinct bytes per path so content hashes differ
// unless a test wants them identical.
func mediaServer(t *testing.T, content map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := content[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func listingServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/r/pics/hot.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testRunner(t *testing.T, cfg config.Config, st *store.Store, listingURL string) *Runner {
	t.Helper()
	base, err := url.Parse(listingURL)
	require.NoError(t, err)

	cfg.RateLimit.RequestsPerMinute = 6000
	client := reddit.NewClient(cfg.RateLimit).WithBaseURL(base)
	return New(cfg, st).WithClient(client)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Targets.Subreddits = []config.SubredditTarget{{Name: "pics", Limit: 10, Sort: "hot", TimeFilter: "all"}}
	cfg.Download.OutputDir = t.TempDir()
	cfg.RateLimit.DownloadDelaySeconds = 0
	return cfg
}

func TestRunDownloadsPostsAndGalleries(t *testing.T) {
	t.Parallel()

	mediaSrv := mediaServer(t, map[string]string{
		"/p1.png": "single image",
		"/g1.png": "gallery one",
		"/g2.png": "gallery two",
		"/g3.png": "gallery three",
	})

	page := fmt.Sprintf(`{"data": {"after": "", "children": [
		{"data": {"id": "p1", "subreddit": "pics", "author": "alice", "title": "single", "url": "%[1]s/p1.png", "score": 100}},
		{"data": {"id": "p2", "subreddit": "pics", "author": "bob", "title": "gallery", "url": "https://reddit.com/gallery/p2", "score": 100,
			"is_gallery": true,
			"media_metadata": {
				"m1": {"status": "valid", "e": "Image", "s": {"u": "%[1]s/g1.png"}},
				"m2": {"status": "valid", "e": "Image", "s": {"u": "%[1]s/g2.png"}},
				"m3": {"status": "valid", "e": "Image", "s": {"u": "%[1]s/g3.png"}}
			}}},
		{"data": {"id": "p3", "subreddit": "pics", "author": "carol", "title": "nsfw", "url": "%[1]s/p1.png", "score": 100, "over_18": true}},
		{"data": {"id": "p4", "subreddit": "pics", "author": "SpamUser", "title": "spam", "url": "%[1]s/p1.png", "score": 100}}
	]}}`, mediaSrv.URL)
	listing := listingServer(t, page)

	cfg := testConfig(t)
	cfg.Blacklist.Authors = []string{"spamuser"}

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	stats, err := testRunner(t, cfg, st, listing.URL).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 4, stats.Downloaded)
	assert.Equal(t, 1, stats.SkippedNSFW)
	assert.Equal(t, 1, stats.SkippedBlacklist)
	assert.Zero(t, stats.Errors)

	for _, id := range []string{"p1", "p2_1", "p2_2", "p2_3"} {
		rec, err := st.GetPost(id)
		require.NoError(t, err)
		require.NotNil(t, rec, "record %s", id)
		require.NotNil(t, rec.DownloadedAt, "record %s must be downloaded", id)
		assert.FileExists(t, rec.LocalPath)
		assert.FileExists(t, rec.LocalPath+".json", "sidecar for %s", id)
	}

	// Gallery filenames carry the 1-based index.
	rec, err := st.GetPost("p2_2")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rec.LocalPath, "_p2_2.png"), "got %s", rec.LocalPath)
}

func TestRunSkipsKnownItems(t *testing.T) {
	t.Parallel()

	mediaSrv := mediaServer(t, map[string]string{"/p1.png": "image bytes"})
	page := fmt.Sprintf(`{"data": {"after": "", "children": [
		{"data": {"id": "p1", "subreddit": "pics", "author": "alice", "title": "single", "url": "%s/p1.png", "score": 100}}
	]}}`, mediaSrv.URL)
	listing := listingServer(t, page)

	cfg := testConfig(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	stats, err := testRunner(t, cfg, st, listing.URL).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Downloaded)

	stats, err = testRunner(t, cfg, st, listing.URL).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Downloaded)
	assert.Equal(t, 1, stats.SkippedExists)
}

func TestRunRemovesDuplicateContent(t *testing.T) {
	t.Parallel()

	// Two different posts serving byte-identical content.
	mediaSrv := mediaServer(t, map[string]string{
		"/a.png": "same bytes",
		"/b.png": "same bytes",
	})
	page := fmt.Sprintf(`{"data": {"after": "", "children": [
		{"data": {"id": "p1", "subreddit": "pics", "author": "alice", "title": "one", "url": "%[1]s/a.png", "score": 100}},
		{"data": {"id": "p2", "subreddit": "pics", "author": "bob", "title": "two", "url": "%[1]s/b.png", "score": 100}}
	]}}`, mediaSrv.URL)
	listing := listingServer(t, page)

	cfg := testConfig(t)
	cfg.Download.GenerateSidecar = false

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	stats, err := testRunner(t, cfg, st, listing.URL).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 1, stats.SkippedExists)

	entries, err := os.ReadDir(cfg.Download.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the duplicate file must be removed")

	first, err := st.GetPost("p1")
	require.NoError(t, err)
	require.NotNil(t, first.DownloadedAt)

	second, err := st.GetPost("p2")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Nil(t, second.DownloadedAt, "the duplicate keeps its record but no download")
}

type countingExtractor struct {
	calls *int
	url   string
}

func (c countingExtractor) Extract(ctx context.Context, u string) (string, error) {
	*c.calls++
	return c.url, nil
}

func TestRunExtractsKnownItemsOnlyOnce(t *testing.T) {
	t.Parallel()

	mediaSrv := mediaServer(t, map[string]string{"/vid.mp4": "video bytes"})
	listing := listingServer(t, `{"data": {"after": "", "children": [
		{"data": {"id": "p1", "subreddit": "pics", "author": "alice", "title": "clip", "url": "https://v.redd.it/p1", "score": 100}}
	]}}`)

	cfg := testConfig(t)
	cfg.Download.GenerateSidecar = false

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	calls := 0
	resolver := media.NewResolver().WithExtractor(countingExtractor{calls: &calls, url: mediaSrv.URL + "/vid.mp4"})

	stats, err := testRunner(t, cfg, st, listing.URL).WithResolver(resolver).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 1, calls)

	// A second run skips the item by id before any extraction runs.
	stats, err = testRunner(t, cfg, st, listing.URL).WithResolver(resolver).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedExists)
	assert.Equal(t, 1, calls, "known items must not be re-extracted")
}

func TestRunListingErrorContinues(t *testing.T) {
	t.Parallel()

	mediaSrv := mediaServer(t, map[string]string{"/p1.png": "bytes"})
	mux := http.NewServeMux()
	mux.HandleFunc("/r/gone/hot.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/r/pics/hot.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": {"after": "", "children": [
			{"data": {"id": "p1", "subreddit": "pics", "author": "alice", "title": "t", "url": "%s/p1.png", "score": 100}}
		]}}`, mediaSrv.URL)
	})
	listing := httptest.NewServer(mux)
	t.Cleanup(listing.Close)

	cfg := testConfig(t)
	cfg.Targets.Subreddits = []config.SubredditTarget{
		{Name: "gone", Limit: 5, Sort: "hot", TimeFilter: "all"},
		{Name: "pics", Limit: 5, Sort: "hot", TimeFilter: "all"},
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	stats, err := testRunner(t, cfg, st, listing.URL).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors, "the failed target is an error, not a run failure")
	assert.Equal(t, 1, stats.Downloaded, "later targets still run")
}
