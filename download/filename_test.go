package download

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatFilename(t *testing.T) {
	t.Parallel()

	m := Meta{
		PostID:     "abc123",
		Subreddit:  "EarthPorn",
		Author:     "some_user",
		CreatedUTC: 1700000000, // 2023-11-14 22:13:20 UTC
	}
	assert.Equal(t, "EarthPorn_some_user_20231114_221320_abc123.jpg", FlatFilename(m, ".jpg"))

	m.GalleryIndex = 2
	assert.Equal(t, "EarthPorn_some_user_20231114_221320_abc123_2.jpg", FlatFilename(m, ".jpg"))
}

func TestFlatFilenameSanitizes(t *testing.T) {
	t.Parallel()

	m := Meta{
		PostID:     "x1",
		Subreddit:  "pics & stuff!",
		Author:     "we/ird:user",
		CreatedUTC: 1700000000,
	}
	got := FlatFilename(m, ".png")
	assert.Equal(t, "picsstuff_weirduser_20231114_221320_x1.png", got)
}

func TestFlatFilenameCapsComponents(t *testing.T) {
	t.Parallel()

	m := Meta{
		PostID:     "x1",
		Subreddit:  strings.Repeat("s", 40),
		Author:     strings.Repeat("a", 25),
		CreatedUTC: 1700000000,
	}
	got := FlatFilename(m, ".jpg")
	assert.True(t, strings.HasPrefix(got, strings.Repeat("s", 30)+"_"+strings.Repeat("a", 20)+"_"))
}

func TestFlatFilenameUnknownAuthor(t *testing.T) {
	t.Parallel()

	for _, author := range []string{"", "[deleted]", "AutoModerator"} {
		m := Meta{PostID: "x1", Subreddit: "pics", Author: author, CreatedUTC: 1700000000}
		assert.Equal(t, "pics_unknown_20231114_221320_x1.jpg", FlatFilename(m, ".jpg"), "author %q", author)
	}
}

func TestLegacyFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc123.jpg", LegacyFilename(Meta{PostID: "abc123"}, ".jpg"))
	assert.Equal(t, "abc123_3.jpg", LegacyFilename(Meta{PostID: "abc123", GalleryIndex: 3}, ".jpg"))
}

func TestSanitizeDirName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pics___stuff_", SanitizeDirName("pics & stuff!"))
	assert.Equal(t, "Earth-Porn_2", SanitizeDirName("Earth-Porn_2"))
}
