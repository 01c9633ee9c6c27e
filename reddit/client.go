// Package reddit fetches post listings from reddit's public JSON
// endpoints, handling cursor pagination, rate limiting and 429 backoff.
// No authentication is used.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/richardnixondev/reddit-image-collect/config"
)

const (
	defaultBaseURL = "https://www.reddit.com"
	clientTimeout  = 30 * time.Second

	// pageLimit is reddit's server-side maximum page size.
	pageLimit = 100

	// defaultRetryAfter is slept when a 429 response has no usable
	// Retry-After header.
	defaultRetryAfter = 60 * time.Second

	userAgent = "Mozilla/5.0 (compatible; reddit-image-collect/1.0)"
)

var (
	ErrCreateRequest     = errors.New("error creating a request")
	ErrInvalidStatusCode = errors.New("invalid status code")
)

// Result is one element of the lazy post sequence: either a post or the
// transport error that ended the sequence.
type Result struct {
	Post Post
	Err  error
}

// Client fetches listings sequentially. A token-bucket limiter enforces
// the configured minimum inter-request interval; a 429 response sleeps
// the advertised Retry-After and reissues the identical request.
type Client struct {
	impl    *http.Client
	base    *url.URL
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
}

func NewClient(rl config.RateLimit) *Client {
	base, _ := url.Parse(defaultBaseURL)
	rpm := rl.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}
	return &Client{
		impl:    &http.Client{Timeout: clientTimeout},
		base:    base,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		sleep:   sleepContext,
	}
}

// sleepContext waits for d, returning early with ctx.Err() when the
// context is canceled mid-sleep.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithBaseURL points the client at a different host. Used by tests.
func (c *Client) WithBaseURL(u *url.URL) *Client {
	c.base = u
	return c
}

// SubredditPosts returns a lazy, finite sequence of posts from the
// subreddit target, honoring its limit as an upper bound. The channel is
// closed when the limit is reached, the source is exhausted, or an error
// was delivered; at most one Result carries an error and it is always the
// last one.
func (c *Client) SubredditPosts(ctx context.Context, t config.SubredditTarget) <-chan Result {
	u := c.base.JoinPath("r", t.Name, t.Sort+".json")
	query := url.Values{}
	if t.Sort == "top" {
		query.Set("t", t.TimeFilter)
	}
	return c.stream(ctx, u, query, t.Limit)
}

// UserPosts returns the lazy sequence of a user's submitted posts.
func (c *Client) UserPosts(ctx context.Context, t config.UserTarget) <-chan Result {
	u := c.base.JoinPath("user", t.Name, "submitted.json")
	return c.stream(ctx, u, url.Values{}, t.Limit)
}

func (c *Client) stream(ctx context.Context, u *url.URL, query url.Values, limit int) <-chan Result {
	ch := make(chan Result, 8)
	go func() {
		defer close(ch)
		c.pageLoop(ctx, ch, u, query, limit)
	}()
	return ch
}

func (c *Client) pageLoop(ctx context.Context, ch chan<- Result, u *url.URL, query url.Values, limit int) {
	query.Set("limit", strconv.Itoa(min(limit, pageLimit)))

	after := ""
	fetched := 0
	for fetched < limit {
		if after != "" {
			query.Set("after", after)
		}
		u.RawQuery = query.Encode()

		page, err := c.getListing(ctx, u.String())
		if err != nil {
			ch <- Result{Err: err}
			return
		}
		if len(page.Data.Children) == 0 {
			return
		}

		for _, child := range page.Data.Children {
			if fetched >= limit {
				return
			}
			post := child.Data
			post.normalize()
			select {
			case ch <- Result{Post: post}:
			case <-ctx.Done():
				return
			}
			fetched++
		}

		after = page.Data.After
		if after == "" {
			return
		}
	}
}

// getListing performs one rate-limited request. On 429 it sleeps the
// advertised duration and reissues the same URL; there is no attempt cap,
// the source is trusted to eventually comply.
func (c *Client) getListing(ctx context.Context, u string) (*listing, error) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, ErrCreateRequest
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.impl.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error fetching listing: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			log.Warn().Dur("retry_after", retryAfter).Str("url", u).Msg("rate limited by source")
			if err := c.sleep(ctx, retryAfter); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatusCode, http.StatusText(resp.StatusCode))
		}

		var page listing
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding listing: %w", err)
		}
		return &page, nil
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
