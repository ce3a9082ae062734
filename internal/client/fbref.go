package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/config"
	"xgform/ingestion/internal/metrics"
)

// FetchError reports a season page that could not be retrieved.
// Status is zero for transport failures.
type FetchError struct {
	Season  int
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch season %d: status %d: %s", e.Season, e.Status, e.Message)
	}
	return fmt.Sprintf("fetch season %d: %s", e.Season, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// errRateLimited signals a 429 to the outer cooldown loop.
var errRateLimited = errors.New("rate limited")

// PageCache stores raw season pages keyed by URL.
type PageCache interface {
	GetPage(ctx context.Context, url string) ([]byte, bool, error)
	SetPage(ctx context.Context, url string, body []byte) error
}

// Options configures the season page client.
type Options struct {
	BaseURL             string
	Timeout             time.Duration
	MinDelay            time.Duration
	MaxDelay            time.Duration
	RateLimitCooldown   time.Duration
	MaxRateLimitRetries int
	MaxAttempts         int
	BackoffInitial      time.Duration
	BackoffMultiplier   float64
	MaxBodyBytes        int64
	UserAgents          []string
}

// OptionsFromConfig maps the FETCH_* settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:             cfg.FBrefBaseURL,
		Timeout:             cfg.FetchTimeout,
		MinDelay:            cfg.FetchMinDelay,
		MaxDelay:            cfg.FetchMaxDelay,
		RateLimitCooldown:   cfg.FetchRateLimitCooldown,
		MaxRateLimitRetries: cfg.FetchMaxRateLimitRetries,
		MaxAttempts:         cfg.FetchMaxAttempts,
		BackoffInitial:      cfg.FetchBackoffInitial,
		BackoffMultiplier:   cfg.FetchBackoffMultiplier,
		MaxBodyBytes:        cfg.FetchMaxBodyBytes,
		UserAgents:          cfg.FetchUserAgents,
	}
}

// Client downloads FBref season schedule pages.
type Client struct {
	opts       Options
	httpClient *http.Client
	agents     userAgentPool
	cache      PageCache

	// replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new season page client
func NewClient(opts Options) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffMultiplier < 1 {
		opts.BackoffMultiplier = 2
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{
		opts:   opts,
		agents: newUserAgentPool(opts.UserAgents),
		sleep:  sleepCtx,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithCache enables the page cache. A nil cache disables it.
func (c *Client) WithCache(cache PageCache) *Client {
	c.cache = cache
	return c
}

// SeasonURL builds the schedule page URL for a two-digit season offset,
// e.g. 23 -> .../2023-2024/schedule/2023-2024-Premier-League-Scores-and-Fixtures.
func SeasonURL(baseURL string, season int) string {
	span := fmt.Sprintf("20%02d-20%02d", season, season+1)
	return fmt.Sprintf("%s/%s/schedule/%s-Premier-League-Scores-and-Fixtures",
		strings.TrimRight(baseURL, "/"), span, span)
}

// Fetch returns the raw HTML for one season.
//
// A 429 triggers a cooldown and a fresh attempt sequence, bounded by
// MaxRateLimitRetries. Server and transport errors back off exponentially
// for up to MaxAttempts. Any other status fails immediately. Context
// cancellation is returned unwrapped.
func (c *Client) Fetch(ctx context.Context, season int) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.RecordFetchDuration(time.Since(start).Seconds())
	}()

	url := SeasonURL(c.opts.BaseURL, season)

	if body, ok := c.cached(ctx, url); ok {
		log.Info().Int("season", season).Int("size", len(body)).Msg("Season page served from cache")
		return body, nil
	}

	delay := time.Duration(randomDelay(int64(c.opts.MinDelay), int64(c.opts.MaxDelay)))
	log.Debug().Int("season", season).Dur("delay", delay).Msg("Waiting before season request")
	if err := c.sleep(ctx, delay); err != nil {
		return nil, err
	}

	for rateLimited := 0; ; rateLimited++ {
		body, err := c.fetchWithBackoff(ctx, season, url)
		if err == nil {
			c.store(ctx, url, body)
			log.Info().
				Int("season", season).
				Int("size", len(body)).
				Dur("duration", time.Since(start)).
				Msg("Season page fetched")
			return body, nil
		}

		if !errors.Is(err, errRateLimited) {
			return nil, err
		}

		metrics.RecordRateLimited()
		if rateLimited >= c.opts.MaxRateLimitRetries {
			return nil, &FetchError{
				Season:  season,
				Status:  http.StatusTooManyRequests,
				Message: fmt.Sprintf("rate limited after %d cooldowns", rateLimited),
				Err:     errRateLimited,
			}
		}

		log.Warn().
			Int("season", season).
			Int("cooldown_round", rateLimited+1).
			Dur("cooldown", c.opts.RateLimitCooldown).
			Msg("Rate limited, cooling down before retry")

		if err := c.sleep(ctx, c.opts.RateLimitCooldown); err != nil {
			return nil, err
		}
	}
}

func (c *Client) fetchWithBackoff(ctx context.Context, season int, url string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BackoffInitial
	b.Multiplier = c.opts.BackoffMultiplier
	b.RandomizationFactor = 0.1
	b.MaxInterval = 5 * time.Minute
	b.Reset()

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		body, status, err := c.get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			metrics.RecordFetch("error")
			return nil, &FetchError{Season: season, Message: "request failed", Err: err}
		}
		metrics.RecordFetch(strconv.Itoa(status))

		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusTooManyRequests:
			return nil, backoff.Permanent(errRateLimited)
		case status >= 500:
			return nil, &FetchError{Season: season, Status: status, Message: "server error"}
		default:
			return nil, backoff.Permanent(&FetchError{
				Season:  season,
				Status:  status,
				Message: http.StatusText(status),
			})
		}
	}

	notify := func(err error, wait time.Duration) {
		log.Info().
			Int("season", season).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying season request after backoff")
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// the attempt cap is checked before permanent errors are unwrapped
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Unwrap()
		}
		return nil, err
	}
	return body, nil
}

// get performs one GET and returns the capped body with its status.
func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.agents.pick())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	log.Debug().Str("url", url).Str("method", req.Method).Msg("Making season request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, 0, fmt.Errorf("response body exceeds %d bytes", c.opts.MaxBodyBytes)
	}

	return body, resp.StatusCode, nil
}

func (c *Client) cached(ctx context.Context, url string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}

	start := time.Now()
	body, ok, err := c.cache.GetPage(ctx, url)
	metrics.RecordCacheOperation("get", time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Page cache read failed")
		return nil, false
	}
	if !ok {
		metrics.RecordCacheMiss()
		return nil, false
	}
	metrics.RecordCacheHit()
	return body, true
}

func (c *Client) store(ctx context.Context, url string, body []byte) {
	if c.cache == nil {
		return
	}

	start := time.Now()
	if err := c.cache.SetPage(ctx, url, body); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Page cache write failed")
	}
	metrics.RecordCacheOperation("set", time.Since(start).Seconds())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
