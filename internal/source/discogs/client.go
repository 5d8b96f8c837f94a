package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crate_ledger/internal/domain"
)

const (
	SourceID   = "discogs"
	SourceName = "Discogs Collection"
)

// ErrRateLimited is returned only when a rate-limit retry cap is configured
// and exhausted.
var ErrRateLimited = errors.New("rate limit retries exhausted")

// StatusError reports a non-2xx response other than 429.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config holds Discogs client configuration.
type Config struct {
	BaseURL        string
	Username       string
	Token          string
	UserAgent      string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RateLimitWait applies when a 429 carries no usable Retry-After.
	RateLimitWait time.Duration
	// MaxRateLimitRetries caps consecutive 429 retries; zero means no cap.
	MaxRateLimitRetries int
}

// PageQuery selects one page of a collection folder.
type PageQuery struct {
	FolderID  int
	Page      int
	PerPage   int
	Sort      string
	SortOrder string
}

// Client talks to the Discogs collection endpoints for a single account.
type Client struct {
	httpClient          *http.Client
	baseURL             string
	username            string
	header              http.Header
	maxAttempts         int
	initialBackoff      time.Duration
	maxBackoff          time.Duration
	rateLimitWait       time.Duration
	maxRateLimitRetries int
	sleep               Sleeper
	logger              *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper replaces the blocking sleep used for backoff and rate limits.
func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New creates a Discogs client. The auth header is fixed at construction.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	header := make(http.Header)
	header.Set("Accept", "application/json")
	header.Set("User-Agent", cfg.UserAgent)
	if cfg.Token != "" {
		header.Set("Authorization", "Discogs token="+cfg.Token)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	rateLimitWait := cfg.RateLimitWait
	if rateLimitWait <= 0 {
		rateLimitWait = 60 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		username:            cfg.Username,
		header:              header,
		maxAttempts:         maxAttempts,
		initialBackoff:      cfg.InitialBackoff,
		maxBackoff:          cfg.MaxBackoff,
		rateLimitWait:       rateLimitWait,
		maxRateLimitRetries: cfg.MaxRateLimitRetries,
		sleep:               SleepContext,
		logger:              logger.With("source", SourceID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID + ":" + c.username
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// Pause sleeps between page requests using the client's sleeper.
func (c *Client) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.sleep(ctx, d)
}

// FetchPage fetches one page of the folder listing.
func (c *Client) FetchPage(ctx context.Context, q PageQuery) (*Page, error) {
	if q.Page < 1 {
		return nil, fmt.Errorf("page must be positive, got %d", q.Page)
	}
	if q.PerPage < 1 {
		return nil, fmt.Errorf("per_page must be positive, got %d", q.PerPage)
	}
	if q.FolderID < 0 {
		return nil, fmt.Errorf("folder id must not be negative, got %d", q.FolderID)
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("per_page", strconv.Itoa(q.PerPage))
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.SortOrder != "" {
		params.Set("sort_order", q.SortOrder)
	}
	endpoint := fmt.Sprintf("%s/users/%s/collection/folders/%d/releases?%s",
		c.baseURL, url.PathEscape(c.username), q.FolderID, params.Encode())

	var page Page
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched page",
		"folder_id", q.FolderID,
		"page", page.Pagination.Page,
		"pages", page.Pagination.Pages,
		"items", page.Pagination.Items,
		"releases", len(page.Releases),
	)

	return &page, nil
}

// FetchFieldDefinitions returns the account's custom field name to id map.
// Failures yield an empty map since custom fields are optional.
func (c *Client) FetchFieldDefinitions(ctx context.Context) domain.FieldMap {
	endpoint := fmt.Sprintf("%s/users/%s/collection/fields", c.baseURL, url.PathEscape(c.username))

	var resp fieldsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		c.logger.Warn("failed to fetch custom field definitions", "error", err)
		return domain.FieldMap{}
	}

	fields := make(domain.FieldMap, len(resp.Fields))
	for _, f := range resp.Fields {
		if f.Name == "" {
			continue
		}
		fields[f.Name] = f.ID
	}
	return fields
}

// FetchInstanceFields returns the custom field values of one owned copy.
// Failures are logged and yield no values.
func (c *Client) FetchInstanceFields(ctx context.Context, folderID int, releaseID, instanceID int64) []Note {
	if instanceID == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("%s/users/%s/collection/releases/%d",
		c.baseURL, url.PathEscape(c.username), releaseID)

	var page Page
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		c.logger.Warn("failed to fetch instance fields",
			"folder_id", folderID,
			"release_id", releaseID,
			"instance_id", instanceID,
			"error", err,
		)
		return nil
	}

	for _, r := range page.Releases {
		if r.InstanceID == instanceID {
			return r.Notes
		}
	}

	c.logger.Debug("instance not found in release listing",
		"release_id", releaseID,
		"instance_id", instanceID,
	)
	return nil
}

// getJSON issues a GET and decodes the body into out. A 429 is retried after
// the server's Retry-After for as long as the server keeps asking, unless a
// retry cap is configured. Transport errors use exponential backoff.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	attempt := 1
	rateLimited := 0

	for {
		resp, err := c.doRequest(ctx, endpoint)
		if err != nil {
			if attempt >= c.maxAttempts || ctx.Err() != nil {
				return fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			backoff := c.calculateBackoff(attempt)
			c.logger.Warn("request failed, retrying",
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
			if err := c.sleep(ctx, backoff); err != nil {
				return err
			}
			attempt++
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := c.retryAfter(resp.Header)
			drain(resp)

			rateLimited++
			if c.maxRateLimitRetries > 0 && rateLimited > c.maxRateLimitRetries {
				return fmt.Errorf("%w: %d retries against %s", ErrRateLimited, c.maxRateLimitRetries, endpoint)
			}

			c.logger.Warn("rate limited, waiting",
				"wait", wait,
				"retries", rateLimited,
			)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		return decode(resp, endpoint, out)
	}
}

func (c *Client) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = c.header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if remaining := resp.Header.Get("X-Discogs-Ratelimit-Remaining"); remaining == "0" {
		c.logger.Debug("rate limit window exhausted", "endpoint", endpoint)
	}

	return resp, nil
}

func decode(resp *http.Response, endpoint string, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// retryAfter reads the wait duration from a 429 response.
func (c *Client) retryAfter(h http.Header) time.Duration {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return c.rateLimitWait
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
		return 0
	}
	return c.rateLimitWait
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

// SleepContext waits for d unless ctx is cancelled first.
func SleepContext(ctx context.Context, d time.Duration) error {
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
