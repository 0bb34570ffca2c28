package gutenberg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"booklens/internal/metrics"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://www.gutenberg.org"
	DefaultUserAgent = "booklens/1.0"

	DefaultMaxBodyBytes = 64 << 20
)

// ErrBodyTooLarge is returned when a catalog response exceeds the body limit.
var ErrBodyTooLarge = errors.New("catalog response too large")

// Response is a catalog payload together with the upstream status code.
// Non-2xx statuses are returned as data, never as errors.
type Response struct {
	StatusCode int
	Body       string
}

// OK reports whether the upstream answered 200.
func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

type Options struct {
	BaseURL    string
	UserAgent  string
	RPS        int
	MaxRetries int
	Timeout    time.Duration
	RetryDelay time.Duration
	// MaxBodyBytes caps a response body; 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Metrics      *metrics.Metrics
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	maxBody    int64
	metrics    *metrics.Metrics
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Every(time.Second / time.Duration(opts.RPS))
	}

	return &Client{
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		maxBody:    opts.MaxBodyBytes,
		metrics:    opts.Metrics,
	}
}

// MetadataURL returns the catalog page for a book.
func (c *Client) MetadataURL(id string) string {
	return fmt.Sprintf("%s/ebooks/%s", c.baseURL, url.PathEscape(id))
}

// ContentURL returns the plain-text file for a book.
func (c *Client) ContentURL(id string) string {
	escaped := url.PathEscape(id)
	return fmt.Sprintf("%s/files/%s/%s-0.txt", c.baseURL, escaped, escaped)
}

// FetchMetadata retrieves the catalog page markup for a book.
func (c *Client) FetchMetadata(ctx context.Context, id string) (Response, error) {
	return c.get(ctx, "metadata", c.MetadataURL(id))
}

// FetchContent retrieves the full text of a book.
func (c *Client) FetchContent(ctx context.Context, id string) (Response, error) {
	return c.get(ctx, "content", c.ContentURL(id))
}

// get retries transport failures only. Any HTTP status, including 5xx, is
// handed back to the caller to interpret.
func (c *Client) get(ctx context.Context, resource, u string) (Response, error) {
	res, err := retry.DoWithData(
		func() (Response, error) {
			return c.do(ctx, resource, u)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.metrics.IncCatalogRetry()
			slog.Warn("catalog request failed, retrying",
				slog.String("resource", resource),
				slog.Uint64("attempt", uint64(n+1)),
				slog.Any("error", err),
			)
		}),
	)
	if err != nil {
		return Response{}, fmt.Errorf("fetch %s: %w", resource, err)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, resource, u string) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Response{}, retry.Unrecoverable(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveCatalogRequest(resource, "error", time.Since(start))
		return Response{}, err
	}
	defer resp.Body.Close()

	// one byte past the cap tells a full body from a truncated one
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		c.metrics.ObserveCatalogRequest(resource, "error", time.Since(start))
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		c.metrics.ObserveCatalogRequest(resource, "too_large", time.Since(start))
		return Response{}, retry.Unrecoverable(fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, u, c.maxBody))
	}
	c.metrics.ObserveCatalogRequest(resource, strconv.Itoa(resp.StatusCode), time.Since(start))

	return Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
