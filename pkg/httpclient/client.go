package httpclient

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"podcast-search/pkg/domain"
)

// ClientType represents the type of HTTP client configuration
type ClientType string

const (
	// BrowserClient uses browser-like headers to avoid 406 (Not Acceptable) errors
	// Used for sites that require browser-like User-Agent and headers
	BrowserClient ClientType = "browser"

	// CloudflareClient uses simple headers (like curl) to avoid 403 (Forbidden) errors
	// Used for Cloudflare-protected sites that block browser-like User-Agents
	CloudflareClient ClientType = "cloudflare"

	// BotClient identifies itself with Options.UserAgent. Used for feeds and
	// programme pages, which are fetched politely and openly.
	BotClient ClientType = "bot"
)

// Fetcher retrieves a URL's body. *HTTPClient is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// maxBodyBytes bounds how much of a response is read into memory.
const maxBodyBytes = 16 << 20

// Options configures an HTTPClient.
type Options struct {
	Type      ClientType
	UserAgent string
	Timeout   time.Duration

	// MinInterval is the minimum delay between two requests to the same host.
	// Requests to one host are also serialized. Zero disables the gate.
	MinInterval time.Duration

	// MaxAttempts bounds retries of transient failures (network errors, 429, 5xx).
	MaxAttempts  int
	RetryBackoff time.Duration
}

// HTTPClient wraps an http.Client with header profiles and a per-host politeness gate.
type HTTPClient struct {
	client *http.Client
	opts   Options

	mu    sync.Mutex
	hosts map[string]*hostGate
}

// hostGate serializes requests to one host and spaces them by the limiter.
type hostGate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewClient creates a new HTTP client with the specified type and default options
func NewClient(clientType ClientType) *HTTPClient {
	return New(Options{Type: clientType})
}

// New creates an HTTP client from options.
func New(opts Options) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.Type == BotClient && opts.UserAgent == "" {
		opts.UserAgent = "CastexBot/1.0"
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPClient{
		client: client,
		opts:   opts,
		hosts:  make(map[string]*hostGate),
	}
}

// Fetch performs a GET and returns the response body. Transient failures are
// retried up to MaxAttempts. Every failure is reported as a *domain.FetchError.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr *domain.FetchError

	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if !c.backoff(ctx, attempt-1) {
				return nil, &domain.FetchError{URL: rawURL, Err: ctx.Err()}
			}
		}

		body, status, err := c.once(ctx, rawURL)
		switch {
		case err != nil:
			lastErr = &domain.FetchError{URL: rawURL, Err: err}
			if ctx.Err() != nil {
				return nil, lastErr
			}
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = &domain.FetchError{URL: rawURL, StatusCode: status}
		case status < 200 || status > 299:
			return nil, &domain.FetchError{URL: rawURL, StatusCode: status}
		default:
			return body, nil
		}

		if attempt+1 < c.opts.MaxAttempts {
			zap.L().Warn("http request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
		}
	}

	return nil, lastErr
}

// once performs a single gated request.
func (c *HTTPClient) once(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}

	if gate := c.gate(req.URL); gate != nil {
		gate.mu.Lock()
		defer gate.mu.Unlock()
		if err := gate.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *HTTPClient) gate(u *url.URL) *hostGate {
	if c.opts.MinInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.hosts[u.Host]
	if !ok {
		g = &hostGate{limiter: rate.NewLimiter(rate.Every(c.opts.MinInterval), 1)}
		c.hosts[u.Host] = g
	}
	return g
}

// backoff sleeps for an exponentially growing, jittered delay. It returns
// false if ctx ended first.
func (c *HTTPClient) backoff(ctx context.Context, attempt int) bool {
	d := c.opts.RetryBackoff << attempt
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.opts.Type {
	case BrowserClient:
		// Browser-like headers to avoid 406 (Not Acceptable) errors
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	case CloudflareClient:
		// Cloudflare allows simple tools like curl but blocks browser-like User-Agents
		req.Header.Set("User-Agent", "curl/8.7.1")

	case BotClient:
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/rss+xml,text/html;q=0.9,*/*;q=0.8")

	default:
		// Default: use Go's default User-Agent
	}
}
