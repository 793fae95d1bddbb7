// Package scrapeproxy implements the Fetcher port on top of a
// ScrapingBee-compatible rendering proxy.
package scrapeproxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/page-inventory/internal/repository"
)

const (
	defaultEndpoint = "https://app.scrapingbee.com/api/v1/"
	maxAttempts     = 3

	headerOriginStatus = "Spb-Initial-Status-Code"
	headerResolvedURL  = "Spb-Resolved-Url"

	// Synthetic status recorded when the proxy itself cannot be
	// reached or returns garbage.
	statusTransportFailure = 599
)

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	endpoint     string
	apiKey       string
	premiumProxy bool
	retryBase    time.Duration
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound proxy calls at n requests per second.
func WithRateLimit(n float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(n), 1) }
}

// WithPremiumProxy routes requests through the residential proxy pool.
func WithPremiumProxy(on bool) Option {
	return func(c *Client) { c.premiumProxy = on }
}

func NewClient(apiKey string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 180 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     logger,
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		retryBase:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchHTML fetches a page through the proxy. The origin status code is
// passed through transparently; a 404 is returned on the first attempt
// without retrying, transport failures retry with exponential backoff
// and surface as a synthetic 599 once attempts are exhausted.
func (c *Client) FetchHTML(ctx context.Context, pageURL string, renderJS bool) (*repository.FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		res, err := c.do(ctx, pageURL, renderJS, false)
		if err == nil {
			if res.StatusCode == http.StatusNotFound {
				return res, nil
			}
			if res.StatusCode < 500 {
				return res, nil
			}
			lastErr = fmt.Errorf("proxy returned %d for %s", res.StatusCode, pageURL)
		} else {
			lastErr = err
		}

		c.logger.Warn("proxy fetch attempt failed",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryBase << attempt):
			}
		}
	}

	return &repository.FetchResult{StatusCode: statusTransportFailure}, nil
}

// FetchScreenshot captures a full-page screenshot. Failures return an
// empty payload; a missing screenshot never fails the pipeline.
func (c *Client) FetchScreenshot(ctx context.Context, pageURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, pageURL, true, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("screenshot fetch failed", zap.String("url", pageURL), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, pageURL string, renderJS, screenshot bool) (*repository.FetchResult, error) {
	req, err := c.newRequest(ctx, pageURL, renderJS, screenshot)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	status := resp.StatusCode
	if origin := resp.Header.Get(headerOriginStatus); origin != "" {
		if code, err := strconv.Atoi(origin); err == nil {
			status = code
		}
	}

	return &repository.FetchResult{
		StatusCode:  status,
		Body:        string(body),
		ResolvedURL: resp.Header.Get(headerResolvedURL),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, pageURL string, renderJS, screenshot bool) (*http.Request, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", pageURL)
	params.Set("render_js", strconv.FormatBool(renderJS))
	params.Set("transparent_status_code", "true")
	if c.premiumProxy {
		params.Set("premium_proxy", "true")
	}
	if screenshot {
		params.Set("screenshot_full_page", "true")
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
}
