package fbref

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"

	"github.com/prasetyadi/statmerge/internal/domain/rawpayload"
	"github.com/prasetyadi/statmerge/internal/domain/rawstat"
	"github.com/prasetyadi/statmerge/internal/platform/cache"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
	"github.com/prasetyadi/statmerge/internal/platform/resilience"
	"github.com/prasetyadi/statmerge/internal/usecase"
)

const (
	defaultBaseURL      = "https://fbref.example.com"
	defaultSchedulePath = "/comps/9/schedule"
	defaultPageCacheTTL = 30 * time.Minute
	maxResponseBytes    = 8 << 20
)

var errFBrefTransient = crerr.New("stats site transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	SchedulePath   string
	Timeout        time.Duration
	MaxRetries     int
	PageCacheTTL   time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client scrapes the stats site. Match report pages carry all seven
// category tables, so pages are cached per URL and each category fetch
// after the first parses from memory instead of re-downloading.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	schedulePath   string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
	pages          *cache.Store
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	schedulePath := strings.TrimSpace(cfg.SchedulePath)
	if schedulePath == "" {
		schedulePath = defaultSchedulePath
	}
	pageCacheTTL := cfg.PageCacheTTL
	if pageCacheTTL <= 0 {
		pageCacheTTL = defaultPageCacheTTL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		schedulePath:   schedulePath,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		pages:          cache.NewStore(pageCacheTTL),
	}
}

func (c *Client) FetchFixtures(ctx context.Context) ([]rawstat.FixtureRef, []rawpayload.Payload, error) {
	fullURL := c.baseURL + c.schedulePath
	raw, err := c.fetchPage(ctx, fullURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch schedule page: %w", err)
	}

	fixtures, err := parseFixtureList(raw, c.baseURL)
	if err != nil {
		return nil, nil, err
	}

	payloads := []rawpayload.Payload{{
		Source:      rawstat.SourceStatsSite,
		EntityType:  "schedule_page",
		EntityKey:   c.schedulePath,
		PayloadJSON: string(raw),
		FetchedAt:   time.Now(),
	}}
	c.logger.InfoContext(ctx, "schedule page fetched", "fixtures", len(fixtures))
	return fixtures, payloads, nil
}

func (c *Client) FetchCategory(ctx context.Context, category rawstat.Category, fixtures []rawstat.FixtureRef) ([]rawstat.StatRow, []rawpayload.Payload, error) {
	rows := make([]rawstat.StatRow, 0, len(fixtures)*32)
	payloads := make([]rawpayload.Payload, 0, len(fixtures))

	for _, fixture := range fixtures {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		raw, err := c.fetchPage(ctx, fixture.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch match report %s: %w", fixture.URL, err)
		}

		parsed, err := parseCategoryRows(raw, category, fixture)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, parsed...)

		payloads = append(payloads, rawpayload.Payload{
			Source:      rawstat.SourceStatsSite,
			EntityType:  "match_page",
			EntityKey:   fixture.URL,
			PayloadJSON: string(raw),
			FetchedAt:   time.Now(),
		})
	}
	return rows, payloads, nil
}

// fetchPage downloads one page through the circuit breaker with the result
// cached, so the seven concurrent category fetches of one run share a
// single download per match report.
func (c *Client) fetchPage(ctx context.Context, fullURL string) ([]byte, error) {
	out, err := c.pages.GetOrLoad(ctx, fullURL, func(ctx context.Context) (any, error) {
		return c.doHTML(ctx, fullURL)
	})
	if err != nil {
		return nil, err
	}
	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected cached page type %T", out)
	}
	return raw, nil
}

func (c *Client) doHTML(ctx context.Context, fullURL string) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "stats site circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("%w: stats site is temporarily unavailable", usecase.ErrFetch)
		}
	}

	out, err, _ := c.flight.Do(fullURL, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isTransient(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response payload type %T", out)
	}
	return raw, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "text/html")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errFBrefTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errFBrefTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: site status=%d", errFBrefTransient, resp.StatusCode)
			} else {
				return nil, fmt.Errorf("site status=%d url=%s", resp.StatusCode, fullURL)
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("stats site request failed")
	}
	c.logger.WarnContext(ctx, "stats site request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isTransient(err error) bool {
	return stderrors.Is(err, errFBrefTransient)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
