package fplapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/prasetyadi/statmerge/internal/domain/rawpayload"
	"github.com/prasetyadi/statmerge/internal/domain/rawstat"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
	"github.com/prasetyadi/statmerge/internal/platform/resilience"
	"github.com/prasetyadi/statmerge/internal/usecase"
)

const (
	defaultBaseURL       = "https://fantasy.premierleague.com/api"
	bootstrapStaticPath  = "/bootstrap-static/"
	maxResponseBytes     = 16 << 20
	priceTenthsPerMillon = 10
)

var errFPLTransient = crerr.New("fantasy api transient failure")

// positionByElementType translates the platform's numeric element_type.
var positionByElementType = map[int]string{
	1: "GK",
	2: "DEF",
	3: "MID",
	4: "FWD",
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
	now            func() time.Time
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
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxRetries:     cfg.MaxRetries,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		now:            time.Now,
	}
}

type bootstrapEnvelope struct {
	Teams []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"teams"`
	Elements []struct {
		FirstName   string `json:"first_name"`
		SecondName  string `json:"second_name"`
		WebName     string `json:"web_name"`
		Team        int    `json:"team"`
		ElementType int    `json:"element_type"`
		NowCost     int    `json:"now_cost"`
		TotalPoints int    `json:"total_points"`
	} `json:"elements"`
}

// FetchPlayers returns one row per active player. Players with zero total
// points have not featured and are dropped: they cannot be reconciled
// against match data and only inflate the identity workload.
func (c *Client) FetchPlayers(ctx context.Context) ([]rawstat.FantasyRow, []rawpayload.Payload, error) {
	raw, err := c.doJSON(ctx, bootstrapStaticPath)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch bootstrap static: %w", err)
	}

	var envelope bootstrapEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode bootstrap static: %w", err)
	}

	teamNames := make(map[int]string, len(envelope.Teams))
	for _, team := range envelope.Teams {
		teamNames[team.ID] = strings.TrimSpace(team.Name)
	}

	asOf := c.now().UTC().Truncate(24 * time.Hour)
	rows := make([]rawstat.FantasyRow, 0, len(envelope.Elements))
	for _, element := range envelope.Elements {
		if element.TotalPoints <= 0 {
			continue
		}
		name := strings.TrimSpace(element.FirstName + " " + element.SecondName)
		if name == "" {
			name = strings.TrimSpace(element.WebName)
		}
		rows = append(rows, rawstat.FantasyRow{
			RawPlayerName: name,
			RawTeamName:   teamNames[element.Team],
			Price:         float64(element.NowCost) / priceTenthsPerMillon,
			Position:      positionByElementType[element.ElementType],
			AsOfDate:      asOf,
		})
	}

	payloads := []rawpayload.Payload{{
		Source:      rawstat.SourceFantasyAPI,
		EntityType:  "api_response",
		EntityKey:   bootstrapStaticPath,
		PayloadJSON: string(raw),
		FetchedAt:   c.now(),
	}}

	c.logger.InfoContext(ctx, "fantasy players fetched",
		"elements", len(envelope.Elements), "active", len(rows))
	return rows, payloads, nil
}

func (c *Client) doJSON(ctx context.Context, path string) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "fantasy api circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("%w: fantasy api is temporarily unavailable", usecase.ErrFetch)
		}
	}

	fullURL := c.baseURL + path
	out, err, _ := c.flight.Do(fullURL, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errFPLTransient) {
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
	var raw []byte
	err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: c.maxRetries + 1, BaseDelay: time.Second},
		func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
			if err != nil {
				return false, fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return true, fmt.Errorf("%w: send request: %v", errFPLTransient, err)
			}
			defer func() { _ = resp.Body.Close() }()

			buf := bytebufferpool.Get()
			defer bytebufferpool.Put(buf)
			if _, err := io.Copy(buf, io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
				return true, fmt.Errorf("%w: read response body: %v", errFPLTransient, err)
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					return true, fmt.Errorf("%w: provider status=%d", errFPLTransient, resp.StatusCode)
				}
				return false, fmt.Errorf("provider status=%d url=%s", resp.StatusCode, fullURL)
			}

			raw = append(raw[:0], buf.B...)
			return false, nil
		})
	if err != nil {
		c.logger.WarnContext(ctx, "fantasy api request failed", "url", fullURL, "error", err)
		return nil, err
	}
	return raw, nil
}
