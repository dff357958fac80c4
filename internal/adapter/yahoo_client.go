package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/etf-dashboard/internal/circuitbreaker"
	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/retry"
	"github.com/etf-dashboard/internal/types"
)

const (
	defaultYahooBaseURL = "https://query1.finance.yahoo.com"
	yahooUserAgent      = "Mozilla/5.0 (compatible; etf-dashboard/1.0)"
	maxBodyBytes        = 4 << 20
)

// YahooConfig configures the chart API client
type YahooConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxAttempts       int
}

// YahooClient fetches price series from a Yahoo Finance style chart endpoint
type YahooClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig *retry.RetryConfig
}

var _ MarketDataProvider = (*YahooClient)(nil)

// NewYahooClient creates a new chart API client
func NewYahooClient(cfg YahooConfig) *YahooClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	retryConfig := retry.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retryConfig.MaxAttempts = cfg.MaxAttempts
	}
	retryConfig.ShouldRetry = isRetryableFetchError

	return &YahooClient{
		baseURL:     baseURL,
		httpClient:  newHTTPClient(timeout),
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("market-data")),
		retryConfig: retryConfig,
	}
}

// newHTTPClient builds a client with explicit transport timeouts
func newHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}

// chartResponse is the chart endpoint payload. Close prices are nullable.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// statusError is a non-200 upstream response
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chart API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// errMalformed marks payloads that will not improve on retry
var errMalformed = errors.New("malformed chart payload")

func isRetryableFetchError(err error) bool {
	if errors.Is(err, errMalformed) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// chartRange maps a dashboard range to the provider's spelling
func chartRange(r types.Range) string {
	switch r {
	case types.Range1M:
		return "1mo"
	case types.Range6M:
		return "6mo"
	default:
		return string(r)
	}
}

// FetchSeries fetches the close price series of one instrument
func (c *YahooClient) FetchSeries(ctx context.Context, instrument string, r types.Range, iv types.Interval) (*types.Series, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"instrument": instrument,
		"range":      r,
		"interval":   iv,
	})

	var series *types.Series
	err := retry.Do(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.breaker.Execute(ctx, func() error {
			s, err := c.fetchOnce(ctx, instrument, r, iv)
			if err != nil {
				return err
			}
			series = s
			return nil
		})
	})
	if err != nil {
		logger.WithError(err).Warn("Price series fetch failed")
		return nil, apperrors.NewDataUnavailableError(instrument, err)
	}

	logger.WithField("observations", len(series.Observations)).Debug("Price series fetched")
	return series, nil
}

func (c *YahooClient) fetchOnce(ctx context.Context, instrument string, r types.Range, iv types.Interval) (*types.Series, error) {
	q := url.Values{}
	q.Set("range", chartRange(r))
	q.Set("interval", string(iv))
	q.Set("includePrePost", "false")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(instrument), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read chart response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	return parseChart(instrument, r, iv, &payload)
}

// parseChart converts the payload into a Series, mapping null and non-finite closes to absent
func parseChart(instrument string, r types.Range, iv types.Interval, payload *chartResponse) (*types.Series, error) {
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", errMalformed, payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result", errMalformed)
	}

	res := payload.Chart.Result[0]
	if len(res.Timestamp) == 0 {
		return nil, fmt.Errorf("%w: no timestamps", errMalformed)
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote indicators", errMalformed)
	}

	closes := res.Indicators.Quote[0].Close
	if len(closes) != len(res.Timestamp) {
		return nil, fmt.Errorf("%w: %d timestamps but %d closes", errMalformed, len(res.Timestamp), len(closes))
	}

	obs := make([]types.Observation, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i > 0 && ts <= res.Timestamp[i-1] {
			return nil, fmt.Errorf("%w: timestamps not ascending at index %d", errMalformed, i)
		}
		obs[i] = types.Observation{Timestamp: ts}
		if p := closes[i]; p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) {
			obs[i].Price = types.Float(*p)
		}
	}

	return &types.Series{
		Instrument:   instrument,
		Range:        r,
		Interval:     iv,
		Observations: obs,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
