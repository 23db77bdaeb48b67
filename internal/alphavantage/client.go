package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"fundamentals/internal/fetcher"
	"fundamentals/internal/ratelimit"
)

// DefaultBaseURL is the production query endpoint
const DefaultBaseURL = "https://www.alphavantage.co/query"

// AlphaVantage query functions
const (
	functionSymbolSearch    = "SYMBOL_SEARCH"
	functionEarnings        = "EARNINGS"
	functionOverview        = "OVERVIEW"
	functionIncomeStatement = "INCOME_STATEMENT"
	functionCashFlow        = "CASH_FLOW"
)

// Options configures a Client
type Options struct {
	// Limiter throttles every request; nil disables throttling.
	Limiter    *ratelimit.Limiter
	RetryCount int
	// Timeout bounds each request; zero keeps the client default.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client implements fetcher.Provider on top of the AlphaVantage query API
type Client struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

var _ fetcher.Provider = (*Client)(nil)

// NewClient creates a new AlphaVantage client
func NewClient(apiKey, baseURL string, opts Options) *Client {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New()
	}

	return &Client{
		apiKey: apiKey,
		client: fetcher.NewHTTPClient(baseURL, fetcher.ClientOptions{
			RetryCount: opts.RetryCount,
			Timeout:    opts.Timeout,
			Logger:     opts.Logger,
		}),
		limiter: limiter,
		logger:  opts.Logger,
	}
}

// ProbeIdentifier checks the symbol search endpoint for an exact symbol match
func (c *Client) ProbeIdentifier(ctx context.Context, identifier string) (bool, error) {
	body, err := c.query(ctx, map[string]string{
		"function": functionSymbolSearch,
		"keywords": identifier,
	})
	if err != nil {
		return false, err
	}

	found := false
	gjson.GetBytes(body, "bestMatches").ForEach(func(_, match gjson.Result) bool {
		match.ForEach(func(key, value gjson.Result) bool {
			if strings.Contains(strings.ToLower(key.String()), "symbol") &&
				strings.EqualFold(value.String(), identifier) {
				found = true
			}
			return !found
		})
		return !found
	})

	return found, nil
}

// FetchEarnings retrieves the quarterly and annual EPS history
func (c *Client) FetchEarnings(ctx context.Context, identifier string) ([]byte, error) {
	return c.query(ctx, map[string]string{
		"function": functionEarnings,
		"symbol":   identifier,
	})
}

// FetchValuation retrieves the company overview holding valuation ratios
func (c *Client) FetchValuation(ctx context.Context, identifier string) ([]byte, error) {
	return c.query(ctx, map[string]string{
		"function": functionOverview,
		"symbol":   identifier,
	})
}

// FetchRevenue retrieves the annual and quarterly income statements
func (c *Client) FetchRevenue(ctx context.Context, identifier string) ([]byte, error) {
	return c.query(ctx, map[string]string{
		"function": functionIncomeStatement,
		"symbol":   identifier,
	})
}

// FetchCashFlow retrieves the annual and quarterly cash flow statements
func (c *Client) FetchCashFlow(ctx context.Context, identifier string) ([]byte, error) {
	return c.query(ctx, map[string]string{
		"function": functionCashFlow,
		"symbol":   identifier,
	})
}

// query performs one throttled request and classifies transport and body level failures
func (c *Client) query(ctx context.Context, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	params["apikey"] = c.apiKey

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("")

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fetcher.NewTimeoutError(err)
		}
		return nil, fetcher.NewNetworkError(err)
	}

	if !resp.IsSuccess() {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	body := resp.String()
	if !gjson.Valid(body) {
		return nil, fetcher.NewValidationError(fmt.Sprintf("%s response is not valid JSON", params["function"]))
	}

	// AlphaVantage reports throttling and bad calls with HTTP 200 and a message body
	for _, field := range []string{"Note", "Information"} {
		if msg := gjson.Get(body, field); msg.Exists() {
			return nil, &fetcher.FetchError{
				Type:      fetcher.ErrorTypeRateLimit,
				Retryable: true,
				Message:   msg.String(),
			}
		}
	}
	if msg := gjson.Get(body, "Error Message"); msg.Exists() {
		return nil, fetcher.NewClientError(0, msg.String())
	}

	c.logger.Debug().
		Str("function", params["function"]).
		Int("bytes", len(body)).
		Msg("alphavantage response")

	return []byte(body), nil
}
