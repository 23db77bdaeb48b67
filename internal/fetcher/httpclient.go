package fetcher

import (
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

const (
	// Default retry configuration
	DefaultRetryCount       = 3
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
	// DefaultTimeout bounds a single request attempt
	DefaultTimeout = 30 * time.Second
)

// ClientOptions tunes the HTTP client built by NewHTTPClient
type ClientOptions struct {
	RetryCount int
	// RetryWaitTime is the initial backoff; zero keeps the default.
	RetryWaitTime time.Duration
	Timeout       time.Duration
	Logger        zerolog.Logger
}

// NewHTTPClient creates a new HTTP client with retry logic and exponential backoff
func NewHTTPClient(baseURL string, opts ClientOptions) *resty.Client {
	wait := opts.RetryWaitTime
	if wait <= 0 {
		wait = defaultRetryWaitTime
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(func(r *resty.Response, err error) {
			retryHook(logger, r, err)
		})

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == 429, code == 408:
		return true
	default:
		return false
	}
}

// retryHook logs retry attempts
func retryHook(logger zerolog.Logger, r *resty.Response, err error) {
	if r == nil || r.Request == nil {
		logger.Debug().Err(err).Msg("retrying request")
		return
	}
	if err != nil {
		logger.Debug().
			Str("url", r.Request.URL).
			Int("attempt", r.Request.Attempt).
			Err(err).
			Msg("retrying request due to error")
		return
	}

	logger.Debug().
		Str("url", r.Request.URL).
		Int("attempt", r.Request.Attempt).
		Int("status_code", r.StatusCode()).
		Msg("retrying request due to status code")
}
