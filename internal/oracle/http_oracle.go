package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
)

// HTTPOptions configures HTTPOracle.
type HTTPOptions struct {
	// URL may contain {symbol}, e.g. "https://api.example.com/price?ids={symbol}".
	URL string
	// PricePath is a gjson path; {symbol} is substituted, e.g. "{symbol}.usd".
	PricePath  string
	Timeout    time.Duration
	MaxRetries int // 0 uses the default, negative disables retries
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// HTTPOracle reads prices from a JSON endpoint.
type HTTPOracle struct {
	opts   HTTPOptions
	client *http.Client
}

var _ PriceOracle = (*HTTPOracle)(nil)

// NewHTTPOracle creates an oracle.
func NewHTTPOracle(opts HTTPOptions) *HTTPOracle {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPOracle{opts: opts, client: client}
}

// PriceMultiplier fetches the price of symbol.
func (o *HTTPOracle) PriceMultiplier(ctx context.Context, symbol string) (decimal.Decimal, error) {
	target := strings.ReplaceAll(o.opts.URL, "{symbol}", url.QueryEscape(strings.ToLower(symbol)))
	path := strings.ReplaceAll(o.opts.PricePath, "{symbol}", strings.ToLower(symbol))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.opts.RetryDelay
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	var price decimal.Decimal
	err := backoff.Retry(func() error {
		body, err := o.fetch(ctx, target)
		if err != nil {
			return err
		}
		raw := gjson.GetBytes(body, path)
		if !raw.Exists() {
			return backoff.Permanent(fmt.Errorf("%w: path %q not found", ErrInvalidPrice, path))
		}
		p, err := decimal.NewFromString(raw.String())
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidPrice, err))
		}
		price = p
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(o.opts.MaxRetries)), ctx))
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %s: %w", symbol, err)
	}
	return price, nil
}

func (o *HTTPOracle) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
