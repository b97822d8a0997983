package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"holder-tiers/internal/batch"
	"holder-tiers/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultAPIKeyHeader = "x-api-key"
	DefaultHandlePath   = "handle"
	DefaultAvatarPath   = "avatarUrl"
	DefaultAddressPath  = "address"
)

var (
	// ErrUnauthorized is returned for 401/403 responses. Not retried.
	ErrUnauthorized = errors.New("social api: unauthorized")
	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("social api: rate limited")
	// ErrMissingURL is returned when a lookup direction has no URL template.
	ErrMissingURL = errors.New("social api: missing url template")
)

// Options configures HTTPClient.
//
// URL templates contain {address} or {handle}, substituted path-escaped, e.g.
// "https://api.example.com/v1/users/by-wallet/{address}".
type Options struct {
	AddressURL   string // address→handle template
	HandleURL    string // handle→address template
	APIKey       string
	APIKeyHeader string

	// gjson paths into the response body
	HandlePath  string
	AvatarPath  string
	AddressPath string

	RequestsPerSecond float64 // 0 disables client-side pacing
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// HTTPClient implements AddressResolver and HandleResolver over a REST API.
// Retries are left to the caller's batcher.
type HTTPClient struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
}

var (
	_ AddressResolver = (*HTTPClient)(nil)
	_ HandleResolver  = (*HTTPClient)(nil)
)

// NewHTTPClient creates a client.
func NewHTTPClient(opts Options) *HTTPClient {
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = DefaultAPIKeyHeader
	}
	if opts.HandlePath == "" {
		opts.HandlePath = DefaultHandlePath
	}
	if opts.AvatarPath == "" {
		opts.AvatarPath = DefaultAvatarPath
	}
	if opts.AddressPath == "" {
		opts.AddressPath = DefaultAddressPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	c := &HTTPClient{opts: opts, client: opts.HTTPClient}
	if c.client == nil {
		c.client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// ResolveHandleForAddress looks up the owner of addr.
func (c *HTTPClient) ResolveHandleForAddress(ctx context.Context, addr domain.Address) (*Profile, error) {
	if c.opts.AddressURL == "" {
		return nil, batch.Permanent(ErrMissingURL)
	}
	body, err := c.get(ctx, expand(c.opts.AddressURL, "{address}", addr.String()))
	if err != nil || body == nil {
		return nil, err
	}

	handle := domain.NormalizeHandle(gjson.GetBytes(body, c.opts.HandlePath).String())
	if handle == "" {
		return nil, nil
	}
	return &Profile{
		Handle:    handle,
		AvatarURL: gjson.GetBytes(body, c.opts.AvatarPath).String(),
	}, nil
}

// ResolveAddressForHandle looks up a wallet registered to handle.
func (c *HTTPClient) ResolveAddressForHandle(ctx context.Context, handle domain.Handle) (*Wallet, error) {
	if c.opts.HandleURL == "" {
		return nil, batch.Permanent(ErrMissingURL)
	}
	body, err := c.get(ctx, expand(c.opts.HandleURL, "{handle}", handle.String()))
	if err != nil || body == nil {
		return nil, err
	}

	raw := gjson.GetBytes(body, c.opts.AddressPath).String()
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	addr, err := domain.NormalizeAddress(raw)
	if err != nil {
		return nil, nil
	}
	return &Wallet{
		Address:   addr,
		AvatarURL: gjson.GetBytes(body, c.opts.AvatarPath).String(),
	}, nil
}

// get returns nil body for 404.
func (c *HTTPClient) get(ctx context.Context, target string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, batch.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set(c.opts.APIKeyHeader, c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, batch.Permanent(ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json response")
	}
	return body, nil
}

func expand(template, placeholder, value string) string {
	return strings.ReplaceAll(template, placeholder, url.PathEscape(value))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
