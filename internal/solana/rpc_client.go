package solana

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultDASPageSize = 1000

	// TokenProgramID is the SPL Token program.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// Token2022ProgramID is the Token-2022 program.
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"

	tokenAccountSize = 165
)

// HTTPClient implements HolderSource using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint      string
	client        *http.Client
	maxRetries    int
	retryDelay    time.Duration
	maxDelay      time.Duration
	backoffMult   float64
	programID     string
	pageSize      int
	ownersOnCurve bool
	logger        *zap.Logger
	requestID     atomic.Uint64
}

var _ HolderSource = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithTokenProgram sets the program whose accounts are scanned.
func WithTokenProgram(programID string) ClientOption {
	return func(c *HTTPClient) {
		c.programID = programID
	}
}

// WithPageSize sets the DAS page size.
func WithPageSize(n int) ClientOption {
	return func(c *HTTPClient) {
		c.pageSize = n
	}
}

// WithOnCurveOwnersOnly drops holders that are program-derived accounts
// (liquidity pools, vaults). Applies to Solana keys only.
func WithOnCurveOwnersOnly(v bool) ClientOption {
	return func(c *HTTPClient) {
		c.ownersOnCurve = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		programID:   TokenProgramID,
		pageSize:    DefaultDASPageSize,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultDASPageSize
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
// Params is a positional array for core methods and an object for DAS methods.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// RPC-level errors are returned unwrapped and not retried.
func (c *HTTPClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.Multiplier = c.backoffMult
	policy.MaxInterval = c.maxDelay
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited (429)")
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}

		if rpcResp.Error != nil {
			return backoff.Permanent(rpcResp.Error)
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return backoff.Permanent(fmt.Errorf("unmarshal result: %w", err))
			}
		}
		return nil
	}

	start := time.Now()
	err = backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx),
		func(err error, next time.Duration) {
			c.logger.Debug("rpc retry",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err))
		})
	observability.RecordRPCLatency(method, time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	if _, ok := err.(*rpcError); ok {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("max retries exceeded: %w", err)
}

// ListTokenHolders scans token accounts of mint via getProgramAccounts and
// sums balances per owner.
func (c *HTTPClient) ListTokenHolders(ctx context.Context, mint domain.Address, minBalance decimal.Decimal) ([]TokenHolder, error) {
	filters := []interface{}{
		map[string]interface{}{"memcmp": map[string]interface{}{"offset": 0, "bytes": mint.String()}},
	}
	if c.programID == TokenProgramID {
		filters = append(filters, map[string]interface{}{"dataSize": tokenAccountSize})
	}
	params := []interface{}{
		c.programID,
		map[string]interface{}{
			"encoding":   "jsonParsed",
			"commitment": "confirmed",
			"filters":    filters,
		},
	}

	var accounts []programAccount
	if err := c.call(ctx, "getProgramAccounts", params, &accounts); err != nil {
		return nil, fmt.Errorf("list token holders %s: %w", mint, err)
	}

	byOwner := make(map[domain.Address]*TokenHolder, len(accounts))
	var order []domain.Address
	for _, acc := range accounts {
		info := acc.Account.Data.Parsed.Info
		if info.Owner == "" || info.TokenAmount.Amount == "" {
			continue
		}
		raw, err := decimal.NewFromString(info.TokenAmount.Amount)
		if err != nil || !raw.IsPositive() {
			continue
		}
		owner, err := domain.NormalizeAddress(info.Owner)
		if err != nil {
			continue
		}
		if c.ownersOnCurve && !domain.IsOnCurve(owner) {
			continue
		}

		h, ok := byOwner[owner]
		if !ok {
			h = &TokenHolder{Address: owner, RawBalance: decimal.Zero, Decimals: info.TokenAmount.Decimals}
			byOwner[owner] = h
			order = append(order, owner)
		}
		h.RawBalance = h.RawBalance.Add(raw)
	}

	holders := make([]TokenHolder, 0, len(order))
	for _, owner := range order {
		h := byOwner[owner]
		h.Balance = h.RawBalance.Shift(-h.Decimals)
		if h.Balance.LessThan(minBalance) {
			continue
		}
		holders = append(holders, *h)
	}

	c.logger.Debug("token holders listed",
		zap.String("mint", mint.String()),
		zap.Int("accounts", len(accounts)),
		zap.Int("holders", len(holders)))
	return holders, nil
}

// programAccount is one jsonParsed entry of getProgramAccounts.
type programAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data struct {
			Parsed struct {
				Info struct {
					Owner       string `json:"owner"`
					TokenAmount struct {
						Amount   string `json:"amount"`
						Decimals int32  `json:"decimals"`
					} `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}

// ListNftHolders pages through collection items with the DAS getAssetsByGroup
// method and counts items per owner. Burnt items are ignored.
func (c *HTTPClient) ListNftHolders(ctx context.Context, collection domain.Address, minCount int64) ([]NftHolder, error) {
	counts := make(map[domain.Address]int64)
	var order []domain.Address

	for page := 1; ; page++ {
		params := map[string]interface{}{
			"groupKey":   "collection",
			"groupValue": collection.String(),
			"page":       page,
			"limit":      c.pageSize,
		}
		var result assetPage
		if err := c.call(ctx, "getAssetsByGroup", params, &result); err != nil {
			return nil, fmt.Errorf("list nft holders %s page %d: %w", collection, page, err)
		}

		for _, item := range result.Items {
			if item.Burnt || item.Ownership.Owner == "" {
				continue
			}
			owner, err := domain.NormalizeAddress(item.Ownership.Owner)
			if err != nil {
				continue
			}
			if c.ownersOnCurve && !domain.IsOnCurve(owner) {
				continue
			}
			if _, ok := counts[owner]; !ok {
				order = append(order, owner)
			}
			counts[owner]++
		}

		if len(result.Items) < c.pageSize {
			break
		}
	}

	holders := make([]NftHolder, 0, len(order))
	for _, owner := range order {
		if counts[owner] < minCount {
			continue
		}
		holders = append(holders, NftHolder{Address: owner, Count: counts[owner]})
	}
	return holders, nil
}

// assetPage is the getAssetsByGroup result.
type assetPage struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
	Page  int `json:"page"`
	Items []struct {
		ID        string `json:"id"`
		Burnt     bool   `json:"burnt"`
		Ownership struct {
			Owner string `json:"owner"`
		} `json:"ownership"`
	} `json:"items"`
}

// GetSlot returns the current slot. The server uses it for readiness.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}
