// Package client is a typed JSON-RPC client for the tip ledger node. Single
// total lookups are coalesced and cached until the client records a tip.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
)

const (
	jsonRPCVersion   = "2.0"
	defaultCacheSize = 1024
	defaultTimeout   = 15 * time.Second
)

var errNilClient = errors.New("client: not initialised")

// Error is a JSON-RPC error returned by the node. Ledger failures unwrap to the
// matching native/tipping sentinel, so errors.Is works across the wire.
type Error struct {
	Code    int
	Message string
	Reason  string
	Status  int
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return tipping.ErrorForReason(e.Reason) }

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithFetchTimeout bounds shared total lookups, which outlive the context of
// any single caller.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithCacheSize bounds the number of cached totals.
func WithCacheSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.cacheSize = size
		}
	}
}

// Client talks to the /rpc endpoint of a node.
type Client struct {
	endpoint     string
	http         *http.Client
	token        string
	nextID       atomic.Uint64
	fetchTimeout time.Duration

	cacheSize int
	cache     *lru.Cache[string, string]
	group     singleflight.Group
	// cacheMu orders cache fills against invalidation; generation counts
	// invalidations so fetches started earlier never repopulate the cache.
	cacheMu    sync.Mutex
	generation atomic.Uint64
}

// New returns a client for endpoint, the full URL of the node's /rpc route.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("client: endpoint is required")
	}
	c := &Client{
		endpoint:     trimmed,
		http:         &http.Client{Timeout: defaultTimeout},
		fetchTimeout: defaultTimeout,
		cacheSize:    defaultCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	cache, err := lru.New[string, string](c.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("client: cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	if c == nil {
		return errNilClient
	}
	req := rpcRequest{JSONRPC: jsonRPCVersion, ID: c.nextID.Add(1), Method: method}
	if params != nil {
		req.Params = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("client: encode %s: %w", method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("client: %s: %w", method, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("client: read %s response: %w", method, err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("client: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		rpcErr := &Error{Code: decoded.Error.Code, Message: decoded.Error.Message, Status: resp.StatusCode}
		if len(decoded.Error.Data) > 0 {
			var data struct {
				Reason string `json:"reason"`
			}
			if json.Unmarshal(decoded.Error.Data, &data) == nil {
				rpcErr.Reason = data.Reason
			}
		}
		return rpcErr
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return fmt.Errorf("client: decode %s result: %w", method, err)
	}
	return nil
}

// cachedTotal serves a total from the cache or fetches it once for all
// concurrent callers asking for the same key. The shared fetch runs detached
// from any one caller, so a caller giving up does not fail the others.
func (c *Client) cachedTotal(ctx context.Context, key string, fetch func(context.Context) (string, error)) (string, error) {
	if c == nil {
		return "", errNilClient
	}
	gen := c.generation.Load()
	if value, ok := c.cache.Get(key); ok {
		return value, nil
	}
	flightKey := strconv.FormatUint(gen, 10) + "|" + key
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		total, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.cacheMu.Lock()
		if c.generation.Load() == gen {
			c.cache.Add(key, total)
		}
		c.cacheMu.Unlock()
		return total, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// InvalidateCache drops every cached total. Lookups already in flight still
// answer their callers but are not cached.
func (c *Client) InvalidateCache() {
	if c == nil || c.cache == nil {
		return
	}
	c.cacheMu.Lock()
	c.generation.Add(1)
	c.cache.Purge()
	c.cacheMu.Unlock()
}
