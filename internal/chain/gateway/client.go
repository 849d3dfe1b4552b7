// Package gateway implements chain.Client against a signing gateway: an
// HTTP service that owns the deployer key, signs and broadcasts contract
// calls, and proxies read-only calls and transaction lookups to a node.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/linkctl/internal/chain"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Config configures the gateway client.
type Config struct {
	// URL is the base URL of the gateway (e.g. "http://localhost:3999").
	URL string
	// Token is sent as a bearer token when non-empty.
	Token string
	// Timeout bounds each HTTP request. Default: 15s.
	Timeout time.Duration
}

// Client talks JSON over HTTP to the gateway.
type Client struct {
	base   string
	token  string
	client *http.Client
}

// New creates a gateway client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: invalid url %q", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:   strings.TrimRight(cfg.URL, "/"),
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type callRequest struct {
	Contract string   `json:"contract"`
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

type callResponse struct {
	TxID string `json:"tx_id"`
}

type readResponse struct {
	Value string `json:"value"`
}

type txResponse struct {
	Status chain.TxStatus `json:"status"`
	Detail string         `json:"detail,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CallPublicFunction implements chain.Client.
func (c *Client) CallPublicFunction(ctx context.Context, contract, function string, args []string) (string, error) {
	var resp callResponse
	req := callRequest{Contract: contract, Function: function, Args: nonNil(args)}
	if err := c.do(ctx, http.MethodPost, "/v1/calls", req, &resp); err != nil {
		return "", err
	}
	if resp.TxID == "" {
		return "", chain.Errorf(chain.KindMalformed, "gateway returned no tx id for %s::%s", contract, function)
	}
	return resp.TxID, nil
}

// ReadOnlyCall implements chain.Client.
func (c *Client) ReadOnlyCall(ctx context.Context, contract string, query chain.Query) (string, error) {
	var resp readResponse
	req := callRequest{Contract: contract, Function: query.Function, Args: nonNil(query.Args)}
	if err := c.do(ctx, http.MethodPost, "/v1/reads", req, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

// TxStatus implements chain.Client.
func (c *Client) TxStatus(ctx context.Context, txID string) (chain.TxResult, error) {
	var resp txResponse
	if err := c.do(ctx, http.MethodGet, "/v1/tx/"+url.PathEscape(txID), nil, &resp); err != nil {
		return chain.TxResult{}, err
	}
	switch resp.Status {
	case chain.TxPending, chain.TxSuccess, chain.TxReverted, chain.TxDropped:
	default:
		return chain.TxResult{}, chain.Errorf(chain.KindMalformed, "unknown tx status %q", resp.Status)
	}
	return chain.TxResult{Status: resp.Status, Detail: resp.Detail}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		kind := chain.KindUnavailable
		if chain.KindOf(err) == chain.KindTimeout {
			kind = chain.KindTimeout
		}
		return &chain.Error{Kind: kind, Message: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &chain.Error{Kind: chain.KindMalformed, Message: "decode " + path, Err: err}
	}
	return nil
}

// statusError maps a non-200 response onto the chain error taxonomy.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var kind chain.ErrorKind
	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		kind = chain.KindRateLimited
	case code == http.StatusConflict:
		kind = chain.KindNonceConflict
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		kind = chain.KindTimeout
	case code >= 500:
		kind = chain.KindUnavailable
	case code == http.StatusNotFound:
		kind = chain.KindNotFound
	default:
		kind = chain.KindRejected
	}
	return &chain.Error{Kind: kind, Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg)}
}

func nonNil(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}

var _ chain.Client = (*Client)(nil)
