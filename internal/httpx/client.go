// Package httpx is the generic request wrapper every remote resource client
// goes through. It injects the bearer credential, applies interceptor chains
// and turns non-2xx responses into structured errors, so individual call
// sites never re-implement session-expiry handling.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thehub/storefront/internal/session"
)

// Config describes one outgoing request. Path is resolved against the
// client's base URL. Body may be nil, an io.Reader (sent verbatim, the
// caller owns the Content-Type) or any JSON-marshalable value.
type Config struct {
	Method  string
	Path    string
	Params  url.Values
	Body    any
	Headers http.Header
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) Decode(out any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// RequestInterceptor may rewrite the outgoing config or fail the request.
type RequestInterceptor func(*Config) error

// ResponseInterceptor runs on every received response, before status
// classification; returning an error short-circuits the call.
type ResponseInterceptor func(*Response) error

type Client struct {
	base   string
	hc     *http.Client
	tokens *session.TokenStore

	reqInterceptors  []RequestInterceptor
	respInterceptors []ResponseInterceptor
}

func NewClient(baseURL string, tokens *session.TokenStore) *Client {
	return &Client{
		base:   strings.TrimSuffix(baseURL, "/"),
		tokens: tokens,
		hc: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) UseRequest(ic RequestInterceptor) {
	c.reqInterceptors = append(c.reqInterceptors, ic)
}

func (c *Client) UseResponse(ic ResponseInterceptor) {
	c.respInterceptors = append(c.respInterceptors, ic)
}

// Do executes one request. On any non-2xx status it returns a *Error carrying
// the status, the response body and the originating config. A 401 clears the
// stored token and notifies every unauthorized subscriber before returning.
func (c *Client) Do(ctx context.Context, cfg Config) (*Response, error) {
	if cfg.Headers == nil {
		cfg.Headers = http.Header{}
	} else {
		cfg.Headers = cfg.Headers.Clone()
	}
	for _, ic := range c.reqInterceptors {
		if err := ic(&cfg); err != nil {
			return nil, err
		}
	}

	body, err := c.encodeBody(&cfg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(cfg.Method), c.buildURL(cfg), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range cfg.Headers {
		req.Header[k] = vs
	}
	if tok := c.tokens.Get(); tok != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	httpResp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp := &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}
	for _, ic := range c.respInterceptors {
		if err := ic(resp); err != nil {
			return nil, err
		}
	}

	if resp.Status < 200 || resp.Status > 299 {
		if resp.Status == http.StatusUnauthorized {
			c.tokens.Clear()
			c.tokens.NotifyUnauthorized(resp.Status)
		}
		return nil, &Error{Status: resp.Status, Body: data, Config: cfg}
	}
	return resp, nil
}

// DoJSON executes the request and decodes a 2xx response body into out.
func (c *Client) DoJSON(ctx context.Context, cfg Config, out any) error {
	resp, err := c.Do(ctx, cfg)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) buildURL(cfg Config) string {
	u := c.base + "/" + strings.TrimPrefix(cfg.Path, "/")
	if enc := cfg.Params.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Client) encodeBody(cfg *Config) (io.Reader, error) {
	switch b := cfg.Body.(type) {
	case nil:
		return nil, nil
	case io.Reader:
		return b, nil
	case []byte:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		if cfg.Headers.Get("Content-Type") == "" {
			cfg.Headers.Set("Content-Type", "application/json")
		}
		return bytes.NewReader(data), nil
	}
}
