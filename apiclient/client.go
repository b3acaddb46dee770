// Package apiclient is the single HTTP gateway used for every backend call.
// It attaches the stored bearer token, replays a request once after a
// successful token refresh on 401, and normalizes every failure into *Error.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout   = 30 * time.Second
	RequestIDHeader  = "X-Request-ID"
	maxResponseBytes = 10 << 20
)

// Refresher obtains a new session token after the current one was rejected.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// TokenListener is told about token changes made by the gateway itself.
type TokenListener interface {
	TokenRefreshed(token string)
	TokenRevoked()
}

type Client struct {
	baseURL    *url.URL
	tokens     token.Store
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	log        zerolog.Logger

	mu        sync.RWMutex
	refresher Refresher
	listeners []TokenListener

	refreshGroup singleflight.Group
}

type Option func(*Client)

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}

func WithTokenListener(l TokenListener) Option {
	return func(c *Client) {
		c.listeners = append(c.listeners, l)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a gateway for baseURL. tokens may be nil for clients that never
// send a bearer token.
func New(baseURL string, tokens token.Store, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[apiclient.New] base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, autherrors.Wrapf(err, "[apiclient.New] invalid base URL %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("[apiclient.New] base URL must be absolute")
	}

	c := &Client{
		baseURL:    u,
		tokens:     tokens,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		log:        log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetRefresher installs the refresher after construction. The backend
// refresher itself depends on a Client, so it cannot always be passed to New.
func (c *Client) SetRefresher(r Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = r
}

// AddTokenListener registers l for refresh and revocation events.
func (c *Client) AddTokenListener(l TokenListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Do sends r and decodes a successful JSON response into out (when non-nil).
// Every returned error is an *Error.
func (c *Client) Do(ctx context.Context, r *Request, out any) error {
	err := c.do(ctx, r, out)
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	method := http.MethodGet
	if r != nil && r.Method != "" {
		method = strings.ToUpper(r.Method)
	}
	metrics.GatewayRequestsTotal.WithLabelValues(method, outcome).Inc()
	return err
}

func (c *Client) do(ctx context.Context, r *Request, out any) error {
	if r == nil {
		return &Error{Kind: KindUnknown, Message: "nil request"}
	}
	body, err := encodeBody(r)
	if apiErr, ok := AsError(err); ok {
		return apiErr
	}
	if err != nil {
		return &Error{Kind: KindUnknown, Message: "could not encode request", Err: err}
	}

	// An explicit Authorization header replaces the stored token.
	var sent string
	if r.Header.Get("Authorization") == "" {
		sent = c.bearerToken(ctx)
	}
	status, respBody, err := c.send(ctx, r, body, sent)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && sent != "" && !r.SkipRefresh {
		original := statusError(status, respBody)
		fresh, rerr := c.refresh(ctx, sent)
		if rerr != nil {
			original.Err = rerr
			return original
		}
		// Replayed exactly once; a second 401 is returned as is.
		status, respBody, err = c.send(ctx, r, body, fresh)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return statusError(status, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindUnknown, Status: status, Message: "invalid response body", Err: err}
	}
	return nil
}

// bearerToken reads the stored token. Store failures never block a request.
func (c *Client) bearerToken(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	tok, err := c.tokens.Get(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not read session token, sending request unauthenticated")
		return ""
	}
	return tok
}

func (c *Client) send(ctx context.Context, r *Request, body *encodedBody, bearer string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target, err := c.resolve(r)
	if err != nil {
		return 0, nil, &Error{Kind: KindUnknown, Message: "invalid request path", Err: err}
	}

	reader, contentType := body.reader()
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, reader)
	if err != nil {
		if rc, ok := reader.(io.Closer); ok {
			_ = rc.Close()
		}
		return 0, nil, &Error{Kind: KindUnknown, Message: "could not build request", Err: err}
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stream, ok := reader.(*multipartStream); ok {
			if werr := stream.writeErr(); werr != nil {
				return 0, nil, &Error{Kind: KindUnknown, Message: "could not read upload file", Err: werr}
			}
		}
		c.log.Debug().Err(err).Str("method", req.Method).Str("path", r.Path).Msg("request failed without a response")
		return 0, nil, networkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, networkError(err)
	}
	c.log.Debug().
		Str("method", req.Method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("request completed")
	return resp.StatusCode, respBody, nil
}

func (c *Client) resolve(r *Request) (string, error) {
	// "./" keeps paths like "accounts:signUp" from parsing as a scheme.
	ref, err := url.Parse("./" + strings.TrimLeft(r.Path, "/"))
	if err != nil {
		return "", err
	}
	u := c.baseURL.ResolveReference(ref)
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
