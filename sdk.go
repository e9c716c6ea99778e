// sdk.go
// ------
// The sdk.go file contains the Client type, the entry point for callers.
//
// Key functionalities include:
// - Building a Client with New() from a resolved base URL
// - Carrying session cookies in a jar shared by every request
// - Attaching the CSRF header to mutating requests (request hook)
// - Refreshing the CSRF cookie with RefreshCSRFToken()
//
// Calls go through a RequestExecutor, which owns the single retry performed
// after a CSRF rejection.
package adminclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
)

// Client talks to the admin API. It is immutable after New and safe for
// concurrent use.
type Client struct {
	baseURL  string
	http     *resty.Client
	cookies  CookieReader
	executor *RequestExecutor
	logger   *zap.SugaredLogger
	debug    bool
}

type options struct {
	logger    *zap.SugaredLogger
	cookies   CookieReader
	transport http.RoundTripper
	debug     bool
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCookies replaces the cookie store consulted for the CSRF token.
// By default the client's own cookie jar is read.
func WithCookies(cookies CookieReader) Option {
	return func(o *options) { o.cookies = cookies }
}

// WithTransport sets the HTTP transport used for every request.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithDebug logs one line per request and response.
func WithDebug(enabled bool) Option {
	return func(o *options) { o.debug = enabled }
}

// New builds a Client for baseURL, which must be an absolute http(s) URL.
// Use ResolveBaseURL or Config.BaseURL to obtain one.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if !isOrigin(u) {
		return nil, fmt.Errorf("base URL %q is not an absolute http(s) URL", baseURL)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if o.cookies == nil {
		o.cookies = JarCookies{Jar: jar, BaseURL: u}
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cookies: o.cookies,
		logger:  o.logger,
		debug:   o.debug,
	}

	rc := resty.New().
		SetBaseURL(c.baseURL).
		SetCookieJar(jar).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(o.logger)
	if o.transport != nil {
		rc.SetTransport(o.transport)
	}
	rc.OnBeforeRequest(c.attachCSRFToken)
	rc.OnAfterResponse(c.logResponse)
	c.http = rc
	c.executor = NewRequestExecutor(c)

	c.debugf("client configured with base URL %s", c.baseURL)
	return c, nil
}

// BaseURL returns the origin every request is sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// csrfToken reads the CSRF cookie. An empty value counts as absent.
func (c *Client) csrfToken() (string, bool) {
	v, ok := c.cookies.Cookie(CSRFCookieName)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// attachCSRFToken runs before every outgoing request, including retries, so
// the freshest cookie value is used. It never fails the request.
func (c *Client) attachCSRFToken(_ *resty.Client, r *resty.Request) error {
	if !isMutating(r.Method) {
		return nil
	}
	if token, ok := c.csrfToken(); ok {
		r.Header.Set(CSRFHeaderName, token)
	}
	return nil
}

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func (c *Client) logResponse(_ *resty.Client, resp *resty.Response) error {
	c.debugf("%s %s -> %d (%v)", resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time())
	return nil
}

// RefreshCSRFToken asks the backend to issue a fresh CSRF cookie. Failures are
// logged and swallowed; a missing token makes the next mutating call fail on
// its own.
func (c *Client) RefreshCSRFToken(ctx context.Context) {
	resp, err := c.http.R().SetContext(ctx).Get(pathCSRFToken)
	if err != nil {
		c.logger.Warnw("failed to fetch CSRF token", "error", err)
		return
	}
	if resp.IsError() {
		c.logger.Warnw("failed to fetch CSRF token", "status", resp.StatusCode())
	}
}

// debugf logs only when debug mode is enabled.
func (c *Client) debugf(format string, args ...interface{}) {
	if c.debug {
		c.logger.Debugf(format, args...)
	}
}
