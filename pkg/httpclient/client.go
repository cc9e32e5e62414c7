package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// HeaderAccessToken carries the stored token on every request.
	HeaderAccessToken = "access-token"

	// DefaultTimeout is the fixed per-request timeout.
	DefaultTimeout = 8000 * time.Millisecond

	// MsgMissingToken is the warning raised when no token is stored.
	MsgMissingToken = "access token not found; request sent without access-token header"
)

// Config is fixed at construction.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client wraps one resty.Client with the token request hook and the envelope response hook.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	cfg        Config
	rc         *resty.Client
	httpClient *http.Client
	userAgent  string
	tokens     TokenProvider
	notifier   Notifier
	downloader Downloader
	log        Logger
	strict     bool
}

// Option customizes a Client.
type Option func(*Client)

// WithTokenProvider sets where access tokens are read from.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) {
		if p != nil {
			c.tokens = p
		}
	}
}

// WithNotifier sets the sink for missing-token warnings and application alerts.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithDownloader sets the capability used by StreamDownload and LinkDownload.
func WithDownloader(d Downloader) Option {
	return func(c *Client) {
		if d != nil {
			c.downloader = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithStrictEnvelope makes verbs return a KindApplication error for non-zero rsCode
// instead of resolving with the data field.
func WithStrictEnvelope() Option {
	return func(c *Client) { c.strict = true }
}

// WithHTTPClient swaps the underlying http.Client (custom transports, tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New builds the client and registers its hooks exactly once.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		tokens:     noTokens{},
		notifier:   noopNotifier{},
		downloader: noDownloader{},
		log:        noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.rc = newRestyBaseClient(c.httpClient, cfg.Timeout)
	if cfg.BaseURL != "" {
		c.rc.SetBaseURL(cfg.BaseURL)
	}
	if c.userAgent != "" {
		c.rc.SetHeader("User-Agent", c.userAgent)
	}
	c.rc.OnBeforeRequest(c.beforeRequest)
	c.rc.OnAfterResponse(c.afterResponse)
	c.rc.OnError(c.logError)
	return c
}

// Config returns the construction-time configuration.
func (c *Client) Config() Config { return c.cfg }

// NewRestyHTTPClient exposes a plain resty.Client with the given timeout for callers
// that need raw HTTP without token or envelope handling.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(nil, timeout)
}

func newRestyBaseClient(hc *http.Client, timeout time.Duration) *resty.Client {
	var rc *resty.Client
	if hc != nil {
		// SetTimeout writes to the wrapped client; keep the caller's untouched.
		cp := *hc
		rc = resty.NewWithClient(&cp)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(timeout)
	return rc
}

// beforeRequest attaches the access token, or warns once when none is stored.
func (c *Client) beforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &Error{Kind: KindRequestSetup, Method: req.Method, URL: req.URL, Cause: err}
	}

	if token != "" {
		req.SetHeader(HeaderAccessToken, token)
	} else {
		c.notifier.Notify(ctx, Notice{
			Level:   LevelWarning,
			Message: MsgMissingToken,
			Method:  req.Method,
			URL:     req.URL,
			At:      time.Now().UTC(),
		})
	}

	c.log.DebugObj("outgoing request", "request", map[string]any{
		"method":    req.Method,
		"url":       req.URL,
		"has_token": token != "",
		"binary":    isBinary(ctx),
	})
	return nil
}

// afterResponse rejects non-2xx responses, passes binary responses through untouched and
// unwraps the envelope of everything else.
func (c *Client) afterResponse(_ *resty.Client, resp *resty.Response) error {
	req := resp.Request
	if !resp.IsSuccess() {
		return &Error{
			Kind:       KindTransport,
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: resp.StatusCode(),
			Body:       readBodySnippet(resp.Body(), resp.Header().Get("Content-Type")),
		}
	}

	st := callStateFrom(req.Context())
	if st == nil || st.binary {
		return nil
	}

	env, err := decodeEnvelope(resp.Body())
	if err != nil {
		return &Error{Kind: KindTransport, Method: req.Method, URL: req.URL, StatusCode: resp.StatusCode(), Cause: err}
	}
	st.envelope = env

	if env.RsCode != 0 {
		c.notifier.Notify(req.Context(), Notice{
			Level:   LevelAlert,
			Message: env.RsCause,
			Code:    env.RsCode,
			Method:  req.Method,
			URL:     req.URL,
			At:      time.Now().UTC(),
		})
	}

	c.log.DebugObj("response received", "response", map[string]any{
		"method":  req.Method,
		"url":     req.URL,
		"status":  resp.StatusCode(),
		"rs_code": env.RsCode,
	})
	return nil
}

func (c *Client) logError(req *resty.Request, err error) {
	kind := KindTransport
	if ce, ok := AsError(err); ok {
		kind = ce.Kind
	}
	if kind == KindTransport && req != nil && errors.Is(req.Context().Err(), context.Canceled) {
		kind = KindCancellation
	}

	fields := map[string]any{
		"kind":  kind.String(),
		"error": err.Error(),
	}
	if req != nil {
		fields["method"] = req.Method
		fields["url"] = req.URL
	}
	if kind == KindCancellation {
		c.log.WarnObj("request cancelled", "request_error", fields)
		return
	}
	c.log.ErrorObj("request failed", "request_error", fields)
}

// newRequest prepares a request carrying its own call state.
func (c *Client) newRequest(ctx context.Context, binary bool, opts []CallOption) (*resty.Request, *callState) {
	if ctx == nil {
		ctx = context.Background()
	}
	st := &callState{binary: binary}
	req := c.rc.R().SetContext(withCallState(ctx, st))
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	return req, st
}

func (c *Client) execute(req *resty.Request, method, url string) (*resty.Response, error) {
	resp, err := req.Execute(method, url)
	if err != nil {
		return resp, classify(req.Context(), err, method, url)
	}
	return resp, nil
}

func isBinary(ctx context.Context) bool {
	st := callStateFrom(ctx)
	return st != nil && st.binary
}
