package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/pricepulse/pricepulse-cli/internal/session"
)

const DefaultBaseURL = "http://localhost:3001/api"

// CookieStore persists the long-lived refresh cookie between runs. A browser
// keeps its cookie jar on disk; the CLI delegates that to the session
// persister.
type CookieStore interface {
	LoadCookies() ([]*http.Cookie, error)
	SaveCookies([]*http.Cookie) error
	DeleteCookies() error
}

// ClientOpts configures a Client.
type ClientOpts struct {
	// BaseURL of the PricePulse API, DefaultBaseURL when empty.
	BaseURL string
	// Store receives session mutations from login, refresh and logout.
	Store *session.Store
	// Cookies persists the refresh cookie across runs. Optional.
	Cookies CookieStore
	// InstallationID is sent as a header on every request. Optional.
	InstallationID string
	Debug          bool
}

// Client talks to the PricePulse API. It attaches the current access token
// to outgoing requests, carries the refresh cookie in its jar, and retries a
// request once after an authentication failure by minting a new token
// through the single-flight refresh path.
type Client struct {
	httpClient   *resty.Client
	store        *session.Store
	cookies      CookieStore
	baseURL      *url.URL
	jar          http.CookieJar
	refreshGroup singleflight.Group
}

// NewClient creates a client. The store must not be nil.
func NewClient(opts ClientOpts) (*Client, error) {
	rawURL := opts.BaseURL
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", rawURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		store:   opts.Store,
		cookies: opts.Cookies,
		baseURL: baseURL,
		jar:     jar,
	}

	if c.cookies != nil {
		stored, err := c.cookies.LoadCookies()
		if err != nil {
			log.Warn().Err(err).Msg("failed to load persisted cookies")
		} else if len(stored) > 0 {
			jar.SetCookies(baseURL, stored)
		}
	}

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "pricepulse-cli",
	}
	if opts.InstallationID != "" {
		headers["X-Installation-Id"] = opts.InstallationID
	}

	c.httpClient = resty.New().
		SetDebug(opts.Debug).
		SetBaseURL(rawURL).
		SetCookieJar(jar).
		SetHeaders(headers)

	return c, nil
}

// requestOpts is a single logical call through the dispatcher. The retried
// flag makes retry-after-401 an explicit two-state machine: a request is
// re-issued at most once, so a refresh loop cannot form.
type requestOpts struct {
	method  string
	path    string
	body    any
	query   map[string]string
	noAuth  bool
	retried bool
}

// do dispatches a request and returns the raw response body. On a 401 of an
// authenticated, not-yet-retried request it refreshes the access token and
// re-issues the identical request once; an unrecoverable 401 surfaces as
// ErrAuthExpired with the session already cleared.
func (c *Client) do(ctx context.Context, o requestOpts) ([]byte, error) {
	req := c.httpClient.NewRequest().SetContext(ctx)
	if o.body != nil {
		req.SetBody(o.body)
		// resty sets the JSON content type for struct and map bodies;
		// pre-encoded ones need it spelled out.
		switch o.body.(type) {
		case []byte, string:
			req.SetHeader("Content-Type", "application/json")
		}
	}
	if len(o.query) > 0 {
		req.SetQueryParams(o.query)
	}
	if !o.noAuth {
		if token := c.store.Get().AccessToken; token != "" {
			req.SetAuthToken(token)
		}
	}

	resp, err := req.Execute(o.method, o.path)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", o.method, o.path, err)
	}

	if resp.StatusCode() == http.StatusUnauthorized && !o.noAuth && !o.retried {
		token, err := c.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, ErrAuthExpired
		}
		o.retried = true
		return c.do(ctx, o)
	}

	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if resp.IsError() {
		return nil, newAPIError(resp)
	}

	return resp.Body(), nil
}

func newAPIError(resp *resty.Response) error {
	body := resp.Body()
	env := decodeEnvelope(body)
	msg := env.message()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}

	var detail map[string]any
	if len(body) > 0 {
		// Best effort; non-JSON bodies leave detail nil
		_ = json.Unmarshal(body, &detail)
	}

	return &APIError{Status: resp.StatusCode(), Message: msg, Detail: detail}
}

// decodeData unmarshals the envelope's data field into T. Absent or
// malformed data yields the zero value.
func decodeData[T any](body []byte) T {
	var v T
	env := decodeEnvelope(body)
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &v)
	}
	return v
}

// persistCookies saves the jar's current cookies after an auth exchange so
// the refresh credential survives the process.
func (c *Client) persistCookies() {
	if c.cookies == nil {
		return
	}
	if err := c.cookies.SaveCookies(c.jar.Cookies(c.baseURL)); err != nil {
		log.Warn().Err(err).Msg("failed to persist cookies")
	}
}
