// Package remote talks to the hosted store: the row-oriented items
// collection and the session endpoint.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TokenSource provides the bearer token sent with each request.
type TokenSource interface {
	AccessToken() string
}

// StaticToken is a fixed bearer token, used with a service key.
type StaticToken string

func (t StaticToken) AccessToken() string { return string(t) }

// ClientOpts configures a Client.
type ClientOpts struct {
	BaseURL string
	// APIKey is sent as the apikey header (anon key or service key).
	APIKey string
	// Tokens supplies the bearer token. Defaults to APIKey.
	Tokens  TokenSource
	Timeout time.Duration
}

// Client is a REST client for the items collection.
type Client struct {
	httpClient *resty.Client
	tokens     TokenSource
}

// NewClient creates a client for the store at opts.BaseURL.
func NewClient(opts ClientOpts) *Client {
	c := Client{tokens: opts.Tokens}
	if c.tokens == nil {
		c.tokens = StaticToken(opts.APIKey)
	}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeaders(map[string]string{
			"Accept": "application/json",
			"apikey": opts.APIKey,
		})
	if opts.Timeout > 0 {
		c.httpClient.SetTimeout(opts.Timeout)
	}
	return &c
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetAuthToken(c.tokens.AccessToken())

	if result != nil {
		request.SetResult(result)
	}

	return request
}

// Error is a failure reported by the hosted store. Code carries the
// structured error code when the store returns one.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (code %s, status %d)", e.Code, e.Status)
	} else {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	return b.String()
}

// handleError turns a failing response (>399 status code) into an *Error.
// Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if !res.IsError() {
		return res, nil
	}

	remoteErr := &Error{Status: res.StatusCode()}
	var body struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Details          any    `json:"details"`
		Hint             any    `json:"hint"`
		ErrorCode        string `json:"error_code"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if jsonErr := json.Unmarshal(res.Body(), &body); jsonErr == nil {
		remoteErr.Code = firstNonEmpty(stringOf(body.Code), body.ErrorCode, body.Error)
		remoteErr.Message = firstNonEmpty(body.Message, body.Msg, body.ErrorDescription, body.Error)
		remoteErr.Details = stringOf(body.Details)
		remoteErr.Hint = stringOf(body.Hint)
	}
	if remoteErr.Message == "" {
		remoteErr.Message = fmt.Sprintf("request failed: %s %s", res.Request.Method, res.Request.URL)
	}
	return res, remoteErr
}

// stringOf renders loosely typed error fields (the store sends codes as
// strings or numbers and details as strings or null).
func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
