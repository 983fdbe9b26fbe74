// Package relay is the client for the trusted server-mediated endpoints
// that perform writes and uploads with elevated trust.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/wardrobe/internal/wardrobe"
)

// IdempotencyHeader carries the client-generated mutation key.
const IdempotencyHeader = "Idempotency-Key"

// ErrorResponse is the error body of every relay endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	PublicURL string `json:"publicUrl"`
}

// DeleteRequest is the body of POST /api/wardrobe/delete.
type DeleteRequest struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// DeleteResponse is the body of a successful delete.
type DeleteResponse struct {
	Deleted wardrobe.Item `json:"deleted"`
}

// TokenSource provides the caller's bearer token.
type TokenSource interface {
	AccessToken() string
}

// ClientOpts configures a Client.
type ClientOpts struct {
	BaseURL string
	Tokens  TokenSource
	Timeout time.Duration
}

// Client calls the relay server.
type Client struct {
	httpClient *resty.Client
	tokens     TokenSource
}

// NewClient creates a relay client.
func NewClient(opts ClientOpts) *Client {
	c := &Client{
		tokens: opts.Tokens,
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
			SetHeader("Accept", "application/json"),
	}
	if opts.Timeout > 0 {
		c.httpClient.SetTimeout(opts.Timeout)
	}
	return c
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetError(&ErrorResponse{})
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			request.SetAuthToken(token)
		}
	}
	if result != nil {
		request.SetResult(result)
	}
	return request
}

// AddItem creates an item through the relay.
func (c *Client) AddItem(ctx context.Context, idempotencyKey string, item wardrobe.Item) (*wardrobe.Item, error) {
	var created wardrobe.Item
	_, err := handleError(c.req(ctx, &created).
		SetHeader(IdempotencyHeader, idempotencyKey).
		SetBody(item).
		Post("/api/wardrobe/add"))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateItem replaces the mutable fields of an item through the relay.
func (c *Client) UpdateItem(ctx context.Context, idempotencyKey string, item wardrobe.Item) (*wardrobe.Item, error) {
	var updated wardrobe.Item
	_, err := handleError(c.req(ctx, &updated).
		SetHeader(IdempotencyHeader, idempotencyKey).
		SetBody(item).
		Post("/api/wardrobe/update"))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteItem deletes an item through the relay and returns the removed row.
func (c *Client) DeleteItem(ctx context.Context, idempotencyKey, id, ownerID string) (*wardrobe.Item, error) {
	var resp DeleteResponse
	_, err := handleError(c.req(ctx, &resp).
		SetHeader(IdempotencyHeader, idempotencyKey).
		SetBody(DeleteRequest{ID: id, UserID: ownerID}).
		Post("/api/wardrobe/delete"))
	if err != nil {
		return nil, err
	}
	return &resp.Deleted, nil
}

// UploadFile uploads a photo through the relay and returns its public URL.
func (c *Client) UploadFile(ctx context.Context, ownerID string, photo wardrobe.Photo) (string, error) {
	var resp UploadResponse
	_, err := handleError(c.req(ctx, &resp).
		SetMultipartField("file", photo.Name, photo.MIMEType, bytes.NewReader(photo.Data)).
		SetMultipartFormData(map[string]string{"userId": ownerID}).
		Post("/api/wardrobe/upload"))
	if err != nil {
		return "", err
	}
	if resp.PublicURL == "" {
		return "", errors.New("upload response has no publicUrl")
	}
	return resp.PublicURL, nil
}

// handleError surfaces the relay's {error} message for failing responses.
// Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if !res.IsError() {
		return res, nil
	}
	if e, ok := res.Error().(*ErrorResponse); ok && e.Error != "" {
		return res, errors.New(e.Error)
	}
	return res, fmt.Errorf("request failed: %s %s (status: %d)", res.Request.Method, res.Request.URL, res.StatusCode())
}
