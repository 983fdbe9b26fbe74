package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClothesFinderRequest is the body of POST /api/clothes-finder.
type ClothesFinderRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Mode        string `json:"mode"`
}

// ClothesFinderResponse is either a tag list or an error message.
type ClothesFinderResponse struct {
	Tags  []string `json:"tags,omitempty"`
	Error string   `json:"error,omitempty"`
}

// ClothesFinderProvider calls the relay server's clothes-finder endpoint.
type ClothesFinderProvider struct {
	httpClient *resty.Client
	mode       string
}

// NewClothesFinderProvider creates a provider for the endpoint at baseURL.
func NewClothesFinderProvider(baseURL string, timeout time.Duration) *ClothesFinderProvider {
	return &ClothesFinderProvider{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		mode: "tags",
	}
}

func (c *ClothesFinderProvider) Name() string { return "clothes-finder" }

// Analyze implements Provider.
func (c *ClothesFinderProvider) Analyze(ctx context.Context, img Image) (*ProviderResult, error) {
	var result ClothesFinderResponse
	res, err := c.httpClient.NewRequest().
		SetContext(ctx).
		SetBody(ClothesFinderRequest{
			ImageBase64: base64.StdEncoding.EncodeToString(img.Data),
			Mode:        c.mode,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/api/clothes-finder")
	if err != nil {
		return nil, providerErr(c.Name(), KindUnavailable, err)
	}

	if res.IsError() {
		msg := result.Error
		if msg == "" {
			msg = res.Status()
		}
		return nil, providerErr(c.Name(), KindUnavailable, fmt.Errorf("request failed: %s (status: %d)", msg, res.StatusCode()))
	}
	if result.Error != "" {
		return nil, providerErr(c.Name(), KindBadResponse, errors.New(result.Error))
	}

	out := normalize(result.Tags, nil)
	if len(out.Tags) == 0 {
		return nil, providerErr(c.Name(), KindEmpty, nil)
	}
	return out, nil
}
