// Package imagery selects a background photo for a weather condition from the
// Unsplash search API.
package imagery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"

	"skyview/internal/external"
	"skyview/internal/types"
)

const maxErrorBody = 4 << 10

// Searcher is the contract the widget session depends on. The boolean is
// false when the search succeeded but returned no photos.
type Searcher interface {
	Search(ctx context.Context, description string) (types.ImageResult, bool, error)
}

// Picker returns an index in [0, n). n is always positive.
type Picker func(n int) int

// RandomPicker picks uniformly at random.
func RandomPicker(n int) int {
	return rand.IntN(n)
}

// Options holds the search parameters sent with every request.
type Options struct {
	PageSize    int
	Orientation string
}

// Client calls the photo search endpoint.
type Client struct {
	http      *external.BaseClient
	accessKey types.SecretString
	baseURL   string
	opts      Options
	pick      Picker
}

var _ Searcher = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPicker overrides the random selection. Tests use it to pin the choice.
func WithPicker(p Picker) ClientOption {
	return func(c *Client) {
		c.pick = p
	}
}

// NewClient creates a Client. baseURL is the full search endpoint, e.g.
// https://api.unsplash.com/search/photos.
func NewClient(httpClient *external.BaseClient, accessKey types.SecretString, baseURL string, opts Options, clientOpts ...ClientOption) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 30
	}
	if opts.Orientation == "" {
		opts.Orientation = "landscape"
	}

	c := &Client{
		http:      httpClient,
		accessKey: accessKey,
		baseURL:   baseURL,
		opts:      opts,
		pick:      RandomPicker,
	}
	for _, opt := range clientOpts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Total   int `json:"total"`
	Results []struct {
		ID   string `json:"id"`
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

type apiError struct {
	Errors []string `json:"errors"`
}

// Search runs one query for description and picks one photo from the first
// page of results.
func (c *Client) Search(ctx context.Context, description string) (types.ImageResult, bool, error) {
	endpoint, err := c.buildURL(description)
	if err != nil {
		return types.ImageResult{}, false, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid image endpoint", err)
	}

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return types.ImageResult{}, false, asImageError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ImageResult{}, false, mapStatus(resp)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.ImageResult{}, false, types.NewAppError(types.ErrCodeUpstreamImageMalformed, "failed to decode image search response", err)
	}

	candidates := make([]string, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.URLs.Regular != "" {
			candidates = append(candidates, r.URLs.Regular)
		}
	}
	if len(candidates) == 0 {
		return types.ImageResult{}, false, nil
	}

	idx := c.pick(len(candidates))
	if idx < 0 || idx >= len(candidates) {
		idx = 0
	}

	return types.ImageResult{
		URL:        candidates[idx],
		Query:      description,
		Candidates: len(candidates),
	}, true, nil
}

func (c *Client) buildURL(description string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	q.Set("client_id", c.accessKey.Unmask())
	q.Set("query", description)
	q.Set("orientation", c.opts.Orientation)
	q.Set("per_page", strconv.Itoa(c.opts.PageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func mapStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
		message = apiErr.Errors[0]
	}
	details := map[string]any{"status": resp.StatusCode}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamImageAuth, message, nil, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamImage,
			fmt.Sprintf("image provider returned %d: %s", resp.StatusCode, message), nil, details)
	}
}

func asImageError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamUnavailable {
		return &types.AppError{
			Code:    types.ErrCodeUpstreamImage,
			Message: appErr.Message,
			Err:     appErr.Err,
			Details: appErr.Details,
		}
	}
	return err
}
