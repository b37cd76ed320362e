// Package resolve turns douyin short links into direct media URLs via a
// remote lookup API.
//
// The API answers GET <base>?url=<encoded link> with JSON of the form
//
//	{"code":200,"data":{"url":"...","title":"...","author":"..."}}
//
// or, on failure, {"code":<n>,"msg":"..."}.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public lookup endpoint.
const DefaultBaseURL = "https://api.xhus.cn/api/douyin"

// DefaultTimeout bounds a single lookup call.
const DefaultTimeout = 30 * time.Second

// Result is a successful resolution.
type Result struct {
	MediaURL string
	Title    string
	Author   string
}

// Client is the lookup API client. Resolution is a single attempt per link;
// retrying is the caller's decision (and by design there is none).
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. Empty baseURL selects DefaultBaseURL,
// zero timeout selects DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		URL    string `json:"url"`
		Title  string `json:"title"`
		Author string `json:"author"`
	} `json:"data"`
}

// Resolve looks up link and returns the direct media URL. Any failure —
// transport error, non-2xx status, malformed body, API-reported error, or
// a response without a media URL — is returned as an error.
func (c *Client) Resolve(ctx context.Context, link string) (Result, error) {
	reqURL := fmt.Sprintf("%s?url=%s", c.baseURL, url.QueryEscape(link))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("resolve: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("resolve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("resolve: HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("resolve: decode response: %w", err)
	}

	if body.Code != 200 || body.Data == nil || body.Data.URL == "" {
		if body.Msg != "" {
			return Result{}, fmt.Errorf("%s", body.Msg)
		}
		return Result{}, fmt.Errorf("resolve: no media url in response (code %d)", body.Code)
	}

	return Result{
		MediaURL: body.Data.URL,
		Title:    body.Data.Title,
		Author:   body.Data.Author,
	}, nil
}
