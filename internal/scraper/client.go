// Package scraper downloads the public myScheme catalogue that the
// recommendation service indexes.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultListURL    = "https://api.myscheme.gov.in/search/v4/schemes?lang=en"
	DefaultDetailsURL = "https://api.myscheme.gov.in/schemes/v5/public/schemes?lang=en&slug="
	Origin            = "https://www.myscheme.gov.in"

	PageSize = 100
)

// StatusError is returned for non-2xx answers from myScheme.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Page is one page of the scheme listing.
type Page struct {
	Items      []json.RawMessage
	Size       int
	PageNumber int
	TotalPages int
}

// Last reports whether no further page should be requested.
func (p *Page) Last() bool {
	return len(p.Items) == 0 || p.Size == 0 || p.PageNumber >= p.TotalPages-1
}

type Client struct {
	httpClient *http.Client
	apiKey     string
	listURL    string
	detailsURL string
	logger     *zap.Logger
}

type Option func(*Client)

func WithListURL(u string) Option    { return func(c *Client) { c.listURL = u } }
func WithDetailsURL(u string) Option { return func(c *Client) { c.detailsURL = u } }

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(apiKey string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		listURL:    DefaultListURL,
		detailsURL: DefaultDetailsURL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json, text/plain, */*")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("origin", Origin)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: rawURL, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", rawURL, err)
	}
	return nil
}

// FetchPage requests size schemes starting at offset from.
func (c *Client) FetchPage(ctx context.Context, from, size int) (*Page, error) {
	var body struct {
		Data struct {
			Hits struct {
				Items []json.RawMessage `json:"items"`
				Page  struct {
					Size       int `json:"size"`
					PageNumber int `json:"pageNumber"`
					TotalPages int `json:"totalPages"`
				} `json:"page"`
			} `json:"hits"`
		} `json:"data"`
	}

	u := c.listURL + "&from=" + strconv.Itoa(from) + "&size=" + strconv.Itoa(size)
	if err := c.get(ctx, u, &body); err != nil {
		return nil, err
	}

	hits := body.Data.Hits
	return &Page{
		Items:      hits.Items,
		Size:       hits.Page.Size,
		PageNumber: hits.Page.PageNumber,
		TotalPages: hits.Page.TotalPages,
	}, nil
}

// FetchDetails returns the "data" object of one scheme.
func (c *Client) FetchDetails(ctx context.Context, slug string) (json.RawMessage, error) {
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, c.detailsURL+url.QueryEscape(slug), &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}
