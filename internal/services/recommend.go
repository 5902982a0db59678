package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"yojana-backend/internal/models"
)

const (
	DefaultLocalURL      = "http://localhost:8000"
	DefaultProductionURL = "https://yojanaai.onrender.com"

	// UpstreamTimeout is the default deadline for a call to the
	// recommendation service.
	UpstreamTimeout = 60 * time.Second

	maxResponseBytes = 4 << 20
)

// Endpoints holds the two base URLs the builder chooses between.
type Endpoints struct {
	Local      string
	Production string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{Local: DefaultLocalURL, Production: DefaultProductionURL}
}

// SelectBaseURL picks the local endpoint for development hosts and the
// production endpoint for everything else. host may include a port.
func SelectBaseURL(host string, ep Endpoints) string {
	name := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = h
	}
	name = strings.Trim(strings.ToLower(name), "[]")

	switch name {
	case "localhost", "127.0.0.1", "::1":
		return ep.Local
	default:
		return ep.Production
	}
}

// RequestDescriptor describes an outbound call without performing it.
type RequestDescriptor struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    interface{}
}

type RequestBuilder struct {
	baseURL string
}

func NewRequestBuilder(host string, ep Endpoints) *RequestBuilder {
	return &RequestBuilder{baseURL: strings.TrimRight(SelectBaseURL(host, ep), "/")}
}

func (b *RequestBuilder) BaseURL() string {
	return b.baseURL
}

// BuildRecommend describes a POST /recommend carrying the prior turns and
// the current input.
func (b *RequestBuilder) BuildRecommend(history []string, input string) RequestDescriptor {
	h := make([]string, len(history))
	copy(h, history)
	return b.createRequest("recommend", models.RecommendRequest{
		ConversationHistory: h,
		CurrentInput:        input,
	})
}

// BuildRefine describes a POST /refine answering a clarifying question.
func (b *RequestBuilder) BuildRefine(originalQuery, followupAnswer string) RequestDescriptor {
	return b.createRequest("refine", models.RefineRequest{
		OriginalQuery:  originalQuery,
		FollowupAnswer: followupAnswer,
	})
}

func (b *RequestBuilder) createRequest(endpoint string, body interface{}) RequestDescriptor {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return RequestDescriptor{
		URL:     b.baseURL + endpoint,
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// RecommendClient performs request descriptors against the recommendation
// service. It attaches the caller's bearer token, enforces a per-call deadline
// and bounds the number of concurrent upstream calls.
type RecommendClient struct {
	httpClient *http.Client
	rateChan   chan struct{} // Token bucket
	timeout    time.Duration
	logger     *zap.Logger
}

type ClientOption func(*RecommendClient)

// WithTimeout overrides UpstreamTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RecommendClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewRecommendClient(concurrentReqs int, logger *zap.Logger, opts ...ClientOption) *RecommendClient {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	c := &RecommendClient{
		httpClient: &http.Client{},
		rateChan:   rateChan,
		timeout:    UpstreamTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the deadline applied to each call.
func (c *RecommendClient) Timeout() time.Duration {
	return c.timeout
}

// CloseIdleConnections drops pooled upstream connections.
func (c *RecommendClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// acquireRate blocks until a rate slot is available
func (c *RecommendClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RecommendClient) releaseRate() {
	c.rateChan <- struct{}{}
}

// Do sends the described request. The Authorization header is only set when
// token is non-empty.
func (c *RecommendClient) Do(ctx context.Context, desc RequestDescriptor, token string) (*models.RecommendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer c.releaseRate()

	payload, err := json.Marshal(desc.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, desc.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range desc.Headers {
		req.Header.Set(k, v)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("recommendation request failed",
			zap.String("url", desc.URL), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("recommendation request aborted: %w", ctxErr)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", ctxErr)
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("recommendation request completed",
		zap.String("url", desc.URL), zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &UpstreamStatusError{Status: resp.StatusCode, Body: snippet}
	}

	out := &models.RecommendResponse{}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation response: %w", err)
	}
	return out, nil
}
