// Package libre is the HTTP transport for the LibreLinkUp cloud API.
// It only moves bytes; callers decide what a status code or body means.
package libre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/glucoview/glucoview/internal/config"
	"github.com/glucoview/glucoview/pkg/metrics"
)

const (
	EndpointLogin = "login"
	EndpointGraph = "graph"

	maxBodyBytes = 4 << 20
)

// Response is a raw upstream reply.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Client talks to the remote API with the headers the mobile app sends.
type Client struct {
	baseURL string
	version string
	product string
	http    *http.Client
}

// NewClient builds a client from config. A nil httpClient gets one bounded by cfg.Timeout.
func NewClient(cfg config.LibreConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{baseURL: cfg.BaseURL, version: cfg.Version, product: cfg.Product, http: httpClient}
}

// Login posts the credentials to /llu/auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (*Response, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/llu/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.do(req, EndpointLogin)
}

// Graph reads the glucose graph of a connection. accountID is sent as the Account-Id header.
func (c *Client) Graph(ctx context.Context, token, userID, accountID string) (*Response, error) {
	u := c.baseURL + "/llu/connections/" + url.PathEscape(userID) + "/graph"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if accountID != "" {
		req.Header.Set("Account-Id", accountID)
	}
	return c.do(req, EndpointGraph)
}

func (c *Client) do(req *http.Request, endpoint string) (*Response, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("version", c.version)
	req.Header.Set("product", c.product)
	req.Header.Set("User-Agent", "okhttp/4.9.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("%s read body: %w", endpoint, err)
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
	return &Response{Status: resp.StatusCode, Body: b}, nil
}
