// Package client provides the Go client for the itemgrid HTTP API: item
// CRUD, the change event feed, and the live watch stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxBodySize = 1 << 20 // 1MiB
	defaultResource    = "items"
)

// Item is one stored item as the server represents it.
type Item struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Config configures the itemgrid client.
type Config struct {
	// BaseURL is the base URL of the gateway (e.g. http://localhost:8080).
	BaseURL string
	// Resource overrides the collection path segment. Defaults to "items".
	Resource string
	// HTTPClient is used to execute requests. When nil, a default client
	// with a conservative timeout is used.
	HTTPClient *http.Client
	// AuthToken, when set, is sent as a bearer token on every request.
	AuthToken string
	// MaxBodyBytes caps response bodies to prevent memory exhaustion.
	MaxBodyBytes int64
}

// Client calls the itemgrid gateway over HTTP. Every operation performs
// exactly one request: no retries, no caching, no backoff.
type Client struct {
	baseURL      string
	resource     string
	httpClient   *http.Client
	authToken    string
	maxBodyBytes int64
}

// New creates a new itemgrid client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("client: BaseURL must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("client: BaseURL scheme must be http or https")
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("client: BaseURL must not include user info")
	}

	resource := strings.Trim(strings.TrimSpace(cfg.Resource), "/")
	if resource == "" {
		resource = defaultResource
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultTimeout
	}

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodySize
	}

	return &Client{
		baseURL:      baseURL,
		resource:     resource,
		httpClient:   httpClient,
		authToken:    strings.TrimSpace(cfg.AuthToken),
		maxBodyBytes: maxBodyBytes,
	}, nil
}

// List returns every item in the collection, in server order.
func (c *Client) List(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := c.doJSON(ctx, http.MethodGet, c.collectionPath(), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns one item by id.
func (c *Client) Get(ctx context.Context, id string) (*Item, error) {
	path, err := c.itemPath(id)
	if err != nil {
		return nil, err
	}
	var out Item
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create stores a new item with the given attributes and returns the
// record with its server-assigned identifier.
func (c *Client) Create(ctx context.Context, attributes map[string]any) (*Item, error) {
	payload := map[string]any{"attributes": attributes}
	var out Item
	if err := c.doJSON(ctx, http.MethodPost, c.collectionPath(), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the attributes of an existing item.
func (c *Client) Update(ctx context.Context, id string, attributes map[string]any) (*Item, error) {
	path, err := c.itemPath(id)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"attributes": attributes}
	var out Item
	if err := c.doJSON(ctx, http.MethodPut, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an item. The raw response is returned so callers can
// inspect whatever acknowledgment the server sends.
func (c *Client) Delete(ctx context.Context, id string) (*Response, error) {
	path, err := c.itemPath(id)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodDelete, path, nil)
}

// Events returns recent change events, newest first. A zero limit uses the
// server default; eventType narrows the feed to one type when non-empty.
func (c *Client) Events(ctx context.Context, limit int, eventType EventType) ([]Event, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if eventType != "" {
		query.Set("type", string(eventType))
	}
	path := c.collectionPath() + "/events"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var events []Event
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Response captures a raw HTTP exchange result.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("client: response body is empty")
	}
	return json.Unmarshal(r.Body, v)
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("client: server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a gateway 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) collectionPath() string {
	return "/" + c.resource
}

func (c *Client) itemPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("client: item id is required")
	}
	return c.collectionPath() + "/" + url.PathEscape(id), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client: client is nil")
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, data)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	resp, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &APIError{StatusCode: status, Message: payload.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
