// Package catalog is a thin client for the external product catalog
// service.  Payloads are passed through untouched as raw JSON; the auth
// layer only decides who may call which operation.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iliyamo/storefront-auth/internal/config"
)

var (
	// ErrNotFound is returned when the catalog answers 404.
	ErrNotFound = errors.New("product not found")
	// ErrUpstream wraps any other non-2xx answer or transport failure.
	ErrUpstream = errors.New("catalog unavailable")
)

// StatusError carries the status and body the catalog returned so the
// proxy can relay them.  It matches ErrUpstream with errors.Is.
type StatusError struct {
	Status int
	Body   json.RawMessage
}

func (e *StatusError) Error() string { return fmt.Sprintf("catalog returned %d", e.Status) }

func (e *StatusError) Is(target error) bool { return target == ErrUpstream }

// Client talks JSON to the catalog's /products resource.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.CatalogConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: cfg.BaseURL, http: &http.Client{Timeout: timeout}}
}

// List returns all products.
func (c *Client) List(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/products", nil)
}

// Create posts a new product.
func (c *Client) Create(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/products", body)
}

// Update replaces product id.
func (c *Client) Update(ctx context.Context, id string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), body)
}

// Delete removes product id.
func (c *Client) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil)
}

// Purchase buys quantity units of product id.
func (c *Client) Purchase(ctx context.Context, id string, quantity int) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]int{"quantity": quantity})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(id)+"/purchase", body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		se := &StatusError{Status: resp.StatusCode}
		if json.Valid(data) {
			se.Body = data
		}
		return nil, se
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON response", ErrUpstream)
	}
	return data, nil
}
