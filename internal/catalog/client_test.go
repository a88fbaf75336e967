package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-auth/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.CatalogConfig{BaseURL: srv.URL, Timeout: time.Second})
}

func TestClient_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":1,"name":"mate"}]`))
	})

	out, err := c.List(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"mate"}]`, string(out))
}

func TestClient_PurchaseSendsQuantity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products/7/purchase", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"quantity":3}`, string(b))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":7,"stock":2}`))
	})

	out, err := c.Purchase(context.Background(), "7", 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"stock":2}`, string(out))
}

func TestClient_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Update(context.Background(), "9", json.RawMessage(`{"name":"x"}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_UpstreamStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"insufficient stock"}`))
	})

	_, err := c.Purchase(context.Background(), "1", 100)
	require.ErrorIs(t, err, ErrUpstream)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.JSONEq(t, `{"detail":"insufficient stock"}`, string(se.Body))
}

func TestClient_TransportFailure(t *testing.T) {
	c := NewClient(config.CatalogConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Delete(context.Background(), "1")
	assert.ErrorIs(t, err, ErrUpstream)
}
