package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/internal/transport/httpapi"
	"bourse/internal/trading"
)

func newTestServer() *httptest.Server {
	cfg := trading.DefaultConfig()
	cfg.MarketInterval = time.Hour
	session := trading.New(cfg)
	return httptest.NewServer(httpapi.New(session).Handler())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPlaceOrder_SetsSessionCookieAndReturnsOrder(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{
		"side":       "buy",
		"order_type": "limit",
		"quantity":   "0.10",
		"price":      "90000",
	})
	resp, err := http.Post(srv.URL+"/api/orders", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			found = true
		}
	}
	assert.True(t, found, "a fresh session cookie must be set on first placement")
}

func TestPlaceOrder_RejectsBadTickWithBadRequest(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{
		"side":       "buy",
		"order_type": "limit",
		"quantity":   "0.10",
		"price":      "90003",
	})
	resp, err := http.Post(srv.URL+"/api/orders", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrderBook(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/orderbook")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
