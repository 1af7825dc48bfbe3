package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/httpclient"
)

func newProductServer(t *testing.T) *httptest.Server {
	t.Helper()
	stock := map[string]int{"P1": 10}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id != "P1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(productResponse{ID: id, Name: "Keyboard", Price: 125, StockQuantity: stock[id], IsActive: true})
	})
	mux.HandleFunc("POST /api/products/{id}/stock/reduce", func(w http.ResponseWriter, r *http.Request) {
		var req stockRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		id := r.PathValue("id")
		if stock[id] < req.Quantity {
			http.Error(w, "insufficient stock", http.StatusConflict)
			return
		}
		stock[id] -= req.Quantity
		_ = json.NewEncoder(w).Encode(stockResponse{Success: true, RemainingStock: stock[id]})
	})
	mux.HandleFunc("POST /api/products/{id}/stock/restore", func(w http.ResponseWriter, r *http.Request) {
		var req stockRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		id := r.PathValue("id")
		stock[id] += req.Quantity
		_ = json.NewEncoder(w).Encode(stockResponse{Success: true, RemainingStock: stock[id]})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProductHTTPAdapter_GetDetails(t *testing.T) {
	srv := newProductServer(t)
	a := NewProductHTTPAdapter(httpclient.NewClient(nil, time.Second), srv.URL+"/")

	details, err := a.GetDetails(context.Background(), "P1")
	require.NoError(t, err)
	assert.True(t, details.Success)
	assert.Equal(t, "Keyboard", details.Name)
	assert.Equal(t, 10, details.StockQuantity)
	assert.True(t, details.IsActive)

	details, err = a.GetDetails(context.Background(), "P404")
	require.NoError(t, err)
	assert.False(t, details.Success)
	assert.Equal(t, "product P404 not found", details.ErrorMessage)
}

func TestProductHTTPAdapter_Stock(t *testing.T) {
	srv := newProductServer(t)
	a := NewProductHTTPAdapter(httpclient.NewClient(nil, time.Second), srv.URL)
	ctx := context.Background()

	res, err := a.ReduceStock(ctx, "P1", 4)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 6, res.RemainingStock)

	res, err = a.ReduceStock(ctx, "P1", 50)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient stock", res.ErrorMessage)

	res, err = a.RestoreStock(ctx, "P1", 4)
	require.NoError(t, err)
	assert.Equal(t, 10, res.RemainingStock)
}

func TestProductHTTPAdapter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	a := NewProductHTTPAdapter(httpclient.NewClient(nil, time.Second), srv.URL)

	_, err := a.GetDetails(context.Background(), "P1")
	assert.ErrorContains(t, err, "get product P1")
	_, err = a.ReduceStock(context.Background(), "P1", 1)
	assert.ErrorContains(t, err, "change stock of P1")
}
