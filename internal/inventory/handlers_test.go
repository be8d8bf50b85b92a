package inventory_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/store/memory"
)

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	mem := memory.New()
	r := chi.NewRouter()
	inventory.NewHandler(newService(mem)).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestItemHandlersFlow(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodPost, "/items", `{"name":"Sketchbook","category":"paper","barcode":"555","price":"12.00","quantity":4,"minThreshold":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data inventory.Item `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "PAPER", created.Data.Category)
	require.Equal(t, 4, created.Data.Quantity)

	rec = do(t, h, http.MethodPost, "/items", `{"name":"Sketchbook","price":"1.00"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/items/lookup?barcode=555", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/items/1/adjust", `{"delta":-3,"type":"SALE","paymentMethod":"card"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var adjusted struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adjusted))
	require.Equal(t, "Stock updated. New Quantity: 1", adjusted.Message)

	rec = do(t, h, http.MethodPost, "/items/1/adjust", `{"delta":-5,"type":"SALE"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var failed errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	require.Equal(t, "INSUFFICIENT_STOCK", failed.Error.Code)
	require.Equal(t, "Insufficient stock for Sketchbook: 1 available, 5 requested", failed.Error.Message)

	rec = do(t, h, http.MethodGet, "/items?low_stock=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var low struct {
		Data []inventory.Item `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &low))
	require.Len(t, low.Data, 1)

	rec = do(t, h, http.MethodGet, "/transactions?type=sale", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var txs struct {
		Data []inventory.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs.Data, 1)
	require.Equal(t, inventory.PaymentCard, txs.Data[0].PaymentMethod)

	rec = do(t, h, http.MethodGet, "/reports/top-selling?period=month", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/items/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/items/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestItemHandlersValidation(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodPost, "/items", `{"price":"1.00"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/items/abc/adjust", `{"delta":1,"type":"RESTOCK"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/items", `{"name":"Ruler","price":"3.00","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/items/1/adjust", `{"delta":5,"type":"SALE"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/items/1/adjust", `{"delta":-1,"type":"RESTOCK"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/items/lookup", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/transactions?since=yesterday", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
