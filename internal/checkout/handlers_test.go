package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/lock"
)

type countingDisplay struct{ clears int }

func (d *countingDisplay) Clear(context.Context) error {
	d.clears++
	return nil
}

func newHandlerRouter(t *testing.T, f *fixture, display checkout.DisplayClearer) http.Handler {
	t.Helper()
	h, _ := newHandlerRouterWithRedis(t, f, display)
	return h
}

func newHandlerRouterWithRedis(t *testing.T, f *fixture, display checkout.DisplayClearer) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := checkout.NewHandler(checkout.HandlerConfig{
		Processor: f.processor,
		Catalog:   f.svc,
		Locker:    lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 50 * time.Millisecond},
		Display:   display,
	})
	r := chi.NewRouter()
	h.Routes(r, common.Idem{R: client, TTL: time.Minute}.Middleware)
	return r, mr
}

func post(t *testing.T, h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAddLineAndQuote(t *testing.T) {
	f := newFixture(t)
	mug := f.add(t, "Mug", 10, "10.00")
	h := newHandlerRouter(t, f, nil)

	rec := post(t, h, "/cart/lines", `{"cart":{"lines":[]},"itemId":1,"qty":3}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var added struct {
		Data checkout.Cart `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Len(t, added.Data.Lines, 1)
	require.Equal(t, mug.ID, added.Data.Lines[0].ItemID)

	body, err := json.Marshal(added.Data.WithDiscount(10))
	require.NoError(t, err)
	rec = post(t, h, "/cart/quote", string(body), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quoted struct {
		Data struct {
			Totals struct {
				Subtotal string `json:"subtotal"`
				Discount string `json:"discount"`
				Total    string `json:"total"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quoted))
	require.Equal(t, "30", quoted.Data.Totals.Subtotal)
	require.Equal(t, "3", quoted.Data.Totals.Discount)
	require.Equal(t, "27", quoted.Data.Totals.Total)

	rec = post(t, h, "/cart/lines", `{"cart":{"lines":[]},"barcode":"nope","qty":1}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutHandler(t *testing.T) {
	f := newFixture(t)
	f.add(t, "itemA", 5, "2.00")
	f.add(t, "itemB", 3, "4.00")
	display := &countingDisplay{}
	h := newHandlerRouter(t, f, display)

	okCart := `{"cart":{"lines":[{"itemId":1,"name":"itemA","unitPrice":"2.00","qty":1}]},"paymentMethod":"card"}`
	headers := map[string]string{"Idempotency-Key": "sale-1", "X-Register-ID": "front"}
	rec := post(t, h, "/checkout", okCart, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, display.clears)

	rec = post(t, h, "/checkout", okCart, headers)
	require.Equal(t, http.StatusConflict, rec.Code, "replayed checkout must not sell twice")
	require.Equal(t, 4, f.qty(t, 1))

	partial := `{"cart":{"lines":[{"itemId":1,"name":"itemA","unitPrice":"2.00","qty":2},{"itemId":2,"name":"itemB","unitPrice":"4.00","qty":10}]}}`
	rec = post(t, h, "/checkout", partial, map[string]string{"Idempotency-Key": "sale-2"})
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	var payload struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "PARTIAL_BATCH", payload.Error.Code)
	require.Contains(t, payload.Error.Message, "Failed itemB")
	require.Equal(t, 2, f.qty(t, 1))
	require.Equal(t, 3, f.qty(t, 2))
	require.Equal(t, 1, display.clears, "a partial sale keeps the customer display")

	var partialData struct {
		Data struct {
			Totals  struct{ Total string } `json:"totals"`
			Charged struct{ Total string } `json:"charged"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &partialData))
	require.Equal(t, "44", partialData.Data.Totals.Total)
	require.Equal(t, "4", partialData.Data.Charged.Total, "only the sold lines are charged")

	rec = post(t, h, "/checkout", `{"cart":{"lines":[]}}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutBusyRegisterFreesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.add(t, "itemA", 5, "2.00")
	h, mr := newHandlerRouterWithRedis(t, f, nil)

	require.NoError(t, mr.Set("pos:lock:checkout:front", "other-sale"))
	cart := `{"cart":{"lines":[{"itemId":1,"name":"itemA","unitPrice":"2.00","qty":1}]}}`
	headers := map[string]string{"Idempotency-Key": "sale-9", "X-Register-ID": "front"}

	rec := post(t, h, "/checkout", cart, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "REGISTER_BUSY", payload.Error.Code)
	require.Equal(t, 5, f.qty(t, 1))

	mr.Del("pos:lock:checkout:front")
	rec = post(t, h, "/checkout", cart, headers)
	require.Equal(t, http.StatusCreated, rec.Code, "the key is free again once the register was busy")
	require.Equal(t, 4, f.qty(t, 1))

	rec = post(t, h, "/checkout", cart, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "IDEMPOTENT_REPLAY", payload.Error.Code)
	require.Equal(t, 4, f.qty(t, 1))
}

func TestRestockHandler(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Pen", 1, "1.00")
	h := newHandlerRouter(t, f, nil)

	rec := post(t, h, "/restock", `{"lines":[{"itemId":1,"qty":9}],"note":"Invoice 7"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 10, f.qty(t, 1))

	rec = post(t, h, "/restock", `{"lines":[{"itemId":42,"qty":1}]}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, h, "/restock", `{"lines":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
