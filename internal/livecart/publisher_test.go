package livecart_test

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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/livecart"
	"github.com/noah-isme/toko-pos/internal/settings"
	"github.com/noah-isme/toko-pos/internal/store"
	"github.com/noah-isme/toko-pos/internal/store/memory"
)

var published = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleCart() checkout.Cart {
	mug := inventory.Item{ID: 1, Name: "Mug", Price: decimal.RequireFromString("10.00"), SalePercent: 20}
	socks := inventory.Item{ID: 2, Name: "Socks", Price: decimal.RequireFromString("10.00"), BOGO: true}
	return checkout.Cart{}.
		Add(checkout.NewLine(mug, 3, "")).
		Add(checkout.NewLine(socks, 5, "")).
		WithDiscount(10)
}

func redisStore(t *testing.T) settings.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return settings.NewRedisStore(client, "test", 0)
}

func TestPublisherBackends(t *testing.T) {
	backends := map[string]func(t *testing.T) settings.Store{
		"memory": func(*testing.T) settings.Store { return memory.New().Settings() },
		"redis":  redisStore,
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			p := &livecart.Publisher{Store: newStore(t), Now: func() time.Time { return published }}
			ctx := context.Background()

			_, found, err := p.Fetch(ctx)
			require.NoError(t, err)
			require.False(t, found, "nothing published yet")

			snap, err := p.PublishCart(ctx, sampleCart())
			require.NoError(t, err)
			require.Equal(t, "48.6", snap.Total.String())

			first, found, err := p.Fetch(ctx)
			require.NoError(t, err)
			require.True(t, found)
			second, _, err := p.Fetch(ctx)
			require.NoError(t, err)
			require.Equal(t, first, second)
			require.Len(t, first.Lines, 2)
			require.Equal(t, "8", first.Lines[0].EffectivePrice.String())
			require.Equal(t, "30", first.Lines[1].LineTotal.String())
			require.True(t, first.UpdatedAt.Equal(published))

			require.NoError(t, p.Clear(ctx))
			cleared, found, err := p.Fetch(ctx)
			require.NoError(t, err)
			require.True(t, found, "a cleared cart is still a published cart")
			require.True(t, cleared.Empty())
			require.NotNil(t, cleared.Lines)
			require.True(t, cleared.Total.IsZero())
		})
	}
}

func TestPublisherLastWriteWins(t *testing.T) {
	p := &livecart.Publisher{Store: memory.New().Settings()}
	ctx := context.Background()

	_, err := p.PublishCart(ctx, sampleCart())
	require.NoError(t, err)
	_, err = p.PublishCart(ctx, sampleCart().Remove(1))
	require.NoError(t, err)

	snap, _, err := p.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	require.Equal(t, "Socks", snap.Lines[0].Name)
}

func TestFetchCorruptSnapshot(t *testing.T) {
	s := memory.New().Settings()
	require.NoError(t, s.Set(context.Background(), livecart.DefaultKey, "{not json"))
	_, _, err := (&livecart.Publisher{Store: s}).Fetch(context.Background())
	require.ErrorIs(t, err, livecart.ErrCorruptSnapshot)
}

type downStore struct{}

func (downStore) Get(context.Context, string) (string, bool, error) {
	return "", false, store.ErrUnavailable
}

func (downStore) Set(context.Context, string, string) error { return store.ErrUnavailable }

func TestHandlers(t *testing.T) {
	r := chi.NewRouter()
	livecart.NewHandler(&livecart.Publisher{Store: memory.New().Settings()}).Routes(r)

	get := func() map[string]any {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live-cart", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	require.Equal(t, false, get()["published"])

	cart, err := json.Marshal(sampleCart())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/live-cart", strings.NewReader(string(cart))))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, get()["published"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/live-cart", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	body := get()
	require.Equal(t, true, body["published"])
	require.Empty(t, body["data"].(map[string]any)["lines"])

	down := chi.NewRouter()
	livecart.NewHandler(&livecart.Publisher{Store: downStore{}}).Routes(down)
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live-cart", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
