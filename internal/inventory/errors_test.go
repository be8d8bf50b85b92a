package inventory

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/store"
)

func TestFromStoreKinds(t *testing.T) {
	cases := []struct {
		in   error
		want Kind
	}{
		{store.ErrNotFound, KindNotFound},
		{store.ErrDuplicate, KindDuplicate},
		{fmt.Errorf("%w: dial tcp: refused", store.ErrUnavailable), KindStoreUnavailable},
		{store.ErrSchemaMismatch, KindSchemaMismatch},
		{store.ErrConflict, KindConflict},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		got := fromStore(tc.in, "item 7")
		require.Equal(t, tc.want, KindOf(got), tc.in.Error())
		require.ErrorIs(t, got, tc.in)
	}
	require.NoError(t, fromStore(nil, "noop"))
}

func TestErrorMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindInsufficientStock, nil, "Insufficient stock for Pen: 1 available, 2 requested"))
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Equal(t, "Insufficient stock for Pen: 1 available, 2 requested", Reason(err))
}

func TestToAppErrorHidesInternals(t *testing.T) {
	appErr := ToAppError(fromStore(store.ErrSchemaMismatch, "append"))
	require.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	require.Equal(t, "internal error", appErr.Message)

	appErr = ToAppError(fromStore(store.ErrUnavailable, "get item"))
	require.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
	require.Equal(t, "STORE_UNAVAILABLE", appErr.Code)
}
