package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/stocklane/stocklane/internal/ledger"
)

func newTestRouter(t *testing.T) (http.Handler, *ledger.Memory) {
	t.Helper()
	svc, store := newTestService(t)
	h := NewHandler(slog.Default(), svc)
	r := chi.NewRouter()
	r.Route("/variants", h.MountRoutes)
	return r, store
}

func TestCreateVariantThresholdWireName(t *testing.T) {
	router, store := newTestRouter(t)

	body := `{"productName":"Shirt","productColor":"Blue","productSize":"M","actualProductQuantity":50,"thresholdProductQuantity":7,"productUnit":"pcs"}`
	req := httptest.NewRequest(http.MethodPost, "/variants", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"thresholdProductQuantity":7`)

	variants, err := store.ListVariants(context.Background())
	require.NoError(t, err)
	require.Len(t, variants, 1)
	require.InDelta(t, 7.0, variants[0].Threshold, 0.0001)
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrDuplicateVariant, http.StatusConflict},
		{ErrVariantNotFound, http.StatusNotFound},
		{ledger.ErrNotFound, http.StatusNotFound},
		{errors.New("store down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, "error %v", tc.err)
	}
}
