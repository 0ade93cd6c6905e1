package reconcile

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocklane/stocklane/internal/ledger"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&PartialFailureError{Op: "sale_create", EventID: "chg-1", VariantID: "var-1", Err: errors.New("store down")}, http.StatusBadGateway},
		{&LedgerWriteError{Op: "sale_create", Err: errors.New("store down")}, http.StatusBadGateway},
		{ErrNonPositiveQuantity, http.StatusBadRequest},
		{ErrZeroAdjustment, http.StatusBadRequest},
		{ErrInsufficientStock, http.StatusBadRequest},
		{ErrNegativeProjection, http.StatusBadRequest},
		{ErrDuplicateAdjustmentNo, http.StatusConflict},
		{ErrVariantNotFound, http.StatusNotFound},
		{ErrEventNotFound, http.StatusNotFound},
		{ledger.ErrNotFound, http.StatusNotFound},
		{errors.New("store down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, "error %v", tc.err)
	}
}
