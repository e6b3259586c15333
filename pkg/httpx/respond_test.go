package httpx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/pkg/httpx"
)

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpx.JSON(rec, http.StatusOK, map[string]string{"status": "active"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"active"}}`, rec.Body.String())
}

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("http error keeps status and code", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		httpx.Error(rec, httpx.NewError(http.StatusBadRequest, "signature_mismatch", "payment signature could not be verified"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":{"code":"signature_mismatch","message":"payment signature could not be verified"}}`, rec.Body.String())
	})

	t.Run("wrapped http error unwraps", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		wrapped := errors.Join(errors.New("context"), httpx.ErrNotFound)
		httpx.Error(rec, wrapped)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown error becomes 500 without leaking", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		httpx.Error(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Amount string `json:"amount"`
	}

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"100"}`))
		var p payload
		require.NoError(t, httpx.DecodeJSON(req, &p))
		assert.Equal(t, "100", p.Amount)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"100","extra":1}`))
		var p payload
		err := httpx.DecodeJSON(req, &p)
		var httpErr httpx.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	})
}
