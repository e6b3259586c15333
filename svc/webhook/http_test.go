package webhook_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/svc/webhook"
)

func TestHandlerReceive(t *testing.T) {
	t.Parallel()

	post := func(t *testing.T, env *testEnv, raw []byte, signature, eventID string) *httptest.ResponseRecorder {
		t.Helper()
		handler := webhook.NewHandler(env.svc, nil)
		req := httptest.NewRequest(http.MethodPost, "/razorpay", bytes.NewReader(raw))
		req.Header.Set("X-Razorpay-Signature", signature)
		req.Header.Set("X-Razorpay-Event-Id", eventID)
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, req)
		return rec
	}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		raw := body(t, "order.paid", map[string]any{})

		rec := post(t, env, raw, env.gw.SignWebhook(raw), "evt_1")
		assert.Equal(t, http.StatusOK, rec.Code)
		respBody, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, "Ok.", string(respBody))
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		raw := body(t, "order.paid", map[string]any{})

		post(t, env, raw, env.gw.SignWebhook(raw), "evt_1")
		rec := post(t, env, raw, env.gw.SignWebhook(raw), "evt_1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Already Received.", rec.Body.String())
	})

	t.Run("forbidden on bad signature", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		raw := body(t, "order.paid", map[string]any{})

		rec := post(t, env, raw, "forged", "evt_1")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, env.messages.Messages())
	})
}
