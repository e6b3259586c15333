package environment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creatorkit/creatorkit/pkg/environment"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		ctx := environment.WithContext(context.Background(), environment.Staging)
		assert.Equal(t, environment.Staging, environment.FromContext(ctx))
	})

	t.Run("empty without value", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, environment.Environment(""), environment.FromContext(context.Background()))
	})

	t.Run("predicates accept short spellings", func(t *testing.T) {
		t.Parallel()
		assert.True(t, environment.IsProduction(environment.WithContext(context.Background(), "prod")))
		assert.True(t, environment.IsDevelopment(environment.WithContext(context.Background(), environment.Development)))
		assert.False(t, environment.IsProduction(environment.WithContext(context.Background(), environment.Development)))
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var seen environment.Environment
	h := environment.Middleware(environment.Production)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = environment.FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, environment.Production, seen)
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := environment.LoggerExtractor()

	attr, ok := extract(environment.WithContext(context.Background(), environment.Staging))
	assert.True(t, ok)
	assert.Equal(t, "env", attr.Key)
	assert.Equal(t, "staging", attr.Value.String())

	_, ok = extract(context.Background())
	assert.False(t, ok)
}
