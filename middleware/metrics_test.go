package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfyxzls/webSecurity/internal/observability"
)

func TestHTTPMetrics(t *testing.T) {
	metrics, err := observability.NewMetrics("http-test")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(HTTPMetrics(metrics))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/implicit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/items/1", "/items/2", "/implicit"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `route="/items/{id}"`)
	assert.Contains(t, body, `status="418"`)
	assert.Contains(t, body, `route="/implicit"`)
	assert.Contains(t, body, `status="200"`)
}
