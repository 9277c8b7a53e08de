package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(handler http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestFilterMiddleware_BlocksScannerPaths(t *testing.T) {
	handler := FilterMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	blocked := []string{
		"/wp-admin/setup.php",
		"/.env",
		"/.git/config",
		"/phpmyadmin/index.php",
		"/api/v1/../../etc/passwd",
		"/api/v1/%2e%2e/secrets",
	}

	for _, path := range blocked {
		rec := doRequest(handler, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "BAD_REQUEST", path)
	}
}

func TestFilterMiddleware_AllowsAPIPaths(t *testing.T) {
	handler := FilterMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := []string{
		"/api/v1/analyze",
		"/api/v1/contracts/0x1234567890abcdef1234567890abcdef12345678",
		"/healthz",
		"/metrics",
	}

	for _, path := range allowed {
		rec := doRequest(handler, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestFilterMiddleware_Disabled(t *testing.T) {
	handler := FilterMiddleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := doRequest(handler, http.MethodGet, "/wp-admin/setup.php", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	handler := MaxBodySizeMiddleware(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	small := doRequest(handler, http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"value":"0"}`))
	require.Equal(t, http.StatusOK, small.Code)

	big := doRequest(handler, http.MethodPost, "/api/v1/analyze", strings.NewReader(strings.Repeat("x", 2*1024*1024)))
	assert.Equal(t, http.StatusBadRequest, big.Code)
}
