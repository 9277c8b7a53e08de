package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvkare/metaguard-snap/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis:  config.AnalysisConfig{EvidenceTimeout: time.Second},
		Etherscan: config.EtherscanConfig{APIURL: "http://127.0.0.1:0", Timeout: time.Second, CacheTTL: time.Minute, MaxCacheSize: 10},
		Phishing:  config.PhishingConfig{FeedURL: "http://127.0.0.1:0", GoPlusURL: "http://127.0.0.1:0", Timeout: time.Second, CacheTTL: time.Minute, MaxCacheSize: 10},
		Logging:   config.LoggingConfig{Level: "info", Format: "text"},
		Security:  config.SecurityConfig{FilterEnabled: true, MaxBodySizeMB: 1},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	srv, err := New(testConfig(), nil, logger)
	require.NoError(t, err)
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	}
}

func TestAnalyzeRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestAnalyzeRejectsOversizedBody(t *testing.T) {
	srv := newTestServer(t)

	body := `{"value":"` + strings.Repeat("9", 2*1024*1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScannerProbesBlocked(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/wp-login.php", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestContractInfoRejectsBadAddress(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts/nope", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
