package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvkare/metaguard-snap/internal/analysis/domain"
	"github.com/qvkare/metaguard-snap/internal/etherscan"
)

// mockService implements Service for testing
type mockService struct {
	report *domain.SecurityReport
	lastTx domain.Transaction
}

func (m *mockService) AnalyzeTransaction(ctx context.Context, tx domain.Transaction) *domain.SecurityReport {
	m.lastTx = tx
	return m.report
}

// mockContracts implements ContractLookup for testing
type mockContracts struct {
	info etherscan.ContractInfo
}

func (m *mockContracts) GetContractInfo(ctx context.Context, address string) etherscan.ContractInfo {
	return m.info
}

func newTestRouter(svc Service, contracts ContractLookup) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(svc, contracts).RegisterRoutes(r)
	return r
}

func TestHandleAnalyze(t *testing.T) {
	svc := &mockService{report: &domain.SecurityReport{
		ID:       "report-1",
		Risk:     domain.RiskLow,
		Warnings: []string{},
	}}
	router := newTestRouter(svc, &mockContracts{})

	body := `{"to":"0x1234567890abcdef1234567890abcdef12345678","from":"0xabc","value":"1000"}`
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report domain.SecurityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "report-1", report.ID)
	assert.Equal(t, domain.RiskLow, report.Risk)

	require.NotNil(t, svc.lastTx.To)
	assert.Equal(t, "0x1234567890abcdef1234567890abcdef12345678", *svc.lastTx.To)
	assert.Equal(t, "1000", svc.lastTx.Value)
}

func TestHandleAnalyze_NullToIsContractCreation(t *testing.T) {
	svc := &mockService{report: &domain.SecurityReport{ID: "r", Risk: domain.RiskHigh}}
	router := newTestRouter(svc, &mockContracts{})

	body := `{"to":null,"from":"0xabc","value":"0","data":"0x6080"}`
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastTx.To)
	assert.True(t, svc.lastTx.IsContractCreation())
}

func TestHandleAnalyze_InvalidJSON(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockContracts{})

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	assert.Equal(t, "Invalid JSON", resp.Error.Message)
}

func TestHandleContractInfo(t *testing.T) {
	contracts := &mockContracts{info: etherscan.ContractInfo{Verified: true, Name: "Token"}}
	router := newTestRouter(&mockService{}, contracts)

	req := httptest.NewRequest(http.MethodGet, "/contracts/0x1234567890abcdef1234567890abcdef12345678", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var info etherscan.ContractInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Verified)
	assert.Equal(t, "Token", info.Name)
}

func TestHandleContractInfo_InvalidAddress(t *testing.T) {
	router := newTestRouter(&mockService{}, &mockContracts{})

	req := httptest.NewRequest(http.MethodGet, "/contracts/not-an-address", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}
