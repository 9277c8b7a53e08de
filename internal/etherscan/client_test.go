package etherscan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvkare/metaguard-snap/internal/config"
)

const testAddress = "0x1234567890abcdef1234567890abcdef12345678"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.EtherscanConfig{
		APIURL:        srv.URL,
		Timeout:       5 * time.Second,
		CacheTTL:      time.Minute,
		ErrorCacheTTL: time.Minute,
		MaxCacheSize:  10,
	}, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
}

// fakeExplorer answers getsourcecode and txlist like an Etherscan-compatible
// API, counting upstream calls.
type fakeExplorer struct {
	calls      atomic.Int64
	sourceCode string
	name       string
	txCount    int
	statusCode int
}

func (f *fakeExplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)

	if f.statusCode != 0 {
		w.WriteHeader(f.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Query().Get("action") {
	case "getsourcecode":
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[{"SourceCode":%q,"ContractName":%q}]}`,
			f.sourceCode, f.name)
	case "txlist":
		if f.txCount == 0 {
			fmt.Fprint(w, `{"status":"0","message":"No transactions found","result":[]}`)
			return
		}
		txs := make([]string, 0, f.txCount)
		for i := 0; i < f.txCount; i++ {
			txs = append(txs, fmt.Sprintf(`{"hash":"0xabc%d","from":%q,"to":%q,"value":"1000","timeStamp":"1700000000"}`,
				i, testAddress, testAddress))
		}
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`, strings.Join(txs, ","))
	default:
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"unknown action"}`)
	}
}

func TestGetContractInfo_Verified(t *testing.T) {
	explorer := &fakeExplorer{sourceCode: "contract Token {}", name: "Token", txCount: 3}
	client := newTestClient(t, explorer)

	info := client.GetContractInfo(context.Background(), testAddress)

	assert.True(t, info.Verified)
	assert.Equal(t, "Token", info.Name)
	assert.Empty(t, info.Error)
}

func TestGetContractInfo_Unverified(t *testing.T) {
	explorer := &fakeExplorer{sourceCode: "", txCount: 3}
	client := newTestClient(t, explorer)

	info := client.GetContractInfo(context.Background(), testAddress)

	assert.False(t, info.Verified)
	assert.Empty(t, info.Error)
	// An unverified contract needs no history lookup
	assert.Equal(t, int64(1), explorer.calls.Load())
}

func TestGetContractInfo_ZeroHistoryDowngrade(t *testing.T) {
	// Published source but no on-chain activity reads as a spoof
	explorer := &fakeExplorer{sourceCode: "contract Fake {}", name: "Fake", txCount: 0}
	client := newTestClient(t, explorer)

	info := client.GetContractInfo(context.Background(), testAddress)

	assert.False(t, info.Verified)
	assert.Empty(t, info.Error)
}

func TestGetContractInfo_UpstreamError(t *testing.T) {
	explorer := &fakeExplorer{statusCode: http.StatusInternalServerError}
	client := newTestClient(t, explorer)

	info := client.GetContractInfo(context.Background(), testAddress)

	assert.False(t, info.Verified)
	assert.NotEmpty(t, info.Error)
}

func TestGetContractInfo_InvalidAddress(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected for an invalid address")
	}))

	info := client.GetContractInfo(context.Background(), "not-an-address")

	assert.False(t, info.Verified)
	assert.Equal(t, "invalid address", info.Error)
}

func TestGetContractInfo_Cached(t *testing.T) {
	explorer := &fakeExplorer{sourceCode: "contract Token {}", name: "Token", txCount: 1}
	client := newTestClient(t, explorer)

	first := client.GetContractInfo(context.Background(), testAddress)
	callsAfterFirst := explorer.calls.Load()

	// Different casing must hit the same cache entry
	second := client.GetContractInfo(context.Background(), "0x"+strings.ToUpper(testAddress[2:]))

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, explorer.calls.Load())
}

func TestGetContractInfo_ErrorsCached(t *testing.T) {
	explorer := &fakeExplorer{statusCode: http.StatusBadGateway}
	client := newTestClient(t, explorer)

	client.GetContractInfo(context.Background(), testAddress)
	callsAfterFirst := explorer.calls.Load()

	info := client.GetContractInfo(context.Background(), testAddress)

	assert.NotEmpty(t, info.Error)
	assert.Equal(t, callsAfterFirst, explorer.calls.Load())
}

func TestGetTransactionHistory(t *testing.T) {
	explorer := &fakeExplorer{txCount: 2}
	client := newTestClient(t, explorer)

	txs, err := client.GetTransactionHistory(context.Background(), testAddress)

	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "0xabc0", txs[0].Hash)
	assert.Equal(t, "1000", txs[0].Value)
	assert.Equal(t, int64(1700000000), txs[0].Timestamp)
}

func TestGetTransactionHistory_Empty(t *testing.T) {
	explorer := &fakeExplorer{txCount: 0}
	client := newTestClient(t, explorer)

	txs, err := client.GetTransactionHistory(context.Background(), testAddress)

	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestGetTransactionHistory_InvalidAddress(t *testing.T) {
	explorer := &fakeExplorer{}
	client := newTestClient(t, explorer)

	_, err := client.GetTransactionHistory(context.Background(), "0x123")

	assert.Error(t, err)
	assert.Equal(t, int64(0), explorer.calls.Load())
}
