// Package etherscan provides the contract verification lookup against an
// Etherscan-compatible block explorer API. Lookup failure is evidence, not a
// fatal error: every path returns a ContractInfo, with failures folded into
// its Error field.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/qvkare/metaguard-snap/internal/cache"
	"github.com/qvkare/metaguard-snap/internal/config"
	"github.com/qvkare/metaguard-snap/internal/observability/metrics"
	"github.com/qvkare/metaguard-snap/internal/validation"
)

// ContractInfo is the evidence produced for a destination address.
// Verified false with a non-empty Error means "evidence unavailable", which
// downstream treats as unverified, never as verified.
type ContractInfo struct {
	Verified bool   `json:"verified"`
	Name     string `json:"name,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Transaction is one historical transaction of an address as reported by the
// explorer.
type Transaction struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// Client queries the explorer API and caches results per normalized address.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
	cache  *cache.Cache[ContractInfo]
	cfg    config.EtherscanConfig
	group  singleflight.Group
	logger *slog.Logger
}

// NewClient creates a contract verification client.
func NewClient(cfg config.EtherscanConfig, logger *slog.Logger) *Client {
	return &Client{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache: cache.New[ContractInfo](cache.Options{
			MaxEntries: cfg.MaxCacheSize,
			DefaultTTL: cfg.CacheTTL,
		}),
		cfg:    cfg,
		logger: logger,
	}
}

// GetContractInfo returns verification evidence for address. The result is
// cached; errors are cached too, with a short TTL so transient outages
// self-heal. Concurrent lookups for the same address share one upstream call.
func (c *Client) GetContractInfo(ctx context.Context, address string) ContractInfo {
	if !validation.IsValidAddress(address) {
		return ContractInfo{Verified: false, Error: "invalid address"}
	}

	key := validation.NormalizeAddress(address)
	if info, ok := c.cache.Get(key); ok {
		metrics.RecordCacheEvent("etherscan", "hit")
		return info
	}
	metrics.RecordCacheEvent("etherscan", "miss")

	v, _, _ := c.group.Do(key, func() (any, error) {
		info := c.fetchContractInfo(ctx, key)

		ttl := c.cfg.CacheTTL
		status := "ok"
		if info.Error != "" {
			ttl = c.cfg.ErrorCacheTTL
			status = "error"
		}
		c.cache.Set(key, info, ttl)
		metrics.RecordLookup("etherscan", status)
		return info, nil
	})
	return v.(ContractInfo)
}

// GetTransactionHistory returns the explorer's transaction list for address,
// newest first. Unlike GetContractInfo it surfaces errors, since callers use
// it as a secondary signal and decide themselves how to degrade.
func (c *Client) GetTransactionHistory(ctx context.Context, address string) ([]Transaction, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, err
	}

	params := url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {validation.NormalizeAddress(address)},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"sort":       {"desc"},
	}

	var raw []struct {
		Hash      string `json:"hash"`
		From      string `json:"from"`
		To        string `json:"to"`
		Value     string `json:"value"`
		TimeStamp string `json:"timeStamp"`
	}
	if err := c.call(ctx, params, &raw); err != nil {
		return nil, err
	}

	txs := make([]Transaction, 0, len(raw))
	for _, tx := range raw {
		ts, _ := strconv.ParseInt(tx.TimeStamp, 10, 64)
		txs = append(txs, Transaction{
			Hash:      tx.Hash,
			From:      tx.From,
			To:        tx.To,
			Value:     tx.Value,
			Timestamp: ts,
		})
	}
	return txs, nil
}

// fetchContractInfo performs the two upstream calls behind one verification
// verdict: published source code, then the anti-spoofing history check that
// downgrades contracts with zero prior transactions.
func (c *Client) fetchContractInfo(ctx context.Context, address string) ContractInfo {
	params := url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
	}

	var entries []struct {
		SourceCode   string `json:"SourceCode"`
		ContractName string `json:"ContractName"`
	}
	if err := c.call(ctx, params, &entries); err != nil {
		c.logger.Warn("contract source lookup failed", "address", address, "error", err)
		return ContractInfo{Verified: false, Error: err.Error()}
	}

	info := ContractInfo{}
	if len(entries) > 0 && entries[0].SourceCode != "" {
		info.Verified = true
		info.Name = entries[0].ContractName
	}

	if info.Verified {
		history, err := c.GetTransactionHistory(ctx, address)
		if err != nil {
			c.logger.Warn("transaction history lookup failed", "address", address, "error", err)
			return ContractInfo{Verified: false, Error: err.Error()}
		}
		if len(history) == 0 {
			// Published source with no on-chain activity smells like a
			// freshly deployed spoof; treat as unverified.
			info.Verified = false
		}
	}

	return info
}

// call performs a GET against the explorer API and decodes the result payload
// of a successful response into out.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling explorer API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("explorer API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	// Status "0" with "No transactions found" is an empty result, not a
	// failure; other zero statuses carry an error string in Result.
	if envelope.Status != "1" {
		if envelope.Message == "No transactions found" {
			return nil
		}
		var reason string
		_ = json.Unmarshal(envelope.Result, &reason)
		if reason == "" {
			reason = envelope.Message
		}
		return fmt.Errorf("explorer API error: %s", reason)
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}
