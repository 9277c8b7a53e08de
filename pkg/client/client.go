// Package client provides a Go client for the MetaGuard analysis API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is a MetaGuard API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new MetaGuard client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Transaction is the transaction object submitted for analysis. A nil To
// means contract creation; numeric fields are decimal strings.
type Transaction struct {
	To                   *string `json:"to"`
	From                 string  `json:"from"`
	Value                string  `json:"value"`
	Data                 string  `json:"data,omitempty"`
	GasPrice             string  `json:"gasPrice,omitempty"`
	MaxFeePerGas         *string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *string `json:"maxPriorityFeePerGas,omitempty"`
}

// SecurityCheck is one rule evaluation from the report
type SecurityCheck struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Severity string `json:"severity"`
	Details  string `json:"details,omitempty"`
}

// ContractInfo is the contract verification evidence
type ContractInfo struct {
	Verified bool   `json:"verified"`
	Name     string `json:"name,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PhishingResult is the merged phishing reputation evidence
type PhishingResult struct {
	IsPhishing bool    `json:"isPhishing"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// RiskAssessment is the derived risk verdict
type RiskAssessment struct {
	RiskLevel string   `json:"riskLevel"`
	RiskScore float64  `json:"riskScore"`
	Details   []string `json:"details"`
}

// SecurityReport is the result of one analysis
type SecurityReport struct {
	ID              string          `json:"id"`
	Risk            string          `json:"risk"`
	Warnings        []string        `json:"warnings"`
	Recommendations []string        `json:"recommendations"`
	SecurityChecks  []SecurityCheck `json:"securityChecks"`
	ContractInfo    *ContractInfo   `json:"contractInfo,omitempty"`
	PhishingResults *PhishingResult `json:"phishingResults,omitempty"`
	RiskAssessment  RiskAssessment  `json:"riskAssessment"`
	Timestamp       time.Time       `json:"timestamp"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Analyze submits a transaction for analysis
func (c *Client) Analyze(ctx context.Context, tx Transaction) (*SecurityReport, error) {
	var report SecurityReport
	if err := c.post(ctx, "/api/v1/analyze", tx, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetContractInfo gets verification evidence for an address
func (c *Client) GetContractInfo(ctx context.Context, address string) (*ContractInfo, error) {
	var info ContractInfo
	if err := c.get(ctx, "/api/v1/contracts/"+url.PathEscape(address), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
