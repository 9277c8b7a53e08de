package phishing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/qvkare/metaguard-snap/internal/config"
	"github.com/qvkare/metaguard-snap/internal/validation"
)

// tokenSecurity is the subset of the GoPlus token_security payload the
// heuristic looks at. Fields are "1"/"0" strings in the upstream API.
type tokenSecurity struct {
	IsHoneypot  string `json:"is_honeypot"`
	IsProxy     string `json:"is_proxy"`
	IsOpenSrc   string `json:"is_open_source"`
	CanTakeBack string `json:"can_take_back"`
	IsMintable  string `json:"is_mintable"`
	HolderCount string `json:"holder_count"`
}

// GoPlusSource checks addresses against the GoPlus token security API. An
// address is flagged when at least two independent risk factors are present;
// one alone is too noisy for a hard verdict.
type GoPlusSource struct {
	baseURL string
	chainID int
	http    *http.Client
}

// NewGoPlusSource creates a GoPlus security-scan source.
func NewGoPlusSource(cfg config.PhishingConfig) *GoPlusSource {
	return &GoPlusSource{
		baseURL: cfg.GoPlusURL,
		chainID: cfg.GoPlusChainID,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Source.
func (s *GoPlusSource) Name() string { return "goplus" }

// Check implements Source.
func (s *GoPlusSource) Check(ctx context.Context, address string) (Result, error) {
	addr := validation.NormalizeAddress(address)

	endpoint := fmt.Sprintf("%s/token_security/%d?%s", s.baseURL, s.chainID,
		url.Values{"contract_addresses": {addr}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling goplus API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("goplus API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading response: %w", err)
	}

	var envelope struct {
		Result map[string]tokenSecurity `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Result{}, fmt.Errorf("decoding response: %w", err)
	}

	data, ok := envelope.Result[addr]
	if !ok {
		// Unknown to GoPlus: nothing to hold against the address.
		return Result{IsPhishing: false, Confidence: 1.0}, nil
	}

	return s.evaluate(data), nil
}

// evaluate applies the risk-factor heuristic to one token security record.
func (s *GoPlusSource) evaluate(data tokenSecurity) Result {
	holderCount, _ := strconv.Atoi(data.HolderCount)

	factors := []bool{
		data.IsHoneypot == "1",
		data.IsProxy == "1" && data.IsOpenSrc == "0",
		data.CanTakeBack == "1",
		data.IsMintable == "1",
		data.HolderCount != "" && holderCount < 10,
	}

	hits := 0
	for _, f := range factors {
		if f {
			hits++
		}
	}

	result := Result{
		IsPhishing: hits >= 2,
		Confidence: s.confidence(data),
	}
	if result.IsPhishing {
		result.Reason = riskType(data)
	}
	return result
}

// confidence reflects how many of the heuristic's inputs the API actually
// reported, floored so a sparse record cannot dominate the merge.
func (s *GoPlusSource) confidence(data tokenSecurity) float64 {
	fields := []string{data.IsHoneypot, data.IsProxy, data.IsOpenSrc, data.CanTakeBack, data.IsMintable, data.HolderCount}
	available := 0
	for _, f := range fields {
		if f != "" {
			available++
		}
	}
	c := float64(available) / float64(len(fields))
	if c < 0.5 {
		c = 0.5
	}
	return c
}

// riskType names the dominant risk factor, most severe first.
func riskType(data tokenSecurity) string {
	switch {
	case data.IsHoneypot == "1":
		return "Honeypot contract"
	case data.CanTakeBack == "1":
		return "Owner can take back tokens"
	case data.IsMintable == "1":
		return "Mintable token"
	case data.IsProxy == "1" && data.IsOpenSrc == "0":
		return "Hidden proxy implementation"
	default:
		return "Multiple risk factors"
	}
}
