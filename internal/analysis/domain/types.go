// Package domain contains the risk aggregation core: it reconciles rule
// checks, lookup evidence and the model score into one security report.
package domain

import (
	"time"

	"github.com/qvkare/metaguard-snap/internal/etherscan"
	"github.com/qvkare/metaguard-snap/internal/phishing"
)

// Severity classifies how serious a failed security check is.
type Severity string

// Check severities.
const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// RiskLevel is the overall verdict of an analysis.
type RiskLevel string

// Risk levels, lowest to highest.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Transaction is the pending transaction under analysis. Numeric fields are
// decimal strings of unsigned 256-bit integers; parsing them into native
// floats would silently lose precision. A nil To signals contract creation,
// and a present MaxFeePerGas marks the transaction as EIP-1559.
type Transaction struct {
	To                   *string `json:"to"`
	From                 string  `json:"from"`
	Value                string  `json:"value"`
	Data                 string  `json:"data,omitempty"`
	GasPrice             string  `json:"gasPrice,omitempty"`
	MaxFeePerGas         *string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *string `json:"maxPriorityFeePerGas,omitempty"`
}

// IsContractCreation reports whether the transaction deploys a new contract.
func (t Transaction) IsContractCreation() bool {
	return t.To == nil
}

// IsEIP1559 reports the transaction kind. Presence of the maxFeePerGas field
// decides which fee field the gas rule checks, never both.
func (t Transaction) IsEIP1559() bool {
	return t.MaxFeePerGas != nil
}

// SecurityCheck is one rule evaluation appended during an analysis run.
type SecurityCheck struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details,omitempty"`
}

// RiskAssessment is the derived risk verdict with the model score and the
// warning details it was computed from.
type RiskAssessment struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	RiskScore float64   `json:"riskScore"`
	Details   []string  `json:"details"`
}

// SecurityReport is the output of one analysis call. It is immutable once
// returned.
type SecurityReport struct {
	ID              string                  `json:"id"`
	Risk            RiskLevel               `json:"risk"`
	Warnings        []string                `json:"warnings"`
	Recommendations []string                `json:"recommendations"`
	SecurityChecks  []SecurityCheck         `json:"securityChecks"`
	ContractInfo    *etherscan.ContractInfo `json:"contractInfo,omitempty"`
	PhishingResults *phishing.Result        `json:"phishingResults,omitempty"`
	RiskAssessment  RiskAssessment          `json:"riskAssessment"`
	Timestamp       time.Time               `json:"timestamp"`
}
