// Package transport provides HTTP request/response types for the analysis domain.
package transport

import "github.com/qvkare/metaguard-snap/internal/analysis/domain"

// AnalyzeRequest is the HTTP request body for analyzing a transaction.
// It mirrors the wallet transaction object: a null "to" means contract
// creation, numeric fields are decimal strings.
type AnalyzeRequest struct {
	To                   *string `json:"to"`
	From                 string  `json:"from"`
	Value                string  `json:"value"`
	Data                 string  `json:"data,omitempty"`
	GasPrice             string  `json:"gasPrice,omitempty"`
	MaxFeePerGas         *string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *string `json:"maxPriorityFeePerGas,omitempty"`
}

// ToDomain converts AnalyzeRequest to domain.Transaction.
func (r AnalyzeRequest) ToDomain() domain.Transaction {
	return domain.Transaction{
		To:                   r.To,
		From:                 r.From,
		Value:                r.Value,
		Data:                 r.Data,
		GasPrice:             r.GasPrice,
		MaxFeePerGas:         r.MaxFeePerGas,
		MaxPriorityFeePerGas: r.MaxPriorityFeePerGas,
	}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
