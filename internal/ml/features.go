// Package ml provides the transaction scoring model: a pure feature
// extraction step plus a pluggable predictor producing a risk score in [0,1].
package ml

import (
	"fmt"
	"math/big"
)

// FeatureCount is the fixed size of the model input vector. The order is
// part of the model contract and must match the layout the weights were
// trained against.
const FeatureCount = 5

var (
	weiPerEther = new(big.Float).SetFloat64(1e18)
	weiPerGwei  = new(big.Float).SetFloat64(1e9)
)

// TransactionFeatures is the raw transaction material the model scores.
// Numeric fields are decimal strings of unsigned 256-bit integers; an empty
// string reads as zero.
type TransactionFeatures struct {
	Value                string
	MaxFeePerGas         string
	MaxPriorityFeePerGas string
	ContractCreation     bool
	HasData              bool
}

// Vector converts the features into the model's fixed input layout:
// value in ether, both fee fields in gwei, then the two indicator bits.
// On-chain integers can exceed float64's exact range, so scaling happens in
// arbitrary precision before the final float conversion.
func (f TransactionFeatures) Vector() ([FeatureCount]float64, error) {
	var v [FeatureCount]float64

	value, err := scaleDecimal(f.Value, weiPerEther)
	if err != nil {
		return v, fmt.Errorf("value: %w", err)
	}
	maxFee, err := scaleDecimal(f.MaxFeePerGas, weiPerGwei)
	if err != nil {
		return v, fmt.Errorf("maxFeePerGas: %w", err)
	}
	maxPriority, err := scaleDecimal(f.MaxPriorityFeePerGas, weiPerGwei)
	if err != nil {
		return v, fmt.Errorf("maxPriorityFeePerGas: %w", err)
	}

	v[0] = value
	v[1] = maxFee
	v[2] = maxPriority
	if f.ContractCreation {
		v[3] = 1
	}
	if f.HasData {
		v[4] = 1
	}
	return v, nil
}

// scaleDecimal parses a decimal uint256 string and divides it by unit in
// arbitrary precision.
func scaleDecimal(s string, unit *big.Float) (float64, error) {
	if s == "" {
		return 0, nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return 0, fmt.Errorf("not an unsigned decimal integer: %q", s)
	}
	scaled, _ := new(big.Float).Quo(new(big.Float).SetInt(n), unit).Float64()
	return scaled, nil
}
