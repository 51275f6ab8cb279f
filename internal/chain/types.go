// Package chain talks to an EVM-compatible ledger through go-ethereum. It
// provides call encoding, fee estimation, signed submission, and
// receipt-based status queries. The ledger is treated as an opaque
// asynchronous service that can be slow, time out, or reject calls.
package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// CallRequest identifies one state-changing contract call.
type CallRequest struct {
	Target string // contract address, hex
	Method string // ABI method name
	Args   []any  // ABI-typed arguments (common.Address, *big.Int, ...)
	Value  *big.Int
}

// FeeEstimate is the cost estimate for a prepared call. GasFeeCap and
// GasTipCap are EIP-1559 values; GasPrice carries the legacy suggestion used
// when the chain does not report a base fee.
type FeeEstimate struct {
	GasLimit  uint64
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// OverallFee returns gas limit × fee ceiling in wei.
func (f FeeEstimate) OverallFee() *big.Int {
	price := f.GasFeeCap
	if price == nil {
		price = f.GasPrice
	}
	if price == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(f.GasLimit), price)
}

// CallState is the provider-reported execution state of a submitted call.
type CallState string

const (
	CallPending   CallState = "pending"
	CallSucceeded CallState = "succeeded"
	CallReverted  CallState = "reverted"
)

// CallStatus reports per-transaction execution and finality information.
type CallStatus struct {
	State       CallState
	BlockNumber uint64
	GasUsed     uint64
}

// ToWei converts a human-unit amount to wei (18 decimals), truncating any
// sub-wei remainder.
func ToWei(amount float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(params.Ether))
	wei, _ := f.Int(nil)
	return wei
}

// FromWei converts a wei amount to human units.
func FromWei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return f
}
