package domain

import "time"

// TxState is the lifecycle state of a ledger call attempt. building→pending
// on submit; pending→{confirmed, reverted, timed_out} on resolution; a
// non-retryable submission failure goes to failed without a hash. A record
// transitions at most once into a terminal state.
type TxState string

const (
	TxStateBuilding  TxState = "building"
	TxStatePending   TxState = "pending"
	TxStateConfirmed TxState = "confirmed"
	TxStateReverted  TxState = "reverted"
	TxStateTimedOut  TxState = "timed_out"
	TxStateFailed    TxState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s TxState) Terminal() bool {
	switch s {
	case TxStateConfirmed, TxStateReverted, TxStateTimedOut, TxStateFailed:
		return true
	default:
		return false
	}
}

// TxRecord is one logical ledger call and its outcome. TxHash is set only
// after a successful submission; Attempt counts 1-based submission attempts
// for this logical operation.
type TxRecord struct {
	ID             string
	TargetContract string
	Method         string
	Params         []any
	TxHash         string
	State          TxState
	Attempt        int
	BlockNumber    uint64
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
