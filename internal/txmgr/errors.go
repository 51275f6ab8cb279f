package txmgr

import (
	"fmt"
	"time"
)

// SubmissionError reports a submission that exhausted its retry budget or
// hit a permanent rejection. Attempts is the number of submission attempts
// actually made; Err is the last underlying provider error.
type SubmissionError struct {
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("txmgr: submission failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// RevertError reports that the ledger executed and explicitly rejected the
// call. This outcome is final.
type RevertError struct {
	TxHash      string
	BlockNumber uint64
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("txmgr: transaction %s reverted in block %d", e.TxHash, e.BlockNumber)
}

// TimeoutError reports that the confirmation wait elapsed without a
// resolution. The outcome is unknown: the transaction may still confirm
// later, so the hash is carried for re-querying.
type TimeoutError struct {
	TxHash string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("txmgr: no confirmation for %s after %s", e.TxHash, e.Waited)
}
