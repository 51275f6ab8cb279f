package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// EstimationError wraps a provider failure during fee estimation.
type EstimationError struct {
	Err error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("chain: fee estimation failed: %v", e.Err)
}

func (e *EstimationError) Unwrap() error { return e.Err }

// permanentPatterns match provider error messages that indicate a call will
// never succeed as submitted. Checked before the transient patterns because
// some providers wrap permanent rejections in gateway errors.
var permanentPatterns = []string{
	"insufficient funds",
	"nonce too low",
	"nonce too high",
	"execution reverted",
	"invalid sender",
	"invalid signature",
	"invalid argument",
	"intrinsic gas too low",
	"gas limit reached",
	"already known",
	"replacement transaction underpriced",
	"method not found",
	"contract not found",
}

// transientPatterns match failures worth retrying: the call may succeed on a
// later attempt once the network or the provider recovers.
var transientPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"rate limit",
	"too many requests",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"temporarily unavailable",
	"502",
	"503",
	"504",
	"eof",
}

// IsRetryable classifies a submission error as transient (retry) or
// permanent (surface immediately). Context cancellation is never retryable:
// the caller asked to stop.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
