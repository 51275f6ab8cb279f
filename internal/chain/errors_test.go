package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{ msg string }

func (e *fakeNetError) Error() string   { return e.msg }
func (e *fakeNetError) Timeout() bool   { return true }
func (e *fakeNetError) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"wrapped cancellation", fmt.Errorf("rpc: %w", context.Canceled), false},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), false},
		{"nonce too low", errors.New("nonce too low"), false},
		{"execution reverted", errors.New("execution reverted: Ownable: caller is not the owner"), false},
		{"invalid signature", errors.New("invalid signature"), false},
		{"already known", errors.New("already known"), false},
		{"rate limited", errors.New("429 Too Many Requests"), true},
		{"service unavailable", errors.New("503 Service Unavailable"), true},
		{"gateway timeout", errors.New("504 Gateway Timeout"), true},
		{"connection refused", errors.New("dial tcp 10.0.0.1:8545: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"plain timeout wording", errors.New("request timed out"), true},
		{"unknown message", errors.New("something odd happened"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsRetryableNetError(t *testing.T) {
	err := &fakeNetError{msg: "i/o problem"}
	assert.True(t, IsRetryable(err))
	assert.True(t, IsRetryable(fmt.Errorf("send: %w", err)))
}

func TestIsRetryablePermanentWinsOverTransient(t *testing.T) {
	// A permanent rejection relayed through a gateway error stays permanent.
	err := errors.New("502 bad gateway: execution reverted")
	assert.False(t, IsRetryable(err))
}

func TestEstimationErrorUnwrap(t *testing.T) {
	cause := errors.New("gas required exceeds allowance")
	err := &EstimationError{Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fee estimation failed")
}
