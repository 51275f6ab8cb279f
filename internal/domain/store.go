package domain

import (
	"context"
	"time"
)

// PositionStore persists positions. It is the single source of truth for the
// derived health fields; only the monitor loop and the remediation executor
// write them.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	// ListActive returns every active position in stable ascending-id order.
	ListActive(ctx context.Context) ([]Position, error)
	// UpdateHealth persists the derived fields recomputed by a monitoring cycle.
	UpdateHealth(ctx context.Context, id string, ratio float64, score int, level RiskLevel, monitoredAt time.Time) error
	// UpdateAmounts replaces the collateral and debt quantities after a
	// confirmed ledger transaction.
	UpdateAmounts(ctx context.Context, id string, collateral, debt float64) error
	IncrementAlerts(ctx context.Context, id string) error
	// SetStatus transitions a position out of active. Transitions from a
	// terminal state return ErrPositionNotActive.
	SetStatus(ctx context.Context, id string, status PositionStatus) error
}

// TxRecordStore persists transaction records and their state transitions.
type TxRecordStore interface {
	Create(ctx context.Context, rec TxRecord) error
	GetByID(ctx context.Context, id string) (TxRecord, error)
	// MarkSubmitted moves a record to pending with the provider-assigned hash
	// and the attempt number that succeeded.
	MarkSubmitted(ctx context.Context, id, txHash string, attempt int) error
	// MarkState moves a record into a resolution state. Moving a record that
	// is already terminal returns ErrTerminalState.
	MarkState(ctx context.Context, id string, state TxState, blockNumber uint64, lastError string) error
}

// PriceSource is the narrow read contract against the reference-price cache.
// Population of the cache is owned by an external feeder.
type PriceSource interface {
	GetReferencePrice(ctx context.Context, asset string) (float64, error)
}

// LockManager hands out per-key mutual-exclusion markers with an expiry so a
// crashed holder cannot block future cycles forever. Acquire returns an
// unlock function on success and ErrLockHeld when the key is taken.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// AlertDispatcher delivers risk alerts for a position. Delivery failure is a
// collaborator concern; callers treat dispatch as fire-and-forget.
type AlertDispatcher interface {
	Notify(ctx context.Context, positionID string, severity RiskLevel, message string) error
}
