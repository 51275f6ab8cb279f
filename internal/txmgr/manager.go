// Package txmgr orchestrates state-changing ledger calls: fee estimation,
// signed submission with bounded retry, and confirmation waiting with a
// timeout. It is the single unit other components use to change ledger
// state, and it records every lifecycle transition of a call.
package txmgr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/marcwhitfield/vaultguard/internal/chain"
	"github.com/marcwhitfield/vaultguard/internal/domain"
)

// LedgerProvider is the manager's view of the ledger. Implemented by
// chain.EthProvider; faked in tests.
type LedgerProvider interface {
	EstimateCall(ctx context.Context, from common.Address, call chain.CallRequest) (chain.FeeEstimate, error)
	SubmitSignedCall(ctx context.Context, tx *types.Transaction) (string, error)
	TransactionStatus(ctx context.Context, txHash string) (chain.CallStatus, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
}

// CallSigner produces a sendable signed transaction for a prepared call.
type CallSigner interface {
	Address() common.Address
	SignCall(call chain.CallRequest, fee chain.FeeEstimate, nonce uint64) (*types.Transaction, error)
}

// Config holds the manager's retry and timing parameters.
type Config struct {
	MaxRetries          int
	RetryDelay          time.Duration
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	GasMultiplier       float64
}

// withDefaults fills zero values with the documented defaults.
func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.GasMultiplier <= 0 {
		c.GasMultiplier = 1.10
	}
	return c
}

// SubmitResult reports a successful submission.
type SubmitResult struct {
	RecordID string
	TxHash   string
	Attempt  int
}

// Receipt reports a confirmed execution.
type Receipt struct {
	RecordID    string
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Fee         chain.FeeEstimate
}

// Manager implements the transaction execution contract.
type Manager struct {
	provider LedgerProvider
	signer   CallSigner
	records  domain.TxRecordStore
	cfg      Config
	logger   *slog.Logger
}

// New creates a Manager with the given dependencies. signer may be nil for
// read-only deployments; state-changing operations then fail with
// domain.ErrSignerNotConfigured.
func New(provider LedgerProvider, signer CallSigner, records domain.TxRecordStore, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		provider: provider,
		signer:   signer,
		records:  records,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "txmgr")),
	}
}

// EstimateFee queries the provider for a raw cost estimate and applies the
// configured safety buffer to every numeric field, rounding up. The buffer
// is applied exactly once per estimate; retries reuse the buffered values.
// Estimation failures are not retried here; the caller decides.
func (m *Manager) EstimateFee(ctx context.Context, call chain.CallRequest) (chain.FeeEstimate, error) {
	if m.signer == nil {
		return chain.FeeEstimate{}, domain.ErrSignerNotConfigured
	}

	raw, err := m.provider.EstimateCall(ctx, m.signer.Address(), call)
	if err != nil {
		return chain.FeeEstimate{}, err
	}

	buffered := chain.FeeEstimate{
		GasLimit:  bufferUint(raw.GasLimit, m.cfg.GasMultiplier),
		GasPrice:  bufferBig(raw.GasPrice, m.cfg.GasMultiplier),
		GasTipCap: bufferBig(raw.GasTipCap, m.cfg.GasMultiplier),
		GasFeeCap: bufferBig(raw.GasFeeCap, m.cfg.GasMultiplier),
	}

	m.logger.DebugContext(ctx, "fee estimated",
		slog.String("method", call.Method),
		slog.Uint64("gas_limit", buffered.GasLimit),
		slog.String("overall_fee_wei", buffered.OverallFee().String()),
	)
	return buffered, nil
}

// Submit signs the call with the given fee ceiling and broadcasts it,
// retrying transient failures up to MaxRetries attempts with RetryDelay
// between them. The nonce is fetched once and the same signed payload is
// resubmitted on retry, so a duplicate broadcast cannot double-spend.
//
// Success marks the record pending with the provider-assigned hash.
// Exhausted retries or a permanent rejection mark the record failed and
// return a *SubmissionError carrying the attempt count and last error.
func (m *Manager) Submit(ctx context.Context, call chain.CallRequest, fee chain.FeeEstimate) (SubmitResult, error) {
	if m.signer == nil {
		return SubmitResult{}, domain.ErrSignerNotConfigured
	}

	rec := domain.TxRecord{
		ID:             uuid.New().String(),
		TargetContract: call.Target,
		Method:         call.Method,
		Params:         call.Args,
		State:          domain.TxStateBuilding,
	}
	if err := m.records.Create(ctx, rec); err != nil {
		return SubmitResult{}, fmt.Errorf("txmgr: create record: %w", err)
	}

	nonce, err := m.provider.PendingNonce(ctx, m.signer.Address())
	if err != nil {
		m.markFailed(rec.ID, err)
		return SubmitResult{}, &SubmissionError{Attempts: 0, Err: err}
	}

	signed, err := m.signer.SignCall(call, fee, nonce)
	if err != nil {
		m.markFailed(rec.ID, err)
		return SubmitResult{}, &SubmissionError{Attempts: 0, Err: err}
	}

	var (
		txHash  string
		attempt int
	)
	operation := func() error {
		attempt++
		hash, sendErr := m.provider.SubmitSignedCall(ctx, signed)
		if sendErr != nil {
			if !chain.IsRetryable(sendErr) {
				return backoff.Permanent(sendErr)
			}
			m.logger.WarnContext(ctx, "submission failed, will retry",
				slog.String("record_id", rec.ID),
				slog.Int("attempt", attempt),
				slog.String("error", sendErr.Error()),
			)
			return sendErr
		}
		txHash = hash
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.cfg.RetryDelay), uint64(m.cfg.MaxRetries-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		m.markFailed(rec.ID, err)
		return SubmitResult{}, &SubmissionError{Attempts: attempt, Err: err}
	}

	if err := m.records.MarkSubmitted(ctx, rec.ID, txHash, attempt); err != nil {
		m.logger.ErrorContext(ctx, "record submitted-state update failed",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	m.logger.InfoContext(ctx, "transaction submitted",
		slog.String("record_id", rec.ID),
		slog.String("tx_hash", txHash),
		slog.Int("attempt", attempt),
	)
	return SubmitResult{RecordID: rec.ID, TxHash: txHash, Attempt: attempt}, nil
}

// WaitForConfirmation polls the provider for the transaction's status every
// PollInterval until maxWait elapses (ConfirmationTimeout when maxWait is
// zero). A hash the provider has not seen yet counts as still-pending while
// inside the window. recordID may be empty when re-querying a call whose
// record is not tracked by this process.
//
// Exceeding the window stops the wait but does not cancel the ledger-side
// effect; the transaction may still confirm later.
func (m *Manager) WaitForConfirmation(ctx context.Context, recordID, txHash string, maxWait time.Duration) (Receipt, error) {
	if maxWait <= 0 {
		maxWait = m.cfg.ConfirmationTimeout
	}

	started := time.Now()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.After(maxWait)

	for {
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()

		case <-deadline:
			waited := time.Since(started).Round(time.Second)
			m.markState(recordID, domain.TxStateTimedOut, 0, fmt.Sprintf("no confirmation after %s", waited))
			return Receipt{}, &TimeoutError{TxHash: txHash, Waited: waited}

		case <-ticker.C:
			status, err := m.provider.TransactionStatus(ctx, txHash)
			if err != nil {
				// Transient status-query failures do not end the wait.
				m.logger.WarnContext(ctx, "status query failed",
					slog.String("tx_hash", txHash),
					slog.String("error", err.Error()),
				)
				continue
			}

			switch status.State {
			case chain.CallSucceeded:
				m.markState(recordID, domain.TxStateConfirmed, status.BlockNumber, "")
				m.logger.InfoContext(ctx, "transaction confirmed",
					slog.String("tx_hash", txHash),
					slog.Uint64("block", status.BlockNumber),
				)
				return Receipt{
					RecordID:    recordID,
					TxHash:      txHash,
					BlockNumber: status.BlockNumber,
					GasUsed:     status.GasUsed,
				}, nil

			case chain.CallReverted:
				m.markState(recordID, domain.TxStateReverted, status.BlockNumber, "execution reverted")
				return Receipt{}, &RevertError{TxHash: txHash, BlockNumber: status.BlockNumber}

			default:
				// Still pending; keep polling.
			}
		}
	}
}

// EstimateAndSubmit composes fee estimation and submission: the buffered
// estimate becomes the fee ceiling for the signed call.
func (m *Manager) EstimateAndSubmit(ctx context.Context, call chain.CallRequest) (SubmitResult, error) {
	fee, err := m.EstimateFee(ctx, call)
	if err != nil {
		return SubmitResult{}, err
	}
	return m.Submit(ctx, call, fee)
}

// SubmitAndWait runs the full sequence estimate → submit → wait and returns
// the confirmed receipt. Errors from each stage keep their types, so callers
// can distinguish a final revert from an unknown-outcome timeout.
func (m *Manager) SubmitAndWait(ctx context.Context, call chain.CallRequest) (Receipt, error) {
	fee, err := m.EstimateFee(ctx, call)
	if err != nil {
		return Receipt{}, err
	}
	res, err := m.Submit(ctx, call, fee)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := m.WaitForConfirmation(ctx, res.RecordID, res.TxHash, 0)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Fee = fee
	return receipt, nil
}

// markFailed records a terminal submission failure. A submit that exhausts
// its retries must never leave a dangling pending record.
func (m *Manager) markFailed(recordID string, cause error) {
	m.markState(recordID, domain.TxStateFailed, 0, cause.Error())
}

func (m *Manager) markState(recordID string, state domain.TxState, block uint64, lastErr string) {
	if recordID == "" {
		return
	}
	// Record bookkeeping must survive caller cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.records.MarkState(ctx, recordID, state, block, lastErr); err != nil {
		m.logger.Error("record state update failed",
			slog.String("record_id", recordID),
			slog.String("state", string(state)),
			slog.String("error", err.Error()),
		)
	}
}

// bufferUint multiplies by the safety factor, rounding up.
func bufferUint(v uint64, mult float64) uint64 {
	return uint64(math.Ceil(float64(v) * mult))
}

// bufferBig multiplies by the safety factor using basis-point integer math,
// rounding up. nil passes through so absent EIP-1559 fields stay absent.
func bufferBig(v *big.Int, mult float64) *big.Int {
	if v == nil {
		return nil
	}
	bps := big.NewInt(int64(math.Round(mult * 10_000)))
	num := new(big.Int).Mul(v, bps)
	num.Add(num, big.NewInt(9_999))
	return num.Div(num, big.NewInt(10_000))
}
