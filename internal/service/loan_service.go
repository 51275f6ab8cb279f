// Package service exposes the loan operations that surrounding layers (API
// handlers, operator tooling) call. Every state-changing operation reuses
// the transaction execution manager, so retry and confirmation semantics
// are identical to the monitor's remediation path.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marcwhitfield/vaultguard/internal/chain"
	"github.com/marcwhitfield/vaultguard/internal/domain"
	"github.com/marcwhitfield/vaultguard/internal/health"
	"github.com/marcwhitfield/vaultguard/internal/txmgr"
)

// TxExecutor is the service's view of the transaction execution manager.
type TxExecutor interface {
	EstimateFee(ctx context.Context, call chain.CallRequest) (chain.FeeEstimate, error)
	SubmitAndWait(ctx context.Context, call chain.CallRequest) (txmgr.Receipt, error)
}

// LoanService implements supply/borrow/repay/withdraw against the lending
// contract and reflects confirmed outcomes back into the position store.
type LoanService struct {
	store     domain.PositionStore
	prices    domain.PriceSource
	exec      TxExecutor
	evaluator *health.Evaluator
	contract  string
	logger    *slog.Logger
}

// NewLoanService creates a LoanService targeting the given lending contract.
func NewLoanService(
	store domain.PositionStore,
	prices domain.PriceSource,
	exec TxExecutor,
	evaluator *health.Evaluator,
	contract string,
	logger *slog.Logger,
) *LoanService {
	return &LoanService{
		store:     store,
		prices:    prices,
		exec:      exec,
		evaluator: evaluator,
		contract:  contract,
		logger:    logger.With(slog.String("component", "loan_service")),
	}
}

// SubmitTransaction is the generic execution passthrough: estimate, submit
// with retry, and wait for confirmation. Callers get the typed errors of
// the execution manager unchanged (SubmissionError, RevertError,
// TimeoutError).
func (s *LoanService) SubmitTransaction(ctx context.Context, target, method string, params []any) (txmgr.Receipt, error) {
	return s.exec.SubmitAndWait(ctx, chain.CallRequest{
		Target: target,
		Method: method,
		Args:   params,
	})
}

// Supply adds collateral to a position.
func (s *LoanService) Supply(ctx context.Context, positionID string, amount float64) (txmgr.Receipt, error) {
	return s.mutate(ctx, positionID, "supply", amount, func(p *domain.Position) error {
		p.CollateralAmount += amount
		return nil
	})
}

// Borrow draws additional debt against a position.
func (s *LoanService) Borrow(ctx context.Context, positionID string, amount float64) (txmgr.Receipt, error) {
	return s.mutate(ctx, positionID, "borrow", amount, func(p *domain.Position) error {
		p.DebtAmount += amount
		return nil
	})
}

// Repay pays down a position's debt. Overpayment clamps to zero debt.
func (s *LoanService) Repay(ctx context.Context, positionID string, amount float64) (txmgr.Receipt, error) {
	return s.mutate(ctx, positionID, "repay", amount, func(p *domain.Position) error {
		p.DebtAmount -= amount
		if p.DebtAmount < 0 {
			p.DebtAmount = 0
		}
		return nil
	})
}

// Withdraw removes collateral from a position. Withdrawing more than the
// position holds is rejected before anything is submitted.
func (s *LoanService) Withdraw(ctx context.Context, positionID string, amount float64) (txmgr.Receipt, error) {
	return s.mutate(ctx, positionID, "withdraw", amount, func(p *domain.Position) error {
		if amount > p.CollateralAmount {
			return fmt.Errorf("withdraw %.6f exceeds collateral %.6f", amount, p.CollateralAmount)
		}
		p.CollateralAmount -= amount
		return nil
	})
}

// mutate runs one lending-contract call for a position and, once confirmed,
// applies the local amount change and refreshes the derived health fields.
func (s *LoanService) mutate(ctx context.Context, positionID, method string, amount float64, apply func(*domain.Position) error) (txmgr.Receipt, error) {
	if amount <= 0 {
		return txmgr.Receipt{}, fmt.Errorf("loan_service: %s amount must be positive, got %.6f", method, amount)
	}

	pos, err := s.store.GetByID(ctx, positionID)
	if err != nil {
		return txmgr.Receipt{}, fmt.Errorf("loan_service: get position %s: %w", positionID, err)
	}
	if pos.Status != domain.PositionStatusActive {
		return txmgr.Receipt{}, fmt.Errorf("loan_service: %s on %s position: %w", method, pos.Status, domain.ErrPositionNotActive)
	}

	if err := apply(&pos); err != nil {
		return txmgr.Receipt{}, fmt.Errorf("loan_service: %s: %w", method, err)
	}

	call := chain.CallRequest{
		Target: s.contract,
		Method: method,
		Args:   []any{common.HexToAddress(pos.Owner), chain.ToWei(amount)},
	}

	receipt, err := s.exec.SubmitAndWait(ctx, call)
	if err != nil {
		return txmgr.Receipt{}, fmt.Errorf("loan_service: %s execution: %w", method, err)
	}

	if err := s.store.UpdateAmounts(ctx, pos.ID, pos.CollateralAmount, pos.DebtAmount); err != nil {
		return receipt, fmt.Errorf("loan_service: persist amounts: %w", err)
	}

	// Best effort health refresh; a missing price leaves the next sweep to
	// catch up.
	if price, perr := s.prices.GetReferencePrice(ctx, pos.Asset); perr == nil {
		assess := s.evaluator.Evaluate(pos.CollateralAmount, pos.DebtAmount, price)
		if uerr := s.store.UpdateHealth(ctx, pos.ID, assess.Ratio, assess.Score, assess.Level, time.Now().UTC()); uerr != nil {
			s.logger.WarnContext(ctx, "health refresh failed",
				slog.String("position_id", pos.ID),
				slog.String("error", uerr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "loan operation confirmed",
		slog.String("position_id", pos.ID),
		slog.String("method", method),
		slog.Float64("amount", amount),
		slog.String("tx_hash", receipt.TxHash),
	)
	return receipt, nil
}
