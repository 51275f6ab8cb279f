package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marcwhitfield/vaultguard/internal/chain"
	"github.com/marcwhitfield/vaultguard/internal/domain"
	"github.com/marcwhitfield/vaultguard/internal/health"
	"github.com/marcwhitfield/vaultguard/internal/txmgr"
)

// TxExecutor is the remediator's view of the transaction execution manager.
type TxExecutor interface {
	SubmitAndWait(ctx context.Context, call chain.CallRequest) (txmgr.Receipt, error)
}

// BalanceSource reports an account's spendable balance in wei.
type BalanceSource interface {
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// Remediator builds and executes collateral top-up transactions for
// positions whose ratio has fallen below the auto top-up threshold. It does
// not retry beyond what the execution manager already attempts.
type Remediator struct {
	exec      TxExecutor
	balances  BalanceSource
	store     domain.PositionStore
	alerts    domain.AlertDispatcher
	evaluator *health.Evaluator
	contract  string // lending pool address
	target    float64
	logger    *slog.Logger
}

// NewRemediator creates a Remediator targeting the given lending contract.
// target is the collateral ratio a top-up restores the position to.
func NewRemediator(
	exec TxExecutor,
	balances BalanceSource,
	store domain.PositionStore,
	alerts domain.AlertDispatcher,
	evaluator *health.Evaluator,
	contract string,
	target float64,
	logger *slog.Logger,
) *Remediator {
	if target <= 0 {
		target = 1.80
	}
	return &Remediator{
		exec:      exec,
		balances:  balances,
		store:     store,
		alerts:    alerts,
		evaluator: evaluator,
		contract:  contract,
		target:    target,
		logger:    logger.With(slog.String("component", "remediator")),
	}
}

// RequiredCollateral returns the additional collateral that brings the
// position's ratio up to the target, clamped to zero when the position is
// already above it.
func RequiredCollateral(collateral, debt, price, target float64) float64 {
	if price <= 0 {
		return 0
	}
	required := debt*target/price - collateral
	if required < 0 {
		return 0
	}
	return required
}

// Remediate computes the top-up, checks the owner's balance, and executes
// the addCollateral call through the execution manager. On confirmation it
// refreshes the stored position; on any terminal failure it raises a
// critical alert and returns the error.
func (r *Remediator) Remediate(ctx context.Context, pos domain.Position, price float64) error {
	required := RequiredCollateral(pos.CollateralAmount, pos.DebtAmount, price, r.target)
	if required == 0 {
		return nil
	}

	log := r.logger.With(
		slog.String("position_id", pos.ID),
		slog.Float64("required_collateral", required),
	)

	requiredWei := chain.ToWei(required)
	owner := common.HexToAddress(pos.Owner)

	balance, err := r.balances.Balance(ctx, owner)
	if err != nil {
		r.alertFailure(ctx, pos.ID, fmt.Sprintf("remediation aborted: balance query failed: %v", err))
		return fmt.Errorf("remediator: balance %s: %w", pos.Owner, err)
	}
	if balance.Cmp(requiredWei) < 0 {
		r.alertFailure(ctx, pos.ID, fmt.Sprintf(
			"remediation aborted: need %.6f collateral but balance is %.6f",
			required, chain.FromWei(balance),
		))
		return fmt.Errorf("remediator: top-up %.6f exceeds balance: %w", required, domain.ErrInsufficientFunds)
	}

	call := chain.CallRequest{
		Target: r.contract,
		Method: "addCollateral",
		Args:   []any{owner, requiredWei},
	}

	receipt, err := r.exec.SubmitAndWait(ctx, call)
	if err != nil {
		r.alertFailure(ctx, pos.ID, fmt.Sprintf("remediation transaction failed: %v", err))
		return fmt.Errorf("remediator: top-up execution: %w", err)
	}

	// Reflect the confirmed top-up and refresh the derived health fields.
	newCollateral := pos.CollateralAmount + required
	if err := r.store.UpdateAmounts(ctx, pos.ID, newCollateral, pos.DebtAmount); err != nil {
		return fmt.Errorf("remediator: persist amounts: %w", err)
	}

	assess := r.evaluator.Evaluate(newCollateral, pos.DebtAmount, price)
	if err := r.store.UpdateHealth(ctx, pos.ID, assess.Ratio, assess.Score, assess.Level, time.Now().UTC()); err != nil {
		return fmt.Errorf("remediator: persist health: %w", err)
	}

	log.InfoContext(ctx, "remediation confirmed",
		slog.String("tx_hash", receipt.TxHash),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Float64("new_ratio", assess.Ratio),
	)
	return nil
}

// alertFailure raises a critical alert; failures here are logged only, a
// broken alert channel must not mask the remediation outcome.
func (r *Remediator) alertFailure(ctx context.Context, positionID, message string) {
	if err := r.alerts.Notify(ctx, positionID, domain.RiskCritical, message); err != nil {
		r.logger.WarnContext(ctx, "failure alert dispatch failed",
			slog.String("position_id", positionID),
			slog.String("error", err.Error()),
		)
	}
}
