// Package monitor implements the recurring risk sweep over collateralized
// positions and the automatic collateral top-up that remediates positions
// found below threshold.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcwhitfield/vaultguard/internal/domain"
	"github.com/marcwhitfield/vaultguard/internal/health"
)

// Config holds the monitor's timing and remediation parameters.
type Config struct {
	CheckInterval      time.Duration
	AutoTopUpEnabled   bool
	AutoTopUpThreshold float64
	AutoTopUpTarget    float64
	WarningRatio       float64
	CriticalRatio      float64
	// LockTTL bounds how long an in-flight remediation marker survives a
	// crashed cycle. Zero derives it from the executor's confirmation
	// timeout at wiring time.
	LockTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	if c.AutoTopUpThreshold <= 0 {
		c.AutoTopUpThreshold = 1.30
	}
	if c.AutoTopUpTarget <= 0 {
		c.AutoTopUpTarget = 1.80
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 6 * time.Minute
	}
	return c
}

// Snapshot is the health view returned by an on-demand position check.
type Snapshot struct {
	Position   domain.Position
	Ratio      float64
	Score      int
	Level      domain.RiskLevel
	Price      float64
	EvaluatedAt time.Time
}

// Monitor drives the periodic sweep. All dependencies are injected so a
// test can run one sweep synchronously without a timer.
type Monitor struct {
	store      domain.PositionStore
	prices     domain.PriceSource
	alerts     domain.AlertDispatcher
	locks      domain.LockManager
	evaluator  *health.Evaluator
	remediator *Remediator
	cfg        Config
	logger     *slog.Logger
}

// New creates a Monitor. remediator may be nil; auto top-up is then off
// regardless of configuration.
func New(
	store domain.PositionStore,
	prices domain.PriceSource,
	alerts domain.AlertDispatcher,
	locks domain.LockManager,
	remediator *Remediator,
	cfg Config,
	logger *slog.Logger,
) *Monitor {
	cfg = cfg.withDefaults()
	return &Monitor{
		store:      store,
		prices:     prices,
		alerts:     alerts,
		locks:      locks,
		evaluator:  health.NewEvaluator(cfg.WarningRatio, cfg.CriticalRatio),
		remediator: remediator,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "monitor")),
	}
}

// Run executes the sweep loop until the context is cancelled. The first
// sweep runs immediately; later sweeps follow the configured interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "monitor started",
		slog.Duration("check_interval", m.cfg.CheckInterval),
		slog.Bool("auto_top_up", m.cfg.AutoTopUpEnabled && m.remediator != nil),
	)
	defer m.logger.Info("monitor stopped")

	m.RunSweep(ctx)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.RunSweep(ctx)
		}
	}
}

// RunSweep performs one full monitoring cycle. Positions are processed one
// at a time in the store's stable order; one position's failure never
// aborts the sweep for the rest.
func (m *Monitor) RunSweep(ctx context.Context) {
	positions, err := m.store.ListActive(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "sweep aborted: list active positions",
			slog.String("error", err.Error()),
		)
		return
	}

	var checked, alerted, remediated int
	for _, pos := range positions {
		if ctx.Err() != nil {
			return
		}
		outcome, err := m.checkOne(ctx, pos)
		if err != nil {
			m.logger.ErrorContext(ctx, "position check failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		checked++
		if outcome.alerted {
			alerted++
		}
		if outcome.remediated {
			remediated++
		}
	}

	m.logger.InfoContext(ctx, "sweep complete",
		slog.Int("positions", len(positions)),
		slog.Int("checked", checked),
		slog.Int("alerted", alerted),
		slog.Int("remediated", remediated),
	)
}

type checkOutcome struct {
	alerted    bool
	remediated bool
}

// checkOne recomputes one position's health, persists it, and applies the
// alerting and remediation policy.
func (m *Monitor) checkOne(ctx context.Context, pos domain.Position) (checkOutcome, error) {
	var out checkOutcome

	price, err := m.prices.GetReferencePrice(ctx, pos.Asset)
	if err != nil {
		return out, fmt.Errorf("reference price %s: %w", pos.Asset, err)
	}

	assess := m.evaluator.Evaluate(pos.CollateralAmount, pos.DebtAmount, price)
	now := time.Now().UTC()

	if err := m.store.UpdateHealth(ctx, pos.ID, assess.Ratio, assess.Score, assess.Level, now); err != nil {
		return out, fmt.Errorf("persist health: %w", err)
	}

	// Alert only on deterioration into warning or worse; staying at the
	// same level does not re-alert every cycle.
	if assess.Level.AtLeast(domain.RiskWarning) && assess.Level.Rank() > pos.RiskLevel.Rank() {
		m.dispatchAlert(ctx, pos.ID, assess.Level, fmt.Sprintf(
			"risk level %s (was %s): ratio %.4f, health %d/100",
			assess.Level, pos.RiskLevel, assess.Ratio, assess.Score,
		))
		out.alerted = true
	}

	if m.shouldRemediate(assess) {
		out.remediated = m.runRemediation(ctx, pos, price)
	}

	return out, nil
}

func (m *Monitor) shouldRemediate(assess health.Assessment) bool {
	return m.cfg.AutoTopUpEnabled && m.remediator != nil && assess.Ratio < m.cfg.AutoTopUpThreshold
}

// runRemediation takes the per-position in-flight marker and runs the
// remediation to resolution while holding it. A position whose marker is
// still set from an unresolved earlier cycle is skipped.
func (m *Monitor) runRemediation(ctx context.Context, pos domain.Position, price float64) bool {
	unlock, err := m.locks.Acquire(ctx, "remediation:"+pos.ID, m.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			m.logger.InfoContext(ctx, "remediation already in flight, skipping",
				slog.String("position_id", pos.ID),
			)
		} else {
			m.logger.ErrorContext(ctx, "remediation lock acquire failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	defer unlock()

	if err := m.remediator.Remediate(ctx, pos, price); err != nil {
		m.logger.ErrorContext(ctx, "remediation failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// CheckPosition re-evaluates a single position on demand and persists the
// refreshed health fields. It never triggers alerts or remediation; it is
// the manual inspection hook for surrounding layers.
func (m *Monitor) CheckPosition(ctx context.Context, id string) (Snapshot, error) {
	pos, err := m.store.GetByID(ctx, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("monitor: get position %s: %w", id, err)
	}

	price, err := m.prices.GetReferencePrice(ctx, pos.Asset)
	if err != nil {
		return Snapshot{}, fmt.Errorf("monitor: reference price %s: %w", pos.Asset, err)
	}

	assess := m.evaluator.Evaluate(pos.CollateralAmount, pos.DebtAmount, price)
	now := time.Now().UTC()

	if pos.Status == domain.PositionStatusActive {
		if err := m.store.UpdateHealth(ctx, pos.ID, assess.Ratio, assess.Score, assess.Level, now); err != nil {
			return Snapshot{}, fmt.Errorf("monitor: persist health %s: %w", id, err)
		}
	}

	pos.CollateralRatio = assess.Ratio
	pos.HealthScore = assess.Score
	pos.RiskLevel = assess.Level
	return Snapshot{
		Position:    pos,
		Ratio:       assess.Ratio,
		Score:       assess.Score,
		Level:       assess.Level,
		Price:       price,
		EvaluatedAt: now,
	}, nil
}

// dispatchAlert is fire-and-forget from the sweep's perspective: delivery
// failure is logged, never blocks, and still counts toward alerts_sent.
func (m *Monitor) dispatchAlert(ctx context.Context, positionID string, severity domain.RiskLevel, message string) {
	if err := m.alerts.Notify(ctx, positionID, severity, message); err != nil {
		m.logger.WarnContext(ctx, "alert dispatch failed",
			slog.String("position_id", positionID),
			slog.String("error", err.Error()),
		)
	}
	if err := m.store.IncrementAlerts(ctx, positionID); err != nil {
		m.logger.WarnContext(ctx, "alert counter update failed",
			slog.String("position_id", positionID),
			slog.String("error", err.Error()),
		)
	}
}
