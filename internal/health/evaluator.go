// Package health computes the collateralization health of a position from a
// snapshot and a reference price. It performs no I/O and is deterministic
// given its inputs.
package health

import (
	"math"

	"github.com/marcwhitfield/vaultguard/internal/domain"
)

// Default classification boundaries. All bucket bounds are inclusive on the
// lower side: a ratio sitting exactly on a boundary resolves to the safer
// bucket.
const (
	DefaultWarningRatio  = 1.20
	DefaultCriticalRatio = 1.15

	safeRatio     = 1.50
	moderateRatio = 1.30
)

// Assessment is the output of one evaluation.
type Assessment struct {
	Ratio float64
	Score int
	Level domain.RiskLevel
}

// Evaluator classifies collateral ratios. The warning and critical bounds
// are tunable; the safe and moderate bounds are protocol constants.
type Evaluator struct {
	warningRatio  float64
	criticalRatio float64
}

// NewEvaluator returns an Evaluator with the given warning/critical bounds.
// Non-positive bounds fall back to the defaults.
func NewEvaluator(warningRatio, criticalRatio float64) *Evaluator {
	if warningRatio <= 0 {
		warningRatio = DefaultWarningRatio
	}
	if criticalRatio <= 0 {
		criticalRatio = DefaultCriticalRatio
	}
	return &Evaluator{warningRatio: warningRatio, criticalRatio: criticalRatio}
}

// Evaluate computes the collateral ratio for the given quantities and
// reference price and classifies it. A position with no debt is always
// safe with a full score, regardless of collateral.
func (e *Evaluator) Evaluate(collateral, debt, referencePrice float64) Assessment {
	ratio := Ratio(collateral, debt, referencePrice)
	return Assessment{
		Ratio: ratio,
		Score: score(ratio),
		Level: e.level(ratio),
	}
}

// Ratio returns (collateral × referencePrice) / debt, or +Inf when debt is
// zero.
func Ratio(collateral, debt, referencePrice float64) float64 {
	if debt == 0 {
		return math.Inf(1)
	}
	return collateral * referencePrice / debt
}

// score maps a ratio to the 0-100 health score.
func score(ratio float64) int {
	switch {
	case ratio >= 2.50:
		return 100
	case ratio >= 2.00:
		return 90
	case ratio >= safeRatio:
		return 75
	case ratio >= moderateRatio:
		return 50
	case ratio >= DefaultWarningRatio:
		return 25
	case ratio >= DefaultCriticalRatio:
		return 10
	default:
		return 0
	}
}

func (e *Evaluator) level(ratio float64) domain.RiskLevel {
	switch {
	case ratio >= safeRatio:
		return domain.RiskSafe
	case ratio >= moderateRatio:
		return domain.RiskModerate
	case ratio >= e.warningRatio:
		return domain.RiskWarning
	case ratio >= e.criticalRatio:
		return domain.RiskCritical
	default:
		return domain.RiskLiquidation
	}
}
