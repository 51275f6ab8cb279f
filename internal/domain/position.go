package domain

import "time"

// PositionStatus tracks the lifecycle of a collateralized position. Terminal
// states (closed, liquidated) never revert to active.
type PositionStatus string

const (
	PositionStatusActive     PositionStatus = "active"
	PositionStatusClosed     PositionStatus = "closed"
	PositionStatusLiquidated PositionStatus = "liquidated"
)

// RiskLevel classifies a position's collateralization risk.
type RiskLevel string

const (
	RiskSafe        RiskLevel = "safe"
	RiskModerate    RiskLevel = "moderate"
	RiskWarning     RiskLevel = "warning"
	RiskCritical    RiskLevel = "critical"
	RiskLiquidation RiskLevel = "liquidation"
)

// riskRank orders levels from safest to riskiest.
var riskRank = map[RiskLevel]int{
	RiskSafe:        0,
	RiskModerate:    1,
	RiskWarning:     2,
	RiskCritical:    3,
	RiskLiquidation: 4,
}

// Rank returns a numeric rank for the level; higher means riskier. Unknown
// levels rank as safe so a corrupt stored value cannot suppress alerts.
func (r RiskLevel) Rank() int {
	return riskRank[r]
}

// AtLeast reports whether r is at least as risky as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// Position is a collateralized borrowing record. CollateralAmount and
// DebtAmount are human-unit quantities mutated only by confirmed ledger
// transactions reflected back into the store. The derived fields
// (CollateralRatio, HealthScore, RiskLevel) are rebuilt every monitoring
// cycle and are never authoritative for ledger state.
type Position struct {
	ID               string
	Owner            string // owning account address, immutable
	Asset            string // reference-price asset symbol
	Status           PositionStatus
	CollateralAmount float64
	DebtAmount       float64
	CollateralRatio  float64
	HealthScore      int
	RiskLevel        RiskLevel
	LastMonitoredAt  *time.Time
	AlertsSent       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
