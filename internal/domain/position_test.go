package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelOrdering(t *testing.T) {
	ordered := []RiskLevel{RiskSafe, RiskModerate, RiskWarning, RiskCritical, RiskLiquidation}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank(),
			"%s must rank above %s", ordered[i], ordered[i-1])
	}
}

func TestRiskLevelAtLeast(t *testing.T) {
	assert.True(t, RiskCritical.AtLeast(RiskWarning))
	assert.True(t, RiskWarning.AtLeast(RiskWarning))
	assert.False(t, RiskModerate.AtLeast(RiskWarning))
	assert.True(t, RiskLiquidation.AtLeast(RiskSafe))
}

func TestRiskLevelUnknownRanksSafe(t *testing.T) {
	assert.Equal(t, 0, RiskLevel("garbage").Rank())
}

func TestTxStateTerminal(t *testing.T) {
	assert.False(t, TxStateBuilding.Terminal())
	assert.False(t, TxStatePending.Terminal())
	assert.True(t, TxStateConfirmed.Terminal())
	assert.True(t, TxStateReverted.Terminal())
	assert.True(t, TxStateTimedOut.Terminal())
	assert.True(t, TxStateFailed.Terminal())
}
