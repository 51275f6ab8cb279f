package health

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcwhitfield/vaultguard/internal/domain"
)

func TestEvaluateClassification(t *testing.T) {
	e := NewEvaluator(0, 0) // defaults: warning 1.20, critical 1.15

	tests := []struct {
		name       string
		collateral float64
		debt       float64
		price      float64
		wantRatio  float64
		wantScore  int
		wantLevel  domain.RiskLevel
	}{
		{"deeply overcollateralized", 1000, 200, 2.5, 12.5, 100, domain.RiskSafe},
		{"exactly safe boundary", 150, 100, 1.0, 1.50, 75, domain.RiskSafe},
		{"moderate band", 140, 100, 1.0, 1.40, 50, domain.RiskModerate},
		{"exactly moderate boundary", 130, 100, 1.0, 1.30, 50, domain.RiskModerate},
		{"warning band", 125, 100, 1.0, 1.25, 25, domain.RiskWarning},
		{"exactly warning boundary", 120, 100, 1.0, 1.20, 25, domain.RiskWarning},
		{"critical band", 117, 100, 1.0, 1.17, 10, domain.RiskCritical},
		{"exactly critical boundary", 115, 100, 1.0, 1.15, 10, domain.RiskCritical},
		{"below critical", 110, 100, 1.0, 1.10, 0, domain.RiskLiquidation},
		{"score 90 band", 220, 100, 1.0, 2.20, 90, domain.RiskSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.collateral, tt.debt, tt.price)
			assert.InDelta(t, tt.wantRatio, got.Ratio, 1e-9)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLevel, got.Level)
		})
	}
}

func TestEvaluateZeroDebt(t *testing.T) {
	e := NewEvaluator(0, 0)

	got := e.Evaluate(500, 0, 1.0)
	assert.True(t, math.IsInf(got.Ratio, 1))
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, domain.RiskSafe, got.Level)

	// Zero collateral and zero debt is still safe.
	got = e.Evaluate(0, 0, 1.0)
	assert.True(t, math.IsInf(got.Ratio, 1))
	assert.Equal(t, domain.RiskSafe, got.Level)
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEvaluator(1.20, 1.15)

	first := e.Evaluate(137.5, 104.2, 0.97)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Evaluate(137.5, 104.2, 0.97))
	}
}

func TestEvaluateMonotonicInPrice(t *testing.T) {
	e := NewEvaluator(0, 0)

	// Rising price never lowers the score or worsens the level.
	prevScore := -1
	prevRank := domain.RiskLiquidation.Rank() + 1
	for price := 0.10; price <= 3.0; price += 0.05 {
		got := e.Evaluate(100, 100, price)
		assert.GreaterOrEqual(t, got.Score, prevScore, "score dropped at price %.2f", price)
		// Higher rank means worse; it must not increase as price rises.
		assert.LessOrEqual(t, got.Level.Rank(), prevRank, "level worsened at price %.2f", price)
		prevScore = got.Score
		prevRank = got.Level.Rank()
	}
}

func TestEvaluateCustomBounds(t *testing.T) {
	// A stricter deployment with warning at 1.25 and critical at 1.18.
	e := NewEvaluator(1.25, 1.18)

	assert.Equal(t, domain.RiskWarning, e.Evaluate(126, 100, 1.0).Level)
	assert.Equal(t, domain.RiskCritical, e.Evaluate(120, 100, 1.0).Level)
	assert.Equal(t, domain.RiskLiquidation, e.Evaluate(117, 100, 1.0).Level)
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 2.0, Ratio(100, 50, 1.0), 1e-9)
	assert.InDelta(t, 1.0, Ratio(200, 100, 0.5), 1e-9)
	assert.True(t, math.IsInf(Ratio(100, 0, 1.0), 1))
}
