package fireplan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardBlackSwanEvents_HasFifteenEvents(t *testing.T) {
	events := StandardBlackSwanEvents()
	assert.Len(t, events, 15)
	seen := make(map[string]bool)
	for _, e := range events {
		assert.False(t, seen[e.ID], "duplicate event id %q", e.ID)
		seen[e.ID] = true
	}
}

func TestBlackSwanEvent_InRange_CareerWindow(t *testing.T) {
	portfolio := DefaultPortfolioConfiguration()
	profile, err := NewUserProfile(1990, 2026, 50, 67, 85, decimal.Zero, 2.5, 6, portfolio)
	require.NoError(t, err)

	event := BlackSwanEvent{AgeRange: ageRangeCareer}
	assert.True(t, event.InRange(profile, 36))
	assert.True(t, event.InRange(profile, 50))
	assert.False(t, event.InRange(profile, 51))
	assert.False(t, event.InRange(profile, 35))
}

func TestBlackSwanEvent_InRange_RetirementWindow(t *testing.T) {
	portfolio := DefaultPortfolioConfiguration()
	profile, err := NewUserProfile(1990, 2026, 50, 67, 85, decimal.Zero, 2.5, 6, portfolio)
	require.NoError(t, err)

	event := BlackSwanEvent{AgeRange: ageRangeRetirement}
	assert.False(t, event.InRange(profile, 66))
	assert.True(t, event.InRange(profile, 67))
	assert.True(t, event.InRange(profile, 85))
}

func TestBlackSwanEvent_Apply_IncomeOnlyAtFullSeverity(t *testing.T) {
	event := BlackSwanEvent{Impact: impactIncomeOnly, IncomeMultiplier: 0.6}
	newIncome, newExpense := event.Apply(100000, 40000, 1.0)
	assert.InDelta(t, 60000, newIncome, 1e-9)
	assert.Equal(t, 40000.0, newExpense)
}

func TestBlackSwanEvent_Apply_RecoveryDampensTowardsOne(t *testing.T) {
	event := BlackSwanEvent{Impact: impactIncomeOnly, IncomeMultiplier: 0.6}
	_, _ = event.Apply(100000, 40000, 1.0)
	dampened, _ := event.Apply(100000, 40000, 0.5)
	// scaledMultiplier(0.6, 0.5) = 1 + (0.6-1)*0.5 = 0.8
	assert.InDelta(t, 80000, dampened, 1e-9)
}

func TestBlackSwanEvent_Apply_FlooredIncomeNeverBelowFloor(t *testing.T) {
	event := BlackSwanEvent{Impact: impactFlooredIncome, IncomeMultiplier: 0.0, Floor: 0.10}
	newIncome, _ := event.Apply(100000, 0, 1.0)
	assert.InDelta(t, 10000, newIncome, 1e-9)
}

func TestBlackSwanEvent_Apply_MixedAffectsBoth(t *testing.T) {
	event := BlackSwanEvent{Impact: impactMixed, IncomeMultiplier: 0.7, ExpenseMultiplier: 1.3}
	newIncome, newExpense := event.Apply(100000, 40000, 1.0)
	assert.InDelta(t, 70000, newIncome, 1e-9)
	assert.InDelta(t, 52000, newExpense, 1e-9)
}

func TestBlackSwanEvent_Apply_AdditiveInheritanceIsAdditive(t *testing.T) {
	event := BlackSwanEvent{Impact: impactAdditiveInheritance}
	newIncome, newExpense := event.Apply(0, 40000, 1.0)
	assert.InDelta(t, 0, newIncome, 1e-9)
	assert.Equal(t, 40000.0, newExpense)

	newIncome2, _ := event.Apply(100000, 40000, 1.0)
	assert.InDelta(t, 300000, newIncome2, 1e-9)
}
