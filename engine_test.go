package fireplan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildScenario(t *testing.T, netWorth int64, incomeAmount, expenseAmount int64, fireAge int) (*UserProfile, AnnualSummary) {
	t.Helper()
	stocks, _ := NewAssetClass("Stocks", 70, 7, 18, "")
	bonds, _ := NewAssetClass("Bonds", 20, 3, 6, "")
	cash, _ := NewAssetClass("Cash", 10, 1, 1, LiquidityHigh)
	cfg, err := NewPortfolioConfiguration([]AssetClass{stocks, bonds, cash}, true)
	require.NoError(t, err)

	profile, err := NewUserProfile(1990, 2026, fireAge, 67, 85, decimal.NewFromInt(netWorth), 2.5, 6, cfg)
	require.NoError(t, err)

	incomeEnd := fireAge
	income, err := NewIncomeExpenseItem("salary", "Salary", decimal.NewFromInt(incomeAmount), Annually, Recurring, 1, profile.CurrentAge(), &incomeEnd, 2.0, true, "", profile.CurrentAge(), 85)
	require.NoError(t, err)
	expenseEnd := 85
	expense, err := NewIncomeExpenseItem("living", "Living", decimal.NewFromInt(expenseAmount), Annually, Recurring, 1, profile.CurrentAge(), &expenseEnd, 0, false, "", profile.CurrentAge(), 85)
	require.NoError(t, err)

	table, err := BuildProjectionTable(profile, []*IncomeExpenseItem{income}, []*IncomeExpenseItem{expense})
	require.NoError(t, err)
	return profile, table.Summarize()
}

func TestFIREEngine_ScenarioA_EarlyRetirementFeasible(t *testing.T) {
	profile, summary := buildScenario(t, 800000, 120000, 40000, 50)
	engine := NewFIREEngine(profile, NewCashFlowStrategy(), nil)
	result, err := engine.Calculate(summary)
	require.NoError(t, err)
	assert.True(t, result.IsFireAchievable)
	assert.True(t, result.FinalNetWorth.IsPositive())
}

func TestFIREEngine_ScenarioB_UnsustainableBase(t *testing.T) {
	profile, summary := buildScenario(t, 20000, 50000, 48000, 40)
	engine := NewFIREEngine(profile, NewCashFlowStrategy(), nil)
	result, err := engine.Calculate(summary)
	require.NoError(t, err)
	assert.False(t, result.IsFireAchievable)
}

func TestFIREEngine_Calculate_RejectsEmptySummary(t *testing.T) {
	profile, _ := buildScenario(t, 500000, 100000, 40000, 50)
	engine := NewFIREEngine(profile, NewCashFlowStrategy(), nil)
	_, err := engine.Calculate(AnnualSummary{})
	require.Error(t, err)
	var pe *PreconditionError
	assert.ErrorAs(t, err, &pe)
}

func TestFIREEngine_NetWorth_TracksCumulativeDebtWhenDepleted(t *testing.T) {
	profile, summary := buildScenario(t, 10000, 10000, 50000, 42)
	engine := NewFIREEngine(profile, NewCashFlowStrategy(), nil)
	result, err := engine.Calculate(summary)
	require.NoError(t, err)

	sawNegative := false
	for _, s := range result.YearlyResults {
		if s.NetWorth.IsNegative() {
			sawNegative = true
		}
		if s.PortfolioValue.IsPositive() {
			assert.True(t, s.NetWorth.Equal(s.PortfolioValue))
		}
	}
	assert.True(t, sawNegative, "a severely underfunded plan should eventually show negative net worth")
}

func TestFIREEngine_FireNumber_IsExpenseTimesTwentyFive(t *testing.T) {
	profile, summary := buildScenario(t, 500000, 100000, 40000, 50)
	engine := NewFIREEngine(profile, NewCashFlowStrategy(), nil)
	state := engine.CalculateSingleYear(summary.Ages[0], summary.Years[0], summary.TotalIncome[0], summary.TotalExpense[0])
	expected := summary.TotalExpense[0].Mul(decimal.NewFromInt(25))
	assert.True(t, state.FireNumber.Equal(expected))
}

func TestFIREEngine_RetirementYears_CountsFromFireAgeToEnd(t *testing.T) {
	profile, summary := buildScenario(t, 800000, 120000, 40000, 50)
	engine := NewFIREEngine(profile, NewCashFlowStrategy(), nil)
	result, err := engine.Calculate(summary)
	require.NoError(t, err)
	assert.Equal(t, 85-50+1, result.RetirementYears)
}
