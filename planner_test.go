package fireplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPlanDocument(t *testing.T, netWorth, incomeAmount, expenseAmount int64, fireAge int, settings SimulationSettings) *PlanDocument {
	t.Helper()
	profile, summary := buildScenario(t, netWorth, incomeAmount, expenseAmount, fireAge)

	income, err := NewIncomeExpenseItem("salary", "Salary", summary.TotalIncome[0], Annually, Recurring, 1, profile.CurrentAge(), &fireAge, 2.0, true, "", profile.CurrentAge(), profile.LifeExpectancy)
	require.NoError(t, err)
	endAge := profile.LifeExpectancy
	expense, err := NewIncomeExpenseItem("living", "Living", summary.TotalExpense[0], Annually, Recurring, 1, profile.CurrentAge(), &endAge, 0, false, "", profile.CurrentAge(), profile.LifeExpectancy)
	require.NoError(t, err)

	return &PlanDocument{
		Profile:      profile,
		IncomeItems:  []*IncomeExpenseItem{income},
		ExpenseItems: []*IncomeExpenseItem{expense},
		Settings:     settings,
	}
}

func TestRunPlanner_MonteCarloPreconditionFailureDoesNotAbortFireCalculation(t *testing.T) {
	settings := DefaultSimulationSettings()
	settings.NumSimulations = 0 // triggers MonteCarloEngine.Run's PreconditionError

	plan := buildPlanDocument(t, 800000, 120000, 40000, 50, settings)

	result, err := RunPlanner(plan, NewCashFlowStrategy(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result.FireCalculation)
	assert.True(t, result.FireCalculation.IsFireAchievable)
	assert.Nil(t, result.MonteCarlo)
	assert.Nil(t, result.FireCalculation.FireSuccessProbability)
	assert.NotNil(t, result.Recommendations)
}

func TestRunPlanner_SucceedsEndToEndWithMonteCarloAndRecommendations(t *testing.T) {
	settings := DefaultSimulationSettings()
	settings.NumSimulations = 20
	seed := uint64(7)
	settings.Seed = &seed

	plan := buildPlanDocument(t, 800000, 120000, 40000, 50, settings)

	result, err := RunPlanner(plan, NewCashFlowStrategy(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result.MonteCarlo)
	require.NotNil(t, result.FireCalculation.FireSuccessProbability)
	assert.Len(t, result.Recommendations, 1)
}
