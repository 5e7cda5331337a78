package fireplan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioState_GetAllocation_SumsToExactlyOne(t *testing.T) {
	a, _ := NewAssetClass("A", 33.34, 5, 10, "")
	b, _ := NewAssetClass("B", 33.33, 5, 10, "")
	c, _ := NewAssetClass("C", 33.33, 5, 10, "")
	cfg, err := NewPortfolioConfiguration([]AssetClass{a, b, c}, false)
	require.NoError(t, err)

	state := NewPortfolioState(decimal.NewFromInt(1), cfg.AssetClasses)
	state.values["a"] = decimal.RequireFromString("33333.33")
	state.values["b"] = decimal.RequireFromString("33333.33")
	state.values["c"] = decimal.RequireFromString("33333.34")

	allocation, warn := state.GetAllocation()
	assert.False(t, warn)

	sum := 0.0
	for _, v := range allocation {
		sum += v
	}
	assert.Equal(t, 1.0, sum, "allocation must sum to exactly 1.0 bit-exact")
}

func TestPortfolioState_GetAllocation_NoWarningForTwoAssetRatio(t *testing.T) {
	a, _ := NewAssetClass("A", 50, 5, 10, "")
	b, _ := NewAssetClass("B", 50, 5, 10, "")
	cfg, err := NewPortfolioConfiguration([]AssetClass{a, b}, false)
	require.NoError(t, err)

	state := NewPortfolioState(decimal.NewFromInt(1), cfg.AssetClasses)
	state.values["a"] = decimal.NewFromInt(100)
	state.values["b"] = decimal.NewFromInt(1)

	_, warn := state.GetAllocation()
	assert.False(t, warn, "a simple two-asset ratio still sums its raw fractions to 1.0")
}

func TestPortfolioState_GetAllocation_ZeroTotalReturnsZeroes(t *testing.T) {
	a, _ := NewAssetClass("A", 100, 5, 10, "")
	cfg, err := NewPortfolioConfiguration([]AssetClass{a}, false)
	require.NoError(t, err)

	state := NewPortfolioState(decimal.Zero, cfg.AssetClasses)
	allocation, warn := state.GetAllocation()
	assert.False(t, warn)
	assert.Equal(t, 0.0, allocation["A"])
}

func TestCashFlowStrategy_HandleIncome_FillsBufferBeforeInvesting(t *testing.T) {
	cash, _ := NewAssetClass("Cash", 10, 0, 1, LiquidityHigh)
	stocks, _ := NewAssetClass("Stocks", 90, 7, 18, LiquidityMedium)
	assets := []AssetClass{cash, stocks}
	current := map[string]decimal.Decimal{"cash": decimal.Zero, "stocks": decimal.NewFromInt(100000)}

	strategy := NewCashFlowStrategy()
	annualExpenses := decimal.NewFromInt(40000)
	deposits := strategy.HandleIncome(decimal.NewFromInt(5000), assets, current, annualExpenses)

	requiredBuffer := annualExpenses.Mul(decimal.NewFromFloat(0.25)) // 3 months
	assert.True(t, deposits["cash"].Equal(decimal.NewFromInt(5000)), "entire deposit should go to cash while buffer unmet")
	assert.True(t, requiredBuffer.GreaterThan(decimal.NewFromInt(5000)))
}

func TestCashFlowStrategy_HandleIncome_SpreadsRemainderAfterBufferFull(t *testing.T) {
	cash, _ := NewAssetClass("Cash", 10, 0, 1, LiquidityHigh)
	stocks, _ := NewAssetClass("Stocks", 70, 7, 18, LiquidityMedium)
	bonds, _ := NewAssetClass("Bonds", 20, 3, 6, LiquidityLow)
	assets := []AssetClass{cash, stocks, bonds}
	current := map[string]decimal.Decimal{
		"cash":   decimal.NewFromInt(100000),
		"stocks": decimal.NewFromInt(100000),
		"bonds":  decimal.NewFromInt(100000),
	}

	strategy := NewCashFlowStrategy()
	deposits := strategy.HandleIncome(decimal.NewFromInt(9000), assets, current, decimal.NewFromInt(40000))

	assert.True(t, deposits["cash"].IsZero(), "buffer already full, cash gets nothing")
	total := deposits["stocks"].Add(deposits["bonds"])
	assert.True(t, total.Equal(decimal.NewFromInt(9000)))
	// 70/20 split within non-HIGH subset
	assert.True(t, deposits["stocks"].Equal(decimal.NewFromInt(7000)))
	assert.True(t, deposits["bonds"].Equal(decimal.NewFromInt(2000)))
}

func TestCashFlowStrategy_HandleExpense_DrainsHighTierFirst(t *testing.T) {
	cash, _ := NewAssetClass("Cash", 10, 0, 1, LiquidityHigh)
	stocks, _ := NewAssetClass("Stocks", 90, 7, 18, LiquidityMedium)
	assets := []AssetClass{cash, stocks}
	current := map[string]decimal.Decimal{"cash": decimal.NewFromInt(5000), "stocks": decimal.NewFromInt(100000)}

	strategy := NewCashFlowStrategy()
	withdrawals, unfunded := strategy.HandleExpense(decimal.NewFromInt(3000), assets, current)

	assert.True(t, unfunded.IsZero())
	assert.True(t, withdrawals["cash"].Equal(decimal.NewFromInt(-3000)))
	assert.True(t, withdrawals["stocks"].IsZero())
}

func TestCashFlowStrategy_HandleExpense_ReportsUnfundedShortfall(t *testing.T) {
	cash, _ := NewAssetClass("Cash", 100, 0, 1, LiquidityHigh)
	assets := []AssetClass{cash}
	current := map[string]decimal.Decimal{"cash": decimal.NewFromInt(1000)}

	strategy := NewCashFlowStrategy()
	_, unfunded := strategy.HandleExpense(decimal.NewFromInt(5000), assets, current)

	assert.True(t, unfunded.Equal(decimal.NewFromInt(4000)))
}

func TestPortfolioSimulator_SimulateYear_RebalancesWhenDrifted(t *testing.T) {
	stocks, _ := NewAssetClass("Stocks", 50, 7, 18, "")
	cash, _ := NewAssetClass("Cash", 50, 0, 1, LiquidityHigh)
	cfg, err := NewPortfolioConfiguration([]AssetClass{stocks, cash}, true)
	require.NoError(t, err)
	profile := &UserProfile{CurrentNetWorth: decimal.NewFromInt(100000), Portfolio: cfg, SafetyBufferMonths: 6}

	sim := NewPortfolioSimulator(profile, NewCashFlowStrategy(), nil)
	sim.state.values["stocks"] = decimal.NewFromInt(90000)
	sim.state.values["cash"] = decimal.NewFromInt(10000)

	sim.SimulateYear(45, decimal.Zero, decimal.NewFromInt(40000))

	allocation, _ := sim.state.GetAllocation()
	assert.InDelta(t, 0.5, allocation["stocks"], 0.05)
}
