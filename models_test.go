package fireplan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssetClass_NormalizesNameAndInfersLiquidity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLiq  LiquidityLevel
	}{
		{"cash maps HIGH", "  Cash ", LiquidityHigh},
		{"stocks maps MEDIUM", "Stocks", LiquidityMedium},
		{"bonds maps LOW", "Bonds", LiquidityLow},
		{"savings maps LOW", "Savings", LiquidityLow},
		{"unknown maps MEDIUM", "Crypto", LiquidityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac, err := NewAssetClass(tt.input, 10, 5, 10, "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLiq, ac.LiquidityLevel)
			assert.Equal(t, tt.input, ac.DisplayName)
		})
	}
}

func TestNewAssetClass_RejectsOutOfRangeAllocation(t *testing.T) {
	_, err := NewAssetClass("Stocks", 150, 5, 10, "")
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "allocation_percentage", ve.Field)
}

func TestNewPortfolioConfiguration_RequiresAllocationsSumTo100(t *testing.T) {
	stocks, _ := NewAssetClass("Stocks", 60, 5, 10, "")
	bonds, _ := NewAssetClass("Bonds", 30, 3, 5, "")
	_, err := NewPortfolioConfiguration([]AssetClass{stocks, bonds}, true)
	require.Error(t, err)
}

func TestNewPortfolioConfiguration_RejectsDuplicateNames(t *testing.T) {
	a, _ := NewAssetClass("Stocks", 50, 5, 10, "")
	b, _ := NewAssetClass(" stocks", 50, 5, 10, "")
	_, err := NewPortfolioConfiguration([]AssetClass{a, b}, true)
	require.Error(t, err)
}

func TestDefaultPortfolioConfiguration_SumsTo100(t *testing.T) {
	cfg := DefaultPortfolioConfiguration()
	sum := 0.0
	for _, a := range cfg.AssetClasses {
		sum += a.AllocationPercentage
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestNewUserProfile_EnforcesAgeProgression(t *testing.T) {
	portfolio := DefaultPortfolioConfiguration()
	_, err := NewUserProfile(1990, 2026, 40, 35, 90, decimal.Zero, 2.5, 6, portfolio)
	require.Error(t, err, "expected_fire_age must not exceed legal_retirement_age")
}

func TestNewUserProfile_RejectsBirthYearOutOfRange(t *testing.T) {
	portfolio := DefaultPortfolioConfiguration()
	_, err := NewUserProfile(1900, 2026, 50, 67, 90, decimal.Zero, 2.5, 6, portfolio)
	require.Error(t, err)
}

func TestUserProfile_CloneIsIndependent(t *testing.T) {
	portfolio := DefaultPortfolioConfiguration()
	profile, err := NewUserProfile(1990, 2026, 50, 67, 90, decimal.NewFromInt(100000), 2.5, 6, portfolio)
	require.NoError(t, err)

	clone := profile.Clone()
	clone.ExpectedFireAge = 45
	clone.Portfolio.AssetClasses[0].AllocationPercentage = 0

	assert.Equal(t, 50, profile.ExpectedFireAge)
	assert.NotEqual(t, profile.Portfolio.AssetClasses[0].AllocationPercentage, clone.Portfolio.AssetClasses[0].AllocationPercentage)
}

func TestNewIncomeExpenseItem_AssignsUUIDWhenIDEmpty(t *testing.T) {
	end := 50
	item, err := NewIncomeExpenseItem("", "Salary", decimal.NewFromInt(5000), Monthly, Recurring, 1, 30, &end, 2.0, true, "employment", 30, 90)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Len(t, item.ID, 36)
}

func TestNewIncomeExpenseItem_RecurringRequiresEndAge(t *testing.T) {
	_, err := NewIncomeExpenseItem("x", "Salary", decimal.NewFromInt(5000), Monthly, Recurring, 1, 30, nil, 2.0, true, "", 30, 90)
	require.Error(t, err)
}

func TestNewIncomeExpenseItem_RejectsStartAgeBeforeCurrentAge(t *testing.T) {
	end := 50
	_, err := NewIncomeExpenseItem("x", "Salary", decimal.NewFromInt(5000), Monthly, Recurring, 1, 20, &end, 2.0, true, "", 30, 90)
	require.Error(t, err)
}

func TestIncomeExpenseItem_CloneCopiesEndAgePointer(t *testing.T) {
	end := 50
	item, err := NewIncomeExpenseItem("x", "Salary", decimal.NewFromInt(5000), Monthly, Recurring, 1, 30, &end, 2.0, true, "", 30, 90)
	require.NoError(t, err)

	clone := item.Clone()
	*clone.EndAge = 60

	assert.Equal(t, 50, *item.EndAge)
	assert.Equal(t, 60, *clone.EndAge)
}

func TestIncomeExpenseItem_AnnualAmountConvertsTimeUnit(t *testing.T) {
	end := 50
	item, err := NewIncomeExpenseItem("x", "Salary", decimal.NewFromInt(5000), Monthly, Recurring, 1, 30, &end, 0, true, "", 30, 90)
	require.NoError(t, err)
	assert.True(t, item.annualAmount().Equal(decimal.NewFromInt(60000)))
}
