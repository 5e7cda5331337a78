package fireplan

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// YearlyState is the per-year output of the engine (spec §3). NetWorth may
// go negative, representing accumulated unfunded shortfall after the
// portfolio reaches zero.
type YearlyState struct {
	Age              int
	Year             int
	TotalIncome      decimal.Decimal
	TotalExpense     decimal.Decimal
	NetCashFlow      decimal.Decimal
	PortfolioValue   decimal.Decimal
	InvestmentReturn decimal.Decimal
	NetWorth         decimal.Decimal
	IsSustainable    bool
	FireNumber       decimal.Decimal
	FireProgress     float64
}

// FIRECalculationResult is the top-level output bundle of spec §3.
type FIRECalculationResult struct {
	IsFireAchievable        bool
	FireNetWorth            decimal.Decimal
	MinNetWorthAfterFire    decimal.Decimal
	FinalNetWorth           decimal.Decimal
	SafetyBufferMonths      float64
	MinSafetyBufferRatio    float64
	YearlyResults           []YearlyState
	TraditionalFireNumber   decimal.Decimal
	TraditionalFireAchieved bool
	// FireSuccessProbability is nil until RunPlanner sets it from a
	// successful Monte Carlo run.
	FireSuccessProbability *float64
	TotalYearsSimulated    int
	RetirementYears        int
}

// FIREEngine drives a PortfolioSimulator over an AnnualSummary and produces
// yearly states and an aggregate result, per spec §4.4.
type FIREEngine struct {
	profile   *UserProfile
	simulator *PortfolioSimulator
}

// NewFIREEngine constructs an engine over an immutable profile snapshot.
// The engine never retains a pointer back to a planner (spec Design Notes
// §9, "reference cycles via planner↔engine → one-way borrow").
func NewFIREEngine(profile *UserProfile, strategy CashFlowStrategy, logger *slog.Logger) *FIREEngine {
	return &FIREEngine{
		profile:   profile,
		simulator: NewPortfolioSimulator(profile, strategy, logger),
	}
}

const fireNumberMultiple = 25.0

// CalculateSingleYear computes one YearlyState from pre-computed
// income/expense totals, per spec §4.4 step 1/2a/2d/2e. It does not track
// cumulative debt across years; that is the responsibility of Calculate.
func (e *FIREEngine) CalculateSingleYear(age, year int, totalIncome, totalExpense decimal.Decimal) YearlyState {
	netCashFlow := totalIncome.Sub(totalExpense)

	result := e.simulator.SimulateYear(age, netCashFlow, totalExpense)
	portfolioValue := result.EndingPortfolioValue

	safetyBufferAmount := totalExpense.Mul(decimal.NewFromFloat(e.profile.SafetyBufferMonths / 12.0))
	fireNumber := totalExpense.Mul(decimal.NewFromFloat(fireNumberMultiple))
	fireProgress := 0.0
	if fireNumber.IsPositive() {
		fireProgress, _ = portfolioValue.Div(fireNumber).Float64()
	}
	isSustainable := portfolioValue.GreaterThanOrEqual(safetyBufferAmount)

	return YearlyState{
		Age:              age,
		Year:             year,
		TotalIncome:      totalIncome,
		TotalExpense:     totalExpense,
		NetCashFlow:      netCashFlow,
		PortfolioValue:   portfolioValue,
		InvestmentReturn: result.InvestmentReturns,
		NetWorth:         portfolioValue,
		IsSustainable:    isSustainable,
		FireNumber:       fireNumber,
		FireProgress:     fireProgress,
	}
}

// Calculate runs the complete FIRE calculation over summary and aggregates
// a FIRECalculationResult, per spec §4.4.
func (e *FIREEngine) Calculate(summary AnnualSummary) (*FIRECalculationResult, error) {
	if len(summary.Ages) == 0 {
		return nil, newPreconditionError("Calculate", "annual summary has no rows")
	}
	states := e.calculateYearlyStates(summary)
	return e.createCalculationResult(states), nil
}

func (e *FIREEngine) calculateYearlyStates(summary AnnualSummary) []YearlyState {
	e.simulator.ResetToInitial()

	states := make([]YearlyState, len(summary.Ages))
	cumulativeDebt := decimal.Zero

	for i := range summary.Ages {
		state := e.CalculateSingleYear(summary.Ages[i], summary.Years[i], summary.TotalIncome[i], summary.TotalExpense[i])

		if state.PortfolioValue.IsPositive() {
			state.NetWorth = state.PortfolioValue
			cumulativeDebt = decimal.Zero
		} else {
			if state.NetCashFlow.IsNegative() {
				cumulativeDebt = cumulativeDebt.Add(state.NetCashFlow.Abs())
			}
			state.NetWorth = cumulativeDebt.Neg()
		}

		states[i] = state
	}
	return states
}

func (e *FIREEngine) createCalculationResult(states []YearlyState) *FIRECalculationResult {
	isFireAchievable := true
	for _, s := range states {
		if !s.IsSustainable {
			isFireAchievable = false
			break
		}
	}

	currentAge := e.profile.CurrentAge()
	fireYearIndex := e.profile.ExpectedFireAge - currentAge

	fireNetWorth := decimal.Zero
	minNetWorthAfterFire := decimal.Zero
	if fireYearIndex >= 0 && fireYearIndex < len(states) {
		fireNetWorth = states[fireYearIndex].NetWorth
		minNetWorthAfterFire = fireNetWorth
		for _, s := range states[fireYearIndex:] {
			if s.NetWorth.LessThan(minNetWorthAfterFire) {
				minNetWorthAfterFire = s.NetWorth
			}
		}
	}

	finalNetWorth := decimal.Zero
	if len(states) > 0 {
		finalNetWorth = states[len(states)-1].NetWorth
	}

	minRatio := 0.0
	haveRatio := false
	for _, s := range states {
		safetyBuffer := s.TotalExpense.Mul(decimal.NewFromFloat(e.profile.SafetyBufferMonths / 12.0))
		if !safetyBuffer.IsPositive() {
			continue
		}
		ratio, _ := s.NetWorth.Div(safetyBuffer).Float64()
		if !haveRatio || ratio < minRatio {
			minRatio = ratio
			haveRatio = true
		}
	}

	traditionalFireExpenses := decimal.Zero
	n := len(states)
	if n >= 5 {
		for _, s := range states[:5] {
			traditionalFireExpenses = traditionalFireExpenses.Add(s.TotalExpense)
		}
		traditionalFireExpenses = traditionalFireExpenses.Div(decimal.NewFromInt(5))
	}
	traditionalFireNumber := traditionalFireExpenses.Mul(decimal.NewFromFloat(fireNumberMultiple))
	traditionalFireAchieved := false
	for _, s := range states {
		if s.PortfolioValue.GreaterThanOrEqual(traditionalFireNumber) {
			traditionalFireAchieved = true
			break
		}
	}

	retirementYears := 0
	if fireYearIndex >= 0 {
		retirementYears = len(states) - fireYearIndex
	}

	return &FIRECalculationResult{
		IsFireAchievable:        isFireAchievable,
		FireNetWorth:            fireNetWorth,
		MinNetWorthAfterFire:    minNetWorthAfterFire,
		FinalNetWorth:           finalNetWorth,
		SafetyBufferMonths:      e.profile.SafetyBufferMonths,
		MinSafetyBufferRatio:    minRatio,
		YearlyResults:           states,
		TraditionalFireNumber:   traditionalFireNumber,
		TraditionalFireAchieved: traditionalFireAchieved,
		TotalYearsSimulated:     len(states),
		RetirementYears:         retirementYears,
	}
}
