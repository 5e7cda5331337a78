package fireplan

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// RecommendationType is a stable, untranslated identifier the core emits;
// localized strings are strictly a collaborator concern (spec §6/§9).
type RecommendationType string

const (
	RecommendationEarlyRetirement            RecommendationType = "early_retirement"
	RecommendationDelayedRetirement           RecommendationType = "delayed_retirement"
	RecommendationDelayedRetirementNotFeasible RecommendationType = "delayed_retirement_not_feasible"
	RecommendationIncreaseIncome              RecommendationType = "increase_income"
	RecommendationReduceExpenses              RecommendationType = "reduce_expenses"
)

// Recommendation is one advisor finding. Params carries numeric detail
// only — no localized text, per spec §6's i18n note.
type Recommendation struct {
	Type                   RecommendationType
	IsAchievable           bool
	Params                 map[string]float64
	MonteCarloSuccessRate  *float64
}

// AdvisorInput is the immutable engine input the advisor probes by
// constructing perturbed copies; it never mutates the caller's state
// (spec §4.6, Design Notes §9 "one-way borrow").
type AdvisorInput struct {
	Profile      *UserProfile
	IncomeItems  []*IncomeExpenseItem
	ExpenseItems []*IncomeExpenseItem
	Overrides    []Override
	Strategy     CashFlowStrategy
	Logger       *slog.Logger
}

// Advisor searches over profile/projection perturbations to find the
// minimally-invasive parameter change that achieves sustainability.
//
// Uses a binary-search-with-best-so-far idiom, the same shape as a
// depletion-income search over a withdrawal rate.
type Advisor struct {
	input AdvisorInput
}

// NewAdvisor constructs an advisor over an immutable input snapshot.
func NewAdvisor(input AdvisorInput) *Advisor {
	if input.Logger == nil {
		input.Logger = slog.Default()
	}
	return &Advisor{input: input}
}

func (a *Advisor) buildSummary(profile *UserProfile, incomeItems, expenseItems []*IncomeExpenseItem) (AnnualSummary, error) {
	table, err := BuildProjectionTable(profile, incomeItems, expenseItems)
	if err != nil {
		return AnnualSummary{}, err
	}
	table = table.ApplyOverrides(a.input.Overrides)
	return table.Summarize(), nil
}

func (a *Advisor) runBase() (*FIRECalculationResult, error) {
	summary, err := a.buildSummary(a.input.Profile, a.input.IncomeItems, a.input.ExpenseItems)
	if err != nil {
		return nil, err
	}
	engine := NewFIREEngine(a.input.Profile, a.input.Strategy, a.input.Logger)
	return engine.Calculate(summary)
}

// runWithFireAge re-runs the plan with expected_fire_age set to testAge,
// truncating (early-retirement probe) or extending (delayed-retirement
// probe) any work-income stream whose original end_age equals the base
// plan's expected_fire_age to testAge instead, per spec §4.6.
func (a *Advisor) runWithFireAge(testAge int) (*FIRECalculationResult, error) {
	profile := a.input.Profile.Clone()
	profile.ExpectedFireAge = testAge

	originalFireAge := a.input.Profile.ExpectedFireAge
	items := make([]*IncomeExpenseItem, len(a.input.IncomeItems))
	for i, item := range a.input.IncomeItems {
		clone := item.Clone()
		if clone.EndAge != nil && *clone.EndAge == originalFireAge {
			newEnd := testAge
			clone.EndAge = &newEnd
		}
		items[i] = clone
	}

	summary, err := a.buildSummary(profile, items, a.input.ExpenseItems)
	if err != nil {
		return nil, err
	}
	engine := NewFIREEngine(profile, a.input.Strategy, a.input.Logger)
	return engine.Calculate(summary)
}

// findEarliestRetirement walks test_age downward from expected_fire_age-1
// to current_age, stopping at the first non-sustainable age and reporting
// the last sustainable one, per spec §4.6.
func (a *Advisor) findEarliestRetirement() (*Recommendation, error) {
	currentAge := a.input.Profile.CurrentAge()
	earliest := a.input.Profile.ExpectedFireAge

	for testAge := a.input.Profile.ExpectedFireAge - 1; testAge >= currentAge; testAge-- {
		result, err := a.runWithFireAge(testAge)
		if err != nil {
			return nil, err
		}
		if !result.IsFireAchievable {
			break
		}
		earliest = testAge
	}

	rec := &Recommendation{
		Type:         RecommendationEarlyRetirement,
		IsAchievable: true,
		Params:       map[string]float64{"age": float64(earliest)},
	}

	profile := a.input.Profile.Clone()
	profile.ExpectedFireAge = earliest
	summary, err := a.buildSummary(profile, a.input.IncomeItems, a.input.ExpenseItems)
	if err == nil {
		mc := NewMonteCarloEngine(profile, summary, DefaultSimulationSettings(), a.input.Strategy, a.input.Logger)
		if mcResult, mcErr := mc.Run(nil); mcErr == nil {
			rate := mcResult.SuccessRate
			rec.MonteCarloSuccessRate = &rate
		}
	}
	return rec, nil
}

// findRequiredDelayedRetirement walks test_age upward from
// expected_fire_age+1 to legal_retirement_age, extending work-income
// streams to match, per spec §4.6.
func (a *Advisor) findRequiredDelayedRetirement() (*Recommendation, error) {
	for testAge := a.input.Profile.ExpectedFireAge + 1; testAge <= a.input.Profile.LegalRetirementAge; testAge++ {
		result, err := a.runWithFireAge(testAge)
		if err != nil {
			return nil, err
		}
		if result.IsFireAchievable {
			return &Recommendation{
				Type:         RecommendationDelayedRetirement,
				IsAchievable: true,
				Params:       map[string]float64{"age": float64(testAge)},
			}, nil
		}
	}
	return &Recommendation{
		Type:         RecommendationDelayedRetirementNotFeasible,
		IsAchievable: false,
		Params:       map[string]float64{"age": float64(a.input.Profile.LegalRetirementAge)},
	}, nil
}

func scaleSummary(summary AnnualSummary, incomeMultiplier, expenseMultiplier float64) AnnualSummary {
	n := len(summary.Ages)
	out := AnnualSummary{
		Ages:         append([]int(nil), summary.Ages...),
		Years:        append([]int(nil), summary.Years...),
		TotalIncome:  make([]decimal.Decimal, n),
		TotalExpense: make([]decimal.Decimal, n),
		NetCashFlow:  make([]decimal.Decimal, n),
	}
	for i := range summary.Ages {
		out.TotalIncome[i] = summary.TotalIncome[i].Mul(decimal.NewFromFloat(incomeMultiplier))
		out.TotalExpense[i] = summary.TotalExpense[i].Mul(decimal.NewFromFloat(expenseMultiplier))
		out.NetCashFlow[i] = out.TotalIncome[i].Sub(out.TotalExpense[i])
	}
	return out
}

const (
	incomeMultiplierLow       = 1.0
	incomeMultiplierHigh      = 5.0
	incomeMultiplierPrecision = 0.01

	expenseReductionLow       = 0.0
	expenseReductionHigh      = 0.8
	expenseReductionPrecision = 0.001
)

// findRequiredIncomeIncrease bisects a uniform income multiplier in
// [1.0, 5.0] at 0.01 precision.
//
// NOTE: the multiplier scales total_income uniformly across every year,
// including years after FIRE. This is the defined behavior of this
// recommendation, not an oversight.
func (a *Advisor) findRequiredIncomeIncrease(base AnnualSummary) (*Recommendation, error) {
	achievable := func(m float64) (bool, error) {
		scaled := scaleSummary(base, m, 1.0)
		engine := NewFIREEngine(a.input.Profile, a.input.Strategy, a.input.Logger)
		result, err := engine.Calculate(scaled)
		if err != nil {
			return false, err
		}
		return result.IsFireAchievable, nil
	}

	highOK, err := achievable(incomeMultiplierHigh)
	if err != nil {
		return nil, err
	}
	if !highOK {
		return nil, nil
	}

	low, high := incomeMultiplierLow, incomeMultiplierHigh
	for high-low > incomeMultiplierPrecision {
		mid := (low + high) / 2
		ok, err := achievable(mid)
		if err != nil {
			return nil, err
		}
		if ok {
			high = mid
		} else {
			low = mid
		}
	}

	year0Income, _ := base.TotalIncome[0].Float64()
	additionalIncome := year0Income * (high - 1.0)

	return &Recommendation{
		Type:         RecommendationIncreaseIncome,
		IsAchievable: true,
		Params: map[string]float64{
			"multiplier":               high,
			"additional_annual_income": additionalIncome,
		},
	}, nil
}

// findRequiredExpenseReduction bisects a reduction fraction r in [0, 0.8]
// at 0.001 precision; total_expense is multiplied by (1-r), per spec §4.6.
func (a *Advisor) findRequiredExpenseReduction(base AnnualSummary) (*Recommendation, error) {
	achievable := func(r float64) (bool, error) {
		scaled := scaleSummary(base, 1.0, 1.0-r)
		engine := NewFIREEngine(a.input.Profile, a.input.Strategy, a.input.Logger)
		result, err := engine.Calculate(scaled)
		if err != nil {
			return false, err
		}
		return result.IsFireAchievable, nil
	}

	highOK, err := achievable(expenseReductionHigh)
	if err != nil {
		return nil, err
	}
	if !highOK {
		return nil, nil
	}

	low, high := expenseReductionLow, expenseReductionHigh
	for high-low > expenseReductionPrecision {
		mid := (low + high) / 2
		ok, err := achievable(mid)
		if err != nil {
			return nil, err
		}
		if ok {
			high = mid
		} else {
			low = mid
		}
	}

	return &Recommendation{
		Type:         RecommendationReduceExpenses,
		IsAchievable: true,
		Params:       map[string]float64{"reduction_fraction": high},
	}, nil
}

// GetAllRecommendations implements spec §4.6's top-level branch: earliest
// retirement if the base plan is sustainable, otherwise up to three
// alternatives.
//
// GetAllRecommendations recovers from any panic raised during the search
// and reports it as an *OptionalSubsystemError instead of crashing the
// process, per spec §7: advisor output is an optional enrichment over the
// core fire_calculation, not a dependency of it.
func (a *Advisor) GetAllRecommendations() (recs []Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.input.Logger.Error("advisor recommendations panicked, reporting absence", "panic", r)
			recs = nil
			err = newOptionalSubsystemError("advisor", r)
		}
	}()

	base, err := a.runBase()
	if err != nil {
		return nil, err
	}

	if base.IsFireAchievable {
		rec, err := a.findEarliestRetirement()
		if err != nil {
			return nil, err
		}
		return []Recommendation{*rec}, nil
	}

	delayed, err := a.findRequiredDelayedRetirement()
	if err != nil {
		return nil, err
	}
	recs = append(recs, *delayed)

	baseSummary, err := a.buildSummary(a.input.Profile, a.input.IncomeItems, a.input.ExpenseItems)
	if err != nil {
		return nil, err
	}

	if incomeRec, err := a.findRequiredIncomeIncrease(baseSummary); err != nil {
		return nil, err
	} else if incomeRec != nil {
		recs = append(recs, *incomeRec)
	}

	if expenseRec, err := a.findRequiredExpenseReduction(baseSummary); err != nil {
		return nil, err
	} else if expenseRec != nil {
		recs = append(recs, *expenseRec)
	}

	return recs, nil
}
