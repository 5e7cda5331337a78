package fireplan

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiquidityLevel classifies how readily an asset class can be converted to
// cash without penalty. Controls withdrawal order in the cash-flow
// strategy.
type LiquidityLevel string

const (
	LiquidityHigh   LiquidityLevel = "HIGH"
	LiquidityMedium LiquidityLevel = "MEDIUM"
	LiquidityLow    LiquidityLevel = "LOW"
)

// TimeUnit is the period an IncomeExpenseItem's amount is denominated in,
// before normalization to an annual figure during projection.
type TimeUnit string

const (
	Monthly   TimeUnit = "monthly"
	Quarterly TimeUnit = "quarterly"
	Annually  TimeUnit = "annually"
)

func (t TimeUnit) periodsPerYear() float64 {
	switch t {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	default:
		return 1
	}
}

// ItemFrequency distinguishes a recurring stream from a single lump event.
type ItemFrequency string

const (
	Recurring ItemFrequency = "recurring"
	OneTime   ItemFrequency = "one-time"
)

// AssetClass is one line of a PortfolioConfiguration: a named slice of the
// portfolio with its own expected return, volatility, and liquidity tier.
type AssetClass struct {
	// Name is the case-insensitive, whitespace-collapsed key used for
	// uniqueness checks and liquidity-tier name-heuristic fallback.
	Name string
	// DisplayName preserves the user's original casing/spacing for output.
	DisplayName string
	// AllocationPercentage is in [0, 100].
	AllocationPercentage float64
	// ExpectedReturn is an annual percentage, after tax.
	ExpectedReturn float64
	// Volatility is an annual percentage, used only by the Monte Carlo engine.
	Volatility float64
	// LiquidityLevel controls withdrawal/deposit ordering in the cash-flow
	// strategy.
	LiquidityLevel LiquidityLevel
}

func normalizeAssetName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// inferLiquidityLevel applies the name-heuristic fallback from spec §4.3
// when a portfolio is configured without explicit liquidity levels.
func inferLiquidityLevel(normalizedName string) LiquidityLevel {
	switch {
	case normalizedName == "cash":
		return LiquidityHigh
	case normalizedName == "stocks":
		return LiquidityMedium
	case normalizedName == "bonds" || normalizedName == "savings":
		return LiquidityLow
	default:
		return LiquidityMedium
	}
}

// NewAssetClass constructs an AssetClass, normalizing its name and
// inferring a liquidity level when none is supplied.
func NewAssetClass(name string, allocationPercentage, expectedReturn, volatility float64, liquidity LiquidityLevel) (AssetClass, error) {
	normalized := normalizeAssetName(name)
	if normalized == "" {
		return AssetClass{}, newValidationError("name", "asset class name must not be empty")
	}
	if allocationPercentage < 0 || allocationPercentage > 100 {
		return AssetClass{}, newValidationError("allocation_percentage", "must be within [0, 100], got %v", allocationPercentage)
	}
	if liquidity == "" {
		liquidity = inferLiquidityLevel(normalized)
	}
	return AssetClass{
		Name:                 normalized,
		DisplayName:          name,
		AllocationPercentage: allocationPercentage,
		ExpectedReturn:       expectedReturn,
		Volatility:           volatility,
		LiquidityLevel:       liquidity,
	}, nil
}

// PortfolioConfiguration is an ordered sequence of AssetClass records plus
// a rebalancing policy flag.
type PortfolioConfiguration struct {
	AssetClasses      []AssetClass
	EnableRebalancing bool
}

// allocationEpsilon is float64 machine epsilon (2^-52).
const allocationEpsilon = 2.220446049250313e-16

// NewPortfolioConfiguration validates that allocations sum to 100% within
// machine epsilon and that normalized names are unique, per spec §3.
func NewPortfolioConfiguration(assetClasses []AssetClass, enableRebalancing bool) (PortfolioConfiguration, error) {
	if len(assetClasses) == 0 {
		return PortfolioConfiguration{}, newValidationError("asset_classes", "portfolio must declare at least one asset class")
	}
	seen := make(map[string]bool, len(assetClasses))
	sum := 0.0
	for _, ac := range assetClasses {
		if seen[ac.Name] {
			return PortfolioConfiguration{}, newValidationError("asset_classes", "duplicate asset class name %q", ac.Name)
		}
		seen[ac.Name] = true
		sum += ac.AllocationPercentage
	}
	if diff := sum - 100.0; diff < -allocationEpsilon || diff > allocationEpsilon {
		return PortfolioConfiguration{}, newValidationError("asset_classes", "allocation percentages must sum to 100, got %v", sum)
	}
	return PortfolioConfiguration{AssetClasses: assetClasses, EnableRebalancing: enableRebalancing}, nil
}

// DefaultPortfolioConfiguration is the default four-asset portfolio (30%
// Stocks / 0% Bonds / 60% Savings / 10% Cash) used when a profile doesn't
// specify its own allocation.
func DefaultPortfolioConfiguration() PortfolioConfiguration {
	stocks, _ := NewAssetClass("Stocks", 30.0, 5.0, 15.0, LiquidityMedium)
	bonds, _ := NewAssetClass("Bonds", 0.0, 3.0, 5.0, LiquidityLow)
	savings, _ := NewAssetClass("Savings", 60.0, 1.0, 5.0, LiquidityLow)
	cash, _ := NewAssetClass("Cash", 10.0, 0.0, 1.0, LiquidityHigh)
	cfg, _ := NewPortfolioConfiguration([]AssetClass{stocks, bonds, savings, cash}, true)
	return cfg
}

// Clone returns a deep copy, used so the advisor and Monte Carlo engine
// never mutate a caller's configuration in place.
func (p PortfolioConfiguration) Clone() PortfolioConfiguration {
	out := make([]AssetClass, len(p.AssetClasses))
	copy(out, p.AssetClasses)
	return PortfolioConfiguration{AssetClasses: out, EnableRebalancing: p.EnableRebalancing}
}

// UserProfile holds the scalar household parameters spec §3 names.
type UserProfile struct {
	BirthYear          int
	CurrentYear        int
	ExpectedFireAge    int
	LegalRetirementAge int
	LifeExpectancy     int
	CurrentNetWorth    decimal.Decimal
	InflationRate      float64
	SafetyBufferMonths float64
	Portfolio          PortfolioConfiguration
	// BridgeDiscountRate is carried per Open Question #2 (DESIGN.md):
	// referenced only by the (out-of-scope) HTML report collaborator in the
	// original implementation. The core never reads it; it defaults to 0
	// ("no bridging adjustment") and exists only so a future report
	// collaborator has somewhere to read it from.
	BridgeDiscountRate float64
}

// CurrentAge derives the household's current age from BirthYear and
// CurrentYear, per spec §3.
func (p UserProfile) CurrentAge() int {
	return p.CurrentYear - p.BirthYear
}

const minBirthYear = 1950

// NewUserProfile validates the age-progression invariant
// (current ≤ fire ≤ retirement ≤ life) and the birth-year range, enforcing
// spec §3's invariants at construction time per the
// pydantic-validators→constructor-time-checks redesign.
func NewUserProfile(birthYear, currentYear, expectedFireAge, legalRetirementAge, lifeExpectancy int, currentNetWorth decimal.Decimal, inflationRate, safetyBufferMonths float64, portfolio PortfolioConfiguration) (*UserProfile, error) {
	if birthYear < minBirthYear || birthYear > currentYear {
		return nil, newValidationError("birth_year", "must be within [%d, %d], got %d", minBirthYear, currentYear, birthYear)
	}
	current := currentYear - birthYear
	if !(current <= expectedFireAge && expectedFireAge <= legalRetirementAge && legalRetirementAge <= lifeExpectancy) {
		return nil, newValidationError("age_progression",
			"ages must follow current_age(%d) <= expected_fire_age(%d) <= legal_retirement_age(%d) <= life_expectancy(%d)",
			current, expectedFireAge, legalRetirementAge, lifeExpectancy)
	}
	return &UserProfile{
		BirthYear:          birthYear,
		CurrentYear:        currentYear,
		ExpectedFireAge:    expectedFireAge,
		LegalRetirementAge: legalRetirementAge,
		LifeExpectancy:     lifeExpectancy,
		CurrentNetWorth:    currentNetWorth,
		InflationRate:      inflationRate,
		SafetyBufferMonths: safetyBufferMonths,
		Portfolio:          portfolio,
	}, nil
}

// Clone returns a deep copy so the advisor can perturb a profile via
// copy-and-modify without ever mutating the caller's instance (spec §3).
func (p *UserProfile) Clone() *UserProfile {
	clone := *p
	clone.Portfolio = p.Portfolio.Clone()
	return &clone
}

// IncomeExpenseItem is a single income or expense cash-flow stream, per
// spec §3.
type IncomeExpenseItem struct {
	ID                       string
	Name                     string
	AfterTaxAmountPerPeriod  decimal.Decimal
	TimeUnit                 TimeUnit
	Frequency                ItemFrequency
	IntervalPeriods          int
	StartAge                 int
	EndAge                   *int
	AnnualGrowthRate         float64
	IsIncome                 bool
	Category                 string
}

// NewIncomeExpenseItem validates the item invariants from spec §3 and
// assigns a UUID when id is empty.
func NewIncomeExpenseItem(id, name string, amountPerPeriod decimal.Decimal, unit TimeUnit, frequency ItemFrequency, intervalPeriods, startAge int, endAge *int, annualGrowthRate float64, isIncome bool, category string, currentAge, lifeExpectancy int) (*IncomeExpenseItem, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if intervalPeriods <= 0 {
		return nil, newValidationError("interval_periods", "must be positive, got %d", intervalPeriods)
	}
	if startAge < currentAge {
		return nil, newValidationError("start_age", "must be >= current_age(%d), got %d", currentAge, startAge)
	}
	if frequency == Recurring {
		if endAge == nil {
			return nil, newValidationError("end_age", "recurring items require an end_age")
		}
		if !(startAge <= *endAge && *endAge <= lifeExpectancy) {
			return nil, newValidationError("end_age", "must satisfy start_age(%d) <= end_age(%d) <= life_expectancy(%d)", startAge, *endAge, lifeExpectancy)
		}
	}
	return &IncomeExpenseItem{
		ID:                      id,
		Name:                    name,
		AfterTaxAmountPerPeriod: amountPerPeriod,
		TimeUnit:                unit,
		Frequency:               frequency,
		IntervalPeriods:         intervalPeriods,
		StartAge:                startAge,
		EndAge:                  endAge,
		AnnualGrowthRate:        annualGrowthRate,
		IsIncome:                isIncome,
		Category:                category,
	}, nil
}

// Clone returns a deep copy (EndAge is a pointer and is copied, not shared).
func (item *IncomeExpenseItem) Clone() *IncomeExpenseItem {
	clone := *item
	if item.EndAge != nil {
		end := *item.EndAge
		clone.EndAge = &end
	}
	return &clone
}

// annualAmount converts the per-period amount to an annualized figure
// (spec §4.1 normalizes time_unit to annual during projection).
func (item *IncomeExpenseItem) annualAmount() decimal.Decimal {
	periods := decimal.NewFromFloat(item.TimeUnit.periodsPerYear())
	return item.AfterTaxAmountPerPeriod.Mul(periods)
}

// Override pins a single (age, item) cell of the projection table to a
// user-specified value (spec §3).
type Override struct {
	Age    int
	ItemID string
	Value  decimal.Decimal
}

// SimulationSettings configures the Monte Carlo engine (spec §3).
type SimulationSettings struct {
	NumSimulations         int
	ConfidenceLevel        float64
	IncludeBlackSwanEvents bool
	IncomeBaseVolatility   float64
	IncomeMinimumFactor    float64
	ExpenseBaseVolatility  float64
	ExpenseMinimumFactor   float64
	// Seed, when non-nil, makes the engine reproducible (spec §4.5).
	Seed *uint64
}

// DefaultSimulationSettings returns the defaults used for ad hoc
// Monte Carlo probes when the caller doesn't override them.
func DefaultSimulationSettings() SimulationSettings {
	return SimulationSettings{
		NumSimulations:         1000,
		ConfidenceLevel:        0.95,
		IncludeBlackSwanEvents: true,
		IncomeBaseVolatility:   0.1,
		IncomeMinimumFactor:    0.1,
		ExpenseBaseVolatility:  0.05,
		ExpenseMinimumFactor:   0.5,
	}
}
