package fireplan

// ageRangeKind classifies which phase of life a black-swan event can
// strike in, before personalization to a specific profile (spec §4.5).
type ageRangeKind int

const (
	ageRangeCareer ageRangeKind = iota
	ageRangeWorking
	ageRangeRetirement
	ageRangeWorkingAndRetired
	ageRangeAllAdult
	ageRangeInheritanceSpecial
)

// impactKind is the tagged-variant dispatch for event impact application,
// per spec Design Notes §9 ("black-swan class hierarchy → tagged variant
// with match").
type impactKind int

const (
	impactIncomeOnly impactKind = iota
	impactExpenseOnly
	impactMixed
	impactFlooredIncome
	impactAdditiveInheritance
)

// BlackSwanEvent is a single parameterized shock, per spec §4.5's event
// table. event_id identifiers are stable and untranslated, per spec §6's
// i18n note.
type BlackSwanEvent struct {
	ID                string
	AnnualProbability float64
	DurationYears     int
	RecoveryFactor    float64
	AgeRange          ageRangeKind
	Impact            impactKind
	IncomeMultiplier  float64
	ExpenseMultiplier float64
	Floor             float64
}

// StandardBlackSwanEvents returns the canonical 15-event library, per
// spec §4.5.
func StandardBlackSwanEvents() []BlackSwanEvent {
	return []BlackSwanEvent{
		{ID: "financial_crisis", AnnualProbability: 0.016, DurationYears: 2, RecoveryFactor: 0.8, AgeRange: ageRangeWorkingAndRetired, Impact: impactIncomeOnly, IncomeMultiplier: 0.60},
		{ID: "economic_recession", AnnualProbability: 0.030, DurationYears: 1, RecoveryFactor: 0.9, AgeRange: ageRangeWorkingAndRetired, Impact: impactIncomeOnly, IncomeMultiplier: 0.75},
		{ID: "market_crash", AnnualProbability: 0.020, DurationYears: 1, RecoveryFactor: 0.9, AgeRange: ageRangeWorkingAndRetired, Impact: impactIncomeOnly, IncomeMultiplier: 0.70},
		{ID: "hyperinflation", AnnualProbability: 0.010, DurationYears: 3, RecoveryFactor: 0.7, AgeRange: ageRangeWorkingAndRetired, Impact: impactMixed, IncomeMultiplier: 0.70, ExpenseMultiplier: 1.30},
		{ID: "unemployment", AnnualProbability: 0.006, DurationYears: 2, RecoveryFactor: 0.4, AgeRange: ageRangeCareer, Impact: impactFlooredIncome, IncomeMultiplier: 0.0, Floor: 0.10},
		{ID: "industry_collapse", AnnualProbability: 0.002, DurationYears: 3, RecoveryFactor: 0.6, AgeRange: ageRangeWorking, Impact: impactFlooredIncome, IncomeMultiplier: 0.30, Floor: 0.10},
		{ID: "unexpected_promotion", AnnualProbability: 0.004, DurationYears: 5, RecoveryFactor: 1.0, AgeRange: ageRangeCareer, Impact: impactIncomeOnly, IncomeMultiplier: 1.30},
		{ID: "major_illness", AnnualProbability: 0.004, DurationYears: 2, RecoveryFactor: 0.9, AgeRange: ageRangeWorkingAndRetired, Impact: impactExpenseOnly, ExpenseMultiplier: 2.50},
		{ID: "long_term_care", AnnualProbability: 0.001, DurationYears: 10, RecoveryFactor: 0.5, AgeRange: ageRangeRetirement, Impact: impactExpenseOnly, ExpenseMultiplier: 2.20},
		{ID: "regional_conflict", AnnualProbability: 0.006, DurationYears: 2, RecoveryFactor: 0.9, AgeRange: ageRangeAllAdult, Impact: impactMixed, IncomeMultiplier: 0.80, ExpenseMultiplier: 1.10},
		{ID: "global_war", AnnualProbability: 0.0016, DurationYears: 4, RecoveryFactor: 0.7, AgeRange: ageRangeAllAdult, Impact: impactMixed, IncomeMultiplier: 0.40, ExpenseMultiplier: 1.40},
		{ID: "economic_sanctions", AnnualProbability: 0.004, DurationYears: 3, RecoveryFactor: 0.8, AgeRange: ageRangeWorkingAndRetired, Impact: impactIncomeOnly, IncomeMultiplier: 0.70},
		{ID: "energy_crisis", AnnualProbability: 0.008, DurationYears: 2, RecoveryFactor: 0.85, AgeRange: ageRangeAllAdult, Impact: impactMixed, IncomeMultiplier: 0.75, ExpenseMultiplier: 1.25},
		{ID: "inheritance", AnnualProbability: 0.0016, DurationYears: 1, RecoveryFactor: 1.0, AgeRange: ageRangeInheritanceSpecial, Impact: impactAdditiveInheritance},
		{ID: "investment_windfall", AnnualProbability: 0.0002, DurationYears: 1, RecoveryFactor: 1.0, AgeRange: ageRangeWorking, Impact: impactIncomeOnly, IncomeMultiplier: 4.00},
	}
}

// InRange personalizes the event's age window to profile, per spec §4.5's
// personalization rules.
func (e BlackSwanEvent) InRange(profile *UserProfile, age int) bool {
	currentAge := profile.CurrentAge()
	switch e.AgeRange {
	case ageRangeCareer:
		return age >= currentAge && age <= profile.ExpectedFireAge
	case ageRangeWorking:
		lo := max(22, currentAge)
		hi := min(profile.ExpectedFireAge, profile.LegalRetirementAge)
		return age >= lo && age <= hi
	case ageRangeRetirement:
		return age >= profile.LegalRetirementAge && age <= profile.LifeExpectancy
	case ageRangeWorkingAndRetired:
		lo := max(22, currentAge)
		hi := min(profile.ExpectedFireAge, profile.LegalRetirementAge)
		if age >= lo && age <= hi {
			return true
		}
		return age >= profile.LegalRetirementAge && age <= profile.LifeExpectancy
	case ageRangeAllAdult:
		lo := max(18, currentAge)
		return age >= lo && age <= profile.LifeExpectancy
	case ageRangeInheritanceSpecial:
		hi := min(70, profile.LifeExpectancy)
		return age >= 30 && age <= hi
	default:
		return false
	}
}

// scaledMultiplier applies the recovery-multiplier-on-delta convention of
// spec §4.5: "recovery-year multipliers scale the delta from 1.0."
func scaledMultiplier(base, recoveryMultiplier float64) float64 {
	return 1 + (base-1)*recoveryMultiplier
}

// Apply mutates income/expense totals for one row according to the
// event's impact kind, per spec §4.5.
func (e BlackSwanEvent) Apply(income, expense float64, recoveryMultiplier float64) (newIncome, newExpense float64) {
	newIncome, newExpense = income, expense
	switch e.Impact {
	case impactIncomeOnly:
		newIncome = income * scaledMultiplier(e.IncomeMultiplier, recoveryMultiplier)
	case impactExpenseOnly:
		newExpense = expense * scaledMultiplier(e.ExpenseMultiplier, recoveryMultiplier)
	case impactMixed:
		newIncome = income * scaledMultiplier(e.IncomeMultiplier, recoveryMultiplier)
		newExpense = expense * scaledMultiplier(e.ExpenseMultiplier, recoveryMultiplier)
	case impactFlooredIncome:
		m := scaledMultiplier(e.IncomeMultiplier, recoveryMultiplier)
		if m < e.Floor {
			m = e.Floor
		}
		newIncome = income * m
	case impactAdditiveInheritance:
		newIncome = income + 2*income*recoveryMultiplier
	}
	return
}
