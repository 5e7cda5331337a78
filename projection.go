package fireplan

import (
	"math"

	"github.com/shopspring/decimal"
)

// ProjectionTable is the materialized wide-format projection: a row per age
// from current_age through life_expectancy, with one numeric column per
// income/expense item. Per spec Design Notes §9 ("dynamic wide-format
// tables → typed columnar store"), it is represented as a pair of aligned
// numeric matrices plus a stable item_id → row_index map, rather than a
// general-purpose dataframe keyed by string column names.
type ProjectionTable struct {
	Ages []int
	Years []int

	IncomeItems []*IncomeExpenseItem
	ExpenseItems []*IncomeExpenseItem

	// income[itemRow][ageCol] / expense[itemRow][ageCol]
	income [][]decimal.Decimal
	expense [][]decimal.Decimal

	incomeRow  map[string]int
	expenseRow map[string]int
}

// accrualAt implements the per-item accrual formula from spec §4.1.
func accrualAt(item *IncomeExpenseItem, age int, inflationRate float64) decimal.Decimal {
	switch item.Frequency {
	case OneTime:
		if age == item.StartAge {
			return item.annualAmount()
		}
		return decimal.Zero
	default: // Recurring
		if item.EndAge == nil || age < item.StartAge || age > *item.EndAge {
			return decimal.Zero
		}
		k := age - item.StartAge
		growthFactor := math.Pow(1+item.AnnualGrowthRate/100.0, float64(k))
		amount := item.annualAmount()
		if item.IsIncome {
			return amount.Mul(decimal.NewFromFloat(growthFactor))
		}
		inflationFactor := math.Pow(1+inflationRate/100.0, float64(k))
		return amount.Mul(decimal.NewFromFloat(inflationFactor)).Mul(decimal.NewFromFloat(growthFactor))
	}
}

// BuildProjectionTable materializes the wide-format table for
// current_age..life_expectancy inclusive, with year[i] = current_year +
// (age[i] - current_age), per spec §4.1.
func BuildProjectionTable(profile *UserProfile, incomeItems, expenseItems []*IncomeExpenseItem) (*ProjectionTable, error) {
	if profile == nil {
		return nil, newPreconditionError("BuildProjectionTable", "profile is required")
	}
	currentAge := profile.CurrentAge()
	numAges := profile.LifeExpectancy - currentAge + 1
	if numAges <= 0 {
		return nil, newPreconditionError("BuildProjectionTable", "life_expectancy must be >= current_age")
	}

	t := &ProjectionTable{
		Ages:         make([]int, numAges),
		Years:        make([]int, numAges),
		IncomeItems:  incomeItems,
		ExpenseItems: expenseItems,
		income:       make([][]decimal.Decimal, len(incomeItems)),
		expense:      make([][]decimal.Decimal, len(expenseItems)),
		incomeRow:    make(map[string]int, len(incomeItems)),
		expenseRow:   make(map[string]int, len(expenseItems)),
	}
	for i := 0; i < numAges; i++ {
		t.Ages[i] = currentAge + i
		t.Years[i] = profile.CurrentYear + i
	}
	for row, item := range incomeItems {
		t.incomeRow[item.ID] = row
		values := make([]decimal.Decimal, numAges)
		for col, age := range t.Ages {
			values[col] = accrualAt(item, age, profile.InflationRate)
		}
		t.income[row] = values
	}
	for row, item := range expenseItems {
		t.expenseRow[item.ID] = row
		values := make([]decimal.Decimal, numAges)
		for col, age := range t.Ages {
			values[col] = accrualAt(item, age, profile.InflationRate)
		}
		t.expense[row] = values
	}
	return t, nil
}

// Clone returns a deep copy of the table so overrides and advisor/Monte
// Carlo perturbations never mutate a shared base table.
func (t *ProjectionTable) Clone() *ProjectionTable {
	clone := &ProjectionTable{
		Ages:         append([]int(nil), t.Ages...),
		Years:        append([]int(nil), t.Years...),
		IncomeItems:  t.IncomeItems,
		ExpenseItems: t.ExpenseItems,
		income:       make([][]decimal.Decimal, len(t.income)),
		expense:      make([][]decimal.Decimal, len(t.expense)),
		incomeRow:    t.incomeRow,
		expenseRow:   t.expenseRow,
	}
	for i, row := range t.income {
		clone.income[i] = append([]decimal.Decimal(nil), row...)
	}
	for i, row := range t.expense {
		clone.expense[i] = append([]decimal.Decimal(nil), row...)
	}
	return clone
}

func (t *ProjectionTable) ageIndex(age int) (int, bool) {
	if len(t.Ages) == 0 {
		return 0, false
	}
	idx := age - t.Ages[0]
	if idx < 0 || idx >= len(t.Ages) {
		return 0, false
	}
	return idx, true
}

// ApplyOverrides returns a new table with each override's (age, item_id)
// cell replaced by its pinned value, located via the item_id → row_index
// map. Overrides referencing unknown items or out-of-range ages are
// silently dropped, per spec §4.1.
func (t *ProjectionTable) ApplyOverrides(overrides []Override) *ProjectionTable {
	out := t.Clone()
	for _, ov := range overrides {
		ageCol, ok := out.ageIndex(ov.Age)
		if !ok {
			continue
		}
		if row, ok := out.incomeRow[ov.ItemID]; ok {
			out.income[row][ageCol] = ov.Value
			continue
		}
		if row, ok := out.expenseRow[ov.ItemID]; ok {
			out.expense[row][ageCol] = ov.Value
		}
	}
	return out
}

// AnnualSummary is the narrow-format view the engine consumes: row-sums of
// the wide table per spec §4.1.
type AnnualSummary struct {
	Ages         []int
	Years        []int
	TotalIncome  []decimal.Decimal
	TotalExpense []decimal.Decimal
	NetCashFlow  []decimal.Decimal
}

// Summarize derives total_income/total_expense/net_cash_flow per age as
// row-sums over the wide table's item columns.
func (t *ProjectionTable) Summarize() AnnualSummary {
	n := len(t.Ages)
	s := AnnualSummary{
		Ages:         append([]int(nil), t.Ages...),
		Years:        append([]int(nil), t.Years...),
		TotalIncome:  make([]decimal.Decimal, n),
		TotalExpense: make([]decimal.Decimal, n),
		NetCashFlow:  make([]decimal.Decimal, n),
	}
	for col := 0; col < n; col++ {
		income := decimal.Zero
		for row := range t.income {
			income = income.Add(t.income[row][col])
		}
		expense := decimal.Zero
		for row := range t.expense {
			expense = expense.Add(t.expense[row][col])
		}
		s.TotalIncome[col] = income
		s.TotalExpense[col] = expense
		s.NetCashFlow[col] = income.Sub(expense)
	}
	return s
}

// ColumnValue returns the value of one item at one age, and false when the
// item is unknown or the age lies outside the table.
func (t *ProjectionTable) ColumnValue(itemID string, age int) (decimal.Decimal, bool) {
	ageCol, ok := t.ageIndex(age)
	if !ok {
		return decimal.Zero, false
	}
	if row, ok := t.incomeRow[itemID]; ok {
		return t.income[row][ageCol], true
	}
	if row, ok := t.expenseRow[itemID]; ok {
		return t.expense[row][ageCol], true
	}
	return decimal.Zero, false
}
