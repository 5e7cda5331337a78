package fireplan

import (
	"log/slog"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// PortfolioState is a snapshot of asset values, keyed by normalized asset
// name, with an order slice preserved for deterministic iteration (spec
// §3).
type PortfolioState struct {
	order  []string
	values map[string]decimal.Decimal
}

// NewPortfolioState partitions netWorth across assetClasses according to
// their configured allocation percentages.
func NewPortfolioState(netWorth decimal.Decimal, assetClasses []AssetClass) PortfolioState {
	s := PortfolioState{
		order:  make([]string, len(assetClasses)),
		values: make(map[string]decimal.Decimal, len(assetClasses)),
	}
	for i, ac := range assetClasses {
		s.order[i] = ac.Name
		s.values[ac.Name] = netWorth.Mul(decimal.NewFromFloat(ac.AllocationPercentage / 100.0))
	}
	return s
}

func (s PortfolioState) clone() PortfolioState {
	out := PortfolioState{
		order:  append([]string(nil), s.order...),
		values: make(map[string]decimal.Decimal, len(s.values)),
	}
	for k, v := range s.values {
		out.values[k] = v
	}
	return out
}

// TotalValue sums every asset's value.
func (s PortfolioState) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, name := range s.order {
		total = total.Add(s.values[name])
	}
	return total
}

// Value returns the current value of one asset.
func (s PortfolioState) Value(name string) decimal.Decimal {
	return s.values[name]
}

// GetAllocation divides each asset's value by the total and renormalizes
// to sum to exactly 1.0: a proportional rescale, followed by adjusting the
// single largest-allocation asset by any residual error. Returns the
// allocation map and whether the raw (pre-rescale) sum deviated from 1.0
// by more than 1e-4 — the NumericWarning condition of spec §7, which the
// caller logs.
func (s PortfolioState) GetAllocation() (map[string]float64, bool) {
	total := s.TotalValue()
	out := make(map[string]float64, len(s.order))
	if total.IsZero() {
		for _, name := range s.order {
			out[name] = 0
		}
		return out, false
	}
	totalF, _ := total.Float64()

	raw := make(map[string]float64, len(s.order))
	sumRaw := 0.0
	for _, name := range s.order {
		v, _ := s.values[name].Float64()
		r := v / totalF
		raw[name] = r
		sumRaw += r
	}

	warn := math.Abs(sumRaw-1.0) > 1e-4

	adjustment := 1.0
	if sumRaw != 0 {
		adjustment = 1.0 / sumRaw
	}
	sumScaled := 0.0
	for _, name := range s.order {
		scaled := raw[name] * adjustment
		out[name] = scaled
		sumScaled += scaled
	}

	residual := 1.0 - sumScaled
	largest := s.order[0]
	for _, name := range s.order {
		if s.values[name].GreaterThan(s.values[largest]) {
			largest = name
		}
	}
	out[largest] += residual

	return out, warn
}

// YearlyPortfolioResult is the outcome of one simulate_year call (spec
// §4.2).
type YearlyPortfolioResult struct {
	StartingValue        decimal.Decimal
	InvestmentReturns     decimal.Decimal
	EndingPortfolioValue  decimal.Decimal
	UnfundedShortfall     decimal.Decimal
}

// CashFlowStrategy is the liquidity-aware allocator of spec §4.3.
type CashFlowStrategy struct {
	CashBufferMonths float64
}

// NewCashFlowStrategy returns the default liquidity-aware strategy with a
// 3-month cash buffer, per spec §4.3.
func NewCashFlowStrategy() CashFlowStrategy {
	return CashFlowStrategy{CashBufferMonths: 3}
}

func assetsInTier(assets []AssetClass, tier LiquidityLevel) []AssetClass {
	var out []AssetClass
	for _, a := range assets {
		if a.LiquidityLevel == tier {
			out = append(out, a)
		}
	}
	return out
}

// HandleIncome produces a per-asset deposit map per spec §4.3: first
// top up the HIGH-liquidity tier to the configured cash buffer, then
// spread the remainder across non-HIGH assets in proportion to their
// target allocation weights.
func (c CashFlowStrategy) HandleIncome(income decimal.Decimal, assets []AssetClass, current map[string]decimal.Decimal, annualExpenses decimal.Decimal) map[string]decimal.Decimal {
	deposits := make(map[string]decimal.Decimal, len(assets))
	for _, a := range assets {
		deposits[a.Name] = decimal.Zero
	}

	high := assetsInTier(assets, LiquidityHigh)
	requiredBuffer := annualExpenses.Mul(decimal.NewFromFloat(c.CashBufferMonths / 12.0))
	currentHigh := decimal.Zero
	for _, a := range high {
		currentHigh = currentHigh.Add(current[a.Name])
	}
	shortfall := requiredBuffer.Sub(currentHigh)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}
	bufferDeposit := income
	if shortfall.LessThan(income) {
		bufferDeposit = shortfall
	}
	remainder := income.Sub(bufferDeposit)
	if len(high) > 0 {
		deposits[high[0].Name] = deposits[high[0].Name].Add(bufferDeposit)
	} else {
		remainder = income
	}

	var nonHigh []AssetClass
	for _, a := range assets {
		if a.LiquidityLevel != LiquidityHigh {
			nonHigh = append(nonHigh, a)
		}
	}
	if len(nonHigh) == 0 {
		if len(high) > 0 {
			deposits[high[0].Name] = deposits[high[0].Name].Add(remainder)
		}
		return deposits
	}
	totalWeight := 0.0
	for _, a := range nonHigh {
		totalWeight += a.AllocationPercentage
	}
	if totalWeight <= 0 {
		share := remainder.Div(decimal.NewFromInt(int64(len(nonHigh))))
		for _, a := range nonHigh {
			deposits[a.Name] = deposits[a.Name].Add(share)
		}
		return deposits
	}
	for _, a := range nonHigh {
		share := remainder.Mul(decimal.NewFromFloat(a.AllocationPercentage)).Div(decimal.NewFromFloat(totalWeight))
		deposits[a.Name] = deposits[a.Name].Add(share)
	}
	return deposits
}

// HandleExpense produces a per-asset withdrawal map (negative values) per
// spec §4.3: HIGH tier first, then MEDIUM, then LOW; within a tier the
// lowest-expected-return asset is drained first. Returns any unfunded
// remainder when the whole portfolio cannot cover the expense.
func (c CashFlowStrategy) HandleExpense(expense decimal.Decimal, assets []AssetClass, current map[string]decimal.Decimal) (map[string]decimal.Decimal, decimal.Decimal) {
	withdrawals := make(map[string]decimal.Decimal, len(assets))
	remaining := make(map[string]decimal.Decimal, len(assets))
	for _, a := range assets {
		withdrawals[a.Name] = decimal.Zero
		remaining[a.Name] = current[a.Name]
	}

	need := expense
	for _, tier := range []LiquidityLevel{LiquidityHigh, LiquidityMedium, LiquidityLow} {
		tierAssets := assetsInTier(assets, tier)
		sort.SliceStable(tierAssets, func(i, j int) bool {
			return tierAssets[i].ExpectedReturn < tierAssets[j].ExpectedReturn
		})
		for _, a := range tierAssets {
			if !need.IsPositive() {
				break
			}
			avail := remaining[a.Name]
			take := need
			if avail.LessThan(need) {
				take = avail
			}
			if take.IsPositive() {
				withdrawals[a.Name] = withdrawals[a.Name].Sub(take)
				remaining[a.Name] = remaining[a.Name].Sub(take)
				need = need.Sub(take)
			}
		}
	}
	return withdrawals, need
}

// PortfolioSimulator evolves a PortfolioState year by year (spec §4.2).
type PortfolioSimulator struct {
	config   PortfolioConfiguration
	initial  decimal.Decimal
	strategy CashFlowStrategy
	state    PortfolioState
	logger   *slog.Logger
}

// NewPortfolioSimulator seeds the simulator from the profile's current net
// worth and portfolio configuration.
func NewPortfolioSimulator(profile *UserProfile, strategy CashFlowStrategy, logger *slog.Logger) *PortfolioSimulator {
	if logger == nil {
		logger = slog.Default()
	}
	sim := &PortfolioSimulator{
		config:   profile.Portfolio,
		initial:  profile.CurrentNetWorth,
		strategy: strategy,
		logger:   logger,
	}
	sim.ResetToInitial()
	return sim
}

// ResetToInitial restores the starting allocation without reallocating the
// configuration, per spec §4.2.
func (sim *PortfolioSimulator) ResetToInitial() {
	sim.state = NewPortfolioState(sim.initial, sim.config.AssetClasses)
}

// State returns the current PortfolioState snapshot.
func (sim *PortfolioSimulator) State() PortfolioState {
	return sim.state.clone()
}

func (sim *PortfolioSimulator) targetAllocation() map[string]float64 {
	out := make(map[string]float64, len(sim.config.AssetClasses))
	for _, a := range sim.config.AssetClasses {
		out[a.Name] = a.AllocationPercentage / 100.0
	}
	return out
}

// SimulateYear runs the six-step algorithm of spec §4.2.
func (sim *PortfolioSimulator) SimulateYear(age int, netCashFlow, annualExpenses decimal.Decimal) YearlyPortfolioResult {
	startingValue := sim.state.TotalValue()

	allocation, warn := sim.state.GetAllocation()
	if warn {
		sim.logger.Warn("portfolio allocation drifted beyond tolerance and was autocorrected",
			"age", age, "total_value", startingValue.String())
	}

	investmentReturn := decimal.Zero
	for _, a := range sim.config.AssetClasses {
		frac := allocation[a.Name]
		investmentReturn = investmentReturn.Add(
			startingValue.Mul(decimal.NewFromFloat(frac * a.ExpectedReturn / 100.0)))
	}
	for _, a := range sim.config.AssetClasses {
		frac := allocation[a.Name]
		delta := investmentReturn.Mul(decimal.NewFromFloat(frac))
		sim.state.values[a.Name] = sim.state.values[a.Name].Add(delta)
	}

	unfunded := decimal.Zero
	switch {
	case netCashFlow.IsPositive():
		deposits := sim.strategy.HandleIncome(netCashFlow, sim.config.AssetClasses, sim.state.values, annualExpenses)
		for name, d := range deposits {
			sim.state.values[name] = sim.state.values[name].Add(d)
		}
	case netCashFlow.IsNegative():
		withdrawals, u := sim.strategy.HandleExpense(netCashFlow.Neg(), sim.config.AssetClasses, sim.state.values)
		for name, w := range withdrawals {
			sim.state.values[name] = sim.state.values[name].Add(w)
		}
		unfunded = u
	}

	for name, v := range sim.state.values {
		if v.IsNegative() {
			sim.state.values[name] = decimal.Zero
		}
	}

	if sim.config.EnableRebalancing {
		sim.maybeRebalance()
	}

	return YearlyPortfolioResult{
		StartingValue:        startingValue,
		InvestmentReturns:    investmentReturn,
		EndingPortfolioValue: sim.state.TotalValue(),
		UnfundedShortfall:    unfunded,
	}
}

const rebalanceThreshold = 0.05

// maybeRebalance moves every asset to total_value × target_allocation when
// any asset's actual allocation has drifted from target by more than 5
// percentage points, per spec §4.2. Rebalancing has no cost.
func (sim *PortfolioSimulator) maybeRebalance() {
	total := sim.state.TotalValue()
	if total.IsZero() {
		return
	}
	allocation, _ := sim.state.GetAllocation()
	target := sim.targetAllocation()

	drifted := false
	for name, actual := range allocation {
		if math.Abs(actual-target[name]) > rebalanceThreshold {
			drifted = true
			break
		}
	}
	if !drifted {
		return
	}
	for _, a := range sim.config.AssetClasses {
		sim.state.values[a.Name] = total.Mul(decimal.NewFromFloat(target[a.Name]))
	}
}
