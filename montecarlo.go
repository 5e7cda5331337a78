package fireplan

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"math"
	mathrand "math/rand"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ProgressFunc is invoked during Run at roughly 1% granularity (spec §5/§6).
// Returning true requests cancellation; Run then returns partial
// aggregates over whatever scenarios had completed.
type ProgressFunc func(current, total int) (stop bool)

// PercentileStats summarizes a distribution of scenario outcomes, per
// spec §4.5's aggregation requirements.
type PercentileStats struct {
	Mean, Median, Std, Min, Max float64
	P5, P25, P50, P75, P95      float64
}

func computeStats(values []float64) PercentileStats {
	if len(values) == 0 {
		return PercentileStats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	variance := 0.0
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(sorted))

	percentile := func(p float64) float64 {
		if len(sorted) == 1 {
			return sorted[0]
		}
		rank := p * float64(len(sorted)-1)
		lo := int(rank)
		hi := lo + 1
		if hi >= len(sorted) {
			return sorted[lo]
		}
		frac := rank - float64(lo)
		return sorted[lo] + (sorted[hi]-sorted[lo])*frac
	}

	return PercentileStats{
		Mean:   mean,
		Median: percentile(0.5),
		Std:    math.Sqrt(variance),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P5:     percentile(0.05),
		P25:    percentile(0.25),
		P50:    percentile(0.50),
		P75:    percentile(0.75),
		P95:    percentile(0.95),
	}
}

// MonteCarloResult is the aggregate output of a Monte Carlo run, per
// spec §4.5.
type MonteCarloResult struct {
	SuccessRate                float64
	FinalNetWorth              PercentileStats
	MinimumNetWorth            PercentileStats
	ResilienceScore            float64
	RecommendedEmergencyMonths int
	RecommendedEmergencyFund   decimal.Decimal
	EventCounts                map[string]int
	TotalEventTriggers         int
	AverageEventsPerSimulation float64
	ScenariosCompleted         int
	ScenariosRequested         int
}

type scenarioOutcome struct {
	finalNetWorth   float64
	minimumNetWorth float64
	success         bool
	eventCounts     map[string]int
}

// MonteCarloEngine replays a base AnnualSummary with stochastic variation
// of income, expense, and black-swan events, per spec §4.5.
//
// The worker pool / semaphore concurrency shape follows the goroutine +
// sync.WaitGroup + buffered-channel pattern common to Monte Carlo
// retirement simulators.
type MonteCarloEngine struct {
	profile     *UserProfile
	baseSummary AnnualSummary
	settings    SimulationSettings
	strategy    CashFlowStrategy
	events      []BlackSwanEvent
	logger      *slog.Logger
	// maxWorkers bounds concurrency; 0 means Run uses
	// defaultMonteCarloWorkers.
	maxWorkers int
}

// NewMonteCarloEngine constructs a Monte Carlo engine over a base scenario.
func NewMonteCarloEngine(profile *UserProfile, base AnnualSummary, settings SimulationSettings, strategy CashFlowStrategy, logger *slog.Logger) *MonteCarloEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonteCarloEngine{
		profile:     profile,
		baseSummary: base,
		settings:    settings,
		strategy:    strategy,
		events:      StandardBlackSwanEvents(),
		logger:      logger,
	}
}

// osEntropySeed draws a 64-bit seed from OS entropy, used when the caller
// does not supply a reproducible seed (spec §4.5: "without a seed, the RNG
// is drawn from OS entropy").
func osEntropySeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand is documented to never fail on supported platforms;
		// this is an unreachable fallback, not a silently-swallowed error.
		return 0x9E3779B97F4A7C15
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// scenarioSeed derives a deterministic per-scenario sub-seed from the
// top-level seed and scenario index via a splitmix64-style mix, so that
// running scenarios in any order (sequential or parallel) produces
// identical per-scenario randomness and therefore identical aggregates,
// per spec §5.
func scenarioSeed(base uint64, index int) uint64 {
	z := base + uint64(index)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func clampedNormal(rng *mathrand.Rand, mean, volatility, minFactor float64) float64 {
	v := rng.NormFloat64()*volatility + mean
	if v < minFactor {
		return minFactor
	}
	return v
}

// generateRandomScenario produces one stochastic replay of the base
// summary: income variation (pre-FIRE years only), expense variation
// (all years), and black-swan layering, per spec §4.5.
func (mc *MonteCarloEngine) generateRandomScenario(rng *mathrand.Rand) (AnnualSummary, map[string]int) {
	n := len(mc.baseSummary.Ages)
	out := AnnualSummary{
		Ages:         append([]int(nil), mc.baseSummary.Ages...),
		Years:        append([]int(nil), mc.baseSummary.Years...),
		TotalIncome:  make([]decimal.Decimal, n),
		TotalExpense: make([]decimal.Decimal, n),
		NetCashFlow:  make([]decimal.Decimal, n),
	}

	for i, age := range out.Ages {
		incomeF, _ := mc.baseSummary.TotalIncome[i].Float64()
		expenseF, _ := mc.baseSummary.TotalExpense[i].Float64()

		if age < mc.profile.ExpectedFireAge {
			m := clampedNormal(rng, 1.0, mc.settings.IncomeBaseVolatility, mc.settings.IncomeMinimumFactor)
			incomeF *= m
		}
		em := clampedNormal(rng, 1.0, mc.settings.ExpenseBaseVolatility, mc.settings.ExpenseMinimumFactor)
		expenseF *= em

		out.TotalIncome[i] = decimal.NewFromFloat(incomeF)
		out.TotalExpense[i] = decimal.NewFromFloat(expenseF)
	}

	counts := make(map[string]int)
	if mc.settings.IncludeBlackSwanEvents {
		mc.applyBlackSwanEvents(rng, &out, counts)
	}

	for i := range out.Ages {
		out.NetCashFlow[i] = out.TotalIncome[i].Sub(out.TotalExpense[i])
	}
	return out, counts
}

type activeBlackSwan struct {
	event          BlackSwanEvent
	yearsRemaining int
}

// applyBlackSwanEvents implements the active_events scheduling algorithm
// of spec §4.5: duplicate-trigger suppression, two-pass per-year
// application (newly triggered vs. already-active with damped recovery).
func (mc *MonteCarloEngine) applyBlackSwanEvents(rng *mathrand.Rand, out *AnnualSummary, counts map[string]int) {
	active := make(map[string]activeBlackSwan)

	for i, age := range out.Ages {
		incomeF, _ := out.TotalIncome[i].Float64()
		expenseF, _ := out.TotalExpense[i].Float64()
		triggeredThisYear := make(map[string]bool)

		for _, ev := range mc.events {
			if !ev.InRange(mc.profile, age) {
				continue
			}
			if _, isActive := active[ev.ID]; isActive {
				continue
			}
			if rng.Float64() >= ev.AnnualProbability {
				continue
			}
			incomeF, expenseF = ev.Apply(incomeF, expenseF, 1.0)
			counts[ev.ID]++
			triggeredThisYear[ev.ID] = true
			if ev.DurationYears > 1 {
				active[ev.ID] = activeBlackSwan{event: ev, yearsRemaining: ev.DurationYears - 1}
			}
		}

		recovering := make([]string, 0, len(active))
		for id := range active {
			if !triggeredThisYear[id] {
				recovering = append(recovering, id)
			}
		}
		sort.Strings(recovering)

		for _, id := range recovering {
			st := active[id]
			incomeF, expenseF = st.event.Apply(incomeF, expenseF, st.event.RecoveryFactor)
			st.yearsRemaining--
			if st.yearsRemaining <= 0 {
				delete(active, id)
			} else {
				active[id] = st
			}
		}

		out.TotalIncome[i] = decimal.NewFromFloat(incomeF)
		out.TotalExpense[i] = decimal.NewFromFloat(expenseF)
	}
}

func (mc *MonteCarloEngine) runScenario(rng *mathrand.Rand) *scenarioOutcome {
	summary, counts := mc.generateRandomScenario(rng)
	engine := NewFIREEngine(mc.profile, mc.strategy, mc.logger)
	result, err := engine.Calculate(summary)
	if err != nil {
		return nil
	}
	minNetWorth := result.YearlyResults[0].NetWorth
	for _, s := range result.YearlyResults {
		if s.NetWorth.LessThan(minNetWorth) {
			minNetWorth = s.NetWorth
		}
	}
	finalF, _ := result.FinalNetWorth.Float64()
	minF, _ := minNetWorth.Float64()
	return &scenarioOutcome{
		finalNetWorth:   finalF,
		minimumNetWorth: minF,
		success:         result.IsFireAchievable,
		eventCounts:     counts,
	}
}

const defaultMonteCarloWorkers = 16

// Run executes NumSimulations scenario replays, optionally in parallel,
// and aggregates the result. Per spec §5, aggregates are identical
// regardless of execution order because each scenario's randomness is
// seeded purely from (top-level seed, scenario index).
//
// Run recovers from any panic raised while replaying scenarios and
// reports it as an *OptionalSubsystemError instead of crashing the
// process, per spec §7: Monte Carlo is an optional enrichment over the
// core fire_calculation, not a dependency of it.
func (mc *MonteCarloEngine) Run(progress ProgressFunc) (result *MonteCarloResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			mc.logger.Error("monte carlo run panicked, reporting absence", "panic", r)
			result = nil
			err = newOptionalSubsystemError("monte_carlo", r)
		}
	}()

	n := mc.settings.NumSimulations
	if n <= 0 {
		return nil, newPreconditionError("MonteCarloEngine.Run", "num_simulations must be positive")
	}

	seedBase := osEntropySeed()
	if mc.settings.Seed != nil {
		seedBase = *mc.settings.Seed
	}

	workers := mc.maxWorkers
	if workers <= 0 {
		workers = defaultMonteCarloWorkers
	}
	if workers > n {
		workers = n
	}

	outcomes := make([]*scenarioOutcome, n)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0
	cancelled := false
	step := n / 100
	if step < 1 {
		step = 1
	}

	for i := 0; i < n; i++ {
		mu.Lock()
		stop := cancelled
		mu.Unlock()
		if stop {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := mathrand.New(mathrand.NewSource(int64(scenarioSeed(seedBase, idx))))
			outcome := mc.runScenario(rng)

			mu.Lock()
			outcomes[idx] = outcome
			completed++
			shouldReport := progress != nil && (completed%step == 0 || completed == n)
			mu.Unlock()

			if shouldReport && progress(completed, n) {
				mu.Lock()
				cancelled = true
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	return mc.aggregate(outcomes, n), nil
}

func (mc *MonteCarloEngine) aggregate(outcomes []*scenarioOutcome, requested int) *MonteCarloResult {
	var finals, minimums []float64
	successCount := 0
	completed := 0
	eventCounts := make(map[string]int)
	totalTriggers := 0

	for _, o := range outcomes {
		if o == nil {
			continue
		}
		completed++
		finals = append(finals, o.finalNetWorth)
		minimums = append(minimums, o.minimumNetWorth)
		if o.success {
			successCount++
		}
		for id, c := range o.eventCounts {
			eventCounts[id] += c
			totalTriggers += c
		}
	}

	successRate := 0.0
	if completed > 0 {
		successRate = float64(successCount) / float64(completed)
	}

	finalStats := computeStats(finals)

	cv := 0.0
	if finalStats.Mean != 0 {
		cv = finalStats.Std / absFloat(finalStats.Mean)
	}
	stability := 1 - cv
	if stability < 0 {
		stability = 0
	}
	resilience := (0.7*successRate + 0.3*stability) * 100
	if resilience < 0 {
		resilience = 0
	}
	if resilience > 100 {
		resilience = 100
	}

	months := 18
	switch {
	case successRate >= 0.9:
		months = 6
	case successRate >= 0.7:
		months = 12
	}
	annualExpenses := decimal.Zero
	if len(mc.baseSummary.TotalExpense) > 0 {
		annualExpenses = mc.baseSummary.TotalExpense[0]
	}
	emergencyFund := annualExpenses.Mul(decimal.NewFromFloat(float64(months) / 12.0))

	avgEvents := 0.0
	if completed > 0 {
		avgEvents = float64(totalTriggers) / float64(completed)
	}

	return &MonteCarloResult{
		SuccessRate:                successRate,
		FinalNetWorth:              finalStats,
		MinimumNetWorth:            computeStats(minimums),
		ResilienceScore:            resilience,
		RecommendedEmergencyMonths: months,
		RecommendedEmergencyFund:   emergencyFund,
		EventCounts:                eventCounts,
		TotalEventTriggers:         totalTriggers,
		AverageEventsPerSimulation: avgEvents,
		ScenariosCompleted:         completed,
		ScenariosRequested:         requested,
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
