package fireplan

import "log/slog"

// PlannerResult is the top-level output bundle a collaborator displays:
// the core fire_calculation plus two optional enrichments, per spec §7.
// MonteCarlo is nil and Recommendations is empty when their subsystem
// failed; FireCalculation is always present, since it is the one part of
// the calculation that is not optional.
type PlannerResult struct {
	FireCalculation *FIRECalculationResult
	MonteCarlo      *MonteCarloResult
	Recommendations []Recommendation
}

// RunPlanner builds the projection, runs the core FIRE calculation, and
// then layers Monte Carlo simulation and advisor recommendations on top.
// Per spec §7, a failure in either of the latter two subsystems
// (a recovered panic, or an ordinary returned error such as
// num_simulations <= 0) is logged and reported as absence — nil success
// rate, empty recommendation slice — rather than aborting the run: only
// a failure in building the projection or the core calculation itself is
// fatal.
func RunPlanner(plan *PlanDocument, strategy CashFlowStrategy, logger *slog.Logger, progress ProgressFunc) (*PlannerResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	table, err := BuildProjectionTable(plan.Profile, plan.IncomeItems, plan.ExpenseItems)
	if err != nil {
		return nil, err
	}
	table = table.ApplyOverrides(plan.Overrides)
	summary := table.Summarize()

	engine := NewFIREEngine(plan.Profile, strategy, logger)
	fireResult, err := engine.Calculate(summary)
	if err != nil {
		return nil, err
	}

	result := &PlannerResult{FireCalculation: fireResult}

	mc := NewMonteCarloEngine(plan.Profile, summary, plan.Settings, strategy, logger)
	mcResult, err := mc.Run(progress)
	if err != nil {
		logger.Warn("monte carlo unavailable, omitting success rate", "error", err)
	} else {
		result.MonteCarlo = mcResult
		rate := mcResult.SuccessRate
		fireResult.FireSuccessProbability = &rate
	}

	advisor := NewAdvisor(AdvisorInput{
		Profile:      plan.Profile,
		IncomeItems:  plan.IncomeItems,
		ExpenseItems: plan.ExpenseItems,
		Overrides:    plan.Overrides,
		Strategy:     strategy,
		Logger:       logger,
	})
	recommendations, err := advisor.GetAllRecommendations()
	if err != nil {
		logger.Warn("advisor unavailable, omitting recommendations", "error", err)
		result.Recommendations = []Recommendation{}
	} else {
		result.Recommendations = recommendations
	}

	return result, nil
}
