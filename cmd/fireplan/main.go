// Command fireplan runs a FIRE projection, engine calculation, optional
// Monte Carlo simulation, and advisor pass over a JSON config document.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"fireplan"
	"fireplan/internal/secureio"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] [config.json]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var (
		quickMC    = flag.Bool("quick-mc", false, "cap num_simulations at 200 for a fast run")
		outputPath = flag.String("o", "", "write the result JSON to this path instead of stdout")
		decryptKey = flag.String("decrypt-with", "", "age identity (AGE-SECRET-KEY-1...) used to decrypt an encrypted config")
		encryptTo  = flag.String("encrypt-to", "", "age recipient (age1...); when set, write an encrypted copy of the loaded config instead of running a calculation")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var err error
	if *encryptTo != "" {
		err = exportEncrypted(flag.Args(), *decryptKey, *encryptTo, *outputPath)
	} else {
		err = run(flag.Args(), *quickMC, *outputPath, *decryptKey, logger)
	}
	if err != nil {
		logger.Error("fireplan failed", "error", err)
		os.Exit(1)
	}
}

// exportEncrypted loads a plan (optionally decrypting it first, so an
// encrypted config can be re-keyed to a different recipient) and writes
// it back out as an ASCII-armored age payload addressed to recipient,
// the export counterpart of --decrypt-with.
func exportEncrypted(args []string, decryptKey, recipientKey, outputPath string) error {
	plan, err := loadPlan(args, decryptKey)
	if err != nil {
		return err
	}

	encoded, err := fireplan.EncodeConfig(plan)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	recipient, err := secureio.ParseRecipient(recipientKey)
	if err != nil {
		return fmt.Errorf("parse encryption recipient: %w", err)
	}

	var buf bytes.Buffer
	if err := secureio.Encrypt(&buf, encoded, recipient); err != nil {
		return fmt.Errorf("encrypt config: %w", err)
	}

	if outputPath == "" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0o644)
}

func loadPlan(args []string, decryptKey string) (*fireplan.PlanDocument, error) {
	if len(args) == 0 {
		return fireplan.LoadDefaultConfig()
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if decryptKey != "" {
		identity, err := secureio.ParseIdentity(decryptKey)
		if err != nil {
			return nil, fmt.Errorf("parse decryption identity: %w", err)
		}
		data, err = secureio.Decrypt(bytes.NewReader(data), identity)
		if err != nil {
			return nil, fmt.Errorf("decrypt config: %w", err)
		}
	}

	return fireplan.DecodeConfig(data)
}

func run(args []string, quickMC bool, outputPath, decryptKey string, logger *slog.Logger) error {
	plan, err := loadPlan(args, decryptKey)
	if err != nil {
		return err
	}

	if quickMC && plan.Settings.NumSimulations > 200 {
		plan.Settings.NumSimulations = 200
	}

	strategy := fireplan.NewCashFlowStrategy()

	result, err := fireplan.RunPlanner(plan, strategy, logger, progressLogger(logger))
	if err != nil {
		return fmt.Errorf("run planner: %w", err)
	}

	output := struct {
		Fire            *fireplan.FIRECalculationResult `json:"fire_calculation"`
		MonteCarlo      *fireplan.MonteCarloResult       `json:"monte_carlo"`
		Recommendations []fireplan.Recommendation        `json:"recommendations"`
	}{
		Fire:            result.FireCalculation,
		MonteCarlo:      result.MonteCarlo,
		Recommendations: result.Recommendations,
	}

	encoded, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(encoded))
		return nil
	}
	return os.WriteFile(outputPath, encoded, 0o644)
}

func progressLogger(logger *slog.Logger) fireplan.ProgressFunc {
	return func(current, total int) bool {
		logger.Debug("monte carlo progress", "completed", current, "total", total)
		return false
	}
}
