// Command cellbench drives the invariant runner and the adversarial
// scenario harness for manual exploration, the way the teacher's
// cmd/swap-audit drives a config-derived report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"cellcore/config"
	"cellcore/core/adversarial"
	"cellcore/core/genop"
	"cellcore/core/invariant"
	"cellcore/observability/logging"
)

func main() {
	mode := flag.String("mode", "invariant", "invariant | adversarial")
	configPath := flag.String("config", "./cellbench.toml", "path to cell configuration file")
	seed := flag.Int64("seed", 1, "PRNG seed (invariant mode)")
	trials := flag.Int("trials", 50, "number of independent trials (invariant mode)")
	members := flag.Int("members", 10, "initial member count (invariant mode)")
	ops := flag.Int("ops", 200, "max operations per trial (invariant mode)")
	scenario := flag.String("scenario", "all", "ADV-01 .. ADV-07 | all (adversarial mode)")
	flag.Parse()

	logging.Setup("cellbench", "dev")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	switch *mode {
	case "invariant":
		runInvariant(*cfg, *seed, *trials, *members, *ops)
	case "adversarial":
		runAdversarial(*cfg, *scenario)
	default:
		fmt.Fprintf(os.Stderr, "unknown -mode %q (want invariant or adversarial)\n", *mode)
		os.Exit(1)
	}
}

func runInvariant(cfg config.CellConfig, seed int64, trials, members, ops int) {
	report, err := invariant.Run(invariant.Config{
		Seed:                  seed,
		Trials:                trials,
		InitialMemberCount:    members,
		MaxOperationsPerTrial: ops,
		Weights:               genop.DefaultWeights(),
		DefaultLimit:          cfg.DefaultLimit,
		EnforceEscrowSafety:   cfg.EnforceEscrowSafety,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invariant run failed: %v\n", err)
		os.Exit(1)
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
	if !report.Passed() {
		os.Exit(1)
	}
}

type scenarioRunner func() (adversarial.Result, error)

func runAdversarial(cfg config.CellConfig, scenario string) {
	runners := map[string]scenarioRunner{
		"ADV-01": func() (adversarial.Result, error) { return adversarial.RunExitScamWave(adversarial.DefaultExitScamParams()) },
		"ADV-02": func() (adversarial.Result, error) { return adversarial.RunSybilInfiltration(adversarial.DefaultSybilParams()) },
		"ADV-03": func() (adversarial.Result, error) {
			return adversarial.RunCollusiveLimitPump(adversarial.DefaultCollusiveLimitPumpParams())
		},
		"ADV-04": func() (adversarial.Result, error) {
			return adversarial.RunResourceShock(adversarial.DefaultResourceShockParams())
		},
		"ADV-05": func() (adversarial.Result, error) {
			return adversarial.RunFederationSeverance(adversarial.DefaultFederationSeveranceParams())
		},
		"ADV-06": func() (adversarial.Result, error) {
			return adversarial.RunIntermittentConnectivity(adversarial.DefaultConnectivityParams())
		},
		"ADV-07": func() (adversarial.Result, error) {
			return adversarial.RunGovernanceCapture(adversarial.DefaultGovernanceCaptureParams())
		},
	}

	_ = cfg // scenarios use their own canonical parameter sets, not the deployment config

	var names []string
	if scenario == "all" {
		names = []string{"ADV-01", "ADV-02", "ADV-03", "ADV-04", "ADV-05", "ADV-06", "ADV-07"}
	} else {
		names = []string{scenario}
	}

	var results []adversarial.Result
	allPassed := true
	for _, name := range names {
		run, ok := runners[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown scenario %q\n", name)
			os.Exit(1)
		}
		result, err := run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s failed to run: %v\n", name, err)
			os.Exit(1)
		}
		results = append(results, result)
		if !result.Pass {
			allPassed = false
		}
	}

	output, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode results: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
	if !allPassed {
		os.Exit(1)
	}
}
