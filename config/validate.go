package config

import "fmt"

// Validate checks that a loaded CellConfig's numeric knobs are within the
// bounds the core's components assume: positive limits and rates, a
// fractional probation factor.
func Validate(c CellConfig) error {
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("config: default_limit must be positive")
	}
	if c.ProbationLimitFactor < 0 || c.ProbationLimitFactor > 1 {
		return fmt.Errorf("config: probation_limit_factor must be in [0, 1]")
	}
	if c.Eta < 0 {
		return fmt.Errorf("config: eta must be non-negative")
	}
	if c.AdmissionRatePerSecond <= 0 {
		return fmt.Errorf("config: admission_rate_per_second must be positive")
	}
	if c.AdmissionBurst <= 0 {
		return fmt.Errorf("config: admission_burst must be positive")
	}
	return nil
}
