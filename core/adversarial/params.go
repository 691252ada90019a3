package adversarial

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ExitScamParams parametrizes ADV-01.
type ExitScamParams struct {
	Seed             int64   `yaml:"seed"`
	N                int     `yaml:"n"`
	AttackerFraction float64 `yaml:"attacker_fraction"`
	DefectionTick    int     `yaml:"defection_tick"`
	DefaultLimit     int64   `yaml:"default_limit"`
}

// DefaultExitScamParams returns spec.md section 4.7's canonical ADV-01
// setup: N=80, attacker fraction 0.2, defection tick 50.
func DefaultExitScamParams() ExitScamParams {
	return ExitScamParams{Seed: 1, N: 80, AttackerFraction: 0.2, DefectionTick: 50, DefaultLimit: 100}
}

// SybilParams parametrizes ADV-02.
type SybilParams struct {
	Seed            int64   `yaml:"seed"`
	AttemptedSybils int     `yaml:"attempted_sybils"`
	AdmissionCap    int     `yaml:"admission_cap"` // the friction policy's token bucket burst
	AdmissionRate   float64 `yaml:"admission_rate"`
	DefaultLimit    int64   `yaml:"default_limit"`
}

// DefaultSybilParams returns a canonical ADV-02 setup: an attacker attempts
// far more admissions than the friction policy's burst allows.
func DefaultSybilParams() SybilParams {
	return SybilParams{Seed: 2, AttemptedSybils: 30, AdmissionCap: 5, AdmissionRate: 1, DefaultLimit: 100}
}

// CollusiveLimitPumpParams parametrizes ADV-03.
type CollusiveLimitPumpParams struct {
	Seed          int64 `yaml:"seed"`
	RingSize      int   `yaml:"ring_size"`
	Periods       int   `yaml:"periods"`
	Eta           int64 `yaml:"eta"`
	AttemptedStep int64 `yaml:"attempted_step"` // per-period limit increase the ring attempts, may exceed Eta
	DefaultLimit  int64 `yaml:"default_limit"`
}

// DefaultCollusiveLimitPumpParams returns a canonical ADV-03 setup: a ring
// of 5 colluders attempting to inflate limits by far more than eta per
// period, over 10 periods.
func DefaultCollusiveLimitPumpParams() CollusiveLimitPumpParams {
	return CollusiveLimitPumpParams{Seed: 3, RingSize: 5, Periods: 10, Eta: 20, AttemptedStep: 100, DefaultLimit: 100}
}

// ResourceShockParams parametrizes ADV-04.
type ResourceShockParams struct {
	Seed             int64   `yaml:"seed"`
	N                int     `yaml:"n"`
	DefaultLimit     int64   `yaml:"default_limit"`
	ShockTick        int     `yaml:"shock_tick"`
	ShockFactor      float64 `yaml:"shock_factor"` // limits multiplied by this at the shock tick
	PanicThreshold   float64 `yaml:"panic_threshold"`
	RecoveryWindow   int     `yaml:"recovery_window"`
	RecoveryTarget   float64 `yaml:"recovery_target"`
}

// DefaultResourceShockParams returns a canonical ADV-04 setup: limits are
// cut to a fifth of their value at tick 20 (tripping panic mode, since that
// falls below the 30% panic threshold), and the harness checks whether
// average available capacity recovers to 80% of its pre-shock level within
// 30 ticks.
func DefaultResourceShockParams() ResourceShockParams {
	return ResourceShockParams{
		Seed: 4, N: 20, DefaultLimit: 100, ShockTick: 20, ShockFactor: 0.2,
		PanicThreshold: 0.3, RecoveryWindow: 30, RecoveryTarget: 0.8,
	}
}

// FederationSeveranceParams parametrizes ADV-05.
type FederationSeveranceParams struct {
	Seed         int64   `yaml:"seed"`
	N            int     `yaml:"n"`
	DefaultLimit int64   `yaml:"default_limit"`
	Lambda       int64   `yaml:"lambda"` // external position exposed via the federation member
	Beta         float64 `yaml:"beta"`   // tolerated loss fraction of lambda
}

// DefaultFederationSeveranceParams returns a canonical ADV-05 setup.
func DefaultFederationSeveranceParams() FederationSeveranceParams {
	return FederationSeveranceParams{Seed: 5, N: 10, DefaultLimit: 100, Lambda: 200, Beta: 0.1}
}

// ConnectivityParams parametrizes ADV-06.
type ConnectivityParams struct {
	Seed          int64 `yaml:"seed"`
	N             int   `yaml:"n"`
	DefaultLimit  int64 `yaml:"default_limit"`
	OperationSeed int64 `yaml:"operation_seed"`
	OperationCount int  `yaml:"operation_count"`
}

// DefaultConnectivityParams returns a canonical ADV-06 setup.
func DefaultConnectivityParams() ConnectivityParams {
	return ConnectivityParams{Seed: 6, N: 10, DefaultLimit: 100, OperationSeed: 99, OperationCount: 60}
}

// GovernanceCaptureParams parametrizes ADV-07.
type GovernanceCaptureParams struct {
	Seed         int64 `yaml:"seed"`
	N            int   `yaml:"n"`
	DefaultLimit int64 `yaml:"default_limit"`
	AbuseRounds  int   `yaml:"abuse_rounds"`
}

// DefaultGovernanceCaptureParams returns a canonical ADV-07 setup.
func DefaultGovernanceCaptureParams() GovernanceCaptureParams {
	return GovernanceCaptureParams{Seed: 7, N: 6, DefaultLimit: 100, AbuseRounds: 20}
}

// LoadParams decodes a YAML fixture into dst, mirroring how the teacher's
// tests/config loads YAML-described test topologies. dst must be a pointer
// to one of the Params structs above.
func LoadParams(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, dst)
}
