// Package config loads cell-wide parameters from a TOML file, adapted from
// the teacher's config.Load (config/config.go): create a default file on
// first run, otherwise decode what is on disk. The Cell Protocol core reads
// no network or storage settings — only the numeric policy knobs the
// balance ledger, identity registry, and commitment engine need (spec.md
// section 4.1, 4.3; DESIGN NOTES "Open questions").
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// CellConfig bundles the cell-wide parameters a deployment supplies to the
// core. None of these are invariants the core enforces unconditionally —
// they are the caller-chosen operating point within the bounds the spec
// fixes (e.g. EnforceEscrowSafety toggles a precondition; Eta bounds a
// collaborator, not the core itself).
type CellConfig struct {
	// DefaultLimit is the credit limit newly admitted members receive
	// absent an explicit override (spec.md section 8, "L_default = 100").
	DefaultLimit int64 `toml:"DefaultLimit"`

	// EnforceEscrowSafety toggles the apply_balance_updates precondition
	// that a negative delta must not drive balance-reserve below the floor
	// (spec.md section 4.3, precondition 3).
	EnforceEscrowSafety bool `toml:"EnforceEscrowSafety"`

	// ProbationLimitFactor bounds the fraction of a member's limit a
	// PROBATION-status member may spend against while receiving but not
	// initiating outflows. Left as a numeric policy input enforced by the
	// admission collaborator, per spec.md DESIGN NOTES' open question on the
	// probation limit factor.
	ProbationLimitFactor float64 `toml:"ProbationLimitFactor"`

	// Eta is eta (η), the maximum per-interval change permitted to any
	// member's credit limit (spec.md GLOSSARY). The identity registry's
	// AdjustLimit does not enforce this itself — the spec assigns
	// enforcement to the caller — so Eta is carried here for whichever
	// governance collaborator drives adjust_limit calls.
	Eta int64 `toml:"Eta"`

	// AdmissionRatePerSecond and AdmissionBurst parameterize the
	// identity.FrictionPolicy token bucket bounding add_member throughput,
	// the Sybil-infiltration defense ADV-02 exercises.
	AdmissionRatePerSecond float64 `toml:"AdmissionRatePerSecond"`
	AdmissionBurst         int     `toml:"AdmissionBurst"`
}

// Load reads cfg from path, writing a default configuration file if none
// exists yet, mirroring the teacher's create-on-missing behavior.
func Load(path string) (*CellConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &CellConfig{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := Validate(*cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultCellConfig returns the canonical operating point used by
// spec.md's worked examples (section 8: "L_default = 100").
func DefaultCellConfig() CellConfig {
	return CellConfig{
		DefaultLimit:           100,
		EnforceEscrowSafety:    true,
		ProbationLimitFactor:   0.25,
		Eta:                    20,
		AdmissionRatePerSecond: 1,
		AdmissionBurst:         5,
	}
}

func createDefault(path string) (*CellConfig, error) {
	cfg := DefaultCellConfig()
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
