// Package types holds the closed enumerations shared across the ledger,
// identity registry, and commitment engine: member status, commitment type
// and state, and journal reasons.
package types

// Status is a member's position in the identity lattice (spec.md 4.1).
type Status uint8

const (
	StatusPending Status = iota
	StatusProbation
	StatusActive
	StatusFrozen
	StatusExcluded
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusProbation:
		return "PROBATION"
	case StatusActive:
		return "ACTIVE"
	case StatusFrozen:
		return "FROZEN"
	case StatusExcluded:
		return "EXCLUDED"
	default:
		return "UNKNOWN"
	}
}

// CanInitiateOutflow reports whether a member in this status may be the
// negative-delta side of a spot transaction or create an escrowed
// commitment. Only ACTIVE members may initiate.
func (s Status) CanInitiateOutflow() bool {
	return s == StatusActive
}

// CanReceive reports whether a member in this status may be the
// positive-delta side of a spot transaction.
func (s Status) CanReceive() bool {
	return s == StatusActive || s == StatusProbation || s == StatusFrozen
}

// transitions enumerates the permitted status lattice edges, keyed by
// (from, to). Anything absent is STATUS_TRANSITION_FORBIDDEN.
var transitions = map[[2]Status]bool{
	{StatusPending, StatusProbation}: true, // admit
	{StatusPending, StatusExcluded}:  true, // reject
	{StatusProbation, StatusActive}:  true, // complete
	{StatusProbation, StatusExcluded}: true, // reject
	{StatusActive, StatusFrozen}:      true, // freeze
	{StatusFrozen, StatusActive}:      true, // unfreeze
	{StatusActive, StatusExcluded}:    true, // exclude
	{StatusFrozen, StatusExcluded}:    true, // exclude
}

// CanTransitionTo reports whether moving from s to next is a legal edge in
// the status lattice defined by spec.md section 4.1.
func (s Status) CanTransitionTo(next Status) bool {
	return transitions[[2]Status{s, next}]
}
