package identity

import "errors"

// Sentinel errors for the identity registry, one per spec.md section 7
// "Identity" kind, in the teacher's style of a flat var block of wrapped
// stdlib errors (core/errors, native/lending config errors).
var (
	ErrIdentityExists            = errors.New("identity: member or public key already registered")
	ErrIdentityNotFound          = errors.New("identity: member not found")
	ErrInvalidPublicKey          = errors.New("identity: malformed public key")
	ErrStatusTransitionForbidden = errors.New("identity: status transition forbidden")
	ErrCannotRemoveNonzero       = errors.New("identity: member has nonzero balance or reserve")
	ErrLimitAdjustUnsafe         = errors.New("identity: limit adjustment would breach floor")

	// ErrAdmissionDenied is returned when the injected AdmissionPolicy
	// rejects an add_member request. It is not part of the closed error
	// kind enum in spec.md section 7 (the admission policy is an external
	// collaborator, spec.md section 6), so callers that need the policy's
	// reason should use errors.As on *AdmissionDeniedError.
	ErrAdmissionDenied = errors.New("identity: admission denied")
)

// AdmissionDeniedError carries the admission policy's reason alongside
// ErrAdmissionDenied.
type AdmissionDeniedError struct {
	Reason string
}

func (e *AdmissionDeniedError) Error() string {
	if e.Reason == "" {
		return ErrAdmissionDenied.Error()
	}
	return ErrAdmissionDenied.Error() + ": " + e.Reason
}

func (e *AdmissionDeniedError) Unwrap() error { return ErrAdmissionDenied }
