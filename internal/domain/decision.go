// internal/domain/decision.go
package domain

// Decision is the outcome of a boundary/eligibility check: either an operation
// is allowed, or it is denied with a human-readable reason.
//
// Construct decisions only through Allow and Deny.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow creates a Decision permitting the operation.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny creates a Decision refusing the operation with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Err converts a denial into a state-conflict error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return Conflictf("%s", d.Reason)
}
