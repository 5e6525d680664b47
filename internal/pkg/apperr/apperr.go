package apperr

import "fmt"

// ValidationError reports a rejected admin input (bad margin override,
// invalid bracket step size, disabled provider, ...). It is always surfaced
// synchronously to the caller, never silently adjusted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown provider, package, destination or an
// empty result set where one was required.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Ref)
}

// ProviderError reports a non-transient upstream failure (4xx, auth) that
// aborted a provider sync. It carries the provider slug and the upstream
// status code so the admin layer can display both.
type ProviderError struct {
	Slug string
	Code int
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s failed (upstream %d): %v", e.Slug, e.Code, e.Err)
	}
	return fmt.Sprintf("provider %s failed (upstream %d)", e.Slug, e.Code)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ServiceUnavailableError reports that no provider qualifies for failover.
type ServiceUnavailableError struct {
	Reason string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("service unavailable: %s", e.Reason)
}

// ConflictError reports a rejected concurrent run of a single-flight
// operation (comparison run, bracket generation for one currency).
type ConflictError struct {
	Op string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is already running", e.Op)
}
