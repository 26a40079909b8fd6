package auth

// FailureReason explains why an authentication attempt failed.
type FailureReason string

const (
	NotFound        FailureReason = "not_found"
	BadCredential   FailureReason = "bad_credential"
	AccountLocked   FailureReason = "account_locked"
	AccountDisabled FailureReason = "account_disabled"
	ServiceError    FailureReason = "service_error"
)

// Result is the outcome of a single authentication attempt: either an
// authenticated principal or a failure reason.
type Result struct {
	principal *Principal
	reason    FailureReason
	cause     error
}

// Authenticated returns a successful result for p.
func Authenticated(p *Principal) Result {
	return Result{principal: p}
}

// Failed returns a failed result. cause is optional and only kept for
// logging; it is set for ServiceError.
func Failed(reason FailureReason, cause error) Result {
	return Result{reason: reason, cause: cause}
}

// IsAuthenticated reports whether the attempt succeeded.
func (r Result) IsAuthenticated() bool {
	return r.principal != nil
}

// Principal returns the authenticated principal, or nil on failure.
func (r Result) Principal() *Principal {
	return r.principal
}

// Reason returns the failure reason, or "" on success.
func (r Result) Reason() FailureReason {
	return r.reason
}

// Cause returns the underlying error for ServiceError failures.
func (r Result) Cause() error {
	return r.cause
}

// Outcome is a label for the attempt suitable for logs and metrics.
func (r Result) Outcome() string {
	if r.IsAuthenticated() {
		return "authenticated"
	}
	return string(r.reason)
}
