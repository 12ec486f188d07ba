package models

import "time"

// Resilience holds a document's named, reusable resilience policies,
// addressable from stages by name.
type Resilience struct {
	Retries         map[string]RetryPolicy          `json:"retries,omitempty"         yaml:"retries"`
	CircuitBreakers map[string]CircuitBreakerPolicy `json:"circuitBreakers,omitempty" yaml:"circuitBreakers"`
}

// RetryPolicy bounds a fixed-delay retry loop. Delay is flat between
// attempts, not exponential.
type RetryPolicy struct {
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
	DelayMs    int `json:"delayMs"    yaml:"delayMs"`
}

// Delay returns the inter-attempt delay as a duration.
func (p RetryPolicy) Delay() time.Duration {
	return time.Duration(p.DelayMs) * time.Millisecond
}

// CircuitBreakerPolicy parameterizes the Closed/Open/HalfOpen breaker.
type CircuitBreakerPolicy struct {
	FailureThreshold       int `json:"failureThreshold"       yaml:"failureThreshold"`
	BreakMs                int `json:"breakMs"                yaml:"breakMs"`
	CloseOnSuccessAttempts int `json:"closeOnSuccessAttempts" yaml:"closeOnSuccessAttempts"`
}

// Break returns the open-state cooldown as a duration.
func (p CircuitBreakerPolicy) Break() time.Duration {
	return time.Duration(p.BreakMs) * time.Millisecond
}

// ResolveRetry merges a stage's retry configuration against the document's
// named policies: the named policy (when referenced) is the base, inline
// fields override it one by one.
func (r Resilience) ResolveRetry(stageRetry *StageRetry) (RetryPolicy, error) {
	var policy RetryPolicy

	if stageRetry == nil {
		return policy, nil
	}

	if stageRetry.Ref != "" {
		named, ok := r.Retries[stageRetry.Ref]
		if !ok {
			return policy, NewConfigurationError("retry policy %q is not defined", stageRetry.Ref)
		}

		policy = named
	}

	if stageRetry.MaxRetries != nil {
		policy.MaxRetries = *stageRetry.MaxRetries
	}

	if stageRetry.DelayMs != nil {
		policy.DelayMs = *stageRetry.DelayMs
	}

	return policy, nil
}

// ResolveCircuitBreaker merges a stage's circuit-breaker configuration the
// same way ResolveRetry does for retries.
func (r Resilience) ResolveCircuitBreaker(stageCB *StageCircuitBreaker) (CircuitBreakerPolicy, error) {
	var policy CircuitBreakerPolicy

	if stageCB == nil {
		return policy, nil
	}

	if stageCB.Ref != "" {
		named, ok := r.CircuitBreakers[stageCB.Ref]
		if !ok {
			return policy, NewConfigurationError("circuit breaker policy %q is not defined", stageCB.Ref)
		}

		policy = named
	}

	if stageCB.FailureThreshold != nil {
		policy.FailureThreshold = *stageCB.FailureThreshold
	}

	if stageCB.BreakMs != nil {
		policy.BreakMs = *stageCB.BreakMs
	}

	if stageCB.CloseOnSuccessAttempts != nil {
		policy.CloseOnSuccessAttempts = *stageCB.CloseOnSuccessAttempts
	}

	return policy, nil
}
