package models

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError marks a defect in the workflow document or engine
// configuration. Always fatal, surfaced before any stage runs.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// NewConfigurationError builds a ConfigurationError from a format string.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError

	return errors.As(err, &target)
}

// TemplateResolutionError marks a token that could not be resolved: unknown
// scope, absent key with no sentinel, or a malformed json(...) projection.
type TemplateResolutionError struct {
	Token  string
	Reason string
}

func (e *TemplateResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve template token {{%s}}: %s", e.Token, e.Reason)
}

// NewTemplateError builds a TemplateResolutionError for the given token.
func NewTemplateError(token, format string, args ...any) *TemplateResolutionError {
	return &TemplateResolutionError{Token: token, Reason: fmt.Sprintf(format, args...)}
}

// IsTemplateError reports whether err is or wraps a TemplateResolutionError.
func IsTemplateError(err error) bool {
	var target *TemplateResolutionError

	return errors.As(err, &target)
}

// StageFailure marks a stage whose response status did not match the
// expectation and no jump absorbed it.
type StageFailure struct {
	Stage    string
	Status   int
	Expected int
	Msg      string
}

func (e *StageFailure) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("stage %q failed: %s", e.Stage, e.Msg)
	}

	return fmt.Sprintf("stage %q failed: status %d, expected %d", e.Stage, e.Status, e.Expected)
}

// RetryExhaustedError is a StageFailure specialization: every configured
// retry attempt failed. Attempts counts retries, not the initial call.
type RetryExhaustedError struct {
	Stage    string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("stage %q failed after %d retries: %v", e.Stage, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// CircuitOpenError is a StageFailure specialization: the breaker rejected
// the call before any attempt was made.
type CircuitOpenError struct {
	Stage     string
	Remaining time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("stage %q blocked: circuit open for another %s", e.Stage, e.Remaining.Round(time.Millisecond))
}

// IsStageFailure reports whether err is any flavor of stage failure
// (plain mismatch, retry exhaustion, or circuit-open block).
func IsStageFailure(err error) bool {
	var (
		failure *StageFailure
		retry   *RetryExhaustedError
		open    *CircuitOpenError
	)

	return errors.As(err, &failure) || errors.As(err, &retry) || errors.As(err, &open)
}

// TransportError marks a network-level failure or timeout. Always
// retry-eligible, otherwise treated as a StageFailure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError

	return errors.As(err, &target)
}
