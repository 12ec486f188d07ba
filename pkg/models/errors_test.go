package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsConfigurationError(t *testing.T) {
	err := NewConfigurationError("bad ref %q", "x")

	assert.True(t, IsConfigurationError(err))
	assert.True(t, IsConfigurationError(fmt.Errorf("stage: %w", err)))
	assert.False(t, IsConfigurationError(errors.New("plain")))
}

func TestIsTemplateError(t *testing.T) {
	err := NewTemplateError("input.x", "not declared")

	assert.True(t, IsTemplateError(err))
	assert.Contains(t, err.Error(), "{{input.x}}")
	assert.False(t, IsTemplateError(errors.New("plain")))
}

func TestIsStageFailure_AllFlavors(t *testing.T) {
	assert.True(t, IsStageFailure(&StageFailure{Stage: "a", Status: 500, Expected: 200}))
	assert.True(t, IsStageFailure(&RetryExhaustedError{Stage: "a", Attempts: 3, Last: errors.New("boom")}))
	assert.True(t, IsStageFailure(&CircuitOpenError{Stage: "a", Remaining: time.Second}))
	assert.False(t, IsStageFailure(NewConfigurationError("nope")))
}

func TestRetryExhaustedError_Unwrap(t *testing.T) {
	cause := &TransportError{Err: errors.New("connection reset")}
	err := &RetryExhaustedError{Stage: "a", Attempts: 2, Last: cause}

	assert.True(t, IsTransportError(err))
}

func TestStageFailure_Message(t *testing.T) {
	mismatch := &StageFailure{Stage: "getUser", Status: 404, Expected: 200}
	assert.Contains(t, mismatch.Error(), "status 404, expected 200")

	withMsg := &StageFailure{Stage: "getUser", Msg: "no body"}
	assert.Contains(t, withMsg.Error(), "no body")
}
