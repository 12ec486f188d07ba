package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutionContext(t *testing.T) {
	execCtx := NewExecutionContext("orders", map[string]string{"id": "1"})

	assert.Regexp(t, `^exec-[0-9a-f]{8}$`, execCtx.ID)
	assert.Equal(t, "orders", execCtx.WorkflowID)
	assert.Equal(t, "1", execCtx.Inputs["id"])
	assert.Zero(t, execCtx.Depth)
	assert.NotNil(t, execCtx.Globals)
	assert.NotNil(t, execCtx.Context)
}

func TestChild_FreshStateInheritedMode(t *testing.T) {
	parent := NewExecutionContext("parent", nil)
	parent.Environment = "staging"
	parent.Mocked = true
	parent.Env["TOKEN"] = "abc"
	parent.Context["orderId"] = "ord-1"
	parent.Globals["key"] = "v"

	child := parent.Child("child", map[string]string{"userId": "42"})

	assert.Equal(t, "staging", child.Environment)
	assert.True(t, child.Mocked)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, "42", child.Inputs["userId"])
	assert.Equal(t, "abc", child.Env["TOKEN"])

	// Parent's mutable state never leaks into the child.
	assert.Empty(t, child.Context)
	assert.Empty(t, child.Globals)
	assert.NotEqual(t, parent.ID, child.ID)

	// The child's env is a copy, not an alias.
	child.Env["TOKEN"] = "other"
	assert.Equal(t, "abc", parent.Env["TOKEN"])
}

func TestStageOutput(t *testing.T) {
	execCtx := NewExecutionContext("wf", nil)
	execCtx.SetStageOutput("create", map[string]string{"id": "u-1"})

	value, err := execCtx.StageOutput("create", "id")
	require.NoError(t, err)
	assert.Equal(t, "u-1", value)

	_, err = execCtx.StageOutput("create", "missing")
	assert.Error(t, err)

	_, err = execCtx.StageOutput("never", "id")
	assert.Error(t, err)
}

func TestIndent(t *testing.T) {
	execCtx := NewExecutionContext("wf", nil)
	assert.Empty(t, execCtx.Indent())

	child := execCtx.Child("sub", nil)
	assert.Equal(t, "  ", child.Indent())
}
