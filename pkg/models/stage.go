package models

import "strings"

// Built-in stage kinds. Kinds are matched case-insensitively; the registry
// stores them in canonical (lower-case) form.
const (
	StageKindEndpoint = "endpoint"
	StageKindWorkflow = "workflow"
)

// JumpToEnd is the jumpOnStatus target that terminates the stage loop and
// proceeds directly to the end stage.
const JumpToEnd = "end"

// Stage is one unit of work in a workflow: an HTTP call (endpoint kind) or a
// nested workflow invocation (workflow kind). Kind-specific fields are only
// meaningful for their kind; the stage handler's Validate enforces that.
type Stage struct {
	Name  string `json:"name"            yaml:"name"  validate:"required"`
	Kind  string `json:"kind"            yaml:"kind"  validate:"required"`
	RunIf string `json:"runIf,omitempty" yaml:"runIf"`

	// Endpoint kind.
	APIRef         string               `json:"apiRef,omitempty"         yaml:"apiRef"`
	Endpoint       string               `json:"endpoint,omitempty"       yaml:"endpoint"`
	HTTPVerb       string               `json:"httpVerb,omitempty"       yaml:"httpVerb"`
	ExpectedStatus int                  `json:"expectedStatus,omitempty" yaml:"expectedStatus"`
	Headers        map[string]string    `json:"headers,omitempty"        yaml:"headers"`
	Query          map[string]string    `json:"query,omitempty"          yaml:"query"`
	Body           string               `json:"body,omitempty"           yaml:"body"`
	Retry          *StageRetry          `json:"retry,omitempty"          yaml:"retry"`
	CircuitBreaker *StageCircuitBreaker `json:"circuitBreaker,omitempty" yaml:"circuitBreaker"`
	JumpOnStatus   map[int]string       `json:"jumpOnStatus,omitempty"   yaml:"jumpOnStatus"`

	// Workflow kind.
	WorkflowRef string            `json:"workflowRef,omitempty" yaml:"workflowRef"`
	Inputs      map[string]string `json:"inputs,omitempty"      yaml:"inputs"`

	// Shared.
	Mock    *Mock             `json:"mock,omitempty"    yaml:"mock"`
	Output  map[string]string `json:"output,omitempty"  yaml:"output"`
	Set     map[string]string `json:"set,omitempty"     yaml:"set"`
	Context map[string]string `json:"context,omitempty" yaml:"context"`
	Message string            `json:"message,omitempty" yaml:"message"`
}

// KindKey returns the stage kind in canonical form for registry lookup.
func (s *Stage) KindKey() string {
	return strings.ToLower(strings.TrimSpace(s.Kind))
}

// Mock replaces a stage's real execution when running in mocked mode.
// Payload and PayloadFile are mutually exclusive; Output is the mock result
// for workflow-kind stages.
type Mock struct {
	Status      int               `json:"status,omitempty"      yaml:"status"`
	Payload     string            `json:"payload,omitempty"     yaml:"payload"`
	PayloadFile string            `json:"payloadFile,omitempty" yaml:"payloadFile"`
	Output      map[string]string `json:"output,omitempty"      yaml:"output"`
}

// StageRetry attaches a retry policy to a stage, either by reference to a
// named policy, by inline fields, or both (inline fields win field by field).
// OnStatus lists the HTTP status codes that trigger a retry; transport
// failures are always retry-eligible.
type StageRetry struct {
	Ref        string `json:"ref,omitempty"        yaml:"ref"`
	MaxRetries *int   `json:"maxRetries,omitempty" yaml:"maxRetries"`
	DelayMs    *int   `json:"delayMs,omitempty"    yaml:"delayMs"`
	OnStatus   []int  `json:"onStatus,omitempty"   yaml:"onStatus"`
}

// StageCircuitBreaker attaches a circuit-breaker policy to a stage. Requires
// Retry to be present on the same stage (enforced by validation).
type StageCircuitBreaker struct {
	Ref                    string `json:"ref,omitempty"                    yaml:"ref"`
	FailureThreshold       *int   `json:"failureThreshold,omitempty"       yaml:"failureThreshold"`
	BreakMs                *int   `json:"breakMs,omitempty"                yaml:"breakMs"`
	CloseOnSuccessAttempts *int   `json:"closeOnSuccessAttempts,omitempty" yaml:"closeOnSuccessAttempts"`
}
