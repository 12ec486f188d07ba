package models

// Terminal workflow statuses.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
)

// WorkflowResult is the terminal state of one workflow invocation.
type WorkflowResult struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Outputs map[string]string `json:"outputs,omitempty"`
}

// Failed reports whether the run ended in failure.
func (r *WorkflowResult) Failed() bool {
	return r.Status == ResultFailed
}
