package subworkflow

import (
	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
	"github.com/apichain/apichain/pkg/template"
)

// Validate statically checks a workflow stage definition.
func (h *Handler) Validate(stage *models.Stage, vctx *protocol.ValidationContext) []error {
	var errs []error

	doc := vctx.Workflow

	if stage.WorkflowRef == "" {
		errs = append(errs, models.NewConfigurationError("stage %q: workflowRef is required", stage.Name))
	} else if _, ok := doc.References.Workflows[stage.WorkflowRef]; !ok {
		errs = append(errs, models.NewConfigurationError("stage %q: workflowRef %q is not declared in references", stage.Name, stage.WorkflowRef))
	}

	if len(stage.JumpOnStatus) > 0 {
		errs = append(errs, models.NewConfigurationError("stage %q: workflow stages do not support jumpOnStatus", stage.Name))
	}

	if stage.Retry != nil || stage.CircuitBreaker != nil {
		errs = append(errs, models.NewConfigurationError("stage %q: resilience policies only apply to endpoint stages", stage.Name))
	}

	check := func(field, value string) {
		for _, prefix := range template.TokenPrefixes(value) {
			switch {
			case prefix == "":
				errs = append(errs, models.NewConfigurationError("stage %q: malformed template token in %s", stage.Name, field))
			case !template.KnownScopes[prefix]:
				errs = append(errs, models.NewConfigurationError("stage %q: unknown scope %q in %s", stage.Name, prefix, field))
			case prefix == "response":
				errs = append(errs, models.NewConfigurationError("stage %q: response tokens are not valid on workflow stages (%s)", stage.Name, field))
			}
		}
	}

	check("runIf", stage.RunIf)
	check("message", stage.Message)

	for key, value := range stage.Inputs {
		check("input "+key, value)
	}

	for key, value := range stage.Set {
		check("set "+key, value)
	}

	for key, value := range stage.Context {
		check("context "+key, value)
	}

	if stage.Mock != nil {
		for key, value := range stage.Mock.Output {
			check("mock output "+key, value)
		}
	}

	return errs
}
