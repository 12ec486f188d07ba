package workflow

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
	"github.com/apichain/apichain/pkg/registry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDocument statically checks a workflow document: struct-level
// constraints, stage-name uniqueness, capability violations, and each
// stage's kind-specific validation. All findings are joined into a single
// error so a document is fixed in one pass.
func ValidateDocument(doc *models.Workflow, reg *registry.Registry) error {
	var errs []error

	if err := validate.Struct(doc); err != nil {
		errs = append(errs, models.NewConfigurationError("document %q: %v", doc.Name, err))
	}

	seen := make(map[string]bool, len(doc.Stages))

	for i, stage := range doc.Stages {
		if seen[stage.Name] {
			errs = append(errs, models.NewConfigurationError("stage name %q is not unique", stage.Name))
		}

		seen[stage.Name] = true

		handler, err := reg.HandlerFor(stage.KindKey())
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if len(stage.JumpOnStatus) > 0 && !handler.Capabilities().SupportsJumps {
			errs = append(errs, models.NewConfigurationError("stage %q: kind %q does not support jumpOnStatus", stage.Name, stage.KindKey()))
		}

		errs = append(errs, handler.Validate(stage, &protocol.ValidationContext{Workflow: doc, StageIndex: i})...)
	}

	if doc.EndStage != nil && len(doc.EndStage.Output) > 0 && !doc.Output {
		errs = append(errs, models.NewConfigurationError("document %q: endStage.output requires the output flag", doc.Name))
	}

	if doc.InitStage != nil {
		names := make(map[string]bool, len(doc.InitStage.Variables))

		for _, decl := range doc.InitStage.Variables {
			if names[decl.Name] {
				errs = append(errs, models.NewConfigurationError("init stage variable %q is declared twice", decl.Name))
			}

			names[decl.Name] = true
		}
	}

	return errors.Join(errs...)
}
