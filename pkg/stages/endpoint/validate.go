package endpoint

import (
	"net/http"
	"strings"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
	"github.com/apichain/apichain/pkg/template"
)

var validVerbs = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Validate statically checks an endpoint stage definition against the
// document it belongs to.
func (h *Handler) Validate(stage *models.Stage, vctx *protocol.ValidationContext) []error {
	var errs []error

	doc := vctx.Workflow

	if stage.APIRef == "" {
		errs = append(errs, models.NewConfigurationError("stage %q: apiRef is required", stage.Name))
	} else if _, ok := doc.References.APIs[stage.APIRef]; !ok {
		errs = append(errs, models.NewConfigurationError("stage %q: apiRef %q is not declared in references", stage.Name, stage.APIRef))
	}

	if stage.Endpoint == "" {
		errs = append(errs, models.NewConfigurationError("stage %q: endpoint is required", stage.Name))
	}

	if stage.HTTPVerb != "" && !validVerbs[strings.ToUpper(stage.HTTPVerb)] {
		errs = append(errs, models.NewConfigurationError("stage %q: invalid httpVerb %q", stage.Name, stage.HTTPVerb))
	}

	if stage.ExpectedStatus <= 0 {
		errs = append(errs, models.NewConfigurationError("stage %q: expectedStatus is required", stage.Name))
	}

	if stage.Mock != nil && stage.Mock.Payload != "" && stage.Mock.PayloadFile != "" {
		errs = append(errs, models.NewConfigurationError("stage %q: mock payload and payloadFile are mutually exclusive", stage.Name))
	}

	if stage.Retry != nil {
		if _, err := doc.Resilience.ResolveRetry(stage.Retry); err != nil {
			errs = append(errs, models.NewConfigurationError("stage %q: %v", stage.Name, err))
		}
	}

	if stage.CircuitBreaker != nil {
		if stage.Retry == nil {
			errs = append(errs, models.NewConfigurationError("stage %q: circuitBreaker requires retry", stage.Name))
		}

		if _, err := doc.Resilience.ResolveCircuitBreaker(stage.CircuitBreaker); err != nil {
			errs = append(errs, models.NewConfigurationError("stage %q: %v", stage.Name, err))
		}
	}

	for status, target := range stage.JumpOnStatus {
		target = normalizeJumpTarget(target)
		if target == models.JumpToEnd {
			continue
		}

		if doc.StageByName(target) == nil {
			errs = append(errs, models.NewConfigurationError("stage %q: jumpOnStatus %d targets unknown stage %q", stage.Name, status, target))
		}
	}

	errs = append(errs, lintTemplates(stage)...)

	return errs
}

// lintTemplates flags unknown scope prefixes and response tokens outside the
// stage's output bindings and message template.
func lintTemplates(stage *models.Stage) []error {
	var errs []error

	check := func(field, value string, responseOK bool) {
		for _, prefix := range template.TokenPrefixes(value) {
			switch {
			case prefix == "":
				errs = append(errs, models.NewConfigurationError("stage %q: malformed template token in %s", stage.Name, field))
			case !template.KnownScopes[prefix]:
				errs = append(errs, models.NewConfigurationError("stage %q: unknown scope %q in %s", stage.Name, prefix, field))
			case prefix == "response" && !responseOK:
				errs = append(errs, models.NewConfigurationError("stage %q: response tokens are only valid in output bindings and message, not %s", stage.Name, field))
			}
		}
	}

	check("runIf", stage.RunIf, false)
	check("endpoint", stage.Endpoint, false)
	check("body", stage.Body, false)
	check("message", stage.Message, true)

	for key, value := range stage.Headers {
		check("header "+key, value, false)
	}

	for key, value := range stage.Query {
		check("query "+key, value, false)
	}

	for key, value := range stage.Output {
		check("output "+key, value, true)
	}

	for key, value := range stage.Set {
		check("set "+key, value, false)
	}

	for key, value := range stage.Context {
		check("context "+key, value, false)
	}

	return errs
}
