// Package models defines the core domain models for declarative API workflows.
package models

// Workflow represents a parsed workflow document: ordered stages plus the
// init/end stages that bracket them.
type Workflow struct {
	Version     string       `json:"version"              yaml:"version"`
	ID          string       `json:"id"                   yaml:"id"`
	Name        string       `json:"name"                 yaml:"name"        validate:"required,min=3"`
	Description string       `json:"description"          yaml:"description"`
	Output      bool         `json:"output"               yaml:"output"`
	References  References   `json:"references"           yaml:"references"`
	Input       []InputParam `json:"input,omitempty"      yaml:"input"`
	InitStage   *InitStage   `json:"initStage,omitempty"  yaml:"initStage"`
	Resilience  Resilience   `json:"resilience,omitempty" yaml:"resilience"`
	Stages      []*Stage     `json:"stages"               yaml:"stages"      validate:"required,min=1,dive"`
	EndStage    *EndStage    `json:"endStage,omitempty"   yaml:"endStage"`

	// Path is the resolved location of the document on disk. Set by the
	// loader, never part of the document itself.
	Path string `json:"-" yaml:"-"`
}

// References holds the named aliases a workflow's stages may point at.
type References struct {
	// Workflows maps a workflowRef alias to a child workflow file path,
	// relative to the referencing document.
	Workflows map[string]string `json:"workflows,omitempty" yaml:"workflows"`
	// APIs maps an apiRef alias to an entry in the API catalog.
	APIs map[string]string `json:"apis,omitempty" yaml:"apis"`
	// EnvironmentFile is an optional env file merged into the execution
	// environment for this document and its children.
	EnvironmentFile string `json:"environmentFile,omitempty" yaml:"environmentFile"`
}

// InputParam declares one workflow input parameter.
type InputParam struct {
	Name     string `json:"name"     yaml:"name"     validate:"required"`
	Type     string `json:"type"     yaml:"type"`
	Required bool   `json:"required" yaml:"required"`
}

// InitStage produces the workflow's global variables and seeds the mutable
// context map before any stage runs.
type InitStage struct {
	Variables []VariableDecl    `json:"variables,omitempty" yaml:"variables" validate:"dive"`
	Context   map[string]string `json:"context,omitempty"   yaml:"context"`
}

// VariableDecl is one ordered global variable declaration. Value is a
// template expression; later declarations may reference earlier ones.
type VariableDecl struct {
	Name  string `json:"name"  yaml:"name" validate:"required"`
	Value string `json:"value" yaml:"value"`
}

// EndStage closes a workflow run: output bindings become the workflow's
// result outputs, context bindings are the final context writes.
type EndStage struct {
	Output  map[string]string `json:"output,omitempty"  yaml:"output"`
	Context map[string]string `json:"context,omitempty" yaml:"context"`
}

// CheckInputs verifies the provided inputs against the workflow's input
// declarations: every required parameter must be present, every provided
// name must be declared. Applied at the root entry point and again on each
// nested workflow invocation.
func (w *Workflow) CheckInputs(inputs map[string]string) error {
	declared := make(map[string]bool, len(w.Input))

	for _, param := range w.Input {
		declared[param.Name] = true

		if param.Required {
			if _, ok := inputs[param.Name]; !ok {
				return NewConfigurationError("required input %q is missing", param.Name)
			}
		}
	}

	for name := range inputs {
		if !declared[name] {
			return NewConfigurationError("input %q is not declared by workflow %q", name, w.Name)
		}
	}

	return nil
}

// StageByName returns the stage with the given name, or nil when no stage
// carries that name.
func (w *Workflow) StageByName(name string) *Stage {
	for _, stage := range w.Stages {
		if stage.Name == name {
			return stage
		}
	}

	return nil
}
