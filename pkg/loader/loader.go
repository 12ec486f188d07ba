// Package loader reads workflow documents from disk, validates them, and
// assembles the execution environment they run in.
package loader

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/apichain/apichain/pkg/models"
)

// Loader implements the document-loader collaborator.
type Loader struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// New builds a loader.
func New(logger *slog.Logger) *Loader {
	return &Loader{
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load parses the document at path (YAML or JSON by extension), checks it
// against the document schema and struct constraints, and returns it with
// the merged execution environment: envOverrides as the base, the document's
// environment file merged on top.
func (l *Loader) Load(path string, envOverrides map[string]string) (*models.Workflow, map[string]string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, models.NewConfigurationError("cannot resolve workflow path %q: %v", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, nil, models.NewConfigurationError("cannot read workflow %q: %v", path, err)
	}

	var doc models.Workflow

	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".json":
		if err := l.checkSchema(jsonToGeneric(data)); err != nil {
			return nil, nil, err
		}

		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, models.NewConfigurationError("cannot parse workflow %q: %v", path, err)
		}
	default:
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, nil, models.NewConfigurationError("cannot parse workflow %q: %v", path, err)
		}

		if err := l.checkSchema(normalizeYAML(generic)); err != nil {
			return nil, nil, err
		}

		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, nil, models.NewConfigurationError("cannot parse workflow %q: %v", path, err)
		}
	}

	if err := l.validate.Struct(&doc); err != nil {
		return nil, nil, models.NewConfigurationError("workflow %q: %v", path, err)
	}

	doc.Path = absPath

	env := make(map[string]string, len(envOverrides))
	for key, value := range envOverrides {
		env[key] = value
	}

	if doc.References.EnvironmentFile != "" {
		envPath := doc.References.EnvironmentFile
		if !filepath.IsAbs(envPath) {
			envPath = filepath.Join(filepath.Dir(absPath), envPath)
		}

		fileEnv, err := readEnvFile(envPath)
		if err != nil {
			return nil, nil, models.NewConfigurationError("workflow %q: %v", path, err)
		}

		for key, value := range fileEnv {
			env[key] = value
		}
	}

	l.logger.Debug("loaded workflow document", "path", absPath, "stages", len(doc.Stages))

	return &doc, env, nil
}

// SidecarInputs looks for "<workflow>.vars.yaml" next to the workflow file
// and returns its flat key/value map when present.
func (l *Loader) SidecarInputs(path string) (map[string]string, bool, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	sidecar := base + ".vars.yaml"

	data, err := os.ReadFile(sidecar)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, models.NewConfigurationError("cannot read sidecar %q: %v", sidecar, err)
	}

	inputs := make(map[string]string)
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, false, models.NewConfigurationError("cannot parse sidecar %q: %v", sidecar, err)
	}

	return inputs, true, nil
}

// checkSchema validates the generic document form against the embedded
// schema before the typed unmarshal, so shape errors come with JSON-pointer
// detail instead of Go decoding noise.
func (l *Loader) checkSchema(generic any) error {
	if generic == nil {
		return models.NewConfigurationError("workflow document is empty")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(documentSchema), gojsonschema.NewGoLoader(generic))
	if err != nil {
		return models.NewConfigurationError("schema validation: %v", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return models.NewConfigurationError("invalid workflow document: %s", strings.Join(details, "; "))
	}

	return nil
}

// readEnvFile parses a KEY=VALUE env file, ignoring blanks and # comments.
func readEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read environment file %q: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("environment file %q: malformed line %q", path, line)
		}

		env[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return env, scanner.Err()
}

// jsonToGeneric decodes JSON bytes into the generic form gojsonschema wants.
func jsonToGeneric(data []byte) any {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil
	}

	return generic
}

// normalizeYAML converts yaml.v3 generic values into JSON-compatible ones
// (map keys to strings) so gojsonschema can walk them.
func normalizeYAML(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalizeYAML(item)
		}

		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprintf("%v", key)] = normalizeYAML(item)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeYAML(item)
		}

		return out
	default:
		return v
	}
}
