// Package template resolves {{scope.key}} tokens in workflow strings against
// the layered variable scopes of an execution context.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apichain/apichain/pkg/models"
)

// Response exposes an endpoint stage's transport result to response.* tokens.
// It is only attached to the scope while the stage's own output bindings and
// message template are evaluated.
type Response struct {
	Status int
	Body   string
}

// Scope carries everything a template token can resolve against.
type Scope struct {
	Exec     *models.ExecutionContext
	Response *Response
}

// NewScope builds a scope over an execution context without response access.
func NewScope(execCtx *models.ExecutionContext) *Scope {
	return &Scope{Exec: execCtx}
}

// WithResponse returns a copy of the scope with response.* tokens enabled.
func (s *Scope) WithResponse(status int, body string) *Scope {
	return &Scope{Exec: s.Exec, Response: &Response{Status: status, Body: body}}
}

// Resolve replaces every {{...}} token in input with its resolved value.
// Tokens are resolved left to right, independently; a token-free string is
// returned unchanged. Both {{scope.key}} and {{scope:key}} separators are
// accepted.
func Resolve(input string, scope *Scope) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	var result strings.Builder

	result.Grow(len(input))

	i := 0
	for i < len(input) {
		idx := strings.Index(input[i:], "{{")
		if idx == -1 {
			result.WriteString(input[i:])

			break
		}

		result.WriteString(input[i : i+idx])

		start := i + idx + 2

		end := strings.Index(input[start:], "}}")
		if end == -1 {
			return "", models.NewTemplateError(input[start:], "unclosed token")
		}

		end += start

		token := strings.TrimSpace(input[start:end])
		if token == "" {
			return "", models.NewTemplateError("", "empty token")
		}

		value, err := resolveToken(token, scope)
		if err != nil {
			return "", err
		}

		result.WriteString(value)

		i = end + 2
	}

	return result.String(), nil
}

// ResolveMap resolves every value of a template map, returning a new map.
func ResolveMap(templates map[string]string, scope *Scope) (map[string]string, error) {
	if templates == nil {
		return nil, nil
	}

	resolved := make(map[string]string, len(templates))

	for key, tmpl := range templates {
		value, err := Resolve(tmpl, scope)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", key, err)
		}

		resolved[key] = value
	}

	return resolved, nil
}

// resolveToken resolves the content of a single {{...}} token.
func resolveToken(token string, scope *Scope) (string, error) {
	if strings.HasPrefix(token, "json(") {
		return resolveProjection(token, token, "", scope)
	}

	prefix, path, ok := splitPrefix(token)
	if !ok {
		return "", models.NewTemplateError(token, "missing scope prefix")
	}

	if strings.HasPrefix(path, "json(") {
		return resolveProjection(token, path, prefix, scope)
	}

	return resolvePath(token, prefix, path, scope)
}

// splitPrefix separates the scope prefix from the path on the first '.' or
// ':' separator. Both are accepted interchangeably; the rest of the path
// always uses '.'.
func splitPrefix(token string) (prefix, path string, ok bool) {
	idx := strings.IndexAny(token, ".:")
	if idx <= 0 {
		return "", "", false
	}

	return token[:idx], token[idx+1:], true
}

// resolvePath resolves a plain dotted path within a named scope.
func resolvePath(token, prefix, path string, scope *Scope) (string, error) {
	exec := scope.Exec

	switch prefix {
	case "input":
		value, ok := exec.Inputs[path]
		if !ok {
			return "", models.NewTemplateError(token, "input %q is not declared or not provided", path)
		}

		return value, nil

	case "global":
		value, ok := exec.Globals[path]
		if !ok {
			return "", models.NewTemplateError(token, "global %q is not defined by the init stage", path)
		}

		return value, nil

	case "context":
		// Context may be populated conditionally; an absent key resolves
		// to the empty-string sentinel, not an error.
		return exec.Context[path], nil

	case "env":
		value, ok := exec.Env[path]
		if !ok {
			return "", models.NewTemplateError(token, "environment variable %q is not set", path)
		}

		return value, nil

	case "stage", "stages":
		return resolveStagePath(token, path, exec)

	case "response":
		return resolveResponsePath(token, path, scope)

	case "system":
		return resolveSystemPath(token, path)

	default:
		return "", models.NewTemplateError(token, "unknown scope %q", prefix)
	}
}

// resolveStagePath resolves stage.<name>.output.<key>, stage.<name>.status
// and stage.<name>.message references.
func resolveStagePath(token, path string, exec *models.ExecutionContext) (string, error) {
	parts := strings.SplitN(path, ".", 3)
	if len(parts) < 2 {
		return "", models.NewTemplateError(token, "stage reference needs a stage name and a field")
	}

	name := parts[0]

	switch parts[1] {
	case "output":
		if len(parts) < 3 || parts[2] == "" {
			return "", models.NewTemplateError(token, "stage output reference needs a key")
		}

		value, err := exec.StageOutput(name, parts[2])
		if err != nil {
			return "", models.NewTemplateError(token, "%v", err)
		}

		return value, nil

	case "status":
		outcome, ok := exec.StageResults[name]
		if !ok {
			return "", models.NewTemplateError(token, "stage %q has no recorded result", name)
		}

		return outcome.Status, nil

	case "message":
		outcome, ok := exec.StageResults[name]
		if !ok {
			return "", models.NewTemplateError(token, "stage %q has no recorded result", name)
		}

		return outcome.Message, nil

	default:
		return "", models.NewTemplateError(token, "unknown stage field %q", parts[1])
	}
}

// resolveResponsePath resolves response.status, response.body and JSON field
// walks into response.body.<field>... . Response tokens are only available
// while an endpoint stage evaluates its own output bindings or message.
func resolveResponsePath(token, path string, scope *Scope) (string, error) {
	if scope.Response == nil {
		return "", models.NewTemplateError(token, "response scope is not available here")
	}

	switch {
	case path == "status":
		return fmt.Sprintf("%d", scope.Response.Status), nil

	case path == "body":
		return scope.Response.Body, nil

	case strings.HasPrefix(path, "body."):
		var doc any
		if err := json.Unmarshal([]byte(scope.Response.Body), &doc); err != nil {
			return "", models.NewTemplateError(token, "response body is not valid JSON: %v", err)
		}

		return walkJSON(token, doc, strings.TrimPrefix(path, "body."))

	default:
		return "", models.NewTemplateError(token, "unknown response field %q", path)
	}
}

// resolveSystemPath resolves system.* built-ins. Values are computed at
// resolution time, never cached.
func resolveSystemPath(token, path string) (string, error) {
	switch path {
	case "timestamp":
		return time.Now().UTC().Format(time.RFC3339), nil
	case "timestampMs":
		return fmt.Sprintf("%d", time.Now().UnixMilli()), nil
	case "date":
		return time.Now().UTC().Format("2006-01-02"), nil
	case "uuid":
		return uuid.New().String(), nil
	default:
		return "", models.NewTemplateError(token, "unknown system value %q", path)
	}
}

// resolveProjection handles json(...) tokens: the inner reference resolves
// to a string, that string is parsed as JSON, and the remaining dotted path
// is walked into the parsed document.
func resolveProjection(token, expr, impliedPrefix string, scope *Scope) (string, error) {
	closing := strings.Index(expr, ")")
	if closing == -1 {
		return "", models.NewTemplateError(token, "unclosed json(...) projection")
	}

	inner := expr[len("json(") : closing]
	if inner == "" {
		return "", models.NewTemplateError(token, "empty json(...) projection")
	}

	rest := strings.TrimPrefix(expr[closing+1:], ".")

	var (
		raw string
		err error
	)

	if impliedPrefix != "" {
		raw, err = resolvePath(token, impliedPrefix, inner, scope)
	} else {
		prefix, path, ok := splitPrefix(inner)
		if !ok {
			return "", models.NewTemplateError(token, "json(...) projection needs a scoped reference")
		}

		raw, err = resolvePath(token, prefix, path, scope)
	}

	if err != nil {
		return "", err
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", models.NewTemplateError(token, "value is not valid JSON: %v", err)
	}

	if rest == "" {
		return stringify(doc), nil
	}

	return walkJSON(token, doc, rest)
}

// walkJSON walks a dotted field path into a parsed JSON document.
func walkJSON(token string, doc any, path string) (string, error) {
	current := doc

	for _, field := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return "", models.NewTemplateError(token, "cannot descend into field %q: not an object", field)
		}

		current, ok = obj[field]
		if !ok {
			return "", models.NewTemplateError(token, "field %q not found", field)
		}
	}

	return stringify(current), nil
}

// stringify renders a scalar as its plain string form and a nested
// structure as compact JSON.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%g", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
