package template

import "strings"

// KnownScopes are the prefixes a token may resolve against.
var KnownScopes = map[string]bool{
	"input":    true,
	"global":   true,
	"context":  true,
	"env":      true,
	"stage":    true,
	"stages":   true,
	"response": true,
	"system":   true,
}

// TokenPrefixes returns the scope prefix of every {{...}} token in input,
// in order. json(...) projections report the scope of their inner reference.
// Malformed tokens are reported with an empty prefix so validators can flag
// them.
func TokenPrefixes(input string) []string {
	var prefixes []string

	i := 0
	for i < len(input) {
		idx := strings.Index(input[i:], "{{")
		if idx == -1 {
			break
		}

		start := i + idx + 2

		end := strings.Index(input[start:], "}}")
		if end == -1 {
			prefixes = append(prefixes, "")

			break
		}

		end += start

		token := strings.TrimSpace(input[start:end])
		if inner, ok := strings.CutPrefix(token, "json("); ok {
			// json(scope.path).fields: lint the inner reference.
			if closing := strings.Index(inner, ")"); closing != -1 {
				token = inner[:closing]
			}
		}

		prefix, _, ok := splitPrefix(token)
		if !ok {
			prefixes = append(prefixes, "")
		} else {
			prefixes = append(prefixes, prefix)
		}

		i = end + 2
	}

	return prefixes
}

// UsesScope reports whether input contains a token of the given scope.
func UsesScope(input, scope string) bool {
	for _, prefix := range TokenPrefixes(input) {
		if prefix == scope {
			return true
		}
	}

	return false
}
