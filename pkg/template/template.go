// Package template substitutes {{path.to.value}} placeholders in step fields
// with values from the execution context.
package template

import (
	"regexp"
	"strings"

	"github.com/dukex/autoflow/pkg/models"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Render replaces every {{ path }} token in input with the value resolved from ctx.
// Tokens that cannot be resolved are left exactly as written. Substituted values are
// not scanned again, so rendering already rendered output with the same context is a no-op
// when the substituted values contain no tokens.
func Render(input string, ctx models.ExecutionContext) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return tokenPattern.ReplaceAllStringFunc(input, func(token string) string {
		match := tokenPattern.FindStringSubmatch(token)
		if len(match) < 2 {
			return token
		}

		path := strings.TrimSpace(match[1])

		value := Resolve(path, ctx)
		if IsUndefined(value) {
			return token
		}

		return formatValue(lastSegment(path), value)
	})
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}

	return path
}
