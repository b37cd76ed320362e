package webhook

import (
	"fmt"
	"regexp"
)

// varPattern matches {{name}} placeholders. Names are word characters only.
var varPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Substitute replaces every {{name}} in tmpl with the value of vars[name].
// Unresolved names are left verbatim.
func Substitute(tmpl string, vars map[string]any) string {
	return varPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			return m
		}
		return fmt.Sprintf("%v", v)
	})
}

// substituteValue walks an unmarshalled JSON value and substitutes every
// string in it, preserving structure. Non-string leaves pass through.
func substituteValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return Substitute(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, vars)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = substituteValue(item, vars)
		}
		return out
	default:
		return v
	}
}
