package lg

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ExpressionEvaluator evaluates the expression sub-language embedded in
// templates. expr is the raw text with delimiters already removed; scope is
// the scope of the template currently being evaluated.
type ExpressionEvaluator interface {
	Evaluate(expr string, scope Scope) (any, error)
}

// ExpressionFunc adapts a function to ExpressionEvaluator.
type ExpressionFunc func(expr string, scope Scope) (any, error)

// Evaluate calls f(expr, scope).
func (f ExpressionFunc) Evaluate(expr string, scope Scope) (any, error) {
	return f(expr, scope)
}

// Truthy reports whether a condition value selects its branch.
// Only boolean false and integer zero are falsy; empty strings, empty
// lists and nil are truthy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val != 0
	case int8:
		return val != 0
	case int16:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case uint:
		return val != 0
	case uint8:
		return val != 0
	case uint16:
		return val != 0
	case uint32:
		return val != 0
	case uint64:
		return val != 0
	default:
		return true
	}
}

// Stringify converts an expression result to the text spliced into output.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case fmt.Stringer:
		return val.String()
	case []any, map[string]any, []string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// unescape maps an escape token to its replacement.
func unescape(token string) (string, bool) {
	switch token {
	case `\r`:
		return "\r", true
	case `\n`:
		return "\n", true
	case `\t`:
		return "\t", true
	case `\\`:
		return `\`, true
	case `\[`:
		return "[", true
	case `\]`:
		return "]", true
	case `\{`:
		return "{", true
	case `\}`:
		return "}", true
	default:
		return "", false
	}
}

// IsValidEscape reports whether token is in the escape table.
func IsValidEscape(token string) bool {
	_, ok := unescape(token)
	return ok
}
