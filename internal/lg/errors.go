package lg

import (
	"fmt"
	"strings"
)

// Error is the base interface for all evaluation errors.
type Error interface {
	error
	Position() Position
}

// baseError provides common error functionality.
type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.IsZero() {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.pos, e.msg)
}

// TemplateNotFoundError indicates a template name absent from the store.
type TemplateNotFoundError struct {
	baseError
	Name string
}

// NewTemplateNotFoundError creates a new template-not-found error.
func NewTemplateNotFoundError(pos Position, name string) *TemplateNotFoundError {
	return &TemplateNotFoundError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("no such template: %s", name)},
		Name:      name,
	}
}

// LoopDetectedError indicates a template that, directly or transitively,
// references itself while still being evaluated.
type LoopDetectedError struct {
	baseError
	Path []string // call order, ending with the repeated name
}

// NewLoopDetectedError creates a new loop error for the given call path.
func NewLoopDetectedError(pos Position, path []string) *LoopDetectedError {
	return &LoopDetectedError{
		baseError: baseError{pos: pos, msg: "loop detected: " + strings.Join(path, " => ")},
		Path:      path,
	}
}

// EmptyTemplateBodyError indicates a template declared without a body.
type EmptyTemplateBodyError struct {
	baseError
	Name string
}

// NewEmptyTemplateBodyError creates a new empty-body error.
func NewEmptyTemplateBodyError(pos Position, name string) *EmptyTemplateBodyError {
	return &EmptyTemplateBodyError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("there is no template body in template %s", name)},
		Name:      name,
	}
}

// InvalidEscapeError indicates a backslash sequence outside the escape table.
type InvalidEscapeError struct {
	baseError
	Token string
}

// NewInvalidEscapeError creates a new invalid escape error.
func NewInvalidEscapeError(pos Position, token string) *InvalidEscapeError {
	return &InvalidEscapeError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("escape character %s is invalid", token)},
		Token:     token,
	}
}

// ArgumentCountMismatchError indicates a template call whose argument count
// differs from the callee's declared parameters.
type ArgumentCountMismatchError struct {
	baseError
	Template string
	Expected int
	Actual   int
}

// NewArgumentCountMismatchError creates a new argument count error.
func NewArgumentCountMismatchError(pos Position, template string, expected, actual int) *ArgumentCountMismatchError {
	return &ArgumentCountMismatchError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf(
			"arguments count mismatch for template ref %s, expected %d, actual %d", template, expected, actual)},
		Template: template,
		Expected: expected,
		Actual:   actual,
	}
}

// MalformedTemplateRefError indicates a template reference that cannot be
// split into a name and an argument list.
type MalformedTemplateRefError struct {
	baseError
	Ref string
}

// NewMalformedTemplateRefError creates a new malformed reference error.
func NewMalformedTemplateRefError(pos Position, ref, reason string) *MalformedTemplateRefError {
	return &MalformedTemplateRefError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("not a valid template ref: %s (%s)", ref, reason)},
		Ref:       ref,
	}
}

// ExpressionError wraps an error raised by the ExpressionEvaluator.
// Unwrap returns the delegate's error unmodified.
type ExpressionError struct {
	baseError
	Template string
	Expr     string
	Cause    error
}

// WrapExpressionError wraps a delegate error with template context.
func WrapExpressionError(pos Position, template, expr string, cause error) *ExpressionError {
	return &ExpressionError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("template %s: error evaluating %q", template, expr)},
		Template:  template,
		Expr:      expr,
		Cause:     cause,
	}
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("%s: %v", e.baseError.Error(), e.Cause)
}

func (e *ExpressionError) Unwrap() error {
	return e.Cause
}

// ExpansionLimitError indicates that expanding a template would produce
// more results than the Expander allows.
type ExpansionLimitError struct {
	baseError
	Template string
	Limit    int
}

// NewExpansionLimitError creates a new expansion limit error.
func NewExpansionLimitError(pos Position, template string, limit int) *ExpansionLimitError {
	return &ExpansionLimitError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("expanding template %s exceeds %d results", template, limit)},
		Template:  template,
		Limit:     limit,
	}
}

// DuplicateTemplateError indicates two templates declared with one name.
type DuplicateTemplateError struct {
	baseError
	Name  string
	First Position
}

// NewDuplicateTemplateError creates a new duplicate template error.
func NewDuplicateTemplateError(pos Position, name string, first Position) *DuplicateTemplateError {
	return &DuplicateTemplateError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("duplicate template %s (first declared at %s)", name, first)},
		Name:      name,
		First:     first,
	}
}

// CheckError is returned when static checking reports Error diagnostics.
type CheckError struct {
	Diagnostics Diagnostics
}

func (e *CheckError) Error() string {
	return e.Diagnostics.Errors().Error()
}
