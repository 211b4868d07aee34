package lgfile

import (
	"fmt"

	"github.com/leapstack-labs/leaplg/internal/lg"
)

// Error is the base interface for all front-end errors.
type Error interface {
	error
	Position() lg.Position
}

// baseError provides common error functionality.
type baseError struct {
	pos lg.Position
	msg string
}

func (e *baseError) Position() lg.Position { return e.pos }
func (e *baseError) Error() string {
	return fmt.Sprintf("%s: %s", e.pos, e.msg)
}

// LexError represents an error while scanning a variant.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos lg.Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// ParseError represents an error in the structure of a .lg file.
type ParseError struct {
	baseError
}

// NewParseError creates a new parser error.
func NewParseError(pos lg.Position, msg string) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: msg}}
}

// NewParseErrorf creates a new parser error with formatting.
func NewParseErrorf(pos lg.Position, format string, args ...any) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}
