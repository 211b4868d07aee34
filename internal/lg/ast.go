// Package lg evaluates Language-Generation templates.
//
// A template is a named set of response variants. Variants are strings
// made of literal text, escape sequences, embedded {expressions} that are
// delegated to an ExpressionEvaluator, references to other templates and
// multi-line text blocks. Conditional templates pick the first case whose
// condition holds.
package lg

import "fmt"

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsZero reports whether the position carries no location.
func (p Position) IsZero() bool {
	return p.File == "" && p.Line == 0 && p.Column == 0
}

// Template is a named, parameterized unit producing text given a scope.
type Template struct {
	Name       string
	Parameters []string
	Body       Body // nil when the template was declared without a body
	Pos        Position
}

// Body is the interface for template bodies.
// Implementations: *NormalBody, *ConditionalBody.
type Body interface {
	Pos() Position
	body() // marker method to restrict implementation
}

// Segment is the interface for the parts of a StringTemplate.
// Implementations: *Literal, *Escape, *Expression, *TemplateRef, *MultiLineText.
type Segment interface {
	Pos() Position
	segment() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }

// NormalBody holds response variants; one is chosen per evaluation.
type NormalBody struct {
	nodeBase
	Variants []*StringTemplate
}

func (*NormalBody) body() {}

// Case is one IF/ELSEIF branch of a conditional body.
type Case struct {
	Condition string // raw condition token, usually "{expr}"
	Body      *NormalBody
	Pos       Position
}

// ConditionalBody holds ordered cases and an optional default branch.
type ConditionalBody struct {
	nodeBase
	Cases   []*Case
	Default *NormalBody // may be nil
}

func (*ConditionalBody) body() {}

// StringTemplate is one variant: segments concatenated left to right.
type StringTemplate struct {
	Segments []Segment
	Pos      Position
}

// Literal is text appended verbatim.
type Literal struct {
	nodeBase
	Text string
}

// Escape is a backslash-prefixed token such as \n or \[.
type Escape struct {
	nodeBase
	Raw string
}

// Expression is an embedded expression token: "{expr}" or "@{expr}".
type Expression struct {
	nodeBase
	Raw string
}

// TemplateRef is a reference to another template: "[Name]" or "[Name(a, b)]".
type TemplateRef struct {
	nodeBase
	Raw string
}

// MultiLineText is a "```...```" block with @{...} substitutions.
type MultiLineText struct {
	nodeBase
	Raw string
}

func (*Literal) segment()       {}
func (*Escape) segment()        {}
func (*Expression) segment()    {}
func (*TemplateRef) segment()   {}
func (*MultiLineText) segment() {}

// Node constructors. The front-end builds trees through these so that
// positions stay unexported.

// NewNormalBody creates a normal body.
func NewNormalBody(pos Position, variants ...*StringTemplate) *NormalBody {
	return &NormalBody{nodeBase: nodeBase{pos: pos}, Variants: variants}
}

// NewConditionalBody creates a conditional body.
func NewConditionalBody(pos Position, cases []*Case, def *NormalBody) *ConditionalBody {
	return &ConditionalBody{nodeBase: nodeBase{pos: pos}, Cases: cases, Default: def}
}

// NewLiteral creates a literal segment.
func NewLiteral(pos Position, text string) *Literal {
	return &Literal{nodeBase: nodeBase{pos: pos}, Text: text}
}

// NewEscape creates an escape segment.
func NewEscape(pos Position, raw string) *Escape {
	return &Escape{nodeBase: nodeBase{pos: pos}, Raw: raw}
}

// NewExpression creates an expression segment.
func NewExpression(pos Position, raw string) *Expression {
	return &Expression{nodeBase: nodeBase{pos: pos}, Raw: raw}
}

// NewTemplateRef creates a template reference segment.
func NewTemplateRef(pos Position, raw string) *TemplateRef {
	return &TemplateRef{nodeBase: nodeBase{pos: pos}, Raw: raw}
}

// NewMultiLineText creates a multi-line text segment.
func NewMultiLineText(pos Position, raw string) *MultiLineText {
	return &MultiLineText{nodeBase: nodeBase{pos: pos}, Raw: raw}
}

// Text builds a single-variant normal body from segments. Handy for
// inline templates and tests.
func Text(segments ...Segment) *NormalBody {
	return NewNormalBody(Position{}, &StringTemplate{Segments: segments})
}
