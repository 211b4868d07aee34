// Package lgfile parses .lg source text into templates.
//
// A file is a sequence of templates. Each starts with a header line
// "# Name" or "# Name(p1, p2)" followed by variant lines beginning with
// "-". A body is either a list of variants, one of which is chosen at
// random, or a conditional:
//
//	# Weather(temp)
//	- IF: {temp > 25}
//	    - It is hot.
//	- ELSEIF: {temp > 10}
//	    - It is mild.
//	- ELSE:
//	    - It is cold.
//
// Lines starting with ">" are comments. Text between ``` fences may span
// several lines.
package lgfile

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leaplg/internal/lg"
)

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)
	paramPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Parse parses the .lg source src. file is used in positions only.
func Parse(src, file string) ([]*lg.Template, error) {
	p := &parser{file: file, lines: splitLines(src)}
	return p.parse()
}

// ParseInline parses text that is not part of a file, such as a string
// typed on the command line. Text starting with "-" is parsed as a full
// template body, so it may be conditional; any other text is one variant.
func ParseInline(text string) (lg.Body, error) {
	start := lg.Position{File: "<inline>", Line: 1, Column: 1}
	if !strings.HasPrefix(strings.TrimSpace(text), "-") {
		tokens, err := NewLexer(text, start).Tokenize()
		if err != nil {
			return nil, err
		}
		return lg.NewNormalBody(start, &lg.StringTemplate{Segments: Segments(tokens), Pos: start}), nil
	}

	p := &parser{file: start.File, lines: splitLines(text)}
	body, err := p.parseBody(lg.InlineTemplateName, start)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, NewParseError(start, "inline text has no variants")
	}
	return body, nil
}

type sourceLine struct {
	text string
	num  int
}

func splitLines(src string) []sourceLine {
	raw := strings.Split(src, "\n")
	lines := make([]sourceLine, len(raw))
	for i, text := range raw {
		lines[i] = sourceLine{text: strings.TrimSuffix(text, "\r"), num: i + 1}
	}
	return lines
}

// item is one "-" line, joined with its continuation lines when it opens
// multi-line text.
type item struct {
	indent int
	text   string
	pos    lg.Position // position of the text after the dash
}

type parser struct {
	file  string
	lines []sourceLine
	i     int
}

func (p *parser) pos(line, col int) lg.Position {
	return lg.Position{File: p.file, Line: line, Column: col}
}

func (p *parser) parse() ([]*lg.Template, error) {
	var templates []*lg.Template
	for p.i < len(p.lines) {
		ln := p.lines[p.i]
		trimmed := strings.TrimSpace(ln.text)
		switch {
		case isSkippable(trimmed):
			p.i++
		case strings.HasPrefix(trimmed, "#"):
			t, err := p.parseTemplate()
			if err != nil {
				return nil, err
			}
			templates = append(templates, t)
		default:
			return nil, NewParseErrorf(p.pos(ln.num, indentOf(ln.text)+1),
				"content outside of a template: %q", trimmed)
		}
	}
	return templates, nil
}

func isSkippable(trimmed string) bool {
	return trimmed == "" || strings.HasPrefix(trimmed, ">")
}

func (p *parser) parseTemplate() (*lg.Template, error) {
	ln := p.lines[p.i]
	pos := p.pos(ln.num, indentOf(ln.text)+1)
	header := strings.TrimPrefix(strings.TrimSpace(ln.text), "#")
	name, params, err := parseHeader(header, pos)
	if err != nil {
		return nil, err
	}
	p.i++

	body, err := p.parseBody(name, pos)
	if err != nil {
		return nil, err
	}
	return &lg.Template{Name: name, Parameters: params, Body: body, Pos: pos}, nil
}

// ParseHeader parses a "# Name(params)" header line. It reports false for
// lines that are not a valid header.
func ParseHeader(line string) (string, []string, bool) {
	header, ok := strings.CutPrefix(strings.TrimSpace(line), "#")
	if !ok {
		return "", nil, false
	}
	name, params, err := parseHeader(header, lg.Position{})
	return name, params, err == nil
}

func parseHeader(header string, pos lg.Position) (string, []string, error) {
	header = strings.TrimSpace(header)
	name := header
	var params []string

	if open := strings.IndexByte(header, '('); open >= 0 {
		if !strings.HasSuffix(header, ")") {
			return "", nil, NewParseErrorf(pos, "template header %q is missing ')'", header)
		}
		name = strings.TrimSpace(header[:open])
		list := strings.TrimSpace(header[open+1 : len(header)-1])
		if list != "" {
			for _, param := range strings.Split(list, ",") {
				param = strings.TrimSpace(param)
				if !paramPattern.MatchString(param) {
					return "", nil, NewParseErrorf(pos, "invalid parameter name %q in template %s", param, name)
				}
				params = append(params, param)
			}
		}
	}

	if !namePattern.MatchString(name) {
		return "", nil, NewParseErrorf(pos, "invalid template name %q", name)
	}
	return name, params, nil
}

// parseBody consumes lines up to the next header and builds the body.
// A template without variant lines has a nil body.
func (p *parser) parseBody(name string, pos lg.Position) (lg.Body, error) {
	items, err := p.collectItems()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	if _, _, ok := keyword(items[0].text); ok {
		return p.conditional(name, pos, items)
	}
	return p.normal(name, pos, items)
}

func (p *parser) collectItems() ([]item, error) {
	var items []item
	for p.i < len(p.lines) {
		ln := p.lines[p.i]
		trimmed := strings.TrimSpace(ln.text)
		if strings.HasPrefix(trimmed, "#") {
			break
		}
		if isSkippable(trimmed) {
			p.i++
			continue
		}

		indent := indentOf(ln.text)
		if !strings.HasPrefix(trimmed, "-") {
			return nil, NewParseErrorf(p.pos(ln.num, indent+1), "expected '-' to start a variant, got %q", trimmed)
		}

		rest := ln.text[indent+1:]
		textStart := indent + 1 + (len(rest) - len(strings.TrimLeft(rest, " \t")))
		text := strings.TrimLeft(rest, " \t")
		it := item{
			indent: indent,
			pos:    p.pos(ln.num, utf8.RuneCountInString(ln.text[:textStart])+1),
		}
		p.i++

		for strings.Count(text, "```")%2 == 1 {
			if p.i >= len(p.lines) {
				return nil, NewParseError(it.pos, "unclosed multi-line text: missing '```'")
			}
			text += "\n" + p.lines[p.i].text
			p.i++
		}
		it.text = strings.TrimRight(text, " \t")
		items = append(items, it)
	}
	return items, nil
}

func (p *parser) variant(it item) (*lg.StringTemplate, error) {
	tokens, err := NewLexer(it.text, it.pos).Tokenize()
	if err != nil {
		return nil, err
	}
	return &lg.StringTemplate{Segments: Segments(tokens), Pos: it.pos}, nil
}

func (p *parser) normal(name string, pos lg.Position, items []item) (*lg.NormalBody, error) {
	variants := make([]*lg.StringTemplate, 0, len(items))
	for _, it := range items {
		if kw, _, ok := keyword(it.text); ok {
			return nil, NewParseErrorf(it.pos, "%s branch in template %s, which has plain variants", kw, name)
		}
		v, err := p.variant(it)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return lg.NewNormalBody(pos, variants...), nil
}

// branch is a conditional case being assembled.
type branch struct {
	kw        string
	condition string
	indent    int
	pos       lg.Position
	variants  []*lg.StringTemplate
}

func (p *parser) conditional(name string, pos lg.Position, items []item) (*lg.ConditionalBody, error) {
	var branches []*branch
	for _, it := range items {
		kw, rest, ok := keyword(it.text)
		if !ok {
			current := branches[len(branches)-1]
			if it.indent <= current.indent {
				return nil, NewParseErrorf(it.pos, "variant outside of a conditional branch in template %s", name)
			}
			v, err := p.variant(it)
			if err != nil {
				return nil, err
			}
			current.variants = append(current.variants, v)
			continue
		}

		if len(branches) > 0 && branches[len(branches)-1].kw == "ELSE" {
			return nil, NewParseErrorf(it.pos, "%s after ELSE in template %s", kw, name)
		}
		if (kw == "IF") != (len(branches) == 0) {
			return nil, NewParseErrorf(it.pos, "IF must be the first branch in template %s", name)
		}
		switch kw {
		case "ELSE":
			if rest != "" {
				return nil, NewParseErrorf(it.pos, "ELSE does not take a condition in template %s", name)
			}
		}
		branches = append(branches, &branch{kw: kw, condition: rest, indent: it.indent, pos: it.pos})
	}

	var (
		cases []*lg.Case
		def   *lg.NormalBody
	)
	for _, b := range branches {
		if b.kw == "ELSE" {
			def = lg.NewNormalBody(b.pos, b.variants...)
			continue
		}
		c := &lg.Case{Condition: b.condition, Pos: b.pos}
		if len(b.variants) > 0 {
			c.Body = lg.NewNormalBody(b.pos, b.variants...)
		}
		cases = append(cases, c)
	}
	return lg.NewConditionalBody(pos, cases, def), nil
}

// keyword recognizes IF:, ELSEIF:, ELSE IF: and ELSE: in any case and
// returns the normalized keyword and the text after the colon.
func keyword(text string) (string, string, bool) {
	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return "", "", false
	}
	head := strings.ToUpper(strings.Join(strings.Fields(text[:colon]), " "))
	rest := strings.TrimSpace(text[colon+1:])
	switch head {
	case "IF":
		return "IF", rest, true
	case "ELSEIF", "ELSE IF":
		return "ELSEIF", rest, true
	case "ELSE":
		return "ELSE", rest, true
	default:
		return "", "", false
	}
}

// indentOf returns the byte width of leading spaces and tabs.
func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}
