package lsp

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/macro"
	"github.com/leapstack-labs/leaplg/internal/starlark"
)

// hover describes the template, macro or builtin under the cursor. It
// returns nil when there is nothing to describe.
func (s *Server) hover(params HoverParams) *Hover {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}
	name, rng := doc.NameAt(params.Position)
	if name == "" {
		return nil
	}
	p := s.current()

	var b strings.Builder
	if t, ok := p.templates[name]; ok {
		fmt.Fprintf(&b, "```\n# %s\n```\n\n%s", signature(t), describeBody(t))
		if t.Pos.File != "" {
			fmt.Fprintf(&b, "\n\nDeclared in `%s` line %d", filepath.Base(t.Pos.File), t.Pos.Line)
		}
	} else if f := p.macro(name); f != nil {
		fmt.Fprintf(&b, "```python\n%s\n```", f.Signature())
		if f.Doc != "" {
			b.WriteString("\n\n" + f.Doc)
		}
	} else if bd, ok := starlark.BuiltinDocs[name]; ok {
		fmt.Fprintf(&b, "```python\n%s\n```\n\n%s", bd.Signature, bd.Description)
	} else {
		return nil
	}

	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: b.String()},
		Range:    &rng,
	}
}

func describeBody(t *lg.Template) string {
	switch body := t.Body.(type) {
	case *lg.NormalBody:
		if n := len(body.Variants); n != 1 {
			return fmt.Sprintf("%d variants, one chosen at random", n)
		}
		return "1 variant"
	case *lg.ConditionalBody:
		desc := fmt.Sprintf("conditional with %d branches", len(body.Cases))
		if body.Default != nil {
			desc += " and ELSE"
		}
		return desc
	default:
		return "no body"
	}
}

// definition returns where the template or macro under the cursor is
// declared, or nil.
func (s *Server) definition(params DefinitionParams) *Location {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}
	name, _ := doc.NameAt(params.Position)
	if name == "" {
		return nil
	}
	p := s.current()

	if t, ok := p.templates[name]; ok && t.Pos.File != "" {
		return &Location{URI: PathToURI(t.Pos.File), Range: pointRange(toProtocolPosition(t.Pos))}
	}
	if f := p.macro(name); f != nil {
		path := filepath.Join(p.macrosDir, f.Namespace+macro.Ext)
		return &Location{URI: PathToURI(path), Range: pointRange(Position{Line: uint32(max(f.Line-1, 0))})} //nolint:gosec // G115: clamped
	}
	return nil
}

func pointRange(pos Position) Range {
	return Range{Start: pos, End: pos}
}
