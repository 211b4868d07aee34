package lsp

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/starlark"
)

// completionContext is what the cursor is inside of.
type completionContext int

const (
	contextNone completionContext = iota
	contextReference
	contextExpression
	contextKeyword
)

// detectContext classifies the text of the cursor's line before the
// cursor.
func detectContext(prefix string) completionContext {
	openRef := strings.LastIndexByte(prefix, '[')
	openExpr := strings.LastIndexByte(prefix, '{')

	switch {
	case openExpr > openRef && !strings.Contains(prefix[openExpr:], "}"):
		return contextExpression
	case openRef > openExpr && !strings.ContainsAny(prefix[openRef:], "]("):
		return contextReference
	}

	if rest, ok := strings.CutPrefix(strings.TrimSpace(prefix), "-"); ok && isKeywordPrefix(strings.TrimSpace(rest)) {
		return contextKeyword
	}
	return contextNone
}

func isKeywordPrefix(word string) bool {
	word = strings.ToUpper(word)
	for _, kw := range []string{"IF:", "ELSEIF:", "ELSE:"} {
		if strings.HasPrefix(kw, word) {
			return true
		}
	}
	return false
}

func (s *Server) completions(params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return []CompletionItem{}
	}
	p := s.current()

	switch detectContext(doc.LinePrefix(params.Position)) {
	case contextReference:
		return templateCompletions(p)
	case contextExpression:
		return expressionCompletions(p, enclosingHeader(doc, int(params.Position.Line)))
	case contextKeyword:
		return keywordCompletions()
	default:
		return []CompletionItem{}
	}
}

func templateCompletions(p *project) []CompletionItem {
	items := make([]CompletionItem, 0, len(p.templates))
	for _, t := range p.templates {
		items = append(items, CompletionItem{
			Label:      t.Name,
			Kind:       CompletionItemKindFunction,
			Detail:     signature(t),
			InsertText: t.Name + "(",
		})
	}
	sortItems(items)
	return items
}

// enclosingHeader finds the header of the template that line belongs to
// by reading the document, which may not parse while it is being edited.
func enclosingHeader(doc *Document, line int) *lg.Template {
	for i := line; i >= 0; i-- {
		text := doc.Line(i)
		if !strings.HasPrefix(strings.TrimSpace(text), "#") {
			continue
		}
		if name, params, ok := lgfile.ParseHeader(text); ok {
			return &lg.Template{Name: name, Parameters: params}
		}
		return nil
	}
	return nil
}

// expressionCompletions offers the parameters of the enclosing template
// first, then builtins and macros.
func expressionCompletions(p *project, enclosing *lg.Template) []CompletionItem {
	var items []CompletionItem
	if enclosing != nil {
		for _, param := range enclosing.Parameters {
			items = append(items, CompletionItem{
				Label:    param,
				Kind:     CompletionItemKindVariable,
				Detail:   "parameter of " + enclosing.Name,
				SortText: "0" + param,
			})
		}
	}
	for _, name := range starlark.BuiltinNames {
		doc := starlark.BuiltinDocs[name]
		items = append(items, CompletionItem{
			Label:         name,
			Kind:          CompletionItemKindFunction,
			Detail:        doc.Signature,
			Documentation: doc.Description,
			SortText:      "1" + name,
			InsertText:    name + "(",
		})
	}
	for _, f := range p.macros {
		label := f.Namespace + "." + f.Name
		items = append(items, CompletionItem{
			Label:         label,
			Kind:          CompletionItemKindModule,
			Detail:        f.Signature(),
			Documentation: f.Doc,
			SortText:      "2" + label,
			InsertText:    label + "(",
		})
	}
	return items
}

func keywordCompletions() []CompletionItem {
	keywords := []struct{ label, detail string }{
		{"IF:", "first branch of a conditional"},
		{"ELSEIF:", "further branch of a conditional"},
		{"ELSE:", "fallback branch of a conditional"},
	}
	items := make([]CompletionItem, 0, len(keywords))
	for i, k := range keywords {
		items = append(items, CompletionItem{
			Label:    k.label,
			Kind:     CompletionItemKindKeyword,
			Detail:   k.detail,
			SortText: string(rune('0' + i)),
		})
	}
	return items
}

func signature(t *lg.Template) string {
	return t.Name + "(" + strings.Join(t.Parameters, ", ") + ")"
}

func sortItems(items []CompletionItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
}
