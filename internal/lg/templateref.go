package lg

import (
	"regexp"
	"strings"
)

// multiLineSubst matches @{...} substitutions inside multi-line text.
var multiLineSubst = regexp.MustCompile(`@\{[^{}]+\}`)

// refCall is a template reference split into its parts.
type refCall struct {
	Name    string
	Args    []string
	HasArgs bool
}

// parseTemplateRef splits "[Name]" or "[Name(a, b)]" into a refCall.
func parseTemplateRef(pos Position, raw string) (refCall, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")
	text = strings.TrimSpace(text)

	open := strings.IndexByte(text, '(')
	if open < 0 {
		if text == "" {
			return refCall{}, NewMalformedTemplateRefError(pos, raw, "empty template name")
		}
		if strings.ContainsRune(text, ')') {
			return refCall{}, NewMalformedTemplateRefError(pos, raw, "unbalanced parentheses")
		}
		return refCall{Name: text}, nil
	}
	if open == 0 {
		return refCall{}, NewMalformedTemplateRefError(pos, raw, "empty template name")
	}

	closing := strings.LastIndexByte(text, ')')
	if closing < open {
		return refCall{}, NewMalformedTemplateRefError(pos, raw, "unbalanced parentheses")
	}
	if strings.TrimSpace(text[closing+1:]) != "" {
		return refCall{}, NewMalformedTemplateRefError(pos, raw, "unexpected text after argument list")
	}

	args, ok := splitArgs(text[open+1 : closing])
	if !ok {
		return refCall{}, NewMalformedTemplateRefError(pos, raw, "unbalanced argument list")
	}
	return refCall{
		Name:    strings.TrimSpace(text[:open]),
		Args:    args,
		HasArgs: true,
	}, nil
}

// splitArgs splits an argument list on commas at nesting depth zero,
// ignoring commas inside (), [], {} and quoted strings.
// An empty or blank list yields no arguments.
func splitArgs(s string) ([]string, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}

	var (
		args  []string
		depth int
		quote rune
		start int
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			switch r {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			quote = r
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, false
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(string(runes[start:i])))
				start = i + 1
			}
		}
	}
	if depth != 0 || quote != 0 {
		return nil, false
	}
	args = append(args, strings.TrimSpace(string(runes[start:])))
	return args, true
}

// stripExpression removes an optional leading '@' and one layer of braces.
func stripExpression(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "@")
	text = strings.TrimPrefix(text, "{")
	text = strings.TrimSuffix(text, "}")
	return strings.TrimSpace(text)
}

// stripMultiLine removes the ``` delimiters from both ends.
func stripMultiLine(raw string) string {
	text := strings.TrimPrefix(raw, "```")
	return strings.TrimSuffix(text, "```")
}

// multiLinePart is either a literal run or an @{...} substitution.
type multiLinePart struct {
	Text    string
	Subst   bool
	IsRef   bool   // substitution of the form @{[...]}
	Content string // expression text or template ref text
}

// splitMultiLine breaks multi-line text into literal and substitution parts.
func splitMultiLine(raw string) []multiLinePart {
	text := stripMultiLine(raw)
	var parts []multiLinePart
	last := 0
	for _, m := range multiLineSubst.FindAllStringIndex(text, -1) {
		if m[0] > last {
			parts = append(parts, multiLinePart{Text: text[last:m[0]]})
		}
		token := text[m[0]:m[1]]
		inner := token[1:] // drop '@', keep braces
		part := multiLinePart{Text: token, Subst: true}
		if strings.HasPrefix(inner, "{[") && strings.HasSuffix(inner, "]}") {
			part.IsRef = true
			part.Content = inner[1 : len(inner)-1]
		} else {
			part.Content = inner
		}
		parts = append(parts, part)
		last = m[1]
	}
	if last < len(text) {
		parts = append(parts, multiLinePart{Text: text[last:]})
	}
	return parts
}

// References returns the names of the templates t calls directly, in
// order of first use. Malformed references are skipped; Check reports
// them.
func References(t *Template) []string {
	var (
		names []string
		seen  = map[string]bool{}
	)
	add := func(pos Position, raw string) {
		ref, err := parseTemplateRef(pos, raw)
		if err != nil || seen[ref.Name] {
			return
		}
		seen[ref.Name] = true
		names = append(names, ref.Name)
	}

	var bodies []*NormalBody
	switch body := t.Body.(type) {
	case *NormalBody:
		bodies = append(bodies, body)
	case *ConditionalBody:
		for _, c := range body.Cases {
			bodies = append(bodies, c.Body)
		}
		bodies = append(bodies, body.Default)
	}

	for _, b := range bodies {
		if b == nil {
			continue
		}
		for _, v := range b.Variants {
			for _, seg := range v.Segments {
				switch s := seg.(type) {
				case *TemplateRef:
					add(s.Pos(), s.Raw)
				case *MultiLineText:
					for _, part := range splitMultiLine(s.Raw) {
						if part.IsRef {
							add(s.Pos(), part.Content)
						}
					}
				}
			}
		}
	}
	return names
}
