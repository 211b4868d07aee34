package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/syntax"
)

// Function describes one public function of a macro file.
type Function struct {
	Name      string   `json:"name"`
	Params    []string `json:"params"` // with defaults, e.g. "sep=\", \""
	Doc       string   `json:"doc,omitempty"`
	Line      int      `json:"line"`
	Namespace string   `json:"namespace"`
}

// Signature renders the call form, e.g. text.title(s).
func (f *Function) Signature() string {
	return f.Namespace + "." + f.Name + "(" + strings.Join(f.Params, ", ") + ")"
}

// Describe lists the public functions of a macro file without executing it.
func Describe(path string, content []byte) ([]*Function, error) {
	f, err := (&syntax.FileOptions{}).Parse(path, content, 0)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	namespace := strings.TrimSuffix(filepath.Base(path), Ext)
	var funcs []*Function
	for _, stmt := range f.Stmts {
		def, ok := stmt.(*syntax.DefStmt)
		if !ok || strings.HasPrefix(def.Name.Name, "_") {
			continue
		}
		funcs = append(funcs, &Function{
			Name:      def.Name.Name,
			Params:    params(def.Params),
			Doc:       docstring(def.Body),
			Line:      int(def.Name.NamePos.Line),
			Namespace: namespace,
		})
	}
	return funcs, nil
}

// DescribeDir describes every macro file in dir, in name order.
func DescribeDir(dir string) ([]*Function, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}
	var all []*Function
	for _, file := range files {
		content, err := os.ReadFile(file) //nolint:gosec // G304: path comes from the macros directory
		if err != nil {
			return nil, &LoadError{File: file, Message: fmt.Sprintf("failed to read file: %v", err)}
		}
		funcs, err := Describe(file, content)
		if err != nil {
			return nil, err
		}
		all = append(all, funcs...)
	}
	return all, nil
}

func params(exprs []syntax.Expr) []string {
	var out []string
	for _, param := range exprs {
		switch p := param.(type) {
		case *syntax.Ident:
			out = append(out, p.Name)
		case *syntax.BinaryExpr:
			if ident, ok := p.X.(*syntax.Ident); ok && p.Op == syntax.EQ {
				out = append(out, ident.Name+"="+exprString(p.Y))
			}
		case *syntax.UnaryExpr:
			ident, ok := p.X.(*syntax.Ident)
			if !ok {
				continue
			}
			switch p.Op {
			case syntax.STAR:
				out = append(out, "*"+ident.Name)
			case syntax.STARSTAR:
				out = append(out, "**"+ident.Name)
			default:
				out = append(out, ident.Name)
			}
		}
	}
	return out
}

// docstring returns the leading string literal of a function body.
func docstring(body []syntax.Stmt) string {
	if len(body) == 0 {
		return ""
	}
	stmt, ok := body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := stmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	s, _ := lit.Value.(string)
	return strings.TrimSpace(s)
}

func exprString(e syntax.Expr) string {
	switch v := e.(type) {
	case *syntax.Literal:
		return v.Raw
	case *syntax.Ident:
		return v.Name
	case *syntax.ListExpr:
		return "[]"
	case *syntax.DictExpr:
		return "{}"
	case *syntax.TupleExpr:
		return "()"
	case *syntax.UnaryExpr:
		if v.Op == syntax.MINUS {
			return "-" + exprString(v.X)
		}
		return exprString(v.X)
	default:
		return "..."
	}
}
