package odata

import (
	"fmt"
	"strings"

	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbmanager"
)

// SQLDialect is the part of a database dialect used to render filters.
type SQLDialect interface {
	LikeEscape() string
	CharLength() string
}

var _ SQLDialect = (dbmanager.Dialect)(nil)

// RenderFilter translates a parsed filter into a WHERE clause with ? placeholders. Only
// columns of declared properties appear in the output; every literal is bound.
func RenderFilter(e Expr, d SQLDialect) (string, []any, error) {
	r := &renderer{d: d}
	if err := r.render(e, false); err != nil {
		return "", nil, err
	}
	return r.b.String(), r.args, nil
}

type renderer struct {
	d    SQLDialect
	b    strings.Builder
	args []any
}

func (r *renderer) bind(v any) {
	r.b.WriteByte('?')
	r.args = append(r.args, v)
}

// render writes e; nested logical operators are parenthesized.
func (r *renderer) render(e Expr, nested bool) error {
	switch n := e.(type) {
	case *Literal:
		if n.Value == nil {
			r.b.WriteString("NULL")
			return nil
		}
		r.bind(n.Value)
	case *PropertyRef:
		r.b.WriteString(n.Property.Column)
	case *Not:
		r.b.WriteString("NOT (")
		if err := r.render(n.Operand, false); err != nil {
			return err
		}
		r.b.WriteByte(')')
	case *Binary:
		return r.renderBinary(n, nested)
	case *Call:
		return r.renderCall(n)
	default:
		return fmt.Errorf("unsupported expression %T", e)
	}
	return nil
}

func (r *renderer) renderBinary(n *Binary, nested bool) error {
	if n.Op == "and" || n.Op == "or" {
		if nested {
			r.b.WriteByte('(')
		}
		if err := r.render(n.Left, true); err != nil {
			return err
		}
		r.b.WriteString(" " + strings.ToUpper(n.Op) + " ")
		if err := r.render(n.Right, true); err != nil {
			return err
		}
		if nested {
			r.b.WriteByte(')')
		}
		return nil
	}

	left, right := n.Left, n.Right
	if isNull(left) {
		left, right = right, left
	}
	if isNull(right) {
		if isNull(left) {
			if n.Op == "eq" {
				r.b.WriteString("1 = 1")
			} else {
				r.b.WriteString("1 = 0")
			}
			return nil
		}
		if err := r.render(left, true); err != nil {
			return err
		}
		if n.Op == "eq" {
			r.b.WriteString(" IS NULL")
		} else {
			r.b.WriteString(" IS NOT NULL")
		}
		return nil
	}

	if err := r.renderOperand(left); err != nil {
		return err
	}
	r.b.WriteString(" " + comparisons[n.Op] + " ")
	return r.renderOperand(right)
}

// renderOperand writes a comparison operand. Operands that are themselves comparisons are
// parenthesized, as PostgreSQL gives all comparison operators the same precedence.
func (r *renderer) renderOperand(e Expr) error {
	b, ok := e.(*Binary)
	if !ok || b.Op == "and" || b.Op == "or" {
		return r.render(e, true)
	}
	r.b.WriteByte('(')
	if err := r.render(b, false); err != nil {
		return err
	}
	r.b.WriteByte(')')
	return nil
}

func (r *renderer) renderCall(n *Call) error {
	switch n.Func {
	case "contains", "startswith", "endswith":
		if err := r.render(n.Args[0], true); err != nil {
			return err
		}
		pattern := escapeLike(n.Args[1].(*Literal).Value.(string))
		switch n.Func {
		case "contains":
			pattern = "%" + pattern + "%"
		case "startswith":
			pattern = pattern + "%"
		case "endswith":
			pattern = "%" + pattern
		}
		r.b.WriteString(" LIKE ")
		r.bind(pattern)
		r.b.WriteString(r.d.LikeEscape())
		return nil
	}

	fn := map[string]string{
		"tolower": "LOWER",
		"toupper": "UPPER",
		"trim":    "TRIM",
		"length":  r.d.CharLength(),
	}[n.Func]
	if fn == "" {
		return fmt.Errorf("unsupported function %s", n.Func)
	}
	r.b.WriteString(fn + "(")
	for i, arg := range n.Args {
		if i > 0 {
			r.b.WriteString(", ")
		}
		if err := r.render(arg, false); err != nil {
			return err
		}
	}
	r.b.WriteByte(')')
	return nil
}

func isNull(e Expr) bool {
	l, ok := e.(*Literal)
	return ok && l.Value == nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
