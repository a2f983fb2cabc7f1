package odata

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/CiscoM31/godata"
)

// ParseFilter parses a $filter expression with godata and type-checks the resulting tree
// against et.
func ParseFilter(ctx context.Context, src string, et *EntityType) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	q, err := godata.ParseFilterString(ctx, src)
	if err != nil {
		return nil, err
	}
	if q == nil || q.Tree == nil {
		return nil, fmt.Errorf("empty expression")
	}
	c := &checker{et: et}
	e, err := c.convert(q.Tree)
	if err != nil {
		return nil, err
	}
	if e.Type() != typeBool {
		return nil, fmt.Errorf("filter expression must be Edm.Boolean, got %s", e.Type())
	}
	return e, nil
}

// checker turns a godata parse tree into a typed Expr, resolving identifiers against et.
type checker struct {
	et *EntityType
}

func (c *checker) convert(n *godata.ParseNode) (Expr, error) {
	if n == nil || n.Token == nil {
		return nil, fmt.Errorf("incomplete expression")
	}
	tok := n.Token
	switch tok.Type {
	case godata.ExpressionTokenLogical:
		return c.convertOperator(n)
	case godata.ExpressionTokenFunc:
		return c.convertCall(n)
	case godata.ExpressionTokenLiteral:
		if len(n.Children) > 0 {
			return nil, fmt.Errorf("unknown function '%s'", tok.Value)
		}
		prop, ok := c.et.Property(tok.Value)
		if !ok {
			return nil, fmt.Errorf("could not find a property named '%s' on type '%s'", tok.Value, c.et.Name)
		}
		return &PropertyRef{Property: prop}, nil
	case godata.ExpressionTokenString:
		s, err := unquote(tok.Value)
		if err != nil {
			return nil, err
		}
		return &Literal{Value: s}, nil
	case godata.ExpressionTokenInteger:
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer literal %s out of range", tok.Value)
		}
		return &Literal{Value: v}, nil
	case godata.ExpressionTokenFloat:
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed decimal literal %s", tok.Value)
		}
		return &Literal{Value: v}, nil
	case godata.ExpressionTokenBoolean:
		return &Literal{Value: strings.EqualFold(tok.Value, "true")}, nil
	case godata.ExpressionTokenNull:
		return &Literal{Value: nil}, nil
	case godata.ExpressionTokenNav:
		return nil, fmt.Errorf("property paths are not supported in $filter")
	}
	return nil, fmt.Errorf("unsupported token '%s'", tok.Value)
}

func (c *checker) operands(n *godata.ParseNode, want int) ([]Expr, error) {
	if len(n.Children) != want {
		return nil, fmt.Errorf("operator %s expects %d operands, got %d", n.Token.Value, want, len(n.Children))
	}
	args := make([]Expr, want)
	for i, child := range n.Children {
		e, err := c.convert(child)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	return args, nil
}

func (c *checker) convertOperator(n *godata.ParseNode) (Expr, error) {
	op := strings.ToLower(n.Token.Value)
	switch op {
	case "not":
		args, err := c.operands(n, 1)
		if err != nil {
			return nil, err
		}
		if args[0].Type() != typeBool {
			return nil, fmt.Errorf("operand of not must be Edm.Boolean")
		}
		return &Not{Operand: args[0]}, nil
	case "and", "or":
		args, err := c.operands(n, 2)
		if err != nil {
			return nil, err
		}
		if args[0].Type() != typeBool || args[1].Type() != typeBool {
			return nil, fmt.Errorf("operands of %s must be Edm.Boolean", op)
		}
		return &Binary{Op: op, Left: args[0], Right: args[1]}, nil
	}
	if _, ok := comparisons[op]; !ok {
		return nil, fmt.Errorf("unsupported operator '%s'", n.Token.Value)
	}
	args, err := c.operands(n, 2)
	if err != nil {
		return nil, err
	}
	if err := checkComparison(op, args[0], args[1]); err != nil {
		return nil, err
	}
	return &Binary{Op: op, Left: args[0], Right: args[1]}, nil
}

func checkComparison(op string, left, right Expr) error {
	lt, rt := left.Type(), right.Type()
	if lt == typeNull || rt == typeNull {
		if op != "eq" && op != "ne" {
			return fmt.Errorf("null can only be compared with eq or ne")
		}
		return nil
	}
	if lt != rt {
		return fmt.Errorf("cannot compare %s with %s", lt, rt)
	}
	if lt == typeBool && op != "eq" && op != "ne" {
		return fmt.Errorf("Edm.Boolean values can only be compared with eq or ne")
	}
	return nil
}

func (c *checker) convertCall(n *godata.ParseNode) (Expr, error) {
	name := strings.ToLower(n.Token.Value)
	sig, ok := functions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function '%s'", n.Token.Value)
	}
	if len(n.Children) != len(sig.args) {
		return nil, fmt.Errorf("function '%s' takes %d arguments, got %d", name, len(sig.args), len(n.Children))
	}
	args, err := c.operands(n, len(sig.args))
	if err != nil {
		return nil, err
	}
	for i, arg := range args {
		if arg.Type() != sig.args[i] {
			return nil, fmt.Errorf("argument %d of '%s' must be %s", i+1, name, sig.args[i])
		}
	}
	if sig.result == typeBool {
		// pattern functions bind their second argument as a LIKE pattern
		if _, ok := args[1].(*Literal); !ok {
			return nil, fmt.Errorf("the second argument of '%s' must be a string literal", name)
		}
	}
	return &Call{Func: name, Args: args}, nil
}

// unquote strips the quotes of an OData string literal and collapses doubled quotes.
func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", fmt.Errorf("malformed string literal %s", s)
	}
	return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), nil
}
