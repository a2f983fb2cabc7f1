package odata

// exprType is the static type of a filter expression.
type exprType int

const (
	typeNull exprType = iota
	typeBool
	typeString
	typeNumber
)

func (t exprType) String() string {
	switch t {
	case typeBool:
		return "Edm.Boolean"
	case typeString:
		return "Edm.String"
	case typeNumber:
		return "numeric"
	}
	return "null"
}

func typeOfEdm(t EdmType) exprType {
	switch {
	case t == EdmBoolean:
		return typeBool
	case t == EdmString:
		return typeString
	case t.numeric():
		return typeNumber
	}
	return typeNull
}

// Expr is a node of a parsed $filter expression.
type Expr interface {
	Type() exprType
}

// Literal holds a string, int64, float64, bool or nil value.
type Literal struct {
	Value any
}

func (l *Literal) Type() exprType {
	switch l.Value.(type) {
	case string:
		return typeString
	case int64, float64:
		return typeNumber
	case bool:
		return typeBool
	}
	return typeNull
}

type PropertyRef struct {
	Property *Property
}

func (p *PropertyRef) Type() exprType { return typeOfEdm(p.Property.Type) }

// Binary is a logical or comparison operator: and, or, eq, ne, gt, ge, lt, le.
type Binary struct {
	Op          string
	Left, Right Expr
}

func (b *Binary) Type() exprType { return typeBool }

type Not struct {
	Operand Expr
}

func (n *Not) Type() exprType { return typeBool }

// Call is a canonical function call.
type Call struct {
	Func string
	Args []Expr
}

func (c *Call) Type() exprType { return functions[c.Func].result }

type signature struct {
	args   []exprType
	result exprType
}

var functions = map[string]signature{
	"contains":   {args: []exprType{typeString, typeString}, result: typeBool},
	"startswith": {args: []exprType{typeString, typeString}, result: typeBool},
	"endswith":   {args: []exprType{typeString, typeString}, result: typeBool},
	"tolower":    {args: []exprType{typeString}, result: typeString},
	"toupper":    {args: []exprType{typeString}, result: typeString},
	"trim":       {args: []exprType{typeString}, result: typeString},
	"length":     {args: []exprType{typeString}, result: typeNumber},
}

var comparisons = map[string]string{
	"eq": "=",
	"ne": "<>",
	"gt": ">",
	"ge": ">=",
	"lt": "<",
	"le": "<=",
}
