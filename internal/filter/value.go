package filter

// Value is the right-hand side of a Cond: Scalar, List or Ops.
type Value interface {
	isValue()
}

// Scalar holds nil, string, bool, int64 or float64.
type Scalar struct {
	V any
}

// IsNull reports whether the scalar is JSON null.
func (s Scalar) IsNull() bool { return s.V == nil }

// List is a membership test over scalars.
type List []Scalar

// HasNull reports whether the list contains a null element.
func (l List) HasNull() bool {
	for _, s := range l {
		if s.IsNull() {
			return true
		}
	}
	return false
}

// Values returns the non-null elements.
func (l List) Values() []any {
	out := make([]any, 0, len(l))
	for _, s := range l {
		if !s.IsNull() {
			out = append(out, s.V)
		}
	}
	return out
}

// Ops is an operator object, e.g. {"$gte": 1}. Entries keep input order;
// evaluation order is defined by Operators.
type Ops []Op

// Op is one operator with its operand (a scalar, a []any or a map for $contains).
type Op struct {
	Name    Operator
	Operand any
}

// Get returns the operand of name and whether it is present.
func (o Ops) Get(name Operator) (any, bool) {
	for _, op := range o {
		if op.Name == name {
			return op.Operand, true
		}
	}
	return nil, false
}

func (Scalar) isValue() {}
func (List) isValue()   {}
func (Ops) isValue()    {}

// Operator is a key of an operator object.
type Operator string

const (
	OpExists   Operator = "$exists"
	OpGe       Operator = "$ge"
	OpGte      Operator = "$gte"
	OpGt       Operator = "$gt"
	OpLe       Operator = "$le"
	OpLte      Operator = "$lte"
	OpLt       Operator = "$lt"
	OpIn       Operator = "$in"
	OpNin      Operator = "$nin"
	OpEq       Operator = "$eq"
	OpNe       Operator = "$ne"
	OpLike     Operator = "$like"
	OpIlike    Operator = "$ilike"
	OpContains Operator = "$contains"
)

// Operators lists the vocabulary in evaluation order.
var Operators = []Operator{
	OpExists,
	OpGe, OpGte, OpGt,
	OpLe, OpLte, OpLt,
	OpIn, OpNin,
	OpEq, OpNe,
	OpLike, OpIlike, OpContains,
}

// IsOperator reports whether name belongs to the vocabulary.
func IsOperator(name string) bool {
	for _, op := range Operators {
		if string(op) == name {
			return true
		}
	}
	return false
}
