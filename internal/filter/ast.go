package filter

// Expr is one entry of a filter mapping. The set of implementations is closed:
// And, Or, Cond and Join.
type Expr interface {
	isExpr()
}

// Filter is a filter mapping: its entries in input order. Top-level entries are
// conjoined. An empty Filter matches every row.
type Filter []Expr

// And conjoins Terms. Terms holds the entries of every sub-filter object of a
// "$and" array, flattened in order.
type And struct {
	Terms []Expr
}

// Or disjoins Terms, flattened the same way as And.
type Or struct {
	Terms []Expr
}

// Cond applies Value to the column named Field.
type Cond struct {
	Field string
	Value Value
}

// Join routes Filter to the related model registered under Key (e.g. "$author").
type Join struct {
	Key    string
	Filter Filter
}

func (And) isExpr()  {}
func (Or) isExpr()   {}
func (Cond) isExpr() {}
func (Join) isExpr() {}

// Reserved filter keys.
const (
	KeyAnd = "$and"
	KeyOr  = "$or"
)

// JoinKeys returns the distinct join keys referenced anywhere in f, in order of
// first appearance.
func (f Filter) JoinKeys() []string {
	var (
		keys []string
		seen = make(map[string]bool)
	)
	var walk func(exprs []Expr)
	walk = func(exprs []Expr) {
		for _, e := range exprs {
			switch n := e.(type) {
			case And:
				walk(n.Terms)
			case Or:
				walk(n.Terms)
			case Join:
				if !seen[n.Key] {
					seen[n.Key] = true
					keys = append(keys, n.Key)
				}
				walk(n.Filter)
			}
		}
	}
	walk(f)
	return keys
}
