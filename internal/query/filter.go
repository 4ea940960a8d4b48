package query

import (
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/atlekbai/query_compiler/internal/filter"
	"github.com/atlekbai/query_compiler/internal/schema"
)

// nullText is the JSON null literal as stored in text or json columns.
const nullText = "null"

// compileOps evaluates the operators of an object in vocabulary order.
func (c *Compiler) compileOps(col schema.Column, ops filter.Ops) (sq.Sqlizer, error) {
	var clauses []sq.Sqlizer
	for _, name := range filter.Operators {
		operand, ok := ops.Get(name)
		if !ok {
			continue
		}
		clause, err := operatorCondition(col, name, operand)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 0 {
		return nil, nil
	}
	if c.strategy == LastWins {
		return clauses[len(clauses)-1], nil
	}
	return conjoin(clauses), nil
}

// operatorCondition returns a Squirrel condition for a single operator.
func operatorCondition(col schema.Column, op filter.Operator, operand any) (sq.Sqlizer, error) {
	ref := col.Ref()

	switch op {
	case filter.OpExists:
		if truthy(operand) {
			return sq.And{sq.NotEq{ref: nil}, sq.Expr(ref+"::text <> ?", nullText)}, nil
		}
		return sq.Or{sq.Eq{ref: nil}, sq.Expr(ref+"::text = ?", nullText)}, nil
	case filter.OpGe, filter.OpGte:
		return sq.GtOrEq{ref: operand}, nil
	case filter.OpGt:
		return sq.Gt{ref: operand}, nil
	case filter.OpLe, filter.OpLte:
		return sq.LtOrEq{ref: operand}, nil
	case filter.OpLt:
		return sq.Lt{ref: operand}, nil
	case filter.OpIn:
		return sq.Eq{ref: asList(operand)}, nil
	case filter.OpNin:
		return sq.NotEq{ref: asList(operand)}, nil
	case filter.OpEq:
		return sq.Eq{ref: operand}, nil
	case filter.OpNe:
		return sq.NotEq{ref: operand}, nil
	case filter.OpLike:
		return sq.Like{ref: substring(operand)}, nil
	case filter.OpIlike:
		return sq.ILike{ref: substring(operand)}, nil
	case filter.OpContains:
		return containsCondition(col, operand)
	default:
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
}

// containsCondition uses @> on json and array columns and a substring match
// on everything else. Array operands are sent as a PostgreSQL array literal.
func containsCondition(col schema.Column, operand any) (sq.Sqlizer, error) {
	ref := col.Ref()

	switch col.Type {
	case schema.ColumnJSON:
		b, err := json.Marshal(operand)
		if err != nil {
			return nil, fmt.Errorf("$contains on %s: %w", ref, err)
		}
		return sq.Expr(ref+" @> ?::jsonb", string(b)), nil
	case schema.ColumnArray:
		return sq.Expr(ref+" @> ?", pq.Array(asList(operand))), nil
	default:
		return sq.Like{ref: substring(operand)}, nil
	}
}

func substring(v any) string {
	return "%" + fmt.Sprint(v) + "%"
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// truthy follows JSON-ish truthiness: null, false, 0 and "" are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
