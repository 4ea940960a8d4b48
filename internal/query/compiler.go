// Package query compiles parsed list payloads into squirrel predicate trees and
// SELECT/COUNT queries.
package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_compiler/internal/filter"
	"github.com/atlekbai/query_compiler/internal/schema"
)

// Strategy decides how an operator object with several operators compiles.
type Strategy int

const (
	// LastWins keeps only the clause of the last operator present, in
	// vocabulary order: {"$gte": 1, "$lte": 5} compiles to <= 5.
	LastWins Strategy = iota
	// Conjunctive ANDs the clauses of every operator present.
	Conjunctive
)

func (s Strategy) String() string {
	switch s {
	case LastWins:
		return "last_wins"
	case Conjunctive:
		return "conjunctive"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Compiler turns payloads into queries. It holds no per-request state and is
// safe for concurrent use.
type Compiler struct {
	strategy Strategy
}

type Option func(*Compiler)

// WithOperatorStrategy sets how multi-operator objects compile.
func WithOperatorStrategy(s Strategy) Option {
	return func(c *Compiler) { c.strategy = s }
}

func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{strategy: LastWins}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCompiler = NewCompiler()

// Predicate compiles f against d. A nil result means f places no restriction.
func (c *Compiler) Predicate(d Descriptor, joins JoinMap, f filter.Filter) (sq.Sqlizer, error) {
	clauses, err := c.compileExprs(d, joins, f)
	if err != nil {
		return nil, err
	}
	return conjoin(clauses), nil
}

func (c *Compiler) compileExprs(d Descriptor, joins JoinMap, exprs []filter.Expr) ([]sq.Sqlizer, error) {
	var clauses []sq.Sqlizer
	for _, e := range exprs {
		var (
			clause sq.Sqlizer
			err    error
		)
		switch n := e.(type) {
		case filter.And:
			var sub []sq.Sqlizer
			if sub, err = c.compileExprs(d, joins, n.Terms); err == nil && len(sub) > 0 {
				clause = sq.And(sub)
			}
		case filter.Or:
			var sub []sq.Sqlizer
			if sub, err = c.compileExprs(d, joins, n.Terms); err == nil && len(sub) > 0 {
				clause = sq.Or(sub)
			}
		case filter.Join:
			clause, err = c.compileJoin(d, joins, n)
		case filter.Cond:
			clause, err = c.compileCond(d, n)
		default:
			err = fmt.Errorf("unsupported filter node %T", e)
		}
		if err != nil {
			return nil, err
		}
		if clause != nil {
			clauses = append(clauses, clause)
		}
	}
	return clauses, nil
}

// compileJoin compiles a routed sub-filter against the related descriptor,
// using that descriptor's own field names.
func (c *Compiler) compileJoin(d Descriptor, joins JoinMap, n filter.Join) (sq.Sqlizer, error) {
	related, ok := Route(joins, n.Key)
	if !ok {
		if _, err := d.Column(n.Key); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %q is not a join key", schema.ErrUnknownField, n.Key)
	}
	sub, err := c.compileExprs(related, joins, n.Filter)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", n.Key, err)
	}
	return conjoin(sub), nil
}

func (c *Compiler) compileCond(d Descriptor, n filter.Cond) (sq.Sqlizer, error) {
	col, err := d.Column(n.Field)
	if err != nil {
		return nil, err
	}
	ref := col.Ref()

	switch v := n.Value.(type) {
	case filter.List:
		switch {
		case len(v) == 1 && v[0].IsNull():
			return sq.Eq{ref: nil}, nil
		case v.HasNull():
			return sq.Or{sq.Eq{ref: nil}, sq.Eq{ref: v.Values()}}, nil
		default:
			return sq.Eq{ref: v.Values()}, nil
		}
	case filter.Scalar:
		// Null renders as IS NULL; every other scalar, identifier or not, is equality.
		return sq.Eq{ref: v.V}, nil
	case filter.Ops:
		return c.compileOps(col, v)
	default:
		return nil, fmt.Errorf("unsupported value %T for field %q", n.Value, n.Field)
	}
}

// conjoin folds clauses into a single predicate.
func conjoin(clauses []sq.Sqlizer) sq.Sqlizer {
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return sq.And(clauses)
	}
}
