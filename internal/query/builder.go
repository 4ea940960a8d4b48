package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_compiler/internal/filter"
	"github.com/atlekbai/query_compiler/internal/schema"
)

// Builder generates SQL for a compiled query.
type Builder interface {
	Builder() sq.SelectBuilder
	ToSql() (string, []any, error)
}

// Query is a compiled data query against one table.
type Query struct {
	Table   string
	ID      schema.Column
	Columns []string
	Where   sq.Sqlizer
	Order   *OrderClause
	Page    Page
}

// Builder returns the SELECT with predicate, ordering and window applied.
func (q *Query) Builder() sq.SelectBuilder {
	qb := sq.Select(q.Columns...).From(q.Table).PlaceholderFormat(sq.Dollar)
	if q.Where != nil {
		qb = qb.Where(q.Where)
	}
	return q.window(qb)
}

// JoinedBuilder is Builder for a predicate routed through a JoinMap. The JOINs
// and predicate go into an identifier semi-join, so each root row is returned
// once and ordering and projection stay on the root table.
func (q *Query) JoinedBuilder(joins []string) sq.SelectBuilder {
	if len(joins) == 0 {
		return q.Builder()
	}
	inner := sq.Select(q.ID.Ref()).From(q.Table)
	for _, j := range joins {
		inner = inner.Join(j)
	}
	if q.Where != nil {
		inner = inner.Where(q.Where)
	}
	qb := sq.Select(q.Columns...).
		From(q.Table).
		Where(sq.Expr(q.ID.Ref()+" IN (?)", inner)).
		PlaceholderFormat(sq.Dollar)
	return q.window(qb)
}

func (q *Query) window(qb sq.SelectBuilder) sq.SelectBuilder {
	if q.Order != nil {
		qb = qb.OrderBy(q.Order.String())
	}
	if q.Page.Limited {
		qb = qb.Offset(q.Page.Offset()).Limit(q.Page.Limit())
	}
	return qb
}

func (q *Query) ToSql() (string, []any, error) {
	return q.Builder().ToSql()
}

// CountQuery counts distinct identifiers under a predicate.
type CountQuery struct {
	Table string
	ID    schema.Column
	Where sq.Sqlizer
}

func (q *CountQuery) Builder() sq.SelectBuilder {
	qb := sq.Select(fmt.Sprintf("count(DISTINCT %s)", q.ID.Ref())).
		From(q.Table).
		PlaceholderFormat(sq.Dollar)
	if q.Where != nil {
		qb = qb.Where(q.Where)
	}
	return qb
}

func (q *CountQuery) ToSql() (string, []any, error) {
	return q.Builder().ToSql()
}

// Assemble builds the data query. fields is an optional projection; identifier
// and audit columns are only selected when listed.
func Assemble(d Descriptor, where sq.Sqlizer, order *OrderClause, page Page, fields []string) (*Query, error) {
	columns, err := resolveColumns(d, fields)
	if err != nil {
		return nil, err
	}
	return &Query{
		Table:   d.TableName(),
		ID:      d.IDColumn(),
		Columns: columns,
		Where:   where,
		Order:   order,
		Page:    page,
	}, nil
}

// AssembleCount builds the count query; sort, range and projection do not apply.
func AssembleCount(d Descriptor, where sq.Sqlizer) *CountQuery {
	return &CountQuery{
		Table: d.TableName(),
		ID:    d.IDColumn(),
		Where: where,
	}
}

// CompileCount compiles the count query of a payload.
func (c *Compiler) CompileCount(d Descriptor, joins JoinMap, p *filter.Payload) (*CountQuery, error) {
	where, err := c.Predicate(d, joins, p.Filter)
	if err != nil {
		return nil, err
	}
	return AssembleCount(d, where), nil
}

// CompileQuery compiles the data query of a payload. total is the row count
// reported when the payload has no range; start and end are the window
// reported back to the client.
func (c *Compiler) CompileQuery(d Descriptor, joins JoinMap, p *filter.Payload, total int64) (start, end int64, q *Query, err error) {
	where, err := c.Predicate(d, joins, p.Filter)
	if err != nil {
		return 0, 0, nil, err
	}
	order, err := Sort(d, p.Sort)
	if err != nil {
		return 0, 0, nil, err
	}
	page, err := Range(p.Range, total)
	if err != nil {
		return 0, 0, nil, err
	}
	q, err = Assemble(d, where, order, page, p.Fields)
	if err != nil {
		return 0, 0, nil, err
	}
	return page.Start, page.End, q, nil
}

// CompileCount compiles with the default (last-wins) compiler.
func CompileCount(d Descriptor, joins JoinMap, p *filter.Payload) (*CountQuery, error) {
	return defaultCompiler.CompileCount(d, joins, p)
}

// CompileQuery compiles with the default (last-wins) compiler.
func CompileQuery(d Descriptor, joins JoinMap, p *filter.Payload, total int64) (start, end int64, q *Query, err error) {
	return defaultCompiler.CompileQuery(d, joins, p, total)
}
