// Package store runs compiled list queries against PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/query_compiler/internal/filter"
	"github.com/atlekbai/query_compiler/internal/query"
	"github.com/atlekbai/query_compiler/internal/schema"
)

// Drivers accepted by Open: "pgx" (jackc/pgx stdlib) and "postgres" (lib/pq).
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// Open opens and pings a database handle.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return db, nil
}

// ListResult is the envelope reported with a page of rows. Skip and Limit are
// absent when the request had no range.
type ListResult struct {
	Total int64  `json:"total"`
	Skip  *int64 `json:"skip"`
	Limit *int64 `json:"limit"`
}

// Request is one list request against Model. JoinClauses are the JOINs (without
// the JOIN keyword) matching the keys of Joins that the filter uses.
type Request struct {
	Model       query.Descriptor
	Joins       query.JoinMap
	JoinClauses []string
	Payload     *filter.Payload
}

// Page is a fetched window of rows. Start and End are the reported bounds.
type Page struct {
	ListResult
	Start int64
	End   int64
	Rows  []map[string]any
}

type Store struct {
	db       *sql.DB
	compiler *query.Compiler
}

// New returns a store using the default (last-wins) compiler unless one is given.
func New(db *sql.DB, compiler *query.Compiler) *Store {
	if compiler == nil {
		compiler = query.NewCompiler()
	}
	return &Store{db: db, compiler: compiler}
}

// Count runs a count query with the given JOINs.
func (s *Store) Count(ctx context.Context, cq *query.CountQuery, joins []string) (int64, error) {
	qb := cq.Builder()
	for _, j := range joins {
		qb = qb.Join(j)
	}
	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build count query")
	}
	logrus.WithFields(logrus.Fields{"sql": sqlStr, "args": len(args)}).Debug("count query")

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count query")
	}
	return count, nil
}

// List runs a data query. With joins, root rows are filtered through an
// identifier semi-join so each appears once.
func (s *Store) List(ctx context.Context, q *query.Query, joins []string) ([]map[string]any, error) {
	return s.selectRows(ctx, q.JoinedBuilder(joins))
}

func (s *Store) selectRows(ctx context.Context, qb sq.SelectBuilder) ([]map[string]any, error) {
	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}
	logrus.WithFields(logrus.Fields{"sql": sqlStr, "args": len(args)}).Debug("list query")

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list query")
	}
	defer rows.Close()

	return scanRows(rows)
}

// Total compiles and runs the count query of req.
func (s *Store) Total(ctx context.Context, req Request) (int64, error) {
	cq, err := s.compiler.CompileCount(req.Model, req.Joins, req.Payload)
	if err != nil {
		return 0, err
	}
	return s.Count(ctx, cq, req.JoinClauses)
}

// Find counts and fetches one page. Both queries are compiled before either
// runs. With an explicit range the window does not depend on the total, so
// they run concurrently; otherwise the total bounds the reported window.
func (s *Store) Find(ctx context.Context, req Request) (*Page, error) {
	cq, err := s.compiler.CompileCount(req.Model, req.Joins, req.Payload)
	if err != nil {
		return nil, err
	}
	start, end, q, err := s.compiler.CompileQuery(req.Model, req.Joins, req.Payload, 0)
	if err != nil {
		return nil, err
	}

	page := &Page{Start: start, End: end}
	if q.Page.Limited {
		skip, limit := int64(q.Page.Offset()), int64(q.Page.Limit())
		page.Skip, page.Limit = &skip, &limit
	}

	if !q.Page.Limited {
		if page.Total, err = s.Count(ctx, cq, req.JoinClauses); err != nil {
			return nil, err
		}
		page.End = page.Total
		if page.Rows, err = s.List(ctx, q, req.JoinClauses); err != nil {
			return nil, err
		}
		return page, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page.Total, err = s.Count(gctx, cq, req.JoinClauses)
		return err
	})
	g.Go(func() error {
		var err error
		page.Rows, err = s.List(gctx, q, req.JoinClauses)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

// scanRows reads every row into a column-name keyed map. Text and json come
// back from the driver as []byte and are returned as strings.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "list columns")
	}

	results := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list rows")
	}
	return results, nil
}

// JoinClause renders the JOIN target bringing far into a query on table, e.g.
// `"author" ON "author"."article_id" = "article"."id"`.
func JoinClause(far query.Descriptor, rel schema.Relation, table string) string {
	farCol, nearCol := rel.Ends(table)
	return fmt.Sprintf("%s ON %s = %s", far.TableName(), farCol.Ref(), nearCol.Ref())
}
