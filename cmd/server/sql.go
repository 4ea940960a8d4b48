package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atlekbai/query_compiler/internal/grammar"
	"github.com/atlekbai/query_compiler/internal/query"
	"github.com/atlekbai/query_compiler/internal/schema"
)

type sqlOptions struct {
	schema      string
	table       string
	id          string
	columns     string
	filter      string
	sort        string
	rng         string
	fields      string
	conjunctive bool
}

func sqlCommand() *cobra.Command {
	var opts sqlOptions

	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Compile list parameters against a model and print the SQL",
		Example: `  server sql --table article --columns id:number,title:text,stars:number \
    --filter '{"stars": {"$gte": 3}}' --sort '["title", "desc"]' --range '[0, 9]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.schema, "schema", "", "schema qualifying the table")
	f.StringVar(&opts.table, "table", "", "table name")
	f.StringVar(&opts.id, "id", "id", "identifier column")
	f.StringVar(&opts.columns, "columns", "", "comma separated name:type columns (type defaults to text)")
	f.StringVar(&opts.filter, "filter", "", "filter JSON")
	f.StringVar(&opts.sort, "sort", "", "sort JSON, e.g. [\"title\", \"desc\"]")
	f.StringVar(&opts.rng, "range", "", "range JSON, e.g. [0, 9]")
	f.StringVar(&opts.fields, "fields", "", "projection JSON, e.g. [\"id\", \"title\"]")
	f.BoolVar(&opts.conjunctive, "conjunctive", false, "AND every operator of an operator object")
	cmd.MarkFlagRequired("table")
	cmd.MarkFlagRequired("columns")

	return cmd
}

func runSQL(out io.Writer, opts sqlOptions) error {
	columns, err := parseColumns(opts.columns)
	if err != nil {
		return err
	}
	model := schema.NewModel(opts.schema, opts.table, opts.id, columns...)

	payload, err := grammar.Validate(opts.filter, opts.sort, opts.rng, opts.fields)
	if err != nil {
		return err
	}
	if keys := payload.Filter.JoinKeys(); len(keys) > 0 {
		return fmt.Errorf("join keys %v need a database connection", keys)
	}

	strategy := query.LastWins
	if opts.conjunctive {
		strategy = query.Conjunctive
	}
	compiler := query.NewCompiler(query.WithOperatorStrategy(strategy))

	cq, err := compiler.CompileCount(model, nil, payload)
	if err != nil {
		return err
	}
	_, _, q, err := compiler.CompileQuery(model, nil, payload, 0)
	if err != nil {
		return err
	}

	if err := printQuery(out, "count", cq); err != nil {
		return err
	}
	return printQuery(out, "data", q)
}

func printQuery(out io.Writer, label string, b query.Builder) error {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "-- %s\n%s;\n", label, sqlStr)
	if len(args) > 0 {
		fmt.Fprintf(out, "-- args: %v\n", args)
	}
	return nil
}

// parseColumns reads "id:number,title:text,meta:jsonb". Types are either a
// column type name (number, json, ...) or a PostgreSQL data type.
func parseColumns(list string) ([]schema.Column, error) {
	var columns []schema.Column
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, _ := strings.Cut(part, ":")
		if name == "" {
			return nil, fmt.Errorf("column %q has no name", part)
		}
		columns = append(columns, schema.Column{Name: name, Type: columnType(typ)})
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns given")
	}
	return columns, nil
}

func columnType(name string) schema.ColumnType {
	if name == "" {
		return schema.ColumnText
	}
	switch t := schema.ColumnType(strings.ToUpper(name)); t {
	case schema.ColumnText, schema.ColumnNumber, schema.ColumnBoolean, schema.ColumnDatetime,
		schema.ColumnJSON, schema.ColumnArray, schema.ColumnOther:
		return t
	}
	return schema.ColumnTypeOf(name)
}
