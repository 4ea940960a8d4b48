package schema

import (
	"errors"
	"fmt"
	"strings"
)

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ErrUnknownField is matched by every *UnknownFieldError.
var ErrUnknownField = errors.New("unknown field")

// UnknownFieldError reports a field name with no column on a model.
type UnknownFieldError struct {
	Model string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q on %q", e.Field, e.Model)
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

type ColumnType string

const (
	ColumnText     ColumnType = "TEXT"
	ColumnNumber   ColumnType = "NUMBER"
	ColumnBoolean  ColumnType = "BOOLEAN"
	ColumnDatetime ColumnType = "DATETIME"
	ColumnJSON     ColumnType = "JSON"
	ColumnArray    ColumnType = "ARRAY"
	ColumnOther    ColumnType = "OTHER"
)

// ColumnTypeOf maps an information_schema data_type to a ColumnType.
func ColumnTypeOf(dataType string) ColumnType {
	switch strings.ToLower(dataType) {
	case "text", "character varying", "character", "varchar", "char", "uuid", "citext":
		return ColumnText
	case "smallint", "integer", "bigint", "numeric", "decimal", "real", "double precision":
		return ColumnNumber
	case "boolean":
		return ColumnBoolean
	case "date", "timestamp without time zone", "timestamp with time zone", "time without time zone", "time with time zone":
		return ColumnDatetime
	case "json", "jsonb":
		return ColumnJSON
	case "array":
		return ColumnArray
	default:
		return ColumnOther
	}
}

// Column is a typed reference to a table column.
type Column struct {
	Table string
	Name  string
	Type  ColumnType
}

// Ref returns the qualified, quoted column reference, e.g. "article"."title".
func (c Column) Ref() string {
	return QuoteIdent(c.Table) + "." + QuoteIdent(c.Name)
}

// IsComposite reports whether containment uses @> rather than substring matching.
func (c Column) IsComposite() bool {
	return c.Type == ColumnJSON || c.Type == ColumnArray
}

// Model describes a queryable table.
type Model struct {
	Schema  string
	Name    string
	ID      string
	columns []Column
	byName  map[string]int
}

// NewModel builds a model for table name. Columns are bound to the table; id
// names the identifier column and defaults to "id".
func NewModel(schemaName, name, id string, columns ...Column) *Model {
	if id == "" {
		id = "id"
	}
	m := &Model{
		Schema: schemaName,
		Name:   name,
		ID:     id,
		byName: make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		m.addColumn(c)
	}
	return m
}

func (m *Model) addColumn(c Column) {
	c.Table = m.Name
	if i, ok := m.byName[c.Name]; ok {
		m.columns[i] = c
		return
	}
	m.byName[c.Name] = len(m.columns)
	m.columns = append(m.columns, c)
}

// TableName returns the quoted table name, schema-qualified when a schema is set.
func (m *Model) TableName() string {
	if m.Schema != "" {
		return QuoteIdent(m.Schema) + "." + QuoteIdent(m.Name)
	}
	return QuoteIdent(m.Name)
}

// Column resolves a field name to its column.
func (m *Model) Column(name string) (Column, error) {
	i, ok := m.byName[name]
	if !ok {
		return Column{}, &UnknownFieldError{Model: m.Name, Field: name}
	}
	return m.columns[i], nil
}

// IDColumn returns the identifier column. A model whose identifier is not among
// its columns still gets a reference, typed ColumnOther.
func (m *Model) IDColumn() Column {
	if c, err := m.Column(m.ID); err == nil {
		return c
	}
	return Column{Table: m.Name, Name: m.ID, Type: ColumnOther}
}

// Columns returns the columns in declaration order.
func (m *Model) Columns() []Column {
	out := make([]Column, len(m.columns))
	copy(out, m.columns)
	return out
}

// Relation is a foreign key From -> To. Either side may belong to the model it
// was looked up for.
type Relation struct {
	From Column
	To   Column
}

// Ends splits r into the column on the far side of table and the one on its side.
func (r Relation) Ends(table string) (far, near Column) {
	if r.From.Table == table {
		return r.To, r.From
	}
	return r.From, r.To
}
