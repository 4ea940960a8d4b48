package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	sq "github.com/Masterminds/squirrel"
)

// Querier is the subset of *sql.DB the registry needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const primaryKeyExpr = `EXISTS (
	SELECT 1 FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage k
		ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = c.table_schema
		AND tc.table_name = c.table_name
		AND k.column_name = c.column_name
) AS is_pk`

// Registry holds the model descriptors and foreign-key relations of a database.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]*Model
	relations map[string][]Relation
}

// NewRegistry returns a registry holding models, keyed by table name.
func NewRegistry(models ...*Model) *Registry {
	r := &Registry{
		models:    make(map[string]*Model, len(models)),
		relations: make(map[string][]Relation),
	}
	for _, m := range models {
		r.models[m.Name] = m
	}
	return r
}

// Load replaces the registry contents with the tables and foreign keys found in
// the given database schemas. A table is registered under its bare name for
// the first schema in schemas that has it, like a search_path; same-named
// tables of later schemas are registered as "schema.table".
func (r *Registry) Load(ctx context.Context, db Querier, schemas []string) error {
	loaded, err := loadModels(ctx, db, schemas)
	if err != nil {
		return err
	}
	models := registryKeys(loaded, schemas)
	relations, err := loadRelations(ctx, db, schemas, loaded, models)
	if err != nil {
		return err
	}

	byKey := make(map[string]*Model, len(models))
	for m, key := range models {
		byKey[key] = m
	}

	r.mu.Lock()
	r.models = byKey
	r.relations = relations
	r.mu.Unlock()

	return nil
}

// qualified is the lookup key of a table during a load.
func qualified(schemaName, table string) string {
	return schemaName + "." + table
}

func loadModels(ctx context.Context, db Querier, schemas []string) (map[string]*Model, error) {
	query, args, err := sq.Select(
		"c.table_schema", "c.table_name", "c.column_name", "c.data_type", primaryKeyExpr,
	).
		From("information_schema.columns c").
		Where(sq.Eq{"c.table_schema": schemas}).
		OrderBy("c.table_schema", "c.table_name", "c.ordinal_position").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("schema registry columns query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schema registry load: %w", err)
	}
	defer rows.Close()

	models := make(map[string]*Model)
	firstPK := make(map[string]string)

	for rows.Next() {
		var (
			tableSchema string
			tableName   string
			columnName  string
			dataType    string
			isPK        bool
		)
		if err := rows.Scan(&tableSchema, &tableName, &columnName, &dataType, &isPK); err != nil {
			return nil, fmt.Errorf("schema registry scan: %w", err)
		}

		key := qualified(tableSchema, tableName)
		m, ok := models[key]
		if !ok {
			m = NewModel(tableSchema, tableName, "id")
			models[key] = m
		}
		m.addColumn(Column{Name: columnName, Type: ColumnTypeOf(dataType)})
		if isPK && firstPK[key] == "" {
			firstPK[key] = columnName
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema registry rows: %w", err)
	}

	// Tables without an "id" column are identified by their first primary key column.
	for key, m := range models {
		if _, err := m.Column("id"); err != nil && firstPK[key] != "" {
			m.ID = firstPK[key]
		}
	}

	return models, nil
}

// registryKeys names every loaded model, walking schemas in order so the first
// schema holding a table name gets the bare name.
func registryKeys(loaded map[string]*Model, schemas []string) map[*Model]string {
	keys := make(map[*Model]string, len(loaded))
	taken := make(map[string]bool, len(loaded))
	for _, schemaName := range schemas {
		var names []string
		for _, m := range loaded {
			if m.Schema == schemaName {
				names = append(names, m.Name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			m := loaded[qualified(schemaName, name)]
			key := name
			if taken[key] {
				key = qualified(schemaName, name)
			}
			taken[key] = true
			keys[m] = key
		}
	}
	return keys
}

func loadRelations(ctx context.Context, db Querier, schemas []string, loaded map[string]*Model, keys map[*Model]string) (map[string][]Relation, error) {
	query, args, err := sq.Select(
		"kcu.table_schema", "kcu.table_name", "kcu.column_name",
		"ccu.table_schema", "ccu.table_name", "ccu.column_name",
	).
		From("information_schema.table_constraints tc").
		Join("information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema").
		Join("information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.constraint_schema").
		Where(sq.Eq{"tc.constraint_type": "FOREIGN KEY"}).
		Where(sq.Eq{"tc.table_schema": schemas}).
		OrderBy("kcu.table_schema", "kcu.table_name", "kcu.column_name").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("schema registry relations query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schema registry relations: %w", err)
	}
	defer rows.Close()

	relations := make(map[string][]Relation)
	for rows.Next() {
		var fromSchema, fromTable, fromColumn, toSchema, toTable, toColumn string
		if err := rows.Scan(&fromSchema, &fromTable, &fromColumn, &toSchema, &toTable, &toColumn); err != nil {
			return nil, fmt.Errorf("schema registry relations scan: %w", err)
		}
		from, fromOK := loaded[qualified(fromSchema, fromTable)]
		to, toOK := loaded[qualified(toSchema, toTable)]
		if !fromOK || !toOK {
			continue
		}
		fc, err := from.Column(fromColumn)
		if err != nil {
			continue
		}
		tc, err := to.Column(toColumn)
		if err != nil {
			continue
		}
		rel := Relation{From: fc, To: tc}
		relations[keys[from]] = append(relations[keys[from]], rel)
		if to != from {
			relations[keys[to]] = append(relations[keys[to]], rel)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema registry relations rows: %w", err)
	}

	return relations, nil
}

// AddRelation registers a foreign key from -> to on both tables.
func (r *Registry) AddRelation(from, to Column) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel := Relation{From: from, To: to}
	r.relations[from.Table] = append(r.relations[from.Table], rel)
	if to.Table != from.Table {
		r.relations[to.Table] = append(r.relations[to.Table], rel)
	}
}

// Get returns the model registered under name: a table name, or
// "schema.table" for a table shadowed by an earlier schema.
func (r *Registry) Get(name string) *Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[name]
}

// Relations returns the foreign keys touching the model registered under name.
func (r *Registry) Relations(name string) []Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Relation, len(r.relations[name]))
	copy(out, r.relations[name])
	return out
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelCount returns the number of loaded models.
func (r *Registry) ModelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
