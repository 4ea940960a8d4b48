package query

import (
	"github.com/atlekbai/query_compiler/internal/schema"
)

// Descriptor is the model capability the compiler works against.
// *schema.Model implements it.
type Descriptor interface {
	// TableName returns the quoted table reference used in FROM.
	TableName() string
	// Column resolves a field name, failing with schema.ErrUnknownField.
	Column(name string) (schema.Column, error)
	IDColumn() schema.Column
	// Columns lists the columns selected when no projection is requested.
	Columns() []schema.Column
}

// JoinMap maps reserved filter keys (e.g. "$author") to related descriptors.
// The compiler only rewrites predicates against the related table; the caller
// adds the JOIN.
type JoinMap map[string]Descriptor

// Route returns the descriptor registered under key.
func Route(joins JoinMap, key string) (Descriptor, bool) {
	d, ok := joins[key]
	return d, ok && d != nil
}

// resolveColumns resolves a projection. An empty projection selects every
// column of d.
func resolveColumns(d Descriptor, fields []string) ([]string, error) {
	if len(fields) == 0 {
		cols := d.Columns()
		refs := make([]string, len(cols))
		for i, c := range cols {
			refs[i] = c.Ref()
		}
		return refs, nil
	}

	refs := make([]string, 0, len(fields))
	for _, name := range fields {
		c, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		refs = append(refs, c.Ref())
	}
	return refs, nil
}
