package query

import (
	"strings"

	"github.com/atlekbai/query_compiler/internal/filter"
	"github.com/atlekbai/query_compiler/internal/schema"
)

// OrderClause is a single ORDER BY term.
type OrderClause struct {
	Column schema.Column
	Desc   bool
}

func (o OrderClause) String() string {
	if o.Desc {
		return o.Column.Ref() + " DESC"
	}
	return o.Column.Ref() + " ASC"
}

// Sort resolves a sort parameter. ["title", "desc"] sorts descending (any case);
// any other direction, or none, sorts ascending. An empty parameter yields nil.
func Sort(d Descriptor, s filter.Sort) (*OrderClause, error) {
	if len(s) == 0 {
		return nil, nil
	}
	col, err := d.Column(s[0])
	if err != nil {
		return nil, err
	}
	clause := &OrderClause{Column: col}
	if len(s) > 1 && strings.EqualFold(s[1], "desc") {
		clause.Desc = true
	}
	return clause, nil
}

// Page is the resolved pagination window. Start and End are the inclusive row
// indexes reported back to the caller.
type Page struct {
	Start   int64
	End     int64
	Limited bool
}

func (p Page) Offset() uint64 { return uint64(p.Start) }

func (p Page) Limit() uint64 { return uint64(p.End - p.Start + 1) }

// Range resolves a range parameter. [start, end] with end >= 0 limits the query to
// that window; anything else covers all rows, reported as (0, total).
func Range(r filter.Range, total int64) (Page, error) {
	start, end, ok, err := r.Bounds()
	if err != nil {
		return Page{}, err
	}
	if !ok {
		return Page{Start: 0, End: total}, nil
	}
	return Page{Start: start, End: end, Limited: true}, nil
}
