package grammar

import (
	"math"
	"strings"

	"github.com/atlekbai/query_compiler/internal/filter"
)

func parsePayload(doc object) (*filter.Payload, error) {
	p := &filter.Payload{}
	for _, m := range doc {
		var err error
		switch m.key {
		case "filter":
			obj, ok := m.value.(object)
			if !ok {
				return nil, violation("filter: expected object, got %s", kindOf(m.value))
			}
			p.Filter, err = parseFilter("filter", obj)
		case "sort":
			var s []string
			s, err = parseStrings("sort", m.value)
			p.Sort = filter.Sort(s)
		case "range":
			p.Range, err = parseRange(m.value)
		case "fields":
			p.Fields, err = parseStrings("fields", m.value)
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func parseFilter(path string, obj object) (filter.Filter, error) {
	f := make(filter.Filter, 0, len(obj))
	for _, m := range obj {
		at := path + "." + m.key
		switch {
		case m.key == filter.KeyAnd || m.key == filter.KeyOr:
			terms, err := parseTerms(at, m.value)
			if err != nil {
				return nil, err
			}
			if m.key == filter.KeyAnd {
				f = append(f, filter.And{Terms: terms})
			} else {
				f = append(f, filter.Or{Terms: terms})
			}
		case strings.HasPrefix(m.key, "$"):
			sub, ok := m.value.(object)
			if !ok {
				return nil, violation("%s: expected object, got %s", at, kindOf(m.value))
			}
			inner, err := parseFilter(at, sub)
			if err != nil {
				return nil, err
			}
			f = append(f, filter.Join{Key: m.key, Filter: inner})
		default:
			v, err := parseValue(at, m.value)
			if err != nil {
				return nil, err
			}
			f = append(f, filter.Cond{Field: m.key, Value: v})
		}
	}
	return f, nil
}

// parseTerms flattens the entries of every sub-filter object of a $and/$or array.
func parseTerms(path string, v any) ([]filter.Expr, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, violation("%s: expected array, got %s", path, kindOf(v))
	}
	var terms []filter.Expr
	for _, e := range arr {
		obj, ok := e.(object)
		if !ok {
			return nil, violation("%s: expected array of objects, got %s element", path, kindOf(e))
		}
		sub, err := parseFilter(path, obj)
		if err != nil {
			return nil, err
		}
		terms = append(terms, sub...)
	}
	return terms, nil
}

func parseValue(path string, v any) (filter.Value, error) {
	switch t := v.(type) {
	case object:
		ops := make(filter.Ops, 0, len(t))
		for _, m := range t {
			if !filter.IsOperator(m.key) {
				continue
			}
			ops = append(ops, filter.Op{Name: filter.Operator(m.key), Operand: plain(m.value)})
		}
		return ops, nil
	case []any:
		list := make(filter.List, 0, len(t))
		for _, e := range t {
			if !isScalar(e) {
				return nil, violation("%s: expected array of scalars, got %s element", path, kindOf(e))
			}
			list = append(list, filter.Scalar{V: e})
		}
		return list, nil
	default:
		return filter.Scalar{V: v}, nil
	}
}

func parseStrings(path string, v any) ([]string, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, violation("%s: expected array, got %s", path, kindOf(v))
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, violation("%s: expected array of strings, got %s element", path, kindOf(e))
		}
		out = append(out, s)
	}
	return out, nil
}

// maxInt64Float is 2^63, the first float64 above the int64 range.
const maxInt64Float = float64(1 << 63)

func parseRange(v any) (filter.Range, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, violation("range: expected array, got %s", kindOf(v))
	}
	r := make(filter.Range, 0, len(arr))
	for _, e := range arr {
		switch n := e.(type) {
		case int64:
			r = append(r, n)
		case float64:
			if n != math.Trunc(n) {
				return nil, violation("range: expected integers, got %v", n)
			}
			if n < -maxInt64Float || n >= maxInt64Float {
				return nil, violation("range: %v is out of range", n)
			}
			r = append(r, int64(n))
		default:
			return nil, violation("range: expected integers, got %s element", kindOf(e))
		}
	}
	return r, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int64, float64:
		return true
	}
	return false
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case object:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	default:
		return "unknown"
	}
}
