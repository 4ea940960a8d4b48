package filter

import (
	"errors"
	"math"
	"testing"
)

func TestJoinKeys(t *testing.T) {
	f := Filter{
		Cond{Field: "title", Value: Scalar{V: "x"}},
		Join{Key: "$author", Filter: Filter{
			Join{Key: "$institution", Filter: Filter{Cond{Field: "name", Value: Scalar{V: "EPFL"}}}},
		}},
		Or{Terms: []Expr{
			Join{Key: "$author", Filter: Filter{Cond{Field: "name", Value: Scalar{V: "y"}}}},
			And{Terms: []Expr{Join{Key: "$editor", Filter: nil}}},
		}},
	}

	got := f.JoinKeys()
	want := []string{"$author", "$institution", "$editor"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if keys := (Filter{}).JoinKeys(); len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
}

func TestListHelpers(t *testing.T) {
	l := List{{V: nil}, {V: "a"}, {V: int64(2)}}
	if !l.HasNull() {
		t.Fatal("expected HasNull")
	}
	vals := l.Values()
	if len(vals) != 2 || vals[0] != "a" || vals[1] != int64(2) {
		t.Fatalf("unexpected values %v", vals)
	}
	if (List{{V: "a"}}).HasNull() {
		t.Fatal("expected no null")
	}
}

func TestOpsGet(t *testing.T) {
	ops := Ops{{Name: OpGte, Operand: int64(1)}, {Name: OpLte, Operand: int64(5)}}
	if v, ok := ops.Get(OpLte); !ok || v != int64(5) {
		t.Fatalf("expected 5, got %v %v", v, ok)
	}
	if _, ok := ops.Get(OpEq); ok {
		t.Fatal("expected $eq to be absent")
	}
}

func TestIsOperator(t *testing.T) {
	for _, op := range Operators {
		if !IsOperator(string(op)) {
			t.Errorf("expected %s to be an operator", op)
		}
	}
	for _, name := range []string{"$and", "$between", "eq", ""} {
		if IsOperator(name) {
			t.Errorf("expected %q not to be an operator", name)
		}
	}
}

func TestRangeBounds(t *testing.T) {
	tests := []struct {
		r         Range
		start     int64
		end       int64
		ok        bool
		wantError bool
	}{
		{nil, 0, 0, false, false},
		{Range{0, 9}, 0, 9, true, false},
		{Range{5, 5}, 5, 5, true, false},
		{Range{0, -1}, 0, 0, false, false},
		{Range{1, 2, 3}, 0, 0, false, false},
		{Range{9, 0}, 0, 0, false, true},
		{Range{-3, 0}, 0, 0, false, true},
		{Range{0, math.MaxInt64}, 0, 0, false, true},
		{Range{1, math.MaxInt64}, 1, math.MaxInt64, true, false},
	}
	for _, tt := range tests {
		start, end, ok, err := tt.r.Bounds()
		if tt.wantError {
			if !errors.Is(err, ErrUnsupportedRangeBounds) {
				t.Errorf("%v: expected ErrUnsupportedRangeBounds, got %v", tt.r, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: unexpected error %v", tt.r, err)
			continue
		}
		if start != tt.start || end != tt.end || ok != tt.ok {
			t.Errorf("%v: expected (%d, %d, %v), got (%d, %d, %v)", tt.r, tt.start, tt.end, tt.ok, start, end, ok)
		}
	}
}
