package filter

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedRangeBounds is returned for a range whose bounds cannot be
// turned into offset/limit.
var ErrUnsupportedRangeBounds = errors.New("unsupported range bounds")

// Payload is a parsed list request.
type Payload struct {
	Filter Filter
	Sort   Sort
	Range  Range
	Fields []string
}

// Sort is empty, [field] or [field, direction].
type Sort []string

// Range is empty or [start, end] with inclusive bounds.
type Range []int64

// Bounds returns start and end of a two-element range with a non-negative end.
// ok is false when the range asks for no limiting. The window size end-start+1
// must fit in an int64.
func (r Range) Bounds() (start, end int64, ok bool, err error) {
	if len(r) != 2 || r[1] < 0 {
		return 0, 0, false, nil
	}
	start, end = r[0], r[1]
	if start < 0 || end < start || end-start == math.MaxInt64 {
		return 0, 0, false, fmt.Errorf("%w: [%d, %d]", ErrUnsupportedRangeBounds, start, end)
	}
	return start, end, true, nil
}
