// Package partition splits job input into contiguous record spans, one per
// map task.
package partition

import (
	"fmt"

	"github.com/jocic-m/mrengine/pkg/mr"
)

// Span is an immutable reference to a contiguous range of input records,
// [Start, End). Spans never split a record: boundaries are record indices.
type Span struct {
	ID    int
	Start int
	End   int
}

// Len returns the number of records in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Split divides records into at most parts non-empty spans that together
// cover the input exactly once, with no overlap and no gap. Spans differ in
// size by at most one record. An empty input yields zero spans rather than
// an error, so a job over no records runs no map tasks.
func Split(records []mr.Record, parts int) ([]Span, error) {
	if parts <= 0 {
		return nil, &mr.InvalidInputError{
			Reason: fmt.Sprintf("partition count must be positive, got %d", parts),
		}
	}

	n := len(records)
	if n == 0 {
		return nil, nil
	}
	if parts > n {
		parts = n
	}

	base := n / parts
	extra := n % parts

	spans := make([]Span, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		size := base
		if i < extra {
			size++
		}
		spans = append(spans, Span{ID: i, Start: start, End: start + size})
		start += size
	}
	return spans, nil
}
