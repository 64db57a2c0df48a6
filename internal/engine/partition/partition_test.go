package partition

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jocic-m/mrengine/pkg/mr"
)

func makeRecords(n int) []mr.Record {
	records := make([]mr.Record, n)
	for i := range records {
		records[i] = mr.Record{Key: fmt.Sprintf("input:%d", i+1), Value: fmt.Sprintf("record %d", i)}
	}
	return records
}

func TestSplit_CoversInputExactly(t *testing.T) {
	for _, tc := range []struct{ records, parts int }{
		{1, 1}, {2, 1}, {5, 2}, {6, 3}, {7, 3}, {100, 7}, {3, 16},
	} {
		t.Run(fmt.Sprintf("%d_records_%d_parts", tc.records, tc.parts), func(t *testing.T) {
			records := makeRecords(tc.records)
			spans, err := Split(records, tc.parts)
			require.NoError(t, err)

			// Concatenating spans in order reconstructs the input: no
			// overlap, no gap.
			next := 0
			for i, span := range spans {
				require.Equal(t, i, span.ID)
				require.Equal(t, next, span.Start)
				require.Greater(t, span.End, span.Start, "spans must be non-empty")
				next = span.End
			}
			require.Equal(t, tc.records, next)
		})
	}
}

func TestSplit_SizesDifferByAtMostOne(t *testing.T) {
	spans, err := Split(makeRecords(10), 3)
	require.NoError(t, err)
	require.Len(t, spans, 3)

	minSize, maxSize := spans[0].Len(), spans[0].Len()
	for _, span := range spans {
		if span.Len() < minSize {
			minSize = span.Len()
		}
		if span.Len() > maxSize {
			maxSize = span.Len()
		}
	}
	require.LessOrEqual(t, maxSize-minSize, 1)
}

func TestSplit_EmptyInputYieldsZeroSpans(t *testing.T) {
	spans, err := Split(nil, 4)
	require.NoError(t, err)
	require.Empty(t, spans)
}

func TestSplit_FewerRecordsThanParts(t *testing.T) {
	spans, err := Split(makeRecords(2), 8)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	for _, span := range spans {
		require.Equal(t, 1, span.Len())
	}
}

func TestSplit_NonPositivePartsIsInvalidInput(t *testing.T) {
	for _, parts := range []int{0, -1} {
		_, err := Split(makeRecords(3), parts)
		var invalid *mr.InvalidInputError
		require.True(t, errors.As(err, &invalid), "expected InvalidInputError, got %v", err)
	}
}
