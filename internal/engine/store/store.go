// Package store provides the attempt-tagged output buffers shared between
// worker attempts and the shuffle/output readers.
package store

import (
	"fmt"
	"sync"

	"github.com/jocic-m/mrengine/pkg/mr"
)

type attemptKey struct {
	partition int
	attempt   int
}

// Store holds append-only buffers for one phase of a job, keyed by
// (partition, attempt) so concurrent attempts never contend on the same key.
// A buffer becomes visible to readers only when its attempt is promoted; at
// most one attempt per partition is ever promoted, which is what makes task
// re-execution idempotent: writes from a dead attempt stay invisible.
type Store struct {
	mu       sync.Mutex
	pending  map[attemptKey][]mr.KeyValue
	promoted map[int]int
	runs     map[int][]mr.KeyValue
}

func New() *Store {
	return &Store{
		pending:  make(map[attemptKey][]mr.KeyValue),
		promoted: make(map[int]int),
		runs:     make(map[int][]mr.KeyValue),
	}
}

// Append adds pairs to the attempt's buffer in insertion order.
func (s *Store) Append(partition, attempt int, pairs ...mr.KeyValue) {
	if len(pairs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey{partition: partition, attempt: attempt}
	s.pending[key] = append(s.pending[key], pairs...)
}

// Promote makes the attempt's buffer the partition's visible run. Promoting
// a partition twice is an error: a task completes at most once.
func (s *Store) Promote(partition, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, exists := s.promoted[partition]; exists {
		return fmt.Errorf("partition %d already promoted at attempt %d", partition, prev)
	}

	key := attemptKey{partition: partition, attempt: attempt}
	s.promoted[partition] = attempt
	s.runs[partition] = s.pending[key]
	delete(s.pending, key)
	return nil
}

// Discard drops a dead attempt's buffer so it can never be read.
func (s *Store) Discard(partition, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, attemptKey{partition: partition, attempt: attempt})
}

// Promoted reports whether the partition has a visible run.
func (s *Store) Promoted(partition int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.promoted[partition]
	return exists
}

// Runs returns the promoted buffers for partitions [0, parts) in partition
// order. Unpromoted partitions yield nil. Callers read only after the phase
// barrier, when every partition has been promoted.
func (s *Store) Runs(parts int) [][]mr.KeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([][]mr.KeyValue, parts)
	for partition := 0; partition < parts; partition++ {
		runs[partition] = s.runs[partition]
	}
	return runs
}
