package engine

import (
	"context"

	"github.com/jocic-m/mrengine/pkg/mr"
)

// IterativeSpec drives a multi-round job, the way iterative workloads like
// gradient descent run: each round is a fully independent job, and the only
// state carried between rounds is the previous round's output.
type IterativeSpec struct {
	// MaxRounds bounds the number of rounds.
	MaxRounds int
	// Next builds the job for the given round from the carried output of
	// the previous round. carry is nil on round 0.
	Next func(round int, carry []mr.KeyValue) (JobSpec, error)
	// Converged, when non-nil, stops iteration after the round whose output
	// satisfies it.
	Converged func(round int, output []mr.KeyValue) bool
}

// RunIterative runs rounds until MaxRounds is reached or Converged reports
// true, returning the last round's output.
func (e *Engine) RunIterative(ctx context.Context, it IterativeSpec) ([]mr.KeyValue, error) {
	if it.MaxRounds <= 0 {
		return nil, &mr.InvalidInputError{Reason: "iterative job requires a positive round count"}
	}
	if it.Next == nil {
		return nil, &mr.InvalidInputError{Reason: "iterative job requires a round builder"}
	}

	var carry []mr.KeyValue
	for round := 0; round < it.MaxRounds; round++ {
		spec, err := it.Next(round, carry)
		if err != nil {
			return nil, err
		}

		handle, err := e.Submit(ctx, spec)
		if err != nil {
			return nil, err
		}
		output, err := handle.Await(ctx)
		if err != nil {
			return nil, err
		}

		if it.Converged != nil && it.Converged(round, output) {
			return output, nil
		}
		carry = output
	}
	return carry, nil
}
