package mr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUserFunctionError_Unwrap(t *testing.T) {
	cause := errors.New("division by zero")
	err := &UserFunctionError{TaskID: uuid.New(), Phase: "map", Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "map function failed")
}

func TestJobAbortedError_WrapsCause(t *testing.T) {
	jobID := uuid.New()
	cause := &WorkerFailureError{WorkerID: uuid.New(), TaskID: uuid.New(), Reason: "heartbeat deadline exceeded"}
	err := &JobAbortedError{JobID: jobID, Cause: cause}

	var wfe *WorkerFailureError
	require.True(t, errors.As(err, &wfe))
	require.Contains(t, err.Error(), jobID.String())
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	inner := &InvalidInputError{Reason: "partition count must be positive"}
	wrapped := fmt.Errorf("submit failed: %w", inner)

	var invalid *InvalidInputError
	require.True(t, errors.As(wrapped, &invalid))
	require.Equal(t, inner.Reason, invalid.Reason)
}
