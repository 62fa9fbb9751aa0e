package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Manager", "Start", "loop startup")
	require.Error(t, err)
	assert.Equal(t, "Manager.Start: loop startup failed: boom", err.Error())
	assert.True(t, errors.Is(err, base))

	assert.NoError(t, Wrap(nil, "Manager", "Start", "anything"))
}

func TestWrapClassified(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Queue", "Push", "enqueue")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Queue", ce.Component)
			assert.Equal(t, "Push", ce.Operation)
			assert.True(t, errors.Is(err, base))

			assert.NoError(t, tt.wrap(nil, "Queue", "Push", "enqueue"))
		})
	}
}

func TestClassifySentinels(t *testing.T) {
	assert.True(t, IsTransient(ErrStartRetryable))
	assert.True(t, IsTransient(ErrDependencyMissing))
	assert.True(t, IsInvalid(ErrDuplicateRegistration))
	assert.True(t, IsInvalid(ErrUnknownInterface))
	assert.True(t, IsInvalid(fmt.Errorf("while registering: %w", ErrInvalidConfig)))
	assert.True(t, IsFatal(ErrQueueShutdown))
	assert.True(t, IsFatal(ErrStopFailed))

	assert.Equal(t, ErrorFatal, Classify(ErrQueueShutdown))
	assert.Equal(t, ErrorInvalid, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorTransient, Classify(errors.New("unknown")))
}

func TestClassifyNil(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsFatal(nil))
	assert.Equal(t, ErrorTransient, Classify(nil))
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	err := WrapFatal(ErrStopFailed, "Lifecycle", "Stop", "user stop")

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.True(t, errors.Is(ce.Unwrap(), ErrStopFailed))
	assert.Contains(t, ce.Error(), "Lifecycle.Stop")
}
