package topicscope

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	assert.Equal(t, "NO_DATA: no data found", ErrNoData.Error())

	wrapped := NewErrorWithCause(ErrCodeDatabase, "failed to save topics", errors.New("disk full"))
	assert.Equal(t, "DATABASE_ERROR: failed to save topics: disk full", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorWithCause(ErrCodeTransport, "dial failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("send: %w", ErrNotConnected)

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotErrorIs(t, err, ErrNoPublishTopic)
	assert.True(t, IsNotConnected(err))
	assert.False(t, IsNoData(err))
}

func TestError_Predicates(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		noData     bool
		validation bool
	}{
		{name: "no data", err: ErrNoData, noData: true},
		{name: "validation", err: NewError(ErrCodeValidation, "bad topic"), validation: true},
		{name: "plain error", err: errors.New("x")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.noData, IsNoData(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
		})
	}
}
