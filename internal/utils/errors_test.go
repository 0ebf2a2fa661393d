package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "sampling_rate must be positive",
	}

	assert.Equal(t, "sampling_rate must be positive", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("duration is required")

	assert.Error(t, err)
	assert.Equal(t, "duration is required", err.Error())

	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "duration is required", validationErr.Message)
}

func TestNewValidationErrorf(t *testing.T) {
	err := NewValidationErrorf("%s must be within [%d, %d]", "roi.x", 0, 1)

	assert.Error(t, err)
	assert.Equal(t, "roi.x must be within [0, 1]", err.Error())
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct", NewValidationError("bad"), true},
		{"wrapped", fmt.Errorf("handler: %w", NewValidationError("bad")), true},
		{"other", errors.New("boom"), false},
		{"sentinel", ErrNotFound, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}
