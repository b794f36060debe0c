package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, CodeOf(NotFound("policy", "p-1")))
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(InvalidInput("role", "required")))
	assert.Equal(t, ErrCodeUnavailable, CodeOf(Unavailable("policy store", fmt.Errorf("refused"))))
	assert.Equal(t, ErrCodeConflict, CodeOf(New(ErrCodeConflict, "duplicate scope")))

	// Unknown errors are internal.
	assert.Equal(t, ErrCodeInternal, CodeOf(fmt.Errorf("plain")))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := Unavailable("policy store", fmt.Errorf("refused"))
	outer := fmt.Errorf("evaluating constraints: %w", inner)

	assert.Equal(t, ErrCodeUnavailable, CodeOf(outer))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrCodeUnavailable, "store unreachable")

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), ErrCodeUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}
