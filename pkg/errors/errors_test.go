package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := Wrap(errors.New("dial tcp: refused"), ErrGateway.Code, ErrGateway.Status, "fetch enrollments")

	got := FromError(wrapped)

	assert.Same(t, wrapped, got)
	assert.Equal(t, http.StatusBadGateway, got.Status)
	assert.Equal(t, "fetch enrollments: dial tcp: refused", got.Error())
}

func TestFromErrorNormalisesUnknownErrors(t *testing.T) {
	got := FromError(errors.New("boom"))

	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Nil(t, FromError(nil))
}

func TestCloneOverridesMessageOnly(t *testing.T) {
	clone := Clone(ErrValidation, "message is required")

	assert.Equal(t, ErrValidation.Code, clone.Code)
	assert.Equal(t, "message is required", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
}
