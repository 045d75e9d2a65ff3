package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Code(BadRequest("Missing fields")))
	assert.Equal(t, http.StatusUnauthorized, Code(Unauthorized("Invalid credentials")))
	assert.Equal(t, http.StatusBadRequest, Code(Conflict("User/email already exists", nil)))
	assert.Equal(t, http.StatusNotFound, Code(NotFound("User not found")))
	assert.Equal(t, http.StatusInternalServerError, Code(errors.New("boom")))

	wrapped := fmt.Errorf("signup: %w", Unauthorized("nope"))
	assert.Equal(t, http.StatusUnauthorized, Code(wrapped))
}

func TestInternalPassesMessageThrough(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)

	assert.Equal(t, "connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
