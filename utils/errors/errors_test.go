package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsAPIError(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "OTHER", "other", http.StatusTeapot)
	assert.Same(t, ErrNotFound, wrapped)
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(stderrors.New("boom"), "DB_ERROR", "db failed", http.StatusInternalServerError)
	assert.Equal(t, "DB_ERROR", wrapped.Code)
	assert.Equal(t, "boom", wrapped.Details)
	assert.Equal(t, "DB_ERROR: db failed", wrapped.Error())
}

func TestWithDetailsDoesNotMutateSentinel(t *testing.T) {
	e := ErrConflict.WithDetails("abc")
	assert.Equal(t, "abc", e.Details)
	assert.Empty(t, ErrConflict.Details)
	assert.True(t, Is(e, "CONFLICT"))
	assert.False(t, Is(stderrors.New("x"), "CONFLICT"))
}

func TestValidation(t *testing.T) {
	e := Validation(map[string]string{"name": "too short"})
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, "too short", e.Fields["name"])
}
